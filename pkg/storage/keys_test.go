package storage

import (
	"errors"
	"testing"
)

func TestReferenceURLRoundTrip(t *testing.T) {
	r := NewURLResolver("http://minio:9000/indi-radio-bucket", "indi-radio-bucket")

	paths := []ObjectPath{
		{Region: "Ontario", Channel: "CFRB", ContentType: "ads", Date: "2025-03-01", FileName: "spot.mp3"},
		{Region: "South East", Channel: "Radio 1", ContentType: "songs", Date: "2025-03-01", FileName: "my song (live).mp3"},
		{Region: "Québec", Channel: "CKOI 96.9", ContentType: "ads", Date: "2025-03-02", FileName: "pub#1?final%.mp3"},
	}

	for _, p := range paths {
		ref := r.ReferenceURL(p)
		key, err := r.KeyFromReference(ref)
		if err != nil {
			t.Fatalf("KeyFromReference(%q) error: %v", ref, err)
		}
		if key != p.Key() {
			t.Errorf("round trip mismatch: got %q, want %q", key, p.Key())
		}
	}
}

func TestReferenceURLEscapesSegments(t *testing.T) {
	r := NewURLResolver("http://minio:9000/bucket/", "bucket")
	p := ObjectPath{Region: "South East", Channel: "Radio 1", ContentType: "ads", Date: "2025-03-01", FileName: "a b.mp3"}

	got := r.ReferenceURL(p)
	want := "http://minio:9000/bucket/South%20East/Radio%201/ads/2025-03-01/a%20b.mp3"
	if got != want {
		t.Errorf("ReferenceURL = %q, want %q", got, want)
	}
	if p.Key() != "South East/Radio 1/ads/2025-03-01/a b.mp3" {
		t.Errorf("Key = %q", p.Key())
	}
}

func TestKeyFromReferenceLegacyForms(t *testing.T) {
	r := NewURLResolver("http://minio:9000/bucket/", "bucket")

	tests := []struct {
		name string
		ref  string
		want string
	}{
		{"s3 scheme", "s3://bucket/Ontario/CFRB/ads/2025-03-01/spot.mp3", "Ontario/CFRB/ads/2025-03-01/spot.mp3"},
		{"leading slash", "/Ontario/CFRB/ads/2025-03-01/spot.mp3", "Ontario/CFRB/ads/2025-03-01/spot.mp3"},
		{"uuid prefix", "http://minio:9000/bucket/0f8fad5b-d9cb-469f-a165-70867728950e-spot.mp3", "spot.mp3"},
		{"uuid prefix on file segment", "http://minio:9000/bucket/Ontario/CFRB/ads/2025-03-01/0f8fad5b-d9cb-469f-a165-70867728950e-spot.mp3", "Ontario/CFRB/ads/2025-03-01/spot.mp3"},
		{"uuid inside file name", "http://minio:9000/bucket/Ontario/CFRB/ads/2025-03-01/spot-0f8fad5b-d9cb-469f-a165-70867728950e-v2.mp3", "Ontario/CFRB/ads/2025-03-01/spot-0f8fad5b-d9cb-469f-a165-70867728950e-v2.mp3"},
		{"trailing slash", "http://minio:9000/bucket/Ontario/CFRB/", "Ontario/CFRB"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.KeyFromReference(tt.ref)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestKeyFromReferenceRejectsUnknownFormat(t *testing.T) {
	r := NewURLResolver("http://minio:9000/bucket/", "bucket")

	for _, ref := range []string{
		"https://elsewhere.example.com/file.mp3",
		"just-a-name.mp3",
		"http://minio:9000/bucket/",
	} {
		if _, err := r.KeyFromReference(ref); !errors.Is(err, ErrUnrecognizedReference) {
			t.Errorf("KeyFromReference(%q) error = %v, want ErrUnrecognizedReference", ref, err)
		}
	}
}
