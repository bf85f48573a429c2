package es

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"indi-radio-go/internal/config"
	"indi-radio-go/pkg/tasks"
)

type esRequest struct {
	method string
	path   string
	body   string
}

// fakeCluster 模拟 Elasticsearch 的 HTTP 接口，响应由 handler 决定
func fakeCluster(t *testing.T, handler func(req esRequest) (int, string)) (*CatalogIndex, *[]esRequest) {
	t.Helper()
	var seen []esRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		req := esRequest{method: r.Method, path: r.URL.Path, body: string(body)}
		seen = append(seen, req)
		status, resp := handler(req)
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, resp)
	}))
	t.Cleanup(srv.Close)

	client, err := NewClient(config.ElasticsearchConfig{Addresses: srv.URL})
	if err != nil {
		t.Fatal(err)
	}
	return NewCatalogIndex(client, "radio-catalog"), &seen
}

func TestEnsureIndexCreatesWhenMissing(t *testing.T) {
	idx, seen := fakeCluster(t, func(req esRequest) (int, string) {
		if req.method == http.MethodHead {
			return http.StatusNotFound, ""
		}
		return http.StatusOK, `{"acknowledged":true}`
	})

	if err := idx.EnsureIndex(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(*seen) != 2 || (*seen)[1].method != http.MethodPut || (*seen)[1].path != "/radio-catalog" {
		t.Fatalf("requests = %+v", *seen)
	}
	if !strings.Contains((*seen)[1].body, `"fileName"`) {
		t.Errorf("mapping not sent: %s", (*seen)[1].body)
	}
}

func TestEnsureIndexSkipsExisting(t *testing.T) {
	idx, seen := fakeCluster(t, func(esRequest) (int, string) { return http.StatusOK, "" })
	if err := idx.EnsureIndex(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(*seen) != 1 {
		t.Fatalf("requests = %+v", *seen)
	}
}

func TestIndexAndDelete(t *testing.T) {
	idx, seen := fakeCluster(t, func(req esRequest) (int, string) {
		if req.method == http.MethodDelete && strings.HasSuffix(req.path, "/gone") {
			return http.StatusNotFound, `{"result":"not_found"}`
		}
		if req.method == http.MethodDelete && strings.HasSuffix(req.path, "/broken") {
			return http.StatusInternalServerError, `{"error":"boom"}`
		}
		return http.StatusOK, `{"result":"created"}`
	})
	ctx := context.Background()

	doc := tasks.CatalogDocument{Kind: tasks.DocumentKindClip, FileName: "a+b.mp3", Channel: "CFRB", Date: "2025-03-01"}
	if err := idx.Index(ctx, "clip-1", doc); err != nil {
		t.Fatal(err)
	}
	first := (*seen)[0]
	if first.method != http.MethodPut || first.path != "/radio-catalog/_doc/clip-1" {
		t.Errorf("index request = %+v", first)
	}
	var sent tasks.CatalogDocument
	if err := json.Unmarshal([]byte(first.body), &sent); err != nil || sent != doc {
		t.Errorf("sent = %+v, err = %v", sent, err)
	}

	if err := idx.Delete(ctx, "gone"); err != nil {
		t.Errorf("delete missing doc: %v", err)
	}
	if err := idx.Delete(ctx, "broken"); err == nil {
		t.Error("expected error on 500")
	}
}

func TestSearchParsesHits(t *testing.T) {
	idx, seen := fakeCluster(t, func(esRequest) (int, string) {
		return http.StatusOK, `{"hits":{"total":{"value":1},"hits":[
			{"_id":"schedule-ext-9","_score":2.5,"_source":{"kind":"schedule","program":"Morning Show","channel":"CFRB","date":"2025-03-01"}}
		]}}`
	})

	hits, err := idx.Search(context.Background(), "morning", 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(hits) != 1 || hits[0].ID != "schedule-ext-9" || hits[0].Score != 2.5 || hits[0].Document.Program != "Morning Show" {
		t.Fatalf("hits = %+v", hits)
	}

	req := (*seen)[0]
	if req.path != "/radio-catalog/_search" {
		t.Errorf("path = %s", req.path)
	}
	var q struct {
		Size  int `json:"size"`
		Query struct {
			MultiMatch struct {
				Query  string   `json:"query"`
				Fields []string `json:"fields"`
			} `json:"multi_match"`
		} `json:"query"`
	}
	if err := json.Unmarshal([]byte(req.body), &q); err != nil {
		t.Fatal(err)
	}
	if q.Size != 5 || q.Query.MultiMatch.Query != "morning" || q.Query.MultiMatch.Fields[0] != "program^3" {
		t.Errorf("query = %+v", q)
	}
}

func TestSearchPropagatesError(t *testing.T) {
	idx, _ := fakeCluster(t, func(esRequest) (int, string) {
		return http.StatusBadRequest, `{"error":{"type":"parsing_exception"}}`
	})
	if _, err := idx.Search(context.Background(), "x", 5); err == nil {
		t.Fatal("expected error")
	}
}
