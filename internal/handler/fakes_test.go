package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"indi-radio-go/internal/middleware"
	"indi-radio-go/internal/model"
	"indi-radio-go/internal/service"
	"indi-radio-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeAudioService struct {
	UploadFunc func(ctx context.Context, req service.AudioUploadRequest) (*service.IngestReport, error)
	SearchFunc func(ctx context.Context, q service.AudioClipQuery) ([]model.AudioClip, int64, error)
	RenameFunc func(ctx context.Context, id uint, newName string, userID uint) (*model.AudioClip, error)
	DeleteFunc func(ctx context.Context, id uint) error
}

func (f *fakeAudioService) Upload(ctx context.Context, req service.AudioUploadRequest) (*service.IngestReport, error) {
	return f.UploadFunc(ctx, req)
}

func (f *fakeAudioService) Search(ctx context.Context, q service.AudioClipQuery) ([]model.AudioClip, int64, error) {
	return f.SearchFunc(ctx, q)
}

func (f *fakeAudioService) Rename(ctx context.Context, id uint, newName string, userID uint) (*model.AudioClip, error) {
	return f.RenameFunc(ctx, id, newName, userID)
}

func (f *fakeAudioService) Delete(ctx context.Context, id uint) error {
	return f.DeleteFunc(ctx, id)
}

type fakeScheduleService struct {
	IngestFunc         func(ctx context.Context, payload []byte) (*service.IngestReport, error)
	ListByDateFunc     func(ctx context.Context, q service.ScheduleQuery) (*service.SchedulePage, error)
	ListEPGFunc        func(ctx context.Context, q service.ScheduleQuery) (*service.SchedulePage, error)
	UpsertEPGEntryFunc func(ctx context.Context, entry service.EPGEntry) (*model.ScheduleRecord, error)
	ChannelsFunc       func(ctx context.Context) ([]string, error)
	DatesFunc          func(ctx context.Context) ([]string, error)
}

func (f *fakeScheduleService) Ingest(ctx context.Context, payload []byte) (*service.IngestReport, error) {
	return f.IngestFunc(ctx, payload)
}

func (f *fakeScheduleService) ListByDate(ctx context.Context, q service.ScheduleQuery) (*service.SchedulePage, error) {
	return f.ListByDateFunc(ctx, q)
}

func (f *fakeScheduleService) ListEPG(ctx context.Context, q service.ScheduleQuery) (*service.SchedulePage, error) {
	return f.ListEPGFunc(ctx, q)
}

func (f *fakeScheduleService) UpsertEPGEntry(ctx context.Context, entry service.EPGEntry) (*model.ScheduleRecord, error) {
	return f.UpsertEPGEntryFunc(ctx, entry)
}

func (f *fakeScheduleService) Channels(ctx context.Context) ([]string, error) {
	return f.ChannelsFunc(ctx)
}

func (f *fakeScheduleService) Dates(ctx context.Context) ([]string, error) {
	return f.DatesFunc(ctx)
}

// withClaims 模拟认证中间件已经通过
func withClaims(userID uint) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ClaimsKey, &token.CustomClaims{UserID: userID, Username: "tester"})
		c.Set(middleware.TokenKey, "test-token")
		c.Next()
	}
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
	return body
}
