package thumbnail

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"playerbridge/internal/engine/virtual"
	"playerbridge/internal/platform/logger"

	"github.com/go-chi/chi/v5"
)

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	svc, _ := newService(t, FormatPNG, virtual.Options{})
	r := chi.NewRouter()
	NewHandler(svc, logger.Discard()).Register(r)
	return r
}

func post(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestHandler_Thumbnail(t *testing.T) {
	r := newTestRouter(t)

	rec := post(r, "/api/thumbnail", `{"uri":"file:///clip.mp4","width":32,"height":18}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]string
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if body["thumbnail"] == "" {
		t.Error("expected a thumbnail payload")
	}
}

func TestHandler_Thumbnail_errors(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		body   string
		status int
		code   string
	}{
		{`not json`, http.StatusBadRequest, "INVALID_ARGUMENTS"},
		{`{"uri":""}`, http.StatusBadRequest, "INVALID_ARGUMENTS"},
		{`{"uri":"file:///clip.mp4","position":2}`, http.StatusBadRequest, "INVALID_ARGUMENTS"},
		{`{"uri":"file:///broken.mp4"}`, http.StatusInternalServerError, "THUMBNAIL_GENERATION_FAILED"},
	}
	for _, tt := range tests {
		rec := post(r, "/api/thumbnail", tt.body)
		if rec.Code != tt.status {
			t.Errorf("%s: expected %d, got %d", tt.body, tt.status, rec.Code)
			continue
		}
		var e errorBody
		if err := json.NewDecoder(rec.Body).Decode(&e); err != nil || e.Code != tt.code {
			t.Errorf("%s: expected code %s, got %+v (%v)", tt.body, tt.code, e, err)
		}
	}
}

func TestHandler_Metadata(t *testing.T) {
	r := newTestRouter(t)

	rec := post(r, "/api/metadata", `{"uri":"https://example.com/clip.mp4"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var md Metadata
	if err := json.NewDecoder(rec.Body).Decode(&md); err != nil {
		t.Fatal(err)
	}
	if md.DurationMs != 60000 || md.AudioCodec != "aac" {
		t.Errorf("unexpected metadata %+v", md)
	}

	rec = post(r, "/api/metadata", `{"uri":"https://example.com/broken.mp4"}`)
	if rec.Code != http.StatusInternalServerError || !strings.Contains(rec.Body.String(), "METADATA_FAILED") {
		t.Errorf("expected METADATA_FAILED, got %d %s", rec.Code, rec.Body.String())
	}
}
