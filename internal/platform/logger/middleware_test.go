package logger

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestRequestLogger_logs_player_id(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, "info", "json")

	r := chi.NewRouter()
	r.Use(RequestLogger(log))
	r.Post("/api/players/{player_id}/play", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/players/12/play", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("decode log line %q: %v", buf.String(), err)
	}
	if entry["player_id"] != "12" {
		t.Errorf("expected player_id 12, got %v", entry["player_id"])
	}
	if entry["status"] != float64(http.StatusNoContent) {
		t.Errorf("expected status 204, got %v", entry["status"])
	}
}

func TestParseLevel(t *testing.T) {
	if ParseLevel("DEBUG").String() != "DEBUG" {
		t.Error("expected debug level")
	}
	if ParseLevel("nonsense").String() != "INFO" {
		t.Error("unknown levels should fall back to info")
	}
}
