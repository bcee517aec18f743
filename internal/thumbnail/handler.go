package thumbnail

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// Handler serves thumbnails and metadata over HTTP.
type Handler struct {
	svc *Service
	log *slog.Logger
}

// NewHandler returns a Handler.
func NewHandler(svc *Service, log *slog.Logger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Register mounts POST /api/thumbnail and POST /api/metadata.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/thumbnail", h.Thumbnail)
	r.Post("/api/metadata", h.Metadata)
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (h *Handler) fail(w http.ResponseWriter, err error) {
	if !errors.Is(err, ErrInvalidArguments) {
		h.log.Warn("thumbnail request failed", slog.String("error", err.Error()))
	}
	switch {
	case errors.Is(err, ErrInvalidArguments):
		writeJSON(w, http.StatusBadRequest, errorBody{Code: "INVALID_ARGUMENTS", Message: err.Error()})
	case errors.Is(err, ErrMetadataFailed):
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "METADATA_FAILED", Message: err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Code: "THUMBNAIL_GENERATION_FAILED", Message: err.Error()})
	}
}

// Thumbnail handles POST /api/thumbnail.
// Body: { "uri": "file:///clip.mp4", "width": 320, "height": 0, "position": 0.25 }.
func (h *Handler) Thumbnail(w http.ResponseWriter, r *http.Request) {
	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, errors.Join(ErrInvalidArguments, err))
		return
	}
	b64, err := h.svc.Generate(r.Context(), req)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"thumbnail": b64})
}

// Metadata handles POST /api/metadata with {"uri": ...}.
func (h *Handler) Metadata(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URI string `json:"uri"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, errors.Join(ErrInvalidArguments, err))
		return
	}
	md, err := h.svc.ExtractMetadata(r.Context(), req.URI)
	if err != nil {
		h.fail(w, err)
		return
	}
	writeJSON(w, http.StatusOK, md)
}
