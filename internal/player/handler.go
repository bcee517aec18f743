package player

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"playerbridge/internal/engine"
	"playerbridge/internal/platform/metrics"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
)

// Handler exposes the registry over HTTP using go-chi.
type Handler struct {
	reg      *Registry
	log      *slog.Logger
	metrics  *metrics.Metrics
	upgrader *websocket.Upgrader
}

// NewHandler returns a Handler. Metrics may be nil. wsOrigin is the
// WebSocket origin policy: "" for same host, "*" for any.
func NewHandler(reg *Registry, log *slog.Logger, m *metrics.Metrics, wsOrigin string) *Handler {
	return &Handler{reg: reg, log: log, metrics: m, upgrader: newUpgrader(wsOrigin, log)}
}

// Register mounts every player route under /api.
func (h *Handler) Register(r chi.Router) {
	r.Post("/api/initialize", h.Initialize)
	r.Route("/api/players", func(r chi.Router) {
		r.Post("/", h.Create)
		r.Route("/{player_id}", func(r chi.Router) {
			r.Delete("/", h.Dispose)
			r.Put("/media", h.SetMedia)

			r.Post("/play", action(h, h.reg.Play))
			r.Post("/pause", action(h, h.reg.Pause))
			r.Post("/stop", action(h, h.reg.Stop))
			r.Get("/playing", getter(h, h.reg.IsPlaying))
			r.Get("/seekable", getter(h, h.reg.IsSeekable))
			r.Get("/looping", getter(h, h.reg.Looping))
			r.Put("/looping", setter(h, h.reg.SetLooping))
			r.Post("/seek", h.Seek)
			r.Get("/position", getter(h, h.reg.Position))
			r.Get("/duration", getter(h, h.reg.Duration))
			r.Get("/volume", getter(h, h.reg.Volume))
			r.Put("/volume", setter(h, h.reg.SetVolume))
			r.Get("/speed", getter(h, h.reg.Speed))
			r.Put("/speed", setter(h, h.reg.SetSpeed))
			r.Get("/snapshot", getter(h, h.reg.Snapshot))

			r.Route("/tracks/{kind}", func(r chi.Router) {
				r.Get("/", h.Tracks)
				r.Post("/", h.AddTrack)
				r.Get("/count", h.TrackCount)
				r.Get("/selected", h.SelectedTrack)
				r.Put("/selected", h.SelectTrack)
				r.Get("/delay", h.TrackDelay)
				r.Put("/delay", h.SetTrackDelay)
			})

			r.Get("/video/scale", getter(h, h.reg.Scale))
			r.Put("/video/scale", setter(h, h.reg.SetScale))
			r.Get("/video/aspect-ratio", getter(h, h.reg.AspectRatio))
			r.Put("/video/aspect-ratio", setter(h, h.reg.SetAspectRatio))

			r.Get("/renderers/services", getter(h, h.reg.RendererServices))
			r.Post("/renderers/scan", action(h, h.reg.StartScanning))
			r.Delete("/renderers/scan", action(h, h.reg.StopScanning))
			r.Get("/renderers/devices", h.Devices)
			r.Post("/renderers/cast", h.Cast)

			r.Post("/recording", h.StartRecording)
			r.Delete("/recording", getter(h, h.reg.StopRecording))

			r.Get("/events/media", h.Events(StreamMedia))
			r.Get("/events/renderer", h.Events(StreamRenderer))
		})
	})
}

type valueBody[T any] struct {
	Value T `json:"value"`
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

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("player request failed", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	} else {
		h.log.Debug("player request rejected", slog.String("path", r.URL.Path), slog.String("error", err.Error()))
	}
	writeJSON(w, status, errorBody{Code: code, Message: err.Error()})
}

func playerHandle(r *http.Request) (Handle, error) {
	raw := chi.URLParam(r, "player_id")
	n, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: player id %q", ErrInvalidArgument, raw)
	}
	return Handle(n), nil
}

func trackKind(r *http.Request) (engine.TrackKind, error) {
	raw := chi.URLParam(r, "kind")
	kind, ok := engine.ParseTrackKind(raw)
	if !ok {
		return 0, fmt.Errorf("%w: track kind %q", ErrInvalidArgument, raw)
	}
	return kind, nil
}

func decode[T any](r *http.Request) (T, error) {
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		return v, fmt.Errorf("%w: body: %v", ErrInvalidArgument, err)
	}
	return v, nil
}

// action adapts a no-argument command.
func action(h *Handler, fn func(Handle) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := playerHandle(r)
		if err == nil {
			err = fn(id)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// getter adapts a query; the result is wrapped as {"value": ...}.
func getter[T any](h *Handler, fn func(Handle) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := playerHandle(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		v, err := fn(id)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, valueBody[T]{Value: v})
	}
}

// setter adapts a command taking {"value": ...}.
func setter[T any](h *Handler, fn func(Handle, T) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := playerHandle(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		body, err := decode[valueBody[T]](r)
		if err == nil {
			err = fn(id, body.Value)
		}
		if err != nil {
			h.fail(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// Initialize handles POST /api/initialize.
func (h *Handler) Initialize(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.reg.Initialize())
}

// Create handles POST /api/players.
// Body: { "playerId": 1, "uri": "file:///clip.mp4", "type": "file", "autoPlay": true }.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	req, err := decode[CreateRequest](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if req.URI == "" {
		_, err = h.reg.Create(req.PlayerID)
	} else {
		_, err = h.reg.CreateWithMedia(req.PlayerID, req.MediaSource)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]Handle{"playerId": req.PlayerID})
}

// Dispose handles DELETE /api/players/{player_id}.
func (h *Handler) Dispose(w http.ResponseWriter, r *http.Request) {
	action(h, h.reg.Dispose)(w, r)
}

// SetMedia handles PUT /api/players/{player_id}/media.
func (h *Handler) SetMedia(w http.ResponseWriter, r *http.Request) {
	id, err := playerHandle(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	src, err := decode[MediaSource](r)
	if err == nil {
		err = h.reg.SetMedia(id, src)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Seek handles POST /api/players/{player_id}/seek with {"position": ms}.
func (h *Handler) Seek(w http.ResponseWriter, r *http.Request) {
	id, err := playerHandle(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := decode[struct {
		Position int64 `json:"position"`
	}](r)
	if err == nil {
		err = h.reg.SeekTo(id, body.Position)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// withTrack resolves the handle and track kind of a /tracks/{kind} request.
func (h *Handler) withTrack(w http.ResponseWriter, r *http.Request, fn func(Handle, engine.TrackKind) error) {
	id, err := playerHandle(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	kind, err := trackKind(r)
	if err == nil {
		err = fn(id, kind)
	}
	if err != nil {
		h.fail(w, r, err)
	}
}

// Tracks handles GET /tracks/{kind}: {"0": "Track 1", ...}.
func (h *Handler) Tracks(w http.ResponseWriter, r *http.Request) {
	h.withTrack(w, r, func(id Handle, kind engine.TrackKind) error {
		tracks, err := h.reg.TrackDescriptions(id, kind)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, tracks)
		return nil
	})
}

// AddTrack handles POST /tracks/{kind} with {"uri": ..., "isSelected": bool}.
func (h *Handler) AddTrack(w http.ResponseWriter, r *http.Request) {
	h.withTrack(w, r, func(id Handle, kind engine.TrackKind) error {
		body, err := decode[struct {
			URI        string `json:"uri"`
			IsSelected bool   `json:"isSelected"`
		}](r)
		if err != nil {
			return err
		}
		if err := h.reg.AddTrack(id, kind, body.URI, body.IsSelected); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

func (h *Handler) TrackCount(w http.ResponseWriter, r *http.Request) {
	h.withTrack(w, r, func(id Handle, kind engine.TrackKind) error {
		n, err := h.reg.TrackCount(id, kind)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, valueBody[int]{Value: n})
		return nil
	})
}

func (h *Handler) SelectedTrack(w http.ResponseWriter, r *http.Request) {
	h.withTrack(w, r, func(id Handle, kind engine.TrackKind) error {
		n, err := h.reg.SelectedTrack(id, kind)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, valueBody[int]{Value: n})
		return nil
	})
}

func (h *Handler) SelectTrack(w http.ResponseWriter, r *http.Request) {
	h.withTrack(w, r, func(id Handle, kind engine.TrackKind) error {
		body, err := decode[valueBody[int]](r)
		if err != nil {
			return err
		}
		if err := h.reg.SelectTrack(id, kind, body.Value); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

func (h *Handler) TrackDelay(w http.ResponseWriter, r *http.Request) {
	h.withTrack(w, r, func(id Handle, kind engine.TrackKind) error {
		ms, err := h.reg.TrackDelay(id, kind)
		if err != nil {
			return err
		}
		writeJSON(w, http.StatusOK, valueBody[int64]{Value: ms})
		return nil
	})
}

func (h *Handler) SetTrackDelay(w http.ResponseWriter, r *http.Request) {
	h.withTrack(w, r, func(id Handle, kind engine.TrackKind) error {
		body, err := decode[valueBody[int64]](r)
		if err != nil {
			return err
		}
		if err := h.reg.SetTrackDelay(id, kind, body.Value); err != nil {
			return err
		}
		w.WriteHeader(http.StatusNoContent)
		return nil
	})
}

// Devices handles GET /renderers/devices: {"name": "name", ...}.
func (h *Handler) Devices(w http.ResponseWriter, r *http.Request) {
	id, err := playerHandle(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	devices, err := h.reg.Devices(id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, devices)
}

// Cast handles POST /renderers/cast with {"rendererId": name}.
func (h *Handler) Cast(w http.ResponseWriter, r *http.Request) {
	id, err := playerHandle(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := decode[struct {
		RendererID string `json:"rendererId"`
	}](r)
	if err == nil {
		err = h.reg.Cast(id, body.RendererID)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StartRecording handles POST /recording with {"saveDirectory": dir}.
func (h *Handler) StartRecording(w http.ResponseWriter, r *http.Request) {
	id, err := playerHandle(r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	body, err := decode[struct {
		SaveDirectory string `json:"saveDirectory"`
	}](r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	ok, err := h.reg.StartRecording(id, body.SaveDirectory)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, valueBody[bool]{Value: ok})
}

// isClientGone reports errors caused by the peer closing a WebSocket.
func isClientGone(err error) bool {
	var ce *websocket.CloseError
	return errors.As(err, &ce) || errors.Is(err, websocket.ErrCloseSent)
}
