package player

import (
	"errors"
	"net/http"

	"playerbridge/internal/engine"
)

var (
	// ErrPlayerNotFound is returned for handles that are not registered.
	ErrPlayerNotFound = errors.New("player not found")

	// ErrPlayerExists is returned when creating a handle twice.
	ErrPlayerExists = errors.New("player already exists")

	// ErrInvalidArgument is returned for malformed input, before any engine call.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrMediaUnresolved is returned when a media source cannot be resolved.
	// The session keeps its previous media.
	ErrMediaUnresolved = errors.New("media could not be resolved")

	// ErrRendererNotFound is returned by Cast when no discovered renderer matches.
	ErrRendererNotFound = errors.New("renderer not found")
)

// errorStatus maps an error to its HTTP status and machine-readable code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, ErrPlayerNotFound):
		return http.StatusNotFound, "player_not_found"
	case errors.Is(err, ErrPlayerExists):
		return http.StatusConflict, "player_exists"
	case errors.Is(err, ErrInvalidArgument):
		return http.StatusBadRequest, "invalid_argument"
	case errors.Is(err, ErrMediaUnresolved):
		return http.StatusUnprocessableEntity, "media_unresolved"
	case errors.Is(err, ErrRendererNotFound):
		return http.StatusNotFound, "renderer_not_found"
	case errors.Is(err, engine.ErrUnsupported):
		return http.StatusNotImplemented, "unsupported"
	default:
		return http.StatusInternalServerError, "engine_error"
	}
}
