package player

import (
	"playerbridge/internal/engine"
)

// Handle identifies a player session. It is chosen by the host.
type Handle int64

// SourceKind says how a media URI is interpreted.
type SourceKind string

const (
	SourceAsset   SourceKind = "asset"
	SourceNetwork SourceKind = "network"
	SourceFile    SourceKind = "file"
)

// MediaSource is everything needed to load media into a session.
// This also matches the JSON body of the set-media endpoint.
type MediaSource struct {
	URI      string         `json:"uri"`
	Kind     SourceKind     `json:"type"`
	Package  string         `json:"packageName,omitempty"`
	AutoPlay bool           `json:"autoPlay"`
	HWAccel  engine.HWAccel `json:"hwAcc"`
	// Options are engine directives. nil means "reuse the previous list".
	Options []string `json:"options,omitempty"`
}

// CreateRequest is the body of POST /api/players.
type CreateRequest struct {
	PlayerID Handle `json:"playerId"`
	MediaSource
}

// Event is one message on an event stream. The "event" key holds the tag.
type Event map[string]any

// Tag returns the event name.
func (e Event) Tag() string {
	s, _ := e["event"].(string)
	return s
}

// Stream names.
const (
	StreamMedia    = "media"
	StreamRenderer = "renderer"
)

// EngineInfo is returned by Initialize.
type EngineInfo struct {
	Engine  string `json:"engine"`
	Version string `json:"version"`
}

// bufferPlaceholder is reported as the buffer fill of every time update.
const bufferPlaceholder = 100.0
