// Package engine defines the contract between the player bridge and the
// native media engine that actually opens, decodes and renders media.
//
// Callbacks declared here (PlayerDelegate, DiscovererDelegate and thumbnail
// completions) are invoked on goroutines owned by the engine. Consumers must
// not assume any particular calling context.
package engine

import (
	"errors"
	"image"
	"time"
)

var (
	// ErrUnsupported is returned for capabilities a backend does not offer.
	ErrUnsupported = errors.New("engine: operation not supported")

	// ErrTimeout reports that the engine gave up waiting on an operation.
	ErrTimeout = errors.New("engine: operation timed out")

	// ErrNoMedia is returned by operations that need a media assigned first.
	ErrNoMedia = errors.New("engine: no media assigned")

	// ErrReleased is returned by players used after Release.
	ErrReleased = errors.New("engine: player released")

	// ErrNoSuchTrack is returned when a track index is outside the track list.
	ErrNoSuchTrack = errors.New("engine: no such track")
)

// Engine is one media engine backend.
type Engine interface {
	Name() string
	Version() string

	// NewPlayer allocates a player instance owned exclusively by the caller.
	NewPlayer() (Player, error)

	// RendererServices lists the renderer discovery backends available,
	// for example "Bonjour_renderer".
	RendererServices() []string

	// NewDiscoverer creates a discoverer for one of RendererServices.
	NewDiscoverer(service string) (Discoverer, error)

	Thumbnailer() Thumbnailer
	Prober() Prober
}

// Media is a playable resource plus the engine directives applied to it.
// Options are opaque to the bridge and interpreted by the backend.
type Media struct {
	MRL     string
	Options []string
}

// AddOption appends an engine directive.
func (m *Media) AddOption(opt string) {
	m.Options = append(m.Options, opt)
}

// HasOption reports whether opt was added.
func (m *Media) HasOption(opt string) bool {
	for _, o := range m.Options {
		if o == opt {
			return true
		}
	}
	return false
}

// Player wraps one native player object.
type Player interface {
	SetMedia(m *Media) error
	Media() *Media

	Play() error
	Pause() error
	Stop() error
	// Prepare opens and parses the assigned media without starting playback.
	Prepare() error

	// SetLooping restarts the current media when it ends. Loading new media
	// falls back to the media's own loop directive.
	SetLooping(loop bool) error

	State() State
	IsPlaying() bool
	IsSeekable() bool

	// SetTime and Time use milliseconds.
	SetTime(ms int64) error
	Time() (ms int64, ok bool)
	Length() int64

	SetVolume(v int) error
	Volume() int
	SetRate(r float64) error
	Rate() float64
	VideoSize() (width, height int)

	Tracks(kind TrackKind) []Track
	SelectTrack(kind TrackKind, index int) error
	// SetDelay and Delay use milliseconds. Video has no delay.
	SetDelay(kind TrackKind, ms int64) error
	Delay(kind TrackKind) int64
	AddSlave(kind TrackKind, uri string, selected bool) error

	SetScale(scale float64) error
	Scale() float64
	// SetAspectRatio takes forms like "16:9"; an empty string resets it.
	SetAspectRatio(ratio string) error
	AspectRatio() string

	Snapshot() (image.Image, error)

	// SetRenderer redirects output to item; nil restores local output.
	SetRenderer(item *RendererItem) error

	StartRecording(dir string) error
	StopRecording() error

	// SetDelegate installs the callback target; nil detaches it. After
	// SetDelegate(nil) returns no further callbacks reach the old delegate.
	SetDelegate(d PlayerDelegate)
	Release() error
}

// PlayerDelegate receives asynchronous player notifications.
type PlayerDelegate interface {
	StateChanged(state State)
	TimeChanged()
	RecordingStarted()
	RecordingStopped(path string)
}

// RendererItem is a discovered casting target.
type RendererItem struct {
	Name string
	Type string
	Addr string
}

// Discoverer scans for renderer items on one service.
type Discoverer interface {
	Name() string
	SetDelegate(d DiscovererDelegate)
	Start() error
	Stop()
}

// DiscovererDelegate receives renderer discovery notifications.
type DiscovererDelegate interface {
	ItemAdded(item RendererItem)
	ItemDeleted(item RendererItem)
}

// ThumbnailRequest describes one single-frame capture. Zero Width/Height
// keep the source size. Position is a fraction of the duration.
type ThumbnailRequest struct {
	MRL      string
	Width    int
	Height   int
	Position float64
	Timeout  time.Duration
}

// Thumbnailer captures single frames. Fetch returns immediately; done is
// called exactly once, from an engine goroutine, with a frame or an error
// (ErrTimeout on timeout).
type Thumbnailer interface {
	Fetch(req ThumbnailRequest, done func(img image.Image, err error))
}

// Probe is technical information about a media resource.
type Probe struct {
	DurationMs int64
	Width      int
	Height     int
	VideoCodec string
	AudioCodec string
	BitRate    int64
}

// Prober inspects media without playing it.
type Prober interface {
	Probe(mrl string, timeout time.Duration) (*Probe, error)
}
