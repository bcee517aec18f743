package player

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"sync"

	"playerbridge/internal/asset"
	"playerbridge/internal/dispatch"
	"playerbridge/internal/engine"
	"playerbridge/internal/platform/metrics"
)

const (
	defaultVolume = 100
	maxVolume     = 200
	defaultAspect = "1"
)

// deps are shared by every session of a registry.
type deps struct {
	engine  engine.Engine
	assets  *asset.Resolver
	queue   *dispatch.Queue
	log     *slog.Logger
	metrics *metrics.Metrics
}

// Session owns one engine player and the event streams that mirror it.
type Session struct {
	handle Handle
	deps   deps
	log    *slog.Logger
	player engine.Player

	mediaEvents    *EventStream
	rendererEvents *EventStream

	mu          sync.Mutex
	current     *engine.Media
	options     []string
	looping     bool
	disposed    bool
	scanGen     int
	discoverers []engine.Discoverer
	items       []engine.RendererItem
}

func newSession(h Handle, d deps) (*Session, error) {
	p, err := d.engine.NewPlayer()
	if err != nil {
		return nil, fmt.Errorf("create engine player: %w", err)
	}

	log := d.log.With("player_id", int64(h))
	s := &Session{
		handle:         h,
		deps:           d,
		log:            log,
		player:         p,
		mediaEvents:    newEventStream(StreamMedia, log, d.metrics),
		rendererEvents: newEventStream(StreamRenderer, log, d.metrics),
	}
	p.SetDelegate(&mediaBridge{s: s})
	return s, nil
}

// Handle returns the session key.
func (s *Session) Handle() Handle { return s.handle }

// MediaEvents is the media-state stream.
func (s *Session) MediaEvents() *EventStream { return s.mediaEvents }

// RendererEvents is the renderer-discovery stream.
func (s *Session) RendererEvents() *EventStream { return s.rendererEvents }

func (s *Session) isDisposed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.disposed
}

// Play starts or resumes playback.
func (s *Session) Play() error {
	return s.player.Play()
}

// Pause pauses playback.
func (s *Session) Pause() error {
	return s.player.Pause()
}

// Stop stops playback. Stopping a stopped player is not an error.
func (s *Session) Stop() error {
	err := s.player.Stop()
	if errors.Is(err, engine.ErrNoMedia) {
		return nil
	}
	return err
}

func (s *Session) IsPlaying() bool  { return s.player.IsPlaying() }
func (s *Session) IsSeekable() bool { return s.player.IsSeekable() }

// SetLooping records the flag for later media and applies it to the media
// currently playing.
func (s *Session) SetLooping(loop bool) error {
	s.mu.Lock()
	s.looping = loop
	loaded := s.current != nil
	s.mu.Unlock()

	if !loaded {
		return nil
	}
	return s.player.SetLooping(loop)
}

// Looping returns the last value passed to SetLooping.
func (s *Session) Looping() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.looping
}

func loopOption(loop bool) string {
	if loop {
		return "--loop"
	}
	return "--no-loop"
}

// SeekTo moves playback to ms milliseconds.
func (s *Session) SeekTo(ms int64) error {
	if ms < 0 {
		return fmt.Errorf("%w: negative position %d", ErrInvalidArgument, ms)
	}
	return s.player.SetTime(ms)
}

// Position is the playback position in milliseconds, 0 when unknown.
func (s *Session) Position() int64 {
	ms, ok := s.player.Time()
	if !ok {
		return 0
	}
	return ms
}

// Duration is the media length in milliseconds.
func (s *Session) Duration() int64 {
	return s.player.Length()
}

// SetVolume sets the volume in percent, 0..200.
func (s *Session) SetVolume(v int) error {
	if v < 0 || v > maxVolume {
		return fmt.Errorf("%w: volume %d outside 0..%d", ErrInvalidArgument, v, maxVolume)
	}
	return s.player.SetVolume(v)
}

// Volume returns the engine volume, 100 when the engine reports none.
func (s *Session) Volume() int {
	if v := s.player.Volume(); v >= 0 {
		return v
	}
	return defaultVolume
}

// SetSpeed sets the playback rate.
func (s *Session) SetSpeed(rate float64) error {
	if rate <= 0 {
		return fmt.Errorf("%w: speed must be positive", ErrInvalidArgument)
	}
	return s.player.SetRate(rate)
}

// Speed returns the playback rate, 1 when unknown.
func (s *Session) Speed() float64 {
	if r := s.player.Rate(); r > 0 {
		return r
	}
	return 1
}

// Snapshot returns the current frame as base64 PNG. ok is false when no
// frame is available.
func (s *Session) Snapshot() (string, bool) {
	img, err := s.player.Snapshot()
	if err != nil {
		s.log.Debug("snapshot unavailable", "error", err)
		return "", false
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		s.log.Warn("snapshot encode failed", "error", err)
		return "", false
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), true
}

// SetScale sets the video scale factor; 0 fits the output.
func (s *Session) SetScale(scale float64) error {
	if scale < 0 {
		return fmt.Errorf("%w: negative scale", ErrInvalidArgument)
	}
	return s.player.SetScale(scale)
}

// Scale returns the video scale factor.
func (s *Session) Scale() float64 {
	return s.player.Scale()
}

// SetAspectRatio sets the aspect ratio ("16:9"); empty resets it.
func (s *Session) SetAspectRatio(ratio string) error {
	return s.player.SetAspectRatio(ratio)
}

// AspectRatio returns the forced aspect ratio, "1" when none is set.
func (s *Session) AspectRatio() string {
	if r := s.player.AspectRatio(); r != "" {
		return r
	}
	return defaultAspect
}

// StartRecording records the stream into dir and reports the engine outcome.
func (s *Session) StartRecording(dir string) (bool, error) {
	if dir == "" {
		return false, fmt.Errorf("%w: saveDirectory is required", ErrInvalidArgument)
	}
	if err := s.player.StartRecording(dir); err != nil {
		s.log.Warn("start recording failed", "dir", dir, "error", err)
		return false, nil
	}
	return true, nil
}

// StopRecording ends the running recording and reports the engine outcome.
func (s *Session) StopRecording() bool {
	if err := s.player.StopRecording(); err != nil {
		s.log.Warn("stop recording failed", "error", err)
		return false
	}
	return true
}

// dispose tears the session down. Sinks and delegates are detached before
// the engine player is released so no callback reaches a disposed session.
func (s *Session) dispose() {
	s.mu.Lock()
	if s.disposed {
		s.mu.Unlock()
		return
	}
	s.disposed = true
	discs := s.discoverers
	s.discoverers = nil
	s.items = nil
	s.scanGen++
	s.mu.Unlock()

	s.mediaEvents.detach(ReasonDisposed)
	s.rendererEvents.detach(ReasonDisposed)

	s.player.SetDelegate(nil)
	for _, d := range discs {
		d.SetDelegate(nil)
	}
	for _, d := range discs {
		d.Stop()
	}

	if err := s.player.Stop(); err != nil && !errors.Is(err, engine.ErrNoMedia) {
		s.log.Debug("stop on dispose", "error", err)
	}
	if err := s.player.Release(); err != nil {
		s.log.Warn("release engine player", "error", err)
	}
}
