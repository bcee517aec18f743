package virtual

import (
	"errors"
	"fmt"
	"image"
	"path"
	"path/filepath"
	"sync"
	"time"

	"playerbridge/internal/dispatch"
	"playerbridge/internal/engine"
)

// ErrNotRecording is returned by StopRecording without a running recording.
var ErrNotRecording = errors.New("virtual: not recording")

// Player is a simulated engine player.
type Player struct {
	e *Engine

	// callbacks is the engine-side "thread" that delegate calls run on.
	callbacks *dispatch.Queue

	cbMu     sync.Mutex
	delegate engine.PlayerDelegate

	mu          sync.Mutex
	media       *engine.Media
	clip        Clip
	loaded      bool
	prepared    bool
	looping     bool
	state       engine.State
	timeMs      int64
	volume      int
	rate        float64
	tracks      map[engine.TrackKind][]engine.Track
	delays      map[engine.TrackKind]int64
	scale       float64
	aspect      string
	renderer    *engine.RendererItem
	recording   bool
	recordPath  string
	recordCount int
	released    bool
	stopTick    chan struct{}
}

var _ engine.Player = (*Player)(nil)

func newPlayer(e *Engine) *Player {
	return &Player{
		e:         e,
		callbacks: dispatch.New(e.log),
		volume:    100,
		rate:      1,
		scale:     1,
		tracks:    make(map[engine.TrackKind][]engine.Track),
		delays:    make(map[engine.TrackKind]int64),
	}
}

// SetDelegate implements engine.Player.
func (p *Player) SetDelegate(d engine.PlayerDelegate) {
	p.cbMu.Lock()
	p.delegate = d
	p.cbMu.Unlock()
}

// notify schedules fn on the callback goroutine with the delegate current at
// delivery time.
func (p *Player) notify(fn func(d engine.PlayerDelegate)) {
	p.callbacks.Post(func() {
		p.cbMu.Lock()
		defer p.cbMu.Unlock()
		if p.delegate != nil {
			fn(p.delegate)
		}
	})
}

func (p *Player) notifyState(s engine.State) {
	p.notify(func(d engine.PlayerDelegate) { d.StateChanged(s) })
}

// SetMedia implements engine.Player.
func (p *Player) SetMedia(m *engine.Media) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return engine.ErrReleased
	}
	p.media = m
	p.loaded = false
	p.prepared = false
	p.timeMs = 0
	p.tracks = make(map[engine.TrackKind][]engine.Track)
	p.looping = false
	if m != nil {
		p.clip = p.e.clip(m.MRL)
		p.looping = loopOption(m.Options)
	}
	return nil
}

// Media implements engine.Player.
func (p *Player) Media() *engine.Media {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.media
}

// loadLocked parses the current clip into track lists.
func (p *Player) loadLocked() {
	if p.loaded {
		return
	}
	p.loaded = true
	p.tracks[engine.TrackAudio] = buildTracks(p.clip.Audio, 0)
	p.tracks[engine.TrackVideo] = buildTracks(p.clip.Video, 0)
	p.tracks[engine.TrackSubtitle] = buildTracks(p.clip.Subtitles, -1)
}

func buildTracks(names []string, selected int) []engine.Track {
	out := make([]engine.Track, 0, len(names))
	for i, n := range names {
		out = append(out, engine.Track{ID: i + 1, Name: n, Selected: i == selected})
	}
	return out
}

// Play implements engine.Player.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return engine.ErrReleased
	}
	if p.media == nil {
		return engine.ErrNoMedia
	}

	switch p.state {
	case engine.StatePlaying, engine.StateBuffering:
		return nil
	case engine.StatePaused:
		p.state = engine.StatePlaying
		p.notifyState(engine.StatePlaying)
		p.startTickLocked()
		return nil
	}

	p.state = engine.StateOpening
	p.notifyState(engine.StateOpening)
	if p.clip.Broken {
		p.state = engine.StateError
		p.notifyState(engine.StateError)
		return nil
	}

	p.loadLocked()
	if p.state == engine.StateEnded || p.timeMs >= p.clip.Duration.Milliseconds() {
		p.timeMs = 0
	}
	p.state = engine.StatePlaying
	p.notifyState(engine.StatePlaying)
	p.startTickLocked()
	return nil
}

// Pause implements engine.Player.
func (p *Player) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return engine.ErrReleased
	}
	if p.state != engine.StatePlaying && p.state != engine.StateBuffering {
		return nil
	}
	p.stopTickLocked()
	p.state = engine.StatePaused
	p.notifyState(engine.StatePaused)
	return nil
}

// Stop implements engine.Player. Stopping a stopped player does nothing.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return engine.ErrReleased
	}
	p.stopLocked()
	return nil
}

func (p *Player) stopLocked() {
	p.stopTickLocked()
	if p.state == engine.StateStopped {
		return
	}
	p.state = engine.StateStopped
	p.timeMs = 0
	p.notifyState(engine.StateStopped)
}

// Prepare implements engine.Player.
func (p *Player) Prepare() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return engine.ErrReleased
	}
	if p.media == nil {
		return engine.ErrNoMedia
	}
	if p.clip.Broken {
		p.state = engine.StateError
		p.notifyState(engine.StateError)
		return nil
	}
	p.loadLocked()
	p.prepared = true
	return nil
}

// Prepared reports whether Prepare parsed the current media.
func (p *Player) Prepared() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.prepared
}

func (p *Player) startTickLocked() {
	if p.stopTick != nil {
		return
	}
	stop := make(chan struct{})
	p.stopTick = stop
	go p.tick(stop)
}

func (p *Player) stopTickLocked() {
	if p.stopTick != nil {
		close(p.stopTick)
		p.stopTick = nil
	}
}

func (p *Player) tick(stop chan struct{}) {
	t := time.NewTicker(p.e.opts.Tick)
	defer t.Stop()

	for {
		select {
		case <-stop:
			return
		case <-t.C:
		}

		p.mu.Lock()
		if p.stopTick != stop {
			p.mu.Unlock()
			return
		}
		p.advanceLocked(p.e.opts.Tick)
		p.mu.Unlock()
	}
}

func (p *Player) advanceLocked(d time.Duration) {
	if p.state != engine.StatePlaying {
		return
	}
	p.timeMs += int64(float64(d.Milliseconds()) * p.rate)

	length := p.clip.Duration.Milliseconds()
	if p.timeMs < length {
		p.notify(func(d engine.PlayerDelegate) { d.TimeChanged() })
		return
	}

	if p.looping {
		p.timeMs = 0
		p.notify(func(d engine.PlayerDelegate) { d.TimeChanged() })
		return
	}

	p.timeMs = length
	p.state = engine.StateStopping
	p.notifyState(engine.StateStopping)
	p.stopTickLocked()
	p.state = engine.StateStopped
	p.notifyState(engine.StateStopped)
}

// loopOption honours the last --loop / --no-loop option.
func loopOption(opts []string) bool {
	loop := false
	for _, o := range opts {
		switch o {
		case "--loop", ":loop":
			loop = true
		case "--no-loop", ":no-loop":
			loop = false
		}
	}
	return loop
}

// SetLooping implements engine.Player.
func (p *Player) SetLooping(loop bool) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return engine.ErrReleased
	}
	p.looping = loop
	return nil
}

// Looping reports whether the current media restarts at its end.
func (p *Player) Looping() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.looping
}

// SimulateState forces a state and reports it, for states the simulation
// never reaches by itself (buffering, error).
func (p *Player) SimulateState(s engine.State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
	p.notifyState(s)
}

// Advance moves playback forward by d as if that much time had elapsed.
func (p *Player) Advance(d time.Duration) {
	p.mu.Lock()
	p.advanceLocked(d)
	p.mu.Unlock()
}

// Flush waits until all callbacks issued so far have been delivered.
func (p *Player) Flush() {
	p.callbacks.Flush()
}

// State implements engine.Player.
func (p *Player) State() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsPlaying implements engine.Player.
func (p *Player) IsPlaying() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state == engine.StatePlaying || p.state == engine.StateBuffering
}

// IsSeekable implements engine.Player.
func (p *Player) IsSeekable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.media != nil && p.clip.Seekable
}

// SetTime implements engine.Player.
func (p *Player) SetTime(ms int64) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		return engine.ErrNoMedia
	}
	if !p.clip.Seekable {
		return engine.ErrUnsupported
	}
	length := p.clip.Duration.Milliseconds()
	switch {
	case ms < 0:
		ms = 0
	case ms > length:
		ms = length
	}
	p.timeMs = ms
	p.notify(func(d engine.PlayerDelegate) { d.TimeChanged() })
	return nil
}

// Time implements engine.Player.
func (p *Player) Time() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeMs, p.media != nil
}

// Length implements engine.Player.
func (p *Player) Length() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.media == nil {
		return 0
	}
	return p.clip.Duration.Milliseconds()
}

// SetVolume implements engine.Player.
func (p *Player) SetVolume(v int) error {
	if v < 0 || v > 200 {
		return fmt.Errorf("virtual: volume %d out of range", v)
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
	return nil
}

// Volume implements engine.Player.
func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

// SetRate implements engine.Player.
func (p *Player) SetRate(r float64) error {
	if r <= 0 {
		return fmt.Errorf("virtual: rate %v must be positive", r)
	}
	p.mu.Lock()
	p.rate = r
	p.mu.Unlock()
	return nil
}

// Rate implements engine.Player.
func (p *Player) Rate() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rate
}

// VideoSize implements engine.Player.
func (p *Player) VideoSize() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.loaded {
		return 0, 0
	}
	return p.clip.Width, p.clip.Height
}

// Tracks implements engine.Player.
func (p *Player) Tracks(kind engine.TrackKind) []engine.Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]engine.Track(nil), p.tracks[kind]...)
}

// SelectTrack implements engine.Player. A negative index deselects all.
func (p *Player) SelectTrack(kind engine.TrackKind, index int) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	list := p.tracks[kind]
	if index >= len(list) {
		return fmt.Errorf("%w: %s track %d of %d", engine.ErrNoSuchTrack, kind, index, len(list))
	}
	for i := range list {
		list[i].Selected = i == index
	}
	return nil
}

// SetDelay implements engine.Player.
func (p *Player) SetDelay(kind engine.TrackKind, ms int64) error {
	if !kind.HasDelay() {
		return engine.ErrUnsupported
	}
	p.mu.Lock()
	p.delays[kind] = ms
	p.mu.Unlock()
	return nil
}

// Delay implements engine.Player.
func (p *Player) Delay(kind engine.TrackKind) int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.delays[kind]
}

// AddSlave implements engine.Player.
func (p *Player) AddSlave(kind engine.TrackKind, uri string, selected bool) error {
	if kind == engine.TrackVideo {
		return engine.ErrUnsupported
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		return engine.ErrNoMedia
	}
	list := p.tracks[kind]
	if selected {
		for i := range list {
			list[i].Selected = false
		}
	}
	p.tracks[kind] = append(list, engine.Track{ID: len(list) + 1, Name: path.Base(uri), Selected: selected})
	return nil
}

// SetScale implements engine.Player.
func (p *Player) SetScale(scale float64) error {
	if scale < 0 {
		return fmt.Errorf("virtual: negative scale %v", scale)
	}
	p.mu.Lock()
	p.scale = scale
	p.mu.Unlock()
	return nil
}

// Scale implements engine.Player.
func (p *Player) Scale() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.scale
}

// SetAspectRatio implements engine.Player.
func (p *Player) SetAspectRatio(ratio string) error {
	p.mu.Lock()
	p.aspect = ratio
	p.mu.Unlock()
	return nil
}

// AspectRatio implements engine.Player.
func (p *Player) AspectRatio() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.aspect
}

// Snapshot implements engine.Player.
func (p *Player) Snapshot() (image.Image, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil || !p.loaded {
		return nil, engine.ErrNoMedia
	}
	return frame(p.clip.Width/8, p.clip.Height/8, uint8(p.timeMs%256)), nil
}

// SetRenderer implements engine.Player.
func (p *Player) SetRenderer(item *engine.RendererItem) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if item != nil {
		cp := *item
		item = &cp
	}
	p.renderer = item
	return nil
}

// Renderer returns the renderer output is redirected to, if any.
func (p *Player) Renderer() *engine.RendererItem {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.renderer
}

// StartRecording implements engine.Player.
func (p *Player) StartRecording(dir string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.media == nil {
		return engine.ErrNoMedia
	}
	if p.recording {
		return nil
	}
	p.recordCount++
	p.recording = true
	p.recordPath = filepath.Join(dir, fmt.Sprintf("virtual-record-%d.ts", p.recordCount))
	p.notify(func(d engine.PlayerDelegate) { d.RecordingStarted() })
	return nil
}

// StopRecording implements engine.Player.
func (p *Player) StopRecording() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.recording {
		return ErrNotRecording
	}
	p.recording = false
	path := p.recordPath
	p.notify(func(d engine.PlayerDelegate) { d.RecordingStopped(path) })
	return nil
}

// Release implements engine.Player.
func (p *Player) Release() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	p.stopTickLocked()
	p.mu.Unlock()

	p.callbacks.Close()
	return nil
}

// Released reports whether Release was called.
func (p *Player) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}
