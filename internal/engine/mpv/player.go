package mpv

import (
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/png"
	"log/slog"
	"math"
	"net"
	"os"
	"path/filepath"
	"sync"

	"playerbridge/internal/dispatch"
	"playerbridge/internal/engine"

	"github.com/google/uuid"
)

// observed properties, keyed by the id passed to observe_property
var observed = map[int64]string{
	1: "pause",
	2: "time-pos",
	3: "paused-for-cache",
	4: "eof-reached",
	5: "duration",
	6: "seekable",
	7: "width",
	8: "height",
}

// Player drives one mpv process.
type Player struct {
	log  *slog.Logger
	ipc  *ipcConn
	proc *process

	callbacks *dispatch.Queue

	cbMu     sync.Mutex
	delegate engine.PlayerDelegate

	// loadMu serializes loads. defaults holds the value each option property
	// had before a load first overrode it; overrides are the names the last
	// load set.
	loadMu    sync.Mutex
	defaults  map[string]json.RawMessage
	overrides []string

	mu         sync.Mutex
	media      *engine.Media
	state      engine.State
	loaded     bool
	preparing  bool
	paused     bool
	timeMs     int64
	hasTime    bool
	lengthMs   int64
	seekable   bool
	width      int
	height     int
	scale      float64
	aspect     string
	recordPath string
	released   bool
}

var _ engine.Player = (*Player)(nil)

// newPlayer wires a player to an established IPC connection. proc may be nil
// when the connection is not backed by a child process.
func newPlayer(conn net.Conn, proc *process, log *slog.Logger) (*Player, error) {
	p := &Player{
		log:       log,
		proc:      proc,
		callbacks: dispatch.New(log),
		defaults:  make(map[string]json.RawMessage),
		scale:     1,
	}
	p.ipc = newIPC(conn, log, p.handleEvent)

	for id, name := range observed {
		if _, err := p.ipc.Call("observe_property", id, name); err != nil {
			_ = p.ipc.Close()
			p.callbacks.Close()
			return nil, fmt.Errorf("observe %s: %w", name, err)
		}
	}
	return p, nil
}

// SetDelegate implements engine.Player.
func (p *Player) SetDelegate(d engine.PlayerDelegate) {
	p.cbMu.Lock()
	p.delegate = d
	p.cbMu.Unlock()
}

func (p *Player) notify(fn func(d engine.PlayerDelegate)) {
	p.callbacks.Post(func() {
		p.cbMu.Lock()
		defer p.cbMu.Unlock()
		if p.delegate != nil {
			fn(p.delegate)
		}
	})
}

// setStateLocked records s and reports it when it changed.
func (p *Player) setStateLocked(s engine.State) {
	if p.state == s {
		return
	}
	p.state = s
	p.notify(func(d engine.PlayerDelegate) { d.StateChanged(s) })
}

// handleEvent runs on the IPC read goroutine. It must not issue commands.
func (p *Player) handleEvent(msg ipcMessage) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch msg.Event {
	case "start-file":
		p.loaded = false
		p.hasTime = false
		if !p.preparing {
			p.setStateLocked(engine.StateOpening)
		}
	case "file-loaded":
		p.loaded = true
		if p.preparing {
			p.preparing = false
			return
		}
		if !p.paused {
			p.setStateLocked(engine.StatePlaying)
		}
	case "playback-restart":
		if p.loaded && !p.paused && p.state != engine.StateStopped {
			p.setStateLocked(engine.StatePlaying)
		}
	case "end-file":
		p.loaded = false
		p.hasTime = false
		p.preparing = false
		switch msg.Reason {
		case "eof":
			p.setStateLocked(engine.StateStopping)
			p.setStateLocked(engine.StateStopped)
		case "error":
			p.log.Debug("mpv end-file error", "file_error", msg.FileError)
			p.setStateLocked(engine.StateError)
		case "stop", "quit":
			p.setStateLocked(engine.StateStopped)
		}
	case "property-change":
		p.propertyChangedLocked(msg.Name, msg.Data)
	}
}

func (p *Player) propertyChangedLocked(name string, data json.RawMessage) {
	switch name {
	case "pause":
		var v bool
		_ = json.Unmarshal(data, &v)
		p.paused = v
		if !p.loaded {
			return
		}
		switch {
		case v && (p.state == engine.StatePlaying || p.state == engine.StateBuffering):
			p.setStateLocked(engine.StatePaused)
		case !v && (p.state == engine.StatePaused || p.state == engine.StateStopped):
			// a prepared file is loaded but still stopped
			p.setStateLocked(engine.StatePlaying)
		}
	case "paused-for-cache":
		var v bool
		_ = json.Unmarshal(data, &v)
		if v && p.state == engine.StatePlaying {
			p.setStateLocked(engine.StateBuffering)
		} else if !v && p.state == engine.StateBuffering {
			p.setStateLocked(engine.StatePlaying)
		}
	case "time-pos":
		var secs *float64
		_ = json.Unmarshal(data, &secs)
		if secs == nil {
			p.hasTime = false
			return
		}
		p.timeMs = int64(*secs * 1000)
		p.hasTime = true
		if p.loaded {
			p.notify(func(d engine.PlayerDelegate) { d.TimeChanged() })
		}
	case "duration":
		var secs float64
		_ = json.Unmarshal(data, &secs)
		p.lengthMs = int64(secs * 1000)
	case "seekable":
		_ = json.Unmarshal(data, &p.seekable)
	case "width":
		p.width = 0
		_ = json.Unmarshal(data, &p.width)
	case "height":
		p.height = 0
		_ = json.Unmarshal(data, &p.height)
	}
}

// SetMedia implements engine.Player. Loading is deferred to Play or Prepare.
func (p *Player) SetMedia(m *engine.Media) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return engine.ErrReleased
	}
	p.media = m
	p.loaded = false
	return nil
}

// Media implements engine.Player.
func (p *Player) Media() *engine.Media {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.media
}

func (p *Player) load(pause bool) error {
	p.loadMu.Lock()
	defer p.loadMu.Unlock()

	p.mu.Lock()
	m := p.media
	p.preparing = pause
	p.mu.Unlock()

	if m == nil {
		return engine.ErrNoMedia
	}
	p.applyOptions(translateOptions(m.Options))
	if err := p.ipc.set("pause", pause); err != nil {
		return err
	}
	_, err := p.ipc.Call("loadfile", m.MRL, "replace")
	return err
}

// applyOptions sets props and resets every property the previous load set
// that props leaves out. Must hold loadMu.
func (p *Player) applyOptions(props []property) {
	set := make(map[string]bool, len(props))
	for _, prop := range props {
		set[prop.Name] = true
	}
	for _, name := range p.overrides {
		orig, ok := p.defaults[name]
		if set[name] || !ok {
			continue
		}
		if err := p.ipc.set(name, orig); err != nil {
			p.log.Warn("mpv option reset failed", "property", name, "error", err)
		}
	}

	p.overrides = p.overrides[:0]
	for _, prop := range props {
		if _, ok := p.defaults[prop.Name]; !ok {
			orig, err := p.ipc.Call("get_property", prop.Name)
			if err != nil {
				p.log.Warn("mpv rejected option", "property", prop.Name, "error", err)
				continue
			}
			if len(orig) > 0 && string(orig) != "null" {
				p.defaults[prop.Name] = orig
			}
		}
		if err := p.ipc.set(prop.Name, prop.Value); err != nil {
			p.log.Warn("mpv rejected option", "property", prop.Name, "value", prop.Value, "error", err)
			continue
		}
		p.overrides = append(p.overrides, prop.Name)
	}
}

// Play implements engine.Player.
func (p *Player) Play() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return engine.ErrReleased
	}
	if p.media == nil {
		p.mu.Unlock()
		return engine.ErrNoMedia
	}
	loaded := p.loaded
	p.mu.Unlock()

	if loaded {
		return p.ipc.set("pause", false)
	}
	return p.load(false)
}

// Pause implements engine.Player.
func (p *Player) Pause() error {
	if p.Released() {
		return engine.ErrReleased
	}
	return p.ipc.set("pause", true)
}

// Stop implements engine.Player.
func (p *Player) Stop() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return engine.ErrReleased
	}
	if p.state == engine.StateStopped && !p.loaded {
		p.mu.Unlock()
		return nil
	}
	p.mu.Unlock()

	_, err := p.ipc.Call("stop")
	return err
}

// Prepare implements engine.Player: the file is loaded paused.
func (p *Player) Prepare() error {
	if p.Released() {
		return engine.ErrReleased
	}
	return p.load(true)
}

// SetLooping implements engine.Player. The next load resets loop-file to the
// media's own directive.
func (p *Player) SetLooping(loop bool) error {
	if p.Released() {
		return engine.ErrReleased
	}
	value := "no"
	if loop {
		value = "inf"
	}
	return p.ipc.set("loop-file", value)
}

// State implements engine.Player.
func (p *Player) State() engine.State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// IsPlaying implements engine.Player.
func (p *Player) IsPlaying() bool {
	s := p.State()
	return s == engine.StatePlaying || s == engine.StateBuffering
}

// IsSeekable implements engine.Player.
func (p *Player) IsSeekable() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.loaded && p.seekable
}

// SetTime implements engine.Player.
func (p *Player) SetTime(ms int64) error {
	_, err := p.ipc.Call("seek", float64(ms)/1000, "absolute")
	return err
}

// Time implements engine.Player.
func (p *Player) Time() (int64, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.timeMs, p.hasTime
}

// Length implements engine.Player.
func (p *Player) Length() int64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.lengthMs
}

// SetVolume implements engine.Player.
func (p *Player) SetVolume(v int) error {
	return p.ipc.set("volume", v)
}

// Volume implements engine.Player.
func (p *Player) Volume() int {
	var v float64
	if err := p.ipc.get("volume", &v); err != nil {
		return -1
	}
	return int(math.Round(v))
}

// SetRate implements engine.Player.
func (p *Player) SetRate(r float64) error {
	return p.ipc.set("speed", r)
}

// Rate implements engine.Player.
func (p *Player) Rate() float64 {
	v := 1.0
	if err := p.ipc.get("speed", &v); err != nil {
		return 1
	}
	return v
}

// VideoSize implements engine.Player.
func (p *Player) VideoSize() (int, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.width, p.height
}

func (p *Player) trackList() []mpvTrack {
	data, err := p.ipc.Call("get_property", "track-list")
	if err != nil {
		return nil
	}
	tracks, err := parseTrackList(data)
	if err != nil {
		p.log.Debug("track-list", "error", err)
	}
	return tracks
}

// Tracks implements engine.Player.
func (p *Player) Tracks(kind engine.TrackKind) []engine.Track {
	return toEngineTracks(tracksOf(p.trackList(), kind))
}

// SelectTrack implements engine.Player. A negative index disables the kind.
func (p *Player) SelectTrack(kind engine.TrackKind, index int) error {
	if index < 0 {
		return p.ipc.set(selectProperty(kind), "no")
	}
	list := tracksOf(p.trackList(), kind)
	if index >= len(list) {
		return fmt.Errorf("%w: %s track %d of %d", engine.ErrNoSuchTrack, kind, index, len(list))
	}
	return p.ipc.set(selectProperty(kind), list[index].ID)
}

// SetDelay implements engine.Player.
func (p *Player) SetDelay(kind engine.TrackKind, ms int64) error {
	prop, ok := delayProperty(kind)
	if !ok {
		return engine.ErrUnsupported
	}
	return p.ipc.set(prop, float64(ms)/1000)
}

// Delay implements engine.Player.
func (p *Player) Delay(kind engine.TrackKind) int64 {
	prop, ok := delayProperty(kind)
	if !ok {
		return 0
	}
	var secs float64
	if err := p.ipc.get(prop, &secs); err != nil {
		return 0
	}
	return int64(math.Round(secs * 1000))
}

// AddSlave implements engine.Player.
func (p *Player) AddSlave(kind engine.TrackKind, uri string, selected bool) error {
	flag := "auto"
	if selected {
		flag = "select"
	}
	switch kind {
	case engine.TrackSubtitle:
		_, err := p.ipc.Call("sub-add", uri, flag)
		return err
	case engine.TrackAudio:
		_, err := p.ipc.Call("audio-add", uri, flag)
		return err
	}
	return engine.ErrUnsupported
}

// SetScale implements engine.Player. mpv zooms in log2 steps; zero means fit.
func (p *Player) SetScale(scale float64) error {
	if scale < 0 {
		return fmt.Errorf("mpv: negative scale %v", scale)
	}
	zoom := 0.0
	if scale > 0 {
		zoom = math.Log2(scale)
	}
	if err := p.ipc.set("video-zoom", zoom); err != nil {
		return err
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
	value := ratio
	if value == "" {
		value = "-1"
	}
	if err := p.ipc.set("video-aspect-override", value); err != nil {
		return err
	}
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
	path := filepath.Join(os.TempDir(), "playerbridge-snap-"+uuid.NewString()+".png")
	defer os.Remove(path)

	if _, err := p.ipc.Call("screenshot-to-file", path, "video"); err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return png.Decode(f)
}

// SetRenderer implements engine.Player. mpv cannot redirect output to a cast
// device, only nil is accepted.
func (p *Player) SetRenderer(item *engine.RendererItem) error {
	if item != nil {
		return engine.ErrUnsupported
	}
	return nil
}

// StartRecording implements engine.Player.
func (p *Player) StartRecording(dir string) error {
	path := filepath.Join(dir, "record-"+uuid.NewString()+".mkv")
	if err := p.ipc.set("stream-record", path); err != nil {
		return err
	}
	p.mu.Lock()
	p.recordPath = path
	p.mu.Unlock()
	p.notify(func(d engine.PlayerDelegate) { d.RecordingStarted() })
	return nil
}

// StopRecording implements engine.Player.
func (p *Player) StopRecording() error {
	p.mu.Lock()
	path := p.recordPath
	p.mu.Unlock()
	if path == "" {
		return errors.New("mpv: not recording")
	}

	if err := p.ipc.set("stream-record", ""); err != nil {
		return err
	}
	p.mu.Lock()
	p.recordPath = ""
	p.mu.Unlock()
	p.notify(func(d engine.PlayerDelegate) { d.RecordingStopped(path) })
	return nil
}

// Released reports whether Release was called.
func (p *Player) Released() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.released
}

// Release implements engine.Player. It asks mpv to quit and reaps the process.
func (p *Player) Release() error {
	p.mu.Lock()
	if p.released {
		p.mu.Unlock()
		return nil
	}
	p.released = true
	p.mu.Unlock()

	_, _ = p.ipc.Call("quit")
	err := p.ipc.Close()
	if p.proc != nil {
		p.proc.shutdown()
	}
	p.callbacks.Close()
	return err
}
