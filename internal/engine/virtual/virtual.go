// Package virtual is an in-process media engine that simulates playback.
// It backs the test-suite and demo setups where no real engine is
// installed. Callbacks are delivered from engine-owned goroutines, like a
// native engine would.
package virtual

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log/slog"
	"strings"
	"sync"
	"time"

	"playerbridge/internal/engine"
)

const (
	// ServiceName is the single renderer discovery service of the engine.
	ServiceName = "virtual_renderer"

	defaultTick = 250 * time.Millisecond
)

// Clip describes what the engine "finds" behind an MRL.
type Clip struct {
	Duration  time.Duration
	Width     int
	Height    int
	Audio     []string
	Subtitles []string
	Video     []string
	Seekable  bool
	Broken    bool
}

// DefaultClip is served for MRLs without a registered clip.
var DefaultClip = Clip{
	Duration:  60 * time.Second,
	Width:     1920,
	Height:    1080,
	Audio:     []string{"Track 1 - [English]", "Track 2 - [Commentary]"},
	Subtitles: []string{"Track 1 - [English]"},
	Video:     []string{"Track 1"},
	Seekable:  true,
}

// Options tunes the simulation.
type Options struct {
	// Tick is the interval of simulated time updates.
	Tick time.Duration
	// Devices are announced by every discoverer on Start.
	Devices []string
	// ThumbnailDelay simulates decode latency.
	ThumbnailDelay time.Duration
	Log            *slog.Logger
}

// Engine is the virtual engine.
type Engine struct {
	opts Options
	log  *slog.Logger

	mu          sync.Mutex
	clips       map[string]Clip
	players     []*Player
	discoverers []*Discoverer
}

var _ engine.Engine = (*Engine)(nil)

// New returns a virtual engine.
func New(opts Options) *Engine {
	if opts.Tick <= 0 {
		opts.Tick = defaultTick
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		opts:  opts,
		log:   log.With("component", "virtual-engine"),
		clips: make(map[string]Clip),
	}
}

// AddClip registers the clip served for mrl.
func (e *Engine) AddClip(mrl string, c Clip) {
	e.mu.Lock()
	e.clips[mrl] = c
	e.mu.Unlock()
}

func (e *Engine) clip(mrl string) Clip {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.clips[mrl]; ok {
		return c
	}
	c := DefaultClip
	if strings.Contains(mrl, "broken") {
		c.Broken = true
	}
	return c
}

func (e *Engine) Name() string    { return "virtual" }
func (e *Engine) Version() string { return "virtual 1.0" }

// NewPlayer implements engine.Engine.
func (e *Engine) NewPlayer() (engine.Player, error) {
	p := newPlayer(e)
	e.mu.Lock()
	e.players = append(e.players, p)
	e.mu.Unlock()
	return p, nil
}

// Players returns every player created so far, oldest first.
func (e *Engine) Players() []*Player {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*Player(nil), e.players...)
}

// RendererServices implements engine.Engine.
func (e *Engine) RendererServices() []string {
	return []string{ServiceName}
}

// NewDiscoverer implements engine.Engine.
func (e *Engine) NewDiscoverer(service string) (engine.Discoverer, error) {
	if service != ServiceName {
		return nil, fmt.Errorf("virtual: unknown renderer service %q", service)
	}
	d := newDiscoverer(e)
	e.mu.Lock()
	e.discoverers = append(e.discoverers, d)
	e.mu.Unlock()
	return d, nil
}

// Announce makes every running discoverer report a new renderer.
func (e *Engine) Announce(name string) {
	for _, d := range e.runningDiscoverers() {
		d.add(name)
	}
}

// Withdraw makes every running discoverer report a renderer as gone.
func (e *Engine) Withdraw(name string) {
	for _, d := range e.runningDiscoverers() {
		d.remove(name)
	}
}

func (e *Engine) runningDiscoverers() []*Discoverer {
	e.mu.Lock()
	defer e.mu.Unlock()

	var out []*Discoverer
	for _, d := range e.discoverers {
		if d.Running() {
			out = append(out, d)
		}
	}
	return out
}

// Thumbnailer implements engine.Engine.
func (e *Engine) Thumbnailer() engine.Thumbnailer { return thumbnailer{e: e} }

// Prober implements engine.Engine.
func (e *Engine) Prober() engine.Prober { return prober{e: e} }

// frame renders a flat test frame.
func frame(w, h int, shade uint8) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0x21, G: 0x96, B: shade, A: 0xff}}, image.Point{}, draw.Src)
	return img
}
