// Package mpv implements the media engine on top of mpv processes driven
// over mpv's JSON IPC protocol. Thumbnails and probing are delegated to the
// ffmpeg tools and renderer discovery to mDNS.
package mpv

import (
	"bufio"
	"bytes"
	"fmt"
	"log/slog"
	"os/exec"
	"slices"
	"sync"
	"time"

	"playerbridge/internal/engine"
	"playerbridge/internal/engine/bonjour"
	"playerbridge/internal/engine/ffmpeg"
)

// Config configures the engine.
type Config struct {
	// Path is the mpv binary.
	Path string
	// Args are appended to every mpv command line.
	Args []string

	Tools *ffmpeg.Tools

	// RendererServices limits the discovery services offered.
	RendererServices []string
	ScanInterval     time.Duration

	Log *slog.Logger
}

// Engine starts one mpv process per player.
type Engine struct {
	cfg Config
	log *slog.Logger

	versionOnce sync.Once
	version     string
}

var _ engine.Engine = (*Engine)(nil)

// New returns an mpv engine. No process is started until NewPlayer.
func New(cfg Config) *Engine {
	if cfg.Path == "" {
		cfg.Path = "mpv"
	}
	log := cfg.Log
	if log == nil {
		log = slog.Default()
	}
	if cfg.Tools == nil {
		cfg.Tools = ffmpeg.New("", "", log)
	}
	if len(cfg.RendererServices) == 0 {
		cfg.RendererServices = []string{bonjour.ServiceName}
	}
	return &Engine{cfg: cfg, log: log.With("component", "mpv")}
}

func (e *Engine) Name() string { return "mpv" }

// Version reports the first line of `mpv --version`.
func (e *Engine) Version() string {
	e.versionOnce.Do(func() {
		out, err := exec.Command(e.cfg.Path, "--version").Output()
		if err != nil {
			e.version = "unknown"
			return
		}
		sc := bufio.NewScanner(bytes.NewReader(out))
		if sc.Scan() {
			e.version = sc.Text()
		}
	})
	return e.version
}

// NewPlayer implements engine.Engine.
func (e *Engine) NewPlayer() (engine.Player, error) {
	proc, conn, err := startProcess(e.cfg.Path, e.cfg.Args, e.log)
	if err != nil {
		return nil, err
	}
	p, err := newPlayer(conn, proc, e.log.With("pid", proc.cmd.Process.Pid))
	if err != nil {
		proc.kill()
		return nil, err
	}
	return p, nil
}

// RendererServices implements engine.Engine.
func (e *Engine) RendererServices() []string {
	return slices.Clone(e.cfg.RendererServices)
}

// NewDiscoverer implements engine.Engine.
func (e *Engine) NewDiscoverer(service string) (engine.Discoverer, error) {
	if service != bonjour.ServiceName || !slices.Contains(e.cfg.RendererServices, service) {
		return nil, fmt.Errorf("mpv: unknown renderer service %q", service)
	}
	return bonjour.New(bonjour.Options{Interval: e.cfg.ScanInterval, Log: e.log}), nil
}

// Thumbnailer implements engine.Engine.
func (e *Engine) Thumbnailer() engine.Thumbnailer { return e.cfg.Tools }

// Prober implements engine.Engine.
func (e *Engine) Prober() engine.Prober { return e.cfg.Tools }
