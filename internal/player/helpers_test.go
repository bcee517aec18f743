package player

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"playerbridge/internal/asset"
	"playerbridge/internal/engine/virtual"
	"playerbridge/internal/platform/logger"
	"playerbridge/internal/platform/metrics"
)

type fixture struct {
	t         *testing.T
	eng       *virtual.Engine
	reg       *Registry
	assetRoot string
	metrics   *metrics.Metrics
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	eng := virtual.New(virtual.Options{
		Tick:    time.Hour,
		Devices: []string{"Living Room TV", "Kitchen TV"},
		Log:     logger.Discard(),
	})
	m := metrics.New()
	reg := NewRegistry(Options{
		Engine:  eng,
		Assets:  asset.New(root),
		Log:     logger.Discard(),
		Metrics: m,
	})
	t.Cleanup(reg.Close)
	return &fixture{t: t, eng: eng, reg: reg, assetRoot: root, metrics: m}
}

func (f *fixture) create(h Handle) *Session {
	f.t.Helper()
	s, err := f.reg.Create(h)
	if err != nil {
		f.t.Fatalf("Create(%d): %v", h, err)
	}
	return s
}

func (f *fixture) vplayer(h Handle) *virtual.Player {
	f.t.Helper()
	s, err := f.reg.Get(h)
	if err != nil {
		f.t.Fatalf("Get(%d): %v", h, err)
	}
	return s.player.(*virtual.Player)
}

// settle waits until every engine callback of h has reached the subscribers.
func (f *fixture) settle(h Handle) {
	f.vplayer(h).Flush()
	f.reg.Flush()
}

func (f *fixture) writeAsset(key string) {
	f.t.Helper()
	path := filepath.Join(f.assetRoot, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		f.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("media"), 0o644); err != nil {
		f.t.Fatal(err)
	}
}

// collector is a Subscriber that keeps everything it is sent.
type collector struct {
	mu     sync.Mutex
	events []Event
	closed string
}

func (c *collector) Send(ev Event) {
	c.mu.Lock()
	c.events = append(c.events, ev)
	c.mu.Unlock()
}

func (c *collector) Close(reason string) {
	c.mu.Lock()
	c.closed = reason
	c.mu.Unlock()
}

func (c *collector) tags() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, ev := range c.events {
		out = append(out, ev.Tag())
	}
	return out
}

func (c *collector) last(tag string) Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := len(c.events) - 1; i >= 0; i-- {
		if c.events[i].Tag() == tag {
			return c.events[i]
		}
	}
	return nil
}

func (c *collector) closedWith() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}
