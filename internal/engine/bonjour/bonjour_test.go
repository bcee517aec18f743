package bonjour

import (
	"net"
	"sync"
	"testing"
	"time"

	"playerbridge/internal/engine"

	"github.com/hashicorp/mdns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(items []engine.RendererItem) []string {
	var out []string
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestTracker_round(t *testing.T) {
	tr := newTracker()
	tv := engine.RendererItem{Name: "Living Room TV"}
	speaker := engine.RendererItem{Name: "Kitchen"}

	added, removed := tr.round([]engine.RendererItem{tv, speaker, tv})
	assert.Equal(t, []string{"Living Room TV", "Kitchen"}, names(added))
	assert.Empty(t, removed)

	added, removed = tr.round([]engine.RendererItem{tv})
	assert.Empty(t, added)
	assert.Empty(t, removed, "a single missed round keeps the item")

	added, removed = tr.round([]engine.RendererItem{tv})
	assert.Empty(t, added)
	assert.Equal(t, []string{"Kitchen"}, names(removed))

	added, _ = tr.round([]engine.RendererItem{tv, speaker})
	assert.Equal(t, []string{"Kitchen"}, names(added))
}

func TestItemFromEntry(t *testing.T) {
	e := &mdns.ServiceEntry{
		Name:       "Chromecast-abc123._googlecast._tcp.local.",
		AddrV4:     net.IPv4(192, 168, 1, 20),
		Port:       8009,
		InfoFields: []string{"id=abc123", "fn=Living Room TV"},
	}
	it := itemFromEntry(e)
	assert.Equal(t, "Living Room TV", it.Name)
	assert.Equal(t, "192.168.1.20:8009", it.Addr)

	e.InfoFields = nil
	assert.Equal(t, "Chromecast-abc123", itemFromEntry(e).Name)
}

type delegate struct {
	mu      sync.Mutex
	added   []string
	deleted []string
}

func (d *delegate) ItemAdded(it engine.RendererItem) {
	d.mu.Lock()
	d.added = append(d.added, it.Name)
	d.mu.Unlock()
}

func (d *delegate) ItemDeleted(it engine.RendererItem) {
	d.mu.Lock()
	d.deleted = append(d.deleted, it.Name)
	d.mu.Unlock()
}

func TestDiscoverer_start_stop(t *testing.T) {
	query := func(p *mdns.QueryParam) error {
		p.Entries <- &mdns.ServiceEntry{
			Name:       "Speaker._googlecast._tcp.local.",
			InfoFields: []string{"fn=Office speaker"},
		}
		return nil
	}
	d := New(Options{Interval: 10 * time.Millisecond, Query: query})
	dl := &delegate{}
	d.SetDelegate(dl)

	require.NoError(t, d.Start())
	require.NoError(t, d.Start())

	assert.Eventually(t, func() bool {
		dl.mu.Lock()
		defer dl.mu.Unlock()
		return len(dl.added) == 1
	}, time.Second, 5*time.Millisecond)

	d.Stop()
	d.Stop()

	dl.mu.Lock()
	defer dl.mu.Unlock()
	assert.Equal(t, []string{"Office speaker"}, dl.added)
	assert.Empty(t, dl.deleted)
}
