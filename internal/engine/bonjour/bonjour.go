// Package bonjour discovers cast renderers on the local network over mDNS.
package bonjour

import (
	"fmt"
	"log/slog"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"playerbridge/internal/engine"

	"github.com/hashicorp/mdns"
)

const (
	// ServiceName is the renderer service this package provides.
	ServiceName = "Bonjour_renderer"

	defaultService  = "_googlecast._tcp"
	defaultInterval = 5 * time.Second

	// an item must be missing this many consecutive rounds to be dropped
	missedRounds = 2
)

// QueryFunc runs one mDNS query. It is mdns.Query outside of tests.
type QueryFunc func(params *mdns.QueryParam) error

// Options configures a Discoverer.
type Options struct {
	Service  string
	Interval time.Duration
	Log      *slog.Logger
	Query    QueryFunc
}

// Discoverer periodically browses for renderers and reports changes to its
// delegate from the browse goroutine.
type Discoverer struct {
	opts Options
	log  *slog.Logger

	cbMu     sync.Mutex
	delegate engine.DiscovererDelegate

	mu      sync.Mutex
	stop    chan struct{}
	stopped chan struct{}
}

var _ engine.Discoverer = (*Discoverer)(nil)

// New returns a stopped discoverer.
func New(opts Options) *Discoverer {
	if opts.Service == "" {
		opts.Service = defaultService
	}
	if opts.Interval <= 0 {
		opts.Interval = defaultInterval
	}
	if opts.Query == nil {
		opts.Query = mdns.Query
	}
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	return &Discoverer{opts: opts, log: log.With("component", "bonjour", "service", opts.Service)}
}

func (d *Discoverer) Name() string { return ServiceName }

// SetDelegate implements engine.Discoverer.
func (d *Discoverer) SetDelegate(dl engine.DiscovererDelegate) {
	d.cbMu.Lock()
	d.delegate = dl
	d.cbMu.Unlock()
}

// Start implements engine.Discoverer.
func (d *Discoverer) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stop != nil {
		return nil
	}
	d.stop = make(chan struct{})
	d.stopped = make(chan struct{})
	go d.run(d.stop, d.stopped)
	return nil
}

// Stop implements engine.Discoverer. It returns once the browse loop exited.
func (d *Discoverer) Stop() {
	d.mu.Lock()
	stop, stopped := d.stop, d.stopped
	d.stop, d.stopped = nil, nil
	d.mu.Unlock()

	if stop == nil {
		return
	}
	close(stop)
	<-stopped
}

func (d *Discoverer) run(stop, stopped chan struct{}) {
	defer close(stopped)

	t := newTracker()
	ticker := time.NewTicker(d.opts.Interval)
	defer ticker.Stop()

	for {
		items, err := d.browse()
		if err != nil {
			d.log.Warn("mdns query failed", "error", err)
		} else {
			added, removed := t.round(items)
			d.deliver(added, removed)
		}

		select {
		case <-stop:
			return
		case <-ticker.C:
		}
	}
}

func (d *Discoverer) browse() ([]engine.RendererItem, error) {
	entries := make(chan *mdns.ServiceEntry, 16)
	params := mdns.DefaultParams(d.opts.Service)
	params.Entries = entries
	params.DisableIPv6 = true
	params.Timeout = d.opts.Interval / 2

	var (
		items []engine.RendererItem
		done  = make(chan struct{})
	)
	go func() {
		defer close(done)
		for e := range entries {
			items = append(items, itemFromEntry(e))
		}
	}()

	err := d.opts.Query(params)
	close(entries)
	<-done
	return items, err
}

func (d *Discoverer) deliver(added, removed []engine.RendererItem) {
	d.cbMu.Lock()
	defer d.cbMu.Unlock()

	if d.delegate == nil {
		return
	}
	for _, it := range removed {
		d.delegate.ItemDeleted(it)
	}
	for _, it := range added {
		d.delegate.ItemAdded(it)
	}
}

// itemFromEntry names an entry by its TXT "fn" (friendly name) record,
// falling back to the service instance name.
func itemFromEntry(e *mdns.ServiceEntry) engine.RendererItem {
	name := ""
	for _, f := range e.InfoFields {
		if v, ok := strings.CutPrefix(f, "fn="); ok && v != "" {
			name = v
			break
		}
	}
	if name == "" {
		name = instanceName(e.Name)
	}

	item := engine.RendererItem{Name: name, Type: "chromecast"}
	if e.AddrV4 != nil {
		item.Addr = net.JoinHostPort(e.AddrV4.String(), strconv.Itoa(e.Port))
	} else if e.Host != "" {
		item.Addr = fmt.Sprintf("%s:%d", strings.TrimSuffix(e.Host, "."), e.Port)
	}
	return item
}

// instanceName strips the "._service._tcp.local." suffix.
func instanceName(full string) string {
	if i := strings.Index(full, "._"); i > 0 {
		return strings.ReplaceAll(full[:i], `\ `, " ")
	}
	return strings.TrimSuffix(full, ".")
}

// tracker diffs successive browse rounds.
type tracker struct {
	known  map[string]engine.RendererItem
	missed map[string]int
}

func newTracker() *tracker {
	return &tracker{
		known:  make(map[string]engine.RendererItem),
		missed: make(map[string]int),
	}
}

func (t *tracker) round(seen []engine.RendererItem) (added, removed []engine.RendererItem) {
	present := make(map[string]bool, len(seen))
	for _, it := range seen {
		if present[it.Name] {
			continue
		}
		present[it.Name] = true
		t.missed[it.Name] = 0
		if _, ok := t.known[it.Name]; !ok {
			t.known[it.Name] = it
			added = append(added, it)
		}
	}

	names := make([]string, 0, len(t.known))
	for name := range t.known {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if present[name] {
			continue
		}
		t.missed[name]++
		if t.missed[name] >= missedRounds {
			removed = append(removed, t.known[name])
			delete(t.known, name)
			delete(t.missed, name)
		}
	}
	return added, removed
}
