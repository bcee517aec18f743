package virtual

import (
	"sync"

	"playerbridge/internal/dispatch"
	"playerbridge/internal/engine"
)

// Discoverer reports the configured virtual devices plus anything announced
// through Engine.Announce while it runs.
type Discoverer struct {
	e         *Engine
	callbacks *dispatch.Queue

	cbMu     sync.Mutex
	delegate engine.DiscovererDelegate

	mu      sync.Mutex
	running bool
	items   map[string]engine.RendererItem
}

var _ engine.Discoverer = (*Discoverer)(nil)

func newDiscoverer(e *Engine) *Discoverer {
	return &Discoverer{
		e:         e,
		callbacks: dispatch.New(e.log),
		items:     make(map[string]engine.RendererItem),
	}
}

func (d *Discoverer) Name() string { return ServiceName }

// SetDelegate implements engine.Discoverer.
func (d *Discoverer) SetDelegate(dl engine.DiscovererDelegate) {
	d.cbMu.Lock()
	d.delegate = dl
	d.cbMu.Unlock()
}

func (d *Discoverer) notify(fn func(dl engine.DiscovererDelegate)) {
	d.callbacks.Post(func() {
		d.cbMu.Lock()
		defer d.cbMu.Unlock()
		if d.delegate != nil {
			fn(d.delegate)
		}
	})
}

// Start implements engine.Discoverer. Configured devices are reported
// asynchronously.
func (d *Discoverer) Start() error {
	d.mu.Lock()
	if d.running {
		d.mu.Unlock()
		return nil
	}
	d.running = true
	d.mu.Unlock()

	for _, name := range d.e.opts.Devices {
		d.add(name)
	}
	return nil
}

// Stop implements engine.Discoverer. Known items are forgotten silently.
func (d *Discoverer) Stop() {
	d.mu.Lock()
	d.running = false
	d.items = make(map[string]engine.RendererItem)
	d.mu.Unlock()
}

// Running reports whether Start was called without a matching Stop.
func (d *Discoverer) Running() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.running
}

func (d *Discoverer) add(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}
	if _, ok := d.items[name]; ok {
		return
	}
	item := engine.RendererItem{Name: name, Type: "virtual", Addr: "virtual://" + name}
	d.items[name] = item
	d.notify(func(dl engine.DiscovererDelegate) { dl.ItemAdded(item) })
}

func (d *Discoverer) remove(name string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	item, ok := d.items[name]
	if !ok {
		return
	}
	delete(d.items, name)
	d.notify(func(dl engine.DiscovererDelegate) { dl.ItemDeleted(item) })
}

// Flush waits until all callbacks issued so far have been delivered.
func (d *Discoverer) Flush() {
	d.callbacks.Flush()
}
