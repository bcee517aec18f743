package player

import (
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"playerbridge/internal/asset"
	"playerbridge/internal/dispatch"
	"playerbridge/internal/engine"
	"playerbridge/internal/platform/metrics"
)

// Options configures a Registry.
type Options struct {
	Engine engine.Engine
	// Assets resolves asset sources; nil makes them unresolvable.
	Assets *asset.Resolver
	// Queue is the sequencing context events are delivered on. When nil the
	// registry creates one and closes it in Close.
	Queue *dispatch.Queue
	// Store defaults to an in-memory store.
	Store   Store
	Log     *slog.Logger
	Metrics *metrics.Metrics
}

// Registry owns every session, keyed by handle. Each per-handle operation
// resolves the handle first and fails with ErrPlayerNotFound when absent.
type Registry struct {
	mu    sync.RWMutex
	store Store
	deps  deps

	ownQueue bool
}

// NewRegistry returns an empty registry.
func NewRegistry(opts Options) *Registry {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	r := &Registry{
		store: opts.Store,
		deps: deps{
			engine:  opts.Engine,
			assets:  opts.Assets,
			queue:   opts.Queue,
			log:     log.With("component", "registry"),
			metrics: opts.Metrics,
		},
	}
	if r.store == nil {
		r.store = NewInMemoryStore()
	}
	if r.deps.queue == nil {
		r.deps.queue = dispatch.New(log)
		r.ownQueue = true
	}
	return r
}

// Initialize reports the engine in use.
func (r *Registry) Initialize() EngineInfo {
	return EngineInfo{Engine: r.deps.engine.Name(), Version: r.deps.engine.Version()}
}

// Create registers a new session under h.
func (r *Registry) Create(h Handle) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.store.Get(h); exists {
		return nil, fmt.Errorf("%w: %d", ErrPlayerExists, h)
	}
	s, err := newSession(h, r.deps)
	if err != nil {
		return nil, err
	}
	r.store.Put(s)
	r.deps.log.Info("player created", "player_id", int64(h))
	return s, nil
}

// CreateWithMedia creates a session and loads src into it. If loading fails
// the session is disposed again, so the handle stays free.
func (r *Registry) CreateWithMedia(h Handle, src MediaSource) (*Session, error) {
	s, err := r.Create(h)
	if err != nil {
		return nil, err
	}
	if err := s.SetMedia(src); err != nil {
		if derr := r.Dispose(h); derr != nil && !errors.Is(derr, ErrPlayerNotFound) {
			r.deps.log.Warn("rollback create", "player_id", int64(h), "error", derr)
		}
		return nil, err
	}
	return s, nil
}

// Get resolves h.
func (r *Registry) Get(h Handle) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.store.Get(h)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrPlayerNotFound, h)
	}
	return s, nil
}

// Dispose removes h and tears its session down. A second call fails with
// ErrPlayerNotFound.
func (r *Registry) Dispose(h Handle) error {
	r.mu.Lock()
	s, ok := r.store.Get(h)
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("%w: %d", ErrPlayerNotFound, h)
	}
	r.store.Delete(h)
	r.mu.Unlock()

	s.dispose()
	r.deps.log.Info("player disposed", "player_id", int64(h))
	return nil
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.store.Handles())
}

// Handles returns live handles in ascending order.
func (r *Registry) Handles() []Handle {
	r.mu.RLock()
	hs := r.store.Handles()
	r.mu.RUnlock()

	sort.Slice(hs, func(i, j int) bool { return hs[i] < hs[j] })
	return hs
}

// Close disposes every session and, if the registry created it, stops the
// dispatch queue.
func (r *Registry) Close() {
	for _, h := range r.Handles() {
		_ = r.Dispose(h)
	}
	if r.ownQueue {
		r.deps.queue.Close()
	}
}

// Flush waits until every event posted so far has been delivered.
func (r *Registry) Flush() {
	r.deps.queue.Flush()
}

// with resolves h and runs fn on its session.
func (r *Registry) with(h Handle, fn func(s *Session) error) error {
	s, err := r.Get(h)
	if err != nil {
		return err
	}
	return fn(s)
}

// SetMedia resolves h and loads src.
func (r *Registry) SetMedia(h Handle, src MediaSource) error {
	return r.with(h, func(s *Session) error { return s.SetMedia(src) })
}
