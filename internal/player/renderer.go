package player

import (
	"errors"
	"fmt"
	"strings"

	"playerbridge/internal/engine"

	"github.com/samber/lo"
)

// RendererServices lists the discovery services the engine offers.
func (s *Session) RendererServices() []string {
	return s.deps.engine.RendererServices()
}

// StartScanning restarts renderer discovery on every service. Previously
// discovered items are forgotten.
func (s *Session) StartScanning() error {
	s.mu.Lock()
	old := s.discoverers
	s.discoverers = nil
	s.items = nil
	s.scanGen++
	gen := s.scanGen
	s.mu.Unlock()

	stopDiscoverers(old)

	var (
		started []engine.Discoverer
		errs    []error
	)
	for _, service := range s.deps.engine.RendererServices() {
		d, err := s.deps.engine.NewDiscoverer(service)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", service, err))
			continue
		}
		d.SetDelegate(&rendererBridge{s: s, gen: gen})
		if err := d.Start(); err != nil {
			d.SetDelegate(nil)
			errs = append(errs, fmt.Errorf("%s: %w", service, err))
			continue
		}
		started = append(started, d)
	}

	s.mu.Lock()
	if s.disposed || s.scanGen != gen {
		s.mu.Unlock()
		stopDiscoverers(started)
		return nil
	}
	s.discoverers = started
	s.mu.Unlock()

	if len(errs) > 0 {
		s.log.Warn("renderer discovery", "error", errors.Join(errs...))
		if len(started) == 0 {
			return errors.Join(errs...)
		}
	}
	return nil
}

// StopScanning halts discovery, forgets items, pauses playback and returns
// output to the local device. It is safe to call without a running scan.
func (s *Session) StopScanning() error {
	s.mu.Lock()
	old := s.discoverers
	s.discoverers = nil
	s.items = nil
	s.scanGen++
	s.mu.Unlock()

	stopDiscoverers(old)

	if s.player.IsPlaying() {
		if err := s.player.Pause(); err != nil {
			return err
		}
	}
	return s.player.SetRenderer(nil)
}

func stopDiscoverers(ds []engine.Discoverer) {
	for _, d := range ds {
		d.SetDelegate(nil)
		d.Stop()
	}
}

// Devices maps each discovered renderer name to itself.
func (s *Session) Devices() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.SliceToMap(s.items, func(it engine.RendererItem) (string, string) { return it.Name, it.Name })
}

// Cast redirects playback to the discovered renderer matching name and
// resumes it there. Without a match nothing changes.
func (s *Session) Cast(name string) error {
	if name == "" {
		return fmt.Errorf("%w: rendererId is required", ErrInvalidArgument)
	}

	s.mu.Lock()
	item, ok := matchRenderer(s.items, name)
	s.mu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrRendererNotFound, name)
	}

	wasPlaying := s.player.IsPlaying()
	if wasPlaying {
		if err := s.player.Pause(); err != nil {
			return err
		}
	}
	if err := s.player.SetRenderer(&item); err != nil {
		if wasPlaying {
			_ = s.player.Play()
		}
		return err
	}
	s.log.Info("casting", "renderer", item.Name)
	return s.player.Play()
}

// matchRenderer prefers an exact name, then the first item, in discovery
// order, whose name contains target.
func matchRenderer(items []engine.RendererItem, target string) (engine.RendererItem, bool) {
	if it, ok := lo.Find(items, func(it engine.RendererItem) bool { return it.Name == target }); ok {
		return it, true
	}
	return lo.Find(items, func(it engine.RendererItem) bool { return strings.Contains(it.Name, target) })
}

func (s *Session) itemAdded(gen int, item engine.RendererItem) {
	s.mu.Lock()
	if s.disposed || gen != s.scanGen {
		s.mu.Unlock()
		return
	}
	s.items = append(s.items, item)
	s.mu.Unlock()

	s.rendererEvents.emit(Event{"event": "attached", "id": item.Name, "name": item.Name})
}

func (s *Session) itemDeleted(gen int, item engine.RendererItem) {
	s.mu.Lock()
	if s.disposed || gen != s.scanGen {
		s.mu.Unlock()
		return
	}
	n := len(s.items)
	s.items = lo.Reject(s.items, func(it engine.RendererItem, _ int) bool { return it.Name == item.Name })
	removed := len(s.items) != n
	s.mu.Unlock()

	if removed {
		s.rendererEvents.emit(Event{"event": "detached", "id": item.Name, "name": item.Name})
	}
}
