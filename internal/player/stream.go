package player

import (
	"log/slog"
	"sync"

	"playerbridge/internal/platform/metrics"
)

// Subscriber receives events of one stream. Send is called from the
// registry's dispatch goroutine and must not block for long.
type Subscriber interface {
	Send(ev Event)
	// Close tells the subscriber it will receive nothing more.
	Close(reason string)
}

// Close reasons passed to Subscriber.Close.
const (
	ReasonReplaced = "replaced"
	ReasonDisposed = "disposed"
)

// EventStream is a single-slot subscription point. At most one subscriber is
// attached; events emitted while the slot is empty are dropped.
type EventStream struct {
	name    string
	log     *slog.Logger
	metrics *metrics.Metrics

	mu  sync.Mutex
	sub Subscriber
}

func newEventStream(name string, log *slog.Logger, m *metrics.Metrics) *EventStream {
	return &EventStream{name: name, log: log, metrics: m}
}

// Listen attaches sub, closing any previous subscriber. The returned cancel
// func detaches sub unless it was already replaced.
func (s *EventStream) Listen(sub Subscriber) (cancel func()) {
	s.mu.Lock()
	prev := s.sub
	s.sub = sub
	s.mu.Unlock()

	if prev != nil {
		prev.Close(ReasonReplaced)
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			if s.sub == sub {
				s.sub = nil
			}
			s.mu.Unlock()
		})
	}
}

// Attached reports whether a subscriber is present.
func (s *EventStream) Attached() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sub != nil
}

// detach empties the slot and closes the subscriber it held.
func (s *EventStream) detach(reason string) {
	s.mu.Lock()
	prev := s.sub
	s.sub = nil
	s.mu.Unlock()

	if prev != nil {
		prev.Close(reason)
	}
}

// emit delivers ev to the current subscriber. Callers are on the dispatch
// goroutine.
func (s *EventStream) emit(ev Event) {
	s.emitLazy(ev.Tag(), func() Event { return ev })
}

// emitLazy is emit for events that are costly to build: build only runs when
// a subscriber is attached.
func (s *EventStream) emitLazy(tag string, build func() Event) {
	s.mu.Lock()
	sub := s.sub
	s.mu.Unlock()

	if sub == nil {
		s.log.Debug("event dropped, no subscriber", "stream", s.name, "event", tag)
		if s.metrics != nil {
			s.metrics.EventDropped(s.name)
		}
		return
	}
	sub.Send(build())
	if s.metrics != nil {
		s.metrics.EventDelivered(s.name)
	}
}
