// Package dispatch provides the single sequencing context that engine
// callbacks are redelivered on before they reach a subscriber.
package dispatch

import (
	"log/slog"
	"sync"
)

// Queue runs posted functions one at a time, in the order they were posted,
// on a dedicated goroutine. Post never blocks on the consumer.
type Queue struct {
	log *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []func()
	closed  bool
	done    chan struct{}
}

// New starts a queue. log may be nil.
func New(log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{log: log, done: make(chan struct{})}
	q.cond = sync.NewCond(&q.mu)
	go q.run()
	return q
}

// Post schedules fn. Posts after Close are dropped and reported as false.
func (q *Queue) Post(fn func()) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	q.pending = append(q.pending, fn)
	q.cond.Signal()
	return true
}

// Flush blocks until everything posted before the call has run.
func (q *Queue) Flush() {
	ch := make(chan struct{})
	if !q.Post(func() { close(ch) }) {
		return
	}
	<-ch
}

// Close runs what is already queued, then stops the goroutine.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		<-q.done
		return
	}
	q.closed = true
	q.cond.Signal()
	q.mu.Unlock()

	<-q.done
}

func (q *Queue) run() {
	defer close(q.done)

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 && q.closed {
			q.mu.Unlock()
			return
		}
		batch := q.pending
		q.pending = nil
		q.mu.Unlock()

		for _, fn := range batch {
			q.call(fn)
		}
	}
}

func (q *Queue) call(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error("dispatch: recovered panic", "panic", r)
		}
	}()
	fn()
}
