package player

import (
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 5 * time.Second
	wsBuffer       = 64
)

func newUpgrader(origin string, log *slog.Logger) *websocket.Upgrader {
	up := &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 16 * 1024,
	}

	switch origin {
	case "":
		// same host, any port
		up.CheckOrigin = func(r *http.Request) bool {
			o := r.Header.Get("Origin")
			if o == "" {
				return true
			}
			u, err := url.Parse(o)
			if err != nil {
				return false
			}
			if u.Host == r.Host {
				return true
			}
			if i := strings.IndexByte(u.Host, ':'); i > 0 {
				return u.Host[:i] == r.Host
			}
			log.Debug("ws origin rejected", "origin", o, "host", r.Host)
			return false
		}
	case "*":
		up.CheckOrigin = func(*http.Request) bool { return true }
	default:
		up.CheckOrigin = func(r *http.Request) bool {
			return r.Header.Get("Origin") == origin
		}
	}
	return up
}

// Events upgrades to a WebSocket and streams one event stream of the player
// until the client disconnects, another subscriber replaces it, or the
// player is disposed.
func (h *Handler) Events(stream string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := playerHandle(r)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		// unknown handles are rejected before the upgrade
		if _, err := h.reg.Get(id); err != nil {
			h.fail(w, r, err)
			return
		}

		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.Debug("ws upgrade failed", "error", err)
			return
		}

		sub := newWSSubscriber(conn, h.log.With("player_id", int64(id), "stream", stream))
		cancel, err := h.reg.Listen(id, stream, sub)
		if err != nil {
			sub.Close(ReasonDisposed)
			sub.wait()
			return
		}

		// the read side only watches for the client going away
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if !isClientGone(err) {
					sub.log.Debug("ws read", "error", err)
				}
				break
			}
		}
		cancel()
		sub.Close("client closed")
		sub.wait()
	}
}

// wsSubscriber queues events for a writer goroutine so Send never blocks
// the dispatch queue on the network.
type wsSubscriber struct {
	conn *websocket.Conn
	log  *slog.Logger
	out  chan Event

	once   sync.Once
	reason string
	closed chan struct{}
	done   chan struct{}
}

func newWSSubscriber(conn *websocket.Conn, log *slog.Logger) *wsSubscriber {
	s := &wsSubscriber{
		conn:   conn,
		log:    log,
		out:    make(chan Event, wsBuffer),
		closed: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.writeLoop()
	return s
}

// Send implements Subscriber.
func (s *wsSubscriber) Send(ev Event) {
	select {
	case <-s.closed:
	case s.out <- ev:
	default:
		s.log.Warn("ws subscriber too slow, event dropped", "event", ev.Tag())
	}
}

// Close implements Subscriber.
func (s *wsSubscriber) Close(reason string) {
	s.once.Do(func() {
		s.reason = reason
		close(s.closed)
	})
}

func (s *wsSubscriber) wait() {
	<-s.done
}

func (s *wsSubscriber) writeLoop() {
	defer close(s.done)
	defer s.conn.Close()

	for {
		select {
		case ev := <-s.out:
			_ = s.conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := s.conn.WriteJSON(ev); err != nil {
				s.log.Debug("ws write", "error", err)
				s.Close("write failed")
				return
			}
		case <-s.closed:
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, s.reason)
			_ = s.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(wsWriteTimeout))
			return
		}
	}
}
