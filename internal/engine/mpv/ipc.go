package mpv

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"
)

var (
	errClosed = errors.New("mpv: ipc connection closed")

	// errCommand wraps error strings reported by mpv itself.
	errCommand = errors.New("mpv: command failed")
)

const (
	callTimeout = 3 * time.Second
	maxLineSize = 1 << 20
)

type ipcRequest struct {
	Command   []any `json:"command"`
	RequestID int64 `json:"request_id"`
}

// ipcMessage is any line mpv writes: a reply carries request_id, an event
// carries event.
type ipcMessage struct {
	RequestID *int64          `json:"request_id,omitempty"`
	Error     string          `json:"error,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`

	Event     string `json:"event,omitempty"`
	ID        int64  `json:"id,omitempty"`
	Name      string `json:"name,omitempty"`
	Reason    string `json:"reason,omitempty"`
	FileError string `json:"file_error,omitempty"`
}

// ipcConn multiplexes commands and events over one JSON-IPC connection.
type ipcConn struct {
	conn    net.Conn
	log     *slog.Logger
	onEvent func(ipcMessage)

	wmu sync.Mutex

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan ipcMessage
	err     error

	done chan struct{}
}

func newIPC(conn net.Conn, log *slog.Logger, onEvent func(ipcMessage)) *ipcConn {
	c := &ipcConn{
		conn:    conn,
		log:     log,
		onEvent: onEvent,
		pending: make(map[int64]chan ipcMessage),
		done:    make(chan struct{}),
	}
	go c.readLoop()
	return c
}

// Call sends one command and waits for its reply.
func (c *ipcConn) Call(args ...any) (json.RawMessage, error) {
	ch := make(chan ipcMessage, 1)

	c.mu.Lock()
	if c.err != nil {
		err := c.err
		c.mu.Unlock()
		return nil, err
	}
	c.nextID++
	id := c.nextID
	c.pending[id] = ch
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
	}()

	payload, err := json.Marshal(ipcRequest{Command: args, RequestID: id})
	if err != nil {
		return nil, fmt.Errorf("marshal: %w", err)
	}

	c.wmu.Lock()
	_ = c.conn.SetWriteDeadline(time.Now().Add(callTimeout))
	_, err = c.conn.Write(append(payload, '\n'))
	c.wmu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}

	timer := time.NewTimer(callTimeout)
	defer timer.Stop()

	select {
	case resp := <-ch:
		if resp.Error != "" && resp.Error != "success" {
			return nil, fmt.Errorf("%w: %v: %s", errCommand, args[0], resp.Error)
		}
		return resp.Data, nil
	case <-c.done:
		return nil, errClosed
	case <-timer.C:
		return nil, fmt.Errorf("mpv: %v: no reply after %s", args[0], callTimeout)
	}
}

func (c *ipcConn) get(name string, dst any) error {
	data, err := c.Call("get_property", name)
	if err != nil {
		return err
	}
	if len(data) == 0 || string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, dst)
}

func (c *ipcConn) set(name string, value any) error {
	_, err := c.Call("set_property", name, value)
	return err
}

func (c *ipcConn) readLoop() {
	defer close(c.done)

	sc := bufio.NewScanner(c.conn)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)

	for sc.Scan() {
		var msg ipcMessage
		if err := json.Unmarshal(sc.Bytes(), &msg); err != nil {
			c.log.Debug("skipping malformed ipc line", "error", err)
			continue
		}

		if msg.Event != "" {
			if c.onEvent != nil {
				c.onEvent(msg)
			}
			continue
		}
		if msg.RequestID == nil {
			continue
		}

		c.mu.Lock()
		ch := c.pending[*msg.RequestID]
		c.mu.Unlock()
		if ch != nil {
			select {
			case ch <- msg:
			default:
			}
		}
	}

	err := sc.Err()
	if err == nil {
		err = errClosed
	}
	c.mu.Lock()
	c.err = errClosed
	c.mu.Unlock()
	c.log.Debug("ipc read loop finished", "error", err)
}

// Close shuts the connection and waits for the read loop.
func (c *ipcConn) Close() error {
	err := c.conn.Close()
	<-c.done
	return err
}
