// Package rttest provides an in-process realtime server for tests.
package rttest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
)

// Server accepts websocket connections and hands them to the test through
// Conns.
type Server struct {
	*httptest.Server
	Conns chan *Conn

	mu      sync.Mutex
	headers []http.Header
	reject  int
}

func NewServer() *Server {
	s := &Server{Conns: make(chan *Conn, 8)}
	s.Server = httptest.NewServer(http.HandlerFunc(s.serve))
	return s
}

// Reject makes the server answer the next upgrades with status.
func (s *Server) Reject(status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reject = status
}

// Headers returns the request headers of every accepted or rejected upgrade.
func (s *Server) Headers() []http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]http.Header(nil), s.headers...)
}

// WSURL is the websocket address of the server.
func (s *Server) WSURL() string {
	return "ws" + strings.TrimPrefix(s.URL, "http")
}

func (s *Server) serve(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.headers = append(s.headers, r.Header.Clone())
	reject := s.reject
	s.mu.Unlock()

	if reject != 0 {
		http.Error(w, http.StatusText(reject), reject)
		return
	}

	conn, _, _, err := ws.UpgradeHTTP(r, w)
	if err != nil {
		return
	}
	c := &Conn{
		conn:     conn,
		received: make(chan []byte, 1000),
		closed:   make(chan struct{}),
	}
	go c.readLoop()
	s.Conns <- c
}

// Accept waits for the next connection.
func (s *Server) Accept(ctx context.Context) (*Conn, error) {
	select {
	case c := <-s.Conns:
		return c, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Conn is the server side of one client connection.
type Conn struct {
	conn      net.Conn
	writeMu   sync.Mutex
	received  chan []byte
	closed    chan struct{}
	closeOnce sync.Once
}

func (c *Conn) readLoop() {
	defer close(c.received)
	for {
		h, err := ws.ReadHeader(c.conn)
		if err != nil {
			return
		}
		payload := make([]byte, h.Length)
		if _, err := io.ReadFull(c.conn, payload); err != nil {
			return
		}
		if h.Masked {
			ws.Cipher(payload, h.Mask, 0)
		}
		switch h.OpCode {
		case ws.OpPing:
			_ = c.write(ws.NewPongFrame(payload))
		case ws.OpClose:
			_ = c.write(ws.NewCloseFrame(payload))
			return
		case ws.OpText:
			c.received <- payload
		}
	}
}

func (c *Conn) write(f ws.Frame) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.conn, f)
}

// Closed is closed once Close was called.
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// Send writes v as a JSON text frame.
func (c *Conn) Send(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.SendRaw(data)
}

func (c *Conn) SendRaw(data []byte) error {
	return c.write(ws.NewTextFrame(data))
}

// Close drops the connection without a closing handshake.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() { close(c.closed) })
	return c.conn.Close()
}

// Next returns the next client message decoded into a map.
func (c *Conn) Next(ctx context.Context) (map[string]any, error) {
	select {
	case data, ok := <-c.received:
		if !ok {
			return nil, fmt.Errorf("connection closed")
		}
		var m map[string]any
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, err
		}
		return m, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Expect skips client messages until one of type typ arrives.
func (c *Conn) Expect(ctx context.Context, typ string) (map[string]any, error) {
	for {
		m, err := c.Next(ctx)
		if err != nil {
			return nil, fmt.Errorf("waiting for %s: %w", typ, err)
		}
		if m["type"] == typ {
			return m, nil
		}
	}
}

// Handshake plays the server side of session setup and returns the
// session.update the client sent.
func (c *Conn) Handshake(ctx context.Context) (map[string]any, error) {
	if err := c.Send(map[string]any{
		"event_id": "evt_created",
		"type":     "session.created",
		"session":  map[string]any{"id": "sess_1", "model": "test-model"},
	}); err != nil {
		return nil, err
	}
	update, err := c.Expect(ctx, "session.update")
	if err != nil {
		return nil, err
	}
	if err := c.Send(map[string]any{
		"event_id": "evt_updated",
		"type":     "session.updated",
		"session":  update["session"],
	}); err != nil {
		return nil, err
	}
	return update, nil
}

// Quiet asserts that no client message of type typ arrives within d.
func (c *Conn) Quiet(typ string, d time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), d)
	defer cancel()
	for {
		m, err := c.Next(ctx)
		if err != nil {
			return nil
		}
		if m["type"] == typ {
			return fmt.Errorf("unexpected %s", typ)
		}
	}
}
