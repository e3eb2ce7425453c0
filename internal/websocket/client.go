package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gobwas/ws"
	"github.com/gobwas/ws/wsutil"
)

var ErrClosed = errors.New("websocket: connection closed")

type HandlerFunc func(data []byte) error

func Json[T any](j func(x T) error) HandlerFunc {
	return func(data []byte) error {
		var t T
		if err := json.Unmarshal(data, &t); err != nil {
			return err
		}

		return j(t)
	}
}

type ClientConfig struct {
	URL         string
	DialTimeout time.Duration
	Headers     http.Header
	OnText      func(data []byte) error
	OnBinary    func(data []byte) error
	// OnClose runs once after the last inbound message was handled. err is
	// nil for a clean close.
	OnClose func(err error)
	Logger  *slog.Logger
}

type Client struct {
	conn       net.Conn
	out        chan wsutil.Message
	done       chan struct{}
	stop       chan struct{}
	stopOnce   sync.Once
	closeFlush chan struct{}
	logger     *slog.Logger
	readErr    error
	closeSent  bool
	mu         sync.Mutex
}

// Done is closed once the inbound stream has ended and OnClose returned.
// Messages still queued after a local shutdown are not handled.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) stopped() bool {
	select {
	case <-c.stop:
		return true
	default:
		return false
	}
}

func (c *Client) setReadErr(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.readErr = err
}

func (c *Client) err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.readErr
}

func (c *Client) shutdown() {
	c.stopOnce.Do(func() {
		close(c.stop)
		_ = c.conn.Close()
	})
}

func (c *Client) WriteText(data []byte) error {
	return c.Write(ws.OpText, data)
}

func (c *Client) WriteBinary(data []byte) error {
	return c.Write(ws.OpBinary, data)
}

func (c *Client) Ping(data []byte) error {
	return c.Write(ws.OpPing, data)
}

func (c *Client) SendClose(code ws.StatusCode, reason string) error {
	c.mu.Lock()
	if c.closeSent {
		c.mu.Unlock()
		return nil
	}
	c.closeSent = true
	c.mu.Unlock()
	return c.Write(ws.OpClose, ws.NewCloseFrameBody(code, reason))
}

// Close sends a close frame and releases the connection once the frame is
// written or ctx expires. It does not wait for queued inbound messages, so it
// may be called from OnText.
func (c *Client) Close(ctx context.Context) error {
	defer c.shutdown()

	if err := c.SendClose(ws.StatusNormalClosure, "closing"); err != nil {
		return nil
	}
	select {
	case <-c.closeFlush:
		return nil
	case <-c.stop:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("close failed: %w", ctx.Err())
	}
}

func (c *Client) Write(opcode ws.OpCode, data []byte) error {
	select {
	case <-c.stop:
		return ErrClosed
	default:
	}
	select {
	case c.out <- wsutil.Message{OpCode: opcode, Payload: data}:
		return nil
	case <-c.stop:
		return ErrClosed
	}
}

// Connect dials config.URL. The connection lives until ctx is cancelled,
// Close is called or the server goes away.
func Connect(ctx context.Context, config ClientConfig) (*Client, error) {

	logger := config.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(
		slog.String("url", config.URL),
	)

	dialTimeout := config.DialTimeout
	if dialTimeout == 0 {
		dialTimeout = 10 * time.Second
	}

	// 1) Handshake timeout only:
	hsCtx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()

	// 2) Dial + WebSocket handshake
	d := ws.Dialer{
		Timeout: dialTimeout,
		Header:  ws.HandshakeHeaderHTTP(config.Headers),
	}
	conn, buf, hs, err := d.Dial(hsCtx, config.URL)
	if err != nil {
		return nil, err
	}
	logger.Debug("Handshake complete with response:", slog.Any("handshake", hs))

	// Frames sent right after the handshake may already sit in buf.
	var src io.Reader = conn
	if buf != nil {
		if buf.Buffered() > 0 {
			src = io.MultiReader(buf, conn)
		} else {
			ws.PutReader(buf)
		}
	}

	logger.Info("Connected to websocket", slog.Any("url", config.URL))

	var (
		input  = make(chan wsutil.Message, 1000)
		output = make(chan wsutil.Message, 1000)
	)

	client := &Client{
		conn:       conn,
		out:        output,
		done:       make(chan struct{}),
		stop:       make(chan struct{}),
		closeFlush: make(chan struct{}),
		logger:     logger,
	}

	onTextFunc := config.OnText
	if onTextFunc == nil {
		onTextFunc = func(data []byte) error {
			return nil
		}
	}
	onBinaryFunc := config.OnBinary
	if onBinaryFunc == nil {
		onBinaryFunc = func(data []byte) error {
			return nil
		}
	}

	// websocket -> input channel
	go func() {
		defer close(input)
		for {
			messages, err := wsutil.ReadServerMessage(src, nil)
			if err != nil {
				select {
				case <-client.stop:
					// local shutdown
				default:
					if !errors.Is(err, io.EOF) {
						logger.Error("ws read failed", slog.Any("err", err))
						client.readErr = err
					}
				}
				return
			}
			for _, msg := range messages {
				if msg.OpCode.IsControl() {
					logger.Debug("rcv: control", slog.Any("opcode", msg.OpCode), slog.Any("payload", msg.Payload))
					switch msg.OpCode {
					case ws.OpPing:
						_ = client.Write(ws.OpPong, msg.Payload)
					case ws.OpClose:
						logger.Debug("rcv: close. closing client", slog.String("reason", string(msg.Payload)))
						code, reason := ws.ParseCloseFrameData(msg.Payload)
						_ = client.SendClose(code, reason)
						return
					}
					continue
				}
				select {
				case input <- msg:
				case <-client.stop:
					return
				}
			}
		}
	}()

	// output channel -> websocket
	go func() {
		for {
			select {
			case <-client.stop:
				return
			case msg := <-output:
				err := wsutil.WriteClientMessage(conn, msg.OpCode, msg.Payload)
				if err != nil {
					logger.Error("Message write error:", slog.Any("err", err))
					client.shutdown()
					return
				}
			}
		}
	}()

	// input channel processing; a local shutdown stops delivery
	go func() {
		for msg := range input {
			if client.stopped() {
				break
			}
			switch msg.OpCode {
			case ws.OpText:
				logger.Debug("rcv: text", slog.Int("len", len(msg.Payload)))
				if err := onTextFunc(msg.Payload); err != nil {
					logger.Error("text message handler failed", slog.Any("err", err))
				}

			case ws.OpBinary:
				logger.Debug("rcv: binary", slog.Int("len", len(msg.Payload)))
				if err := onBinaryFunc(msg.Payload); err != nil {
					logger.Error("binary message handler failed", slog.Any("err", err))
				}
			}
		}
		client.shutdown()
		if config.OnClose != nil {
			config.OnClose(client.err())
		}
		close(client.done)
	}()

	go func() {
		select {
		case <-ctx.Done():
			client.shutdown()
		case <-client.done:
		}
	}()

	_ = client.Ping([]byte("ping"))

	return client, nil
}
