// Package rtassist connects a chat front-end to a realtime speech service.
// A Session owns the websocket connection, normalizes the service's event
// stream onto a bus, plays it through a Conversation and answers the
// model's function calls with the tools of a registry.
package rtassist

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/codewandler/rtassist/audio"
	"github.com/codewandler/rtassist/bus"
	"github.com/codewandler/rtassist/events"
	"github.com/codewandler/rtassist/internal/websocket"
	"github.com/codewandler/rtassist/metrics"
	"github.com/codewandler/rtassist/tool"
	"github.com/codewandler/rtassist/ui"
	nanoid "github.com/matoous/go-nanoid/v2"
)

const closeTimeout = 5 * time.Second

type Status int

const (
	StatusDisconnected Status = iota
	StatusConnecting
	StatusConnected
)

func (s Status) String() string {
	switch s {
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	default:
		return "disconnected"
	}
}

// conn is one connection of a session. A session reconnects with a fresh
// conn.
type conn struct {
	ws      *websocket.Client
	cancel  context.CancelFunc
	created chan struct{}
	updated chan struct{}
	failed  chan error
	once    sync.Once
	// closing is set once the session let go of the connection; nothing
	// received after that reaches the bus.
	closing atomic.Bool

	// guarded by Session.mu
	established bool
}

func newConn(cancel context.CancelFunc) *conn {
	return &conn{
		cancel:  cancel,
		created: make(chan struct{}, 1),
		updated: make(chan struct{}, 1),
		failed:  make(chan error, 1),
	}
}

func signal[T any](ch chan T, v T) {
	select {
	case ch <- v:
	default:
	}
}

// await blocks until ch fires, the service reports an error, the connection
// ends or ctx is done.
func (c *conn) await(ctx context.Context, ch <-chan struct{}, what string) error {
	select {
	case <-ch:
		return nil
	case err := <-c.failed:
		return fmt.Errorf("waiting for %s: %w", what, err)
	case <-c.ws.Done():
		return fmt.Errorf("waiting for %s: %w", what, websocket.ErrClosed)
	case <-ctx.Done():
		return fmt.Errorf("waiting for %s: %w", what, ctx.Err())
	}
}

// Session is the connection of one user conversation to the realtime
// service. Inbound messages are normalized and emitted on the session's bus
// in receipt order; the session's Conversation and tool Dispatcher are
// subscribed to it.
type Session struct {
	config       *sessionConfig
	bus          *bus.Bus
	registry     *tool.Registry
	dispatcher   *tool.Dispatcher
	conversation *Conversation
	tracks       *tracks
	logger       *slog.Logger
	metrics      *metrics.Collector

	mu     sync.Mutex
	status Status
	conn   *conn
}

// New creates a disconnected session. b and registry belong to this session
// and must not be shared with another one; nil values are replaced by fresh
// ones. sink receives what the conversation surfaces to the user.
func New(b *bus.Bus, registry *tool.Registry, sink ui.Sink, opts ...Option) *Session {
	config := &sessionConfig{}
	withDefaults()(config)
	WithOptions(opts...)(config)

	if b == nil {
		b = bus.New(config.logger)
	}
	if registry == nil {
		registry = tool.NewRegistry(config.logger)
	}
	if sink == nil {
		sink = ui.Discard
	}

	t := newTracks()
	guard := ui.NewTrackGuard(sink, t.current(),
		ui.WithGuardLogger(config.logger),
		ui.OnAudio(func(_ ui.AudioChunk, forwarded bool) {
			config.metrics.RecordAudioChunk(forwarded)
		}),
	)

	s := &Session{
		config:   config,
		bus:      b,
		registry: registry,
		tracks:   t,
		logger:   config.logger.With(slog.String("component", "session")),
		metrics:  config.metrics,
	}
	s.conversation = newConversation(guard, t, config.logger, config.metrics, config.historyLimit)
	s.dispatcher = tool.NewDispatcher(registry, s,
		tool.WithDispatchLogger(config.logger),
		tool.WithObserver(func(c tool.Call, o tool.Outcome) {
			config.metrics.RecordToolCall(c.Name, string(o), c.Duration)
		}),
	)

	s.conversation.attach(b)
	b.On(events.KindFunctionCallCompleted, s.onFunctionCall)
	b.On(events.KindError, s.onError)
	registry.OnChange(s.onToolsChanged)

	return s
}

func (s *Session) Bus() *bus.Bus               { return s.bus }
func (s *Session) Registry() *tool.Registry    { return s.registry }
func (s *Session) Conversation() *Conversation { return s.conversation }

// Track is the id of the current playback track.
func (s *Session) Track() string {
	return s.tracks.current()
}

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *Session) IsConnected() bool {
	return s.Status() == StatusConnected
}

// Wait blocks until every dispatched tool call has finished.
func (s *Session) Wait() {
	s.dispatcher.Wait()
}

// Connect dials the service, waits for the session to be created and
// advertises the registered tools. It is a no-op on a connected session.
// Every failure is a *ConnectionError and leaves the session disconnected.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	switch s.status {
	case StatusConnected:
		s.mu.Unlock()
		return nil
	case StatusConnecting:
		s.mu.Unlock()
		return &ConnectionError{Op: "connect", Err: errors.New("connect already in progress")}
	}
	if err := s.config.validate(); err != nil {
		s.mu.Unlock()
		return &ConnectionError{Op: "connect", Err: fmt.Errorf("invalid config: %w", err)}
	}
	s.status = StatusConnecting
	s.mu.Unlock()

	err := s.connect(ctx)
	s.metrics.RecordConnect(err)
	if err != nil {
		s.logger.Error("connect failed", slog.Any("err", err))
		return err
	}

	s.logger.Info("connected", slog.String("model", s.config.model), slog.Int("tools", s.registry.Len()))
	return nil
}

func (s *Session) connect(ctx context.Context) error {
	endpoint, err := s.config.endpoint()
	if err != nil {
		s.setStatus(StatusDisconnected)
		return &ConnectionError{Op: "dial", Err: err}
	}

	headers := http.Header{}
	headers.Add("Authorization", fmt.Sprintf("Bearer %s", s.config.apiKey))
	headers.Add("OpenAI-Beta", "realtime=v1")

	// the connection outlives the ctx of Connect, the dial does not
	connCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	c := newConn(cancel)
	stopDial := context.AfterFunc(ctx, cancel)

	ws, err := websocket.Connect(connCtx, websocket.ClientConfig{
		URL:         endpoint,
		DialTimeout: s.config.handshakeTimeout,
		Headers:     headers,
		Logger:      s.config.logger,
		OnText: func(data []byte) error {
			s.receive(connCtx, c, data)
			return nil
		},
		OnClose: func(err error) {
			s.closed(connCtx, c, err)
		},
	})
	if !stopDial() || err != nil {
		cancel()
		s.setStatus(StatusDisconnected)
		if err == nil {
			err = ctx.Err()
		}
		return &ConnectionError{Op: "dial", Err: err}
	}
	c.ws = ws

	s.mu.Lock()
	s.conn = c
	s.mu.Unlock()

	if err := s.handshake(ctx, c); err != nil {
		s.drop(c)
		closeCtx, cancelClose := context.WithTimeout(context.WithoutCancel(ctx), closeTimeout)
		defer cancelClose()
		_ = ws.Close(closeCtx)
		cancel()
		return &ConnectionError{Op: "handshake", Err: err}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn != c {
		return &ConnectionError{Op: "handshake", Err: websocket.ErrClosed}
	}
	s.status = StatusConnected
	c.established = true
	return nil
}

func (s *Session) handshake(ctx context.Context, c *conn) error {
	ctx, cancel := context.WithTimeout(ctx, s.config.handshakeTimeout)
	defer cancel()

	if err := c.await(ctx, c.created, events.TypeSessionCreated); err != nil {
		return err
	}
	if err := s.send(ctx, c, s.sessionUpdate(s.registry.All())); err != nil {
		return err
	}
	return c.await(ctx, c.updated, events.TypeSessionUpdated)
}

func (s *Session) setStatus(status Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = status
}

// drop forgets c if it is the current connection.
func (s *Session) drop(c *conn) {
	c.closing.Store(true)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == c {
		s.conn = nil
		s.status = StatusDisconnected
	}
}

// Disconnect closes the connection. Messages still queued are dropped; no
// event but Disconnected is emitted once it returns. It is safe to call on a
// disconnected session and from a bus handler. Tool calls still running
// complete locally; their results can no longer be delivered.
func (s *Session) Disconnect(ctx context.Context) error {
	s.mu.Lock()
	c := s.conn
	s.conn = nil
	s.status = StatusDisconnected
	s.mu.Unlock()

	if c == nil {
		return nil
	}
	c.closing.Store(true)

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, closeTimeout)
		defer cancel()
	}
	if err := c.ws.Close(ctx); err != nil {
		s.logger.Debug("close handshake incomplete", slog.Any("err", err))
	}
	c.cancel()
	return nil
}

// closed runs once per connection after its last inbound message.
func (s *Session) closed(ctx context.Context, c *conn, err error) {
	c.once.Do(func() {
		s.mu.Lock()
		established := c.established
		if s.conn == c {
			s.conn = nil
			s.status = StatusDisconnected
		}
		s.mu.Unlock()

		if established {
			s.metrics.RecordDisconnect()
		}
		if err != nil {
			s.logger.Warn("connection lost", slog.Any("err", err))
		} else {
			s.logger.Info("disconnected")
		}

		s.bus.Emit(context.WithoutCancel(ctx), events.Disconnected{Received: events.Now(), Err: err})
		c.cancel()
	})
}

func (s *Session) receive(ctx context.Context, c *conn, data []byte) {
	if c.closing.Load() {
		return
	}
	base, err := events.Peek(data)
	if err != nil {
		s.skip(&DecodeError{Err: err})
		return
	}

	if base.Type == events.TypeSessionUpdated {
		s.trace(base.Type, data)
		signal(c.updated, struct{}{})
		return
	}

	evts, err := decode(base.Type, data)
	if err != nil {
		s.skip(err)
		return
	}
	if len(evts) == 0 {
		s.trace(base.Type, data)
		return
	}

	for _, evt := range evts {
		if c.closing.Load() {
			return
		}
		switch evt := evt.(type) {
		case events.Connected:
			signal(c.created, struct{}{})
		case events.Failure:
			signal[error](c.failed, evt)
		}
		s.metrics.RecordEvent(string(evt.Kind()))
		s.bus.Emit(ctx, evt)
	}
}

// trace logs messages that do not change the conversation.
func (s *Session) trace(typ string, data []byte) {
	level := slog.LevelDebug
	attrs := []slog.Attr{slog.String("type", typ)}

	switch typ {
	case events.TypeSessionUpdated:
		if evt, err := events.Parse[events.SessionUpdatedEvent](data); err == nil {
			attrs = append(attrs, slog.String("session_id", evt.Session.ID), slog.Int("tools", len(evt.Session.Tools)))
		}
	case events.TypeResponseDone:
		if evt, err := events.Parse[events.ResponseDoneEvent](data); err == nil {
			attrs = append(attrs, slog.String("response_id", evt.Response.ID), slog.String("status", evt.Response.Status), slog.Int("items", len(evt.Response.Output)))
			if evt.Response.Status == events.ResponseStatusFailed {
				level = slog.LevelWarn
			}
		}
	case events.TypeResponseAudioTranscriptDone:
		if evt, err := events.Parse[events.ResponseAudioTranscriptDoneEvent](data); err == nil {
			attrs = append(attrs, slog.String("item_id", evt.ItemID), slog.Int("chars", len(evt.Transcript)))
		}
	case events.TypeResponseAudioDone:
		if evt, err := events.Parse[events.ResponseAudioDone](data); err == nil {
			attrs = append(attrs, slog.String("item_id", evt.ItemID))
		}
	case events.TypeSpeechStopped:
		if evt, err := events.Parse[events.SpeechStoppedEvent](data); err == nil {
			attrs = append(attrs, slog.String("item_id", evt.ItemID), slog.Int("audio_end_ms", evt.AudioEndMs))
		}
	}

	s.logger.LogAttrs(context.Background(), level, "event", attrs...)
}

func (s *Session) skip(err error) {
	var de *DecodeError
	if errors.As(err, &de) {
		s.metrics.RecordDecodeFailure(de.Type)
	}
	s.logger.Warn("skipping inbound message", slog.Any("err", err))
}

func (s *Session) onFunctionCall(ctx context.Context, e events.Event) error {
	fc, ok := e.(events.FunctionCallCompleted)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	if fc.CallID == "" {
		return &MalformedEventError{Kind: string(fc.Kind()), ItemID: fc.ItemID, Reason: "missing call id"}
	}
	s.dispatcher.Go(ctx, tool.Call{
		ID:           fc.CallID,
		ItemID:       fc.ItemID,
		Name:         fc.Name,
		RawArguments: fc.Arguments,
	})
	return nil
}

func (s *Session) onError(ctx context.Context, e events.Event) error {
	if f, ok := e.(events.Failure); ok {
		s.logger.Warn("service error",
			slog.String("type", f.Detail.Type),
			slog.String("code", f.Detail.Code),
			slog.String("message", f.Detail.Message),
			slog.String("event_id", f.Detail.EventID),
		)
	}
	return nil
}

// onToolsChanged re-advertises the tools while a connection exists.
func (s *Session) onToolsChanged(tools []tool.Tool) {
	s.mu.Lock()
	c := s.conn
	s.mu.Unlock()
	if c == nil {
		return
	}
	if err := s.send(context.Background(), c, s.sessionUpdate(tools)); err != nil {
		s.logger.Warn("failed to advertise tools", slog.Any("err", err))
	}
}

func (s *Session) sessionUpdate(tools []tool.Tool) events.SessionUpdateEvent {
	if tools == nil {
		tools = []tool.Tool{}
	}
	return events.NewSessionUpdateEvent(events.SessionUpdate{
		Voice:             s.config.voice,
		InputAudioFormat:  events.AudioFormatPCM16,
		OutputAudioFormat: events.AudioFormatPCM16,
		Temperature:       s.config.temperature,
		Speed:             s.config.speed,
		Instructions:      s.config.instruction,
		Modalities:        []string{"text", "audio"},
		ToolChoice:        events.ToolChoiceFor(tools),
		Tools:             tools,
		TurnDetection: &events.TurnDetection{
			CreateResponse:    true,
			InterruptResponse: true,
			Type:              "server_vad",
		},
		InputAudioTranscription: &events.InputAudioTranscription{
			Model:    s.config.transcriptionModel,
			Language: s.config.language,
		},
	})
}

// Send sends any kind of client event.
func (s *Session) Send(ctx context.Context, evt any) error {
	s.mu.Lock()
	c := s.conn
	connected := s.status == StatusConnected
	s.mu.Unlock()

	if !connected || c == nil {
		return &TransportError{Op: "send", Err: ErrNotConnected}
	}
	return s.send(ctx, c, evt)
}

func (s *Session) send(ctx context.Context, c *conn, evt any) error {
	if err := ctx.Err(); err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	data, err := json.Marshal(evt)
	if err != nil {
		return &TransportError{Op: "encode", Err: err}
	}
	if err := c.ws.WriteText(data); err != nil {
		if errors.Is(err, websocket.ErrClosed) {
			err = fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		return &TransportError{Op: "send", Err: err}
	}
	return nil
}

// AdvertiseTools sends the current tool list.
func (s *Session) AdvertiseTools(ctx context.Context) error {
	return s.Send(ctx, s.sessionUpdate(s.registry.All()))
}

// AddTool registers a tool. A connected session advertises the new tool list
// right away.
func (s *Session) AddTool(t tool.Tool, h tool.Handler) error {
	return s.registry.Register(t, h)
}

func (s *Session) CreateResponse(ctx context.Context) error {
	return s.Send(ctx, events.NewResponseCreateEvent(events.ResponseCreatePayload{}))
}

// SendFunctionOutput answers the function call identified by callID.
func (s *Session) SendFunctionOutput(ctx context.Context, callID, output string) error {
	return s.Send(ctx, events.NewConversationItemCreateEvent(events.NewFunctionCallOutputItem(callID, output)))
}

// SendUserText adds a user message to the conversation and asks for a
// response.
func (s *Session) SendUserText(ctx context.Context, text string) error {
	id, err := nanoid.New()
	if err != nil {
		return err
	}
	err = s.Send(ctx, events.NewConversationItemCreateEvent(events.ConversationItem{
		ID:   "item_" + id,
		Type: events.ItemTypeMessage,
		Role: RoleUser,
		Content: []events.ConversationItemContent{
			{Type: events.ContentTypeInputText, Text: text},
		},
	}))
	if err != nil {
		return err
	}
	return s.CreateResponse(ctx)
}

// AppendInputAudio appends pcm16 recorded at the configured sample rate to
// the service's input buffer.
func (s *Session) AppendInputAudio(ctx context.Context, pcm []byte) error {
	data, err := audio.ResamplePCM(pcm, s.config.sampleRate, audio.ServiceRate)
	if err != nil {
		return fmt.Errorf("resample input: %w", err)
	}
	return s.Send(ctx, events.NewInputAudioBufferAppendEvent(base64.StdEncoding.EncodeToString(data)))
}

// StreamInputAudio reads pcm16 from r in latency-sized chunks and appends
// them until r is exhausted or ctx is done.
func (s *Session) StreamInputAudio(ctx context.Context, r io.Reader) error {
	chunks := audio.NewMonoChunkReader(r, s.config.sampleRate, s.config.latency())
	buf := make([]byte, chunks.ChunkSize())

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := chunks.Read(buf)
		if n > 0 {
			if err := s.AppendInputAudio(ctx, buf[:n]); err != nil {
				return err
			}
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("read input audio: %w", err)
		}
	}
}
