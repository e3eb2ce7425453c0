// Package ui is the boundary between a session and whatever shows it to the
// user: chat messages, assistant audio and playback interruptions.
package ui

import (
	"context"
	"errors"
	"log/slog"
	"sync"
)

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
	RoleSystem    Role = "system"
)

const (
	AuthorUser      = "You"
	AuthorAssistant = "Assistant"
)

// MimeTypePCM16 tags raw 24kHz mono little-endian audio.
const MimeTypePCM16 = "pcm16"

type Message struct {
	Role    Role
	Author  string
	Content string
	ItemID  string
}

// AudioChunk is a piece of assistant audio. Track correlates the chunk with
// a playback stream; chunks of a stale track must not be played.
type AudioChunk struct {
	Track    string
	ItemID   string
	MimeType string
	Data     []byte
}

// Sink receives everything a session surfaces to the user.
type Sink interface {
	Message(ctx context.Context, m Message) error
	Audio(ctx context.Context, c AudioChunk) error
	// Interrupt stops playback. track is the id of the stream that replaces
	// the interrupted one.
	Interrupt(ctx context.Context, track string) error
}

// Discard is a Sink that drops everything.
var Discard Sink = discard{}

type discard struct{}

func (discard) Message(context.Context, Message) error  { return nil }
func (discard) Audio(context.Context, AudioChunk) error { return nil }
func (discard) Interrupt(context.Context, string) error { return nil }

// Tee fans out to every sink in order. All sinks are called even when one
// fails; the errors are joined.
func Tee(sinks ...Sink) Sink {
	return tee(sinks)
}

type tee []Sink

func (t tee) Message(ctx context.Context, m Message) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Message(ctx, m))
	}
	return errors.Join(errs...)
}

func (t tee) Audio(ctx context.Context, c AudioChunk) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Audio(ctx, c))
	}
	return errors.Join(errs...)
}

func (t tee) Interrupt(ctx context.Context, track string) error {
	var errs []error
	for _, s := range t {
		errs = append(errs, s.Interrupt(ctx, track))
	}
	return errors.Join(errs...)
}

// TrackGuard forwards to next and drops audio chunks whose track is not the
// current one. The current track starts at initial and follows Interrupt.
type TrackGuard struct {
	next    Sink
	observe func(c AudioChunk, forwarded bool)
	logger  *slog.Logger

	mu    sync.RWMutex
	track string
}

type GuardOption func(*TrackGuard)

// OnAudio is called for every chunk with whether it was forwarded.
func OnAudio(fn func(c AudioChunk, forwarded bool)) GuardOption {
	return func(g *TrackGuard) {
		g.observe = fn
	}
}

func WithGuardLogger(logger *slog.Logger) GuardOption {
	return func(g *TrackGuard) {
		g.logger = logger
	}
}

func NewTrackGuard(next Sink, initial string, opts ...GuardOption) *TrackGuard {
	g := &TrackGuard{
		next:   next,
		track:  initial,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *TrackGuard) Track() string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.track
}

func (g *TrackGuard) Message(ctx context.Context, m Message) error {
	return g.next.Message(ctx, m)
}

func (g *TrackGuard) Audio(ctx context.Context, c AudioChunk) error {
	if current := g.Track(); c.Track != current {
		g.logger.Debug("dropping stale audio chunk", slog.String("track", c.Track), slog.String("current", current), slog.String("item_id", c.ItemID))
		if g.observe != nil {
			g.observe(c, false)
		}
		return nil
	}
	if g.observe != nil {
		g.observe(c, true)
	}
	return g.next.Audio(ctx, c)
}

func (g *TrackGuard) Interrupt(ctx context.Context, track string) error {
	g.mu.Lock()
	g.track = track
	g.mu.Unlock()
	return g.next.Interrupt(ctx, track)
}
