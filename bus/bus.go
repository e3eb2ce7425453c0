// Package bus is the in-process publish/subscribe hub of a session.
//
// Subscribers are kept per event kind and invoked in registration order,
// synchronously in the goroutine that calls Emit. A failing or panicking
// handler is logged and does not prevent the remaining handlers from running.
package bus

import (
	"context"
	"log/slog"
	"sync"

	"github.com/codewandler/rtassist/events"
	"github.com/sourcegraph/conc/panics"
)

type Handler func(ctx context.Context, evt events.Event) error

type subscriber struct {
	id      uint64
	handler Handler
}

type Bus struct {
	mu     sync.RWMutex
	subs   map[events.Kind][]subscriber
	nextID uint64
	logger *slog.Logger
}

func New(logger *slog.Logger) *Bus {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Bus{
		subs:   make(map[events.Kind][]subscriber),
		logger: logger.With(slog.String("component", "bus")),
	}
}

// On registers h for kind. The returned func removes the subscription.
func (b *Bus) On(kind events.Kind, h Handler) (unsubscribe func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	id := b.nextID
	b.subs[kind] = append(b.subs[kind], subscriber{id: id, handler: h})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()

		subs := b.subs[kind]
		for i, s := range subs {
			if s.id == id {
				// copy so snapshots taken by Emit stay intact
				next := make([]subscriber, 0, len(subs)-1)
				next = append(next, subs[:i]...)
				b.subs[kind] = append(next, subs[i+1:]...)
				return
			}
		}
	}
}

// Emit delivers evt to the current subscribers of its kind.
func (b *Bus) Emit(ctx context.Context, evt events.Event) {
	if evt == nil {
		return
	}

	b.mu.RLock()
	subs := b.subs[evt.Kind()]
	b.mu.RUnlock()

	for _, s := range subs {
		var (
			pc  panics.Catcher
			err error
		)
		pc.Try(func() {
			err = s.handler(ctx, evt)
		})
		if r := pc.Recovered(); r != nil {
			b.logger.Error("event handler panicked", slog.String("kind", string(evt.Kind())), slog.Time("received", evt.ReceivedAt()), slog.Any("err", r.AsError()))
			continue
		}
		if err != nil {
			b.logger.Error("event handler failed", slog.String("kind", string(evt.Kind())), slog.Time("received", evt.ReceivedAt()), slog.Any("err", err))
		}
	}
}

// Len returns the number of subscribers for kind.
func (b *Bus) Len(kind events.Kind) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[kind])
}
