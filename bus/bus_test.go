package bus

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/codewandler/rtassist/events"
	"github.com/stretchr/testify/require"
)

func TestBus_OrderAndIsolation(t *testing.T) {
	b := New(nil)

	var got []string
	b.On(events.KindInterrupted, func(ctx context.Context, evt events.Event) error {
		got = append(got, "first")
		return errors.New("boom")
	})
	b.On(events.KindInterrupted, func(ctx context.Context, evt events.Event) error {
		got = append(got, "second")
		panic("kaputt")
	})
	b.On(events.KindInterrupted, func(ctx context.Context, evt events.Event) error {
		got = append(got, "third")
		return nil
	})
	b.On(events.KindError, func(ctx context.Context, evt events.Event) error {
		got = append(got, "other kind")
		return nil
	})

	b.Emit(context.Background(), events.Interrupted{Received: events.Now()})

	require.Equal(t, []string{"first", "second", "third"}, got)
}

func TestBus_Unsubscribe(t *testing.T) {
	b := New(nil)

	calls := 0
	off := b.On(events.KindConnected, func(ctx context.Context, evt events.Event) error {
		calls++
		return nil
	})
	require.Equal(t, 1, b.Len(events.KindConnected))

	b.Emit(context.Background(), events.Connected{Received: events.Now()})
	off()
	off()
	b.Emit(context.Background(), events.Connected{Received: events.Now()})

	require.Equal(t, 1, calls)
	require.Equal(t, 0, b.Len(events.KindConnected))
}

func TestBus_ReceiptOrderPerKind(t *testing.T) {
	b := New(nil)

	var (
		mu  sync.Mutex
		ids []string
	)
	b.On(events.KindUpdated, func(ctx context.Context, evt events.Event) error {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, evt.(events.Updated).ItemID)
		return nil
	})

	for _, id := range []string{"a", "b", "c", "d"} {
		b.Emit(context.Background(), events.Updated{Received: events.Now(), ItemID: id})
	}

	require.Equal(t, []string{"a", "b", "c", "d"}, ids)
}

func TestBus_EmitNilIsNoop(t *testing.T) {
	b := New(nil)
	require.NotPanics(t, func() {
		b.Emit(context.Background(), nil)
	})
}
