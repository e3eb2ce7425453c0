package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

type output struct {
	callID string
	output string
}

type fakeUpstream struct {
	mu        sync.Mutex
	outputs   []output
	responses int
	err       error
}

func (f *fakeUpstream) SendFunctionOutput(ctx context.Context, callID, out string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.outputs = append(f.outputs, output{callID: callID, output: out})
	return nil
}

func (f *fakeUpstream) CreateResponse(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.responses++
	return nil
}

func (f *fakeUpstream) sent() []output {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]output(nil), f.outputs...)
}

func decodeOutput(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(s), &m))
	return m
}

func TestDispatcher_Success(t *testing.T) {
	r := NewRegistry(nil)
	var got map[string]any
	require.NoError(t, r.Register(regionTool("check_routes"), func(ctx context.Context, args map[string]any) (any, error) {
		got = args
		return map[string]any{"status": "ok"}, nil
	}))

	up := &fakeUpstream{}
	d := NewDispatcher(r, up)

	call, err := d.Dispatch(context.Background(), Call{ID: "call_1", Name: "check_routes", RawArguments: `{"region":"Gulf of St. Lawrence"}`})
	require.NoError(t, err)
	require.NoError(t, call.Err)

	// defaults are applied before the handler runs
	require.Equal(t, "current", got["season"])
	require.Equal(t, []output{{callID: "call_1", output: `{"status":"ok"}`}}, up.sent())
	require.Equal(t, 1, up.responses)
}

func TestDispatcher_StringResultIsSuccess(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(regionTool("check_routes"), func(ctx context.Context, args map[string]any) (any, error) {
		return fmt.Sprintf("No vessel routes found for region: %s", args["region"]), nil
	}))

	up := &fakeUpstream{}
	d := NewDispatcher(r, up)

	call, err := d.Dispatch(context.Background(), Call{ID: "c", Name: "check_routes", RawArguments: `{"region":"Atlantis"}`})
	require.NoError(t, err)
	require.NoError(t, call.Err)
	require.Equal(t, `"No vessel routes found for region: Atlantis"`, up.sent()[0].output)
}

func TestDispatcher_NilResult(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Tool{Name: "ping"}, noop))

	up := &fakeUpstream{}
	_, err := NewDispatcher(r, up).Dispatch(context.Background(), Call{ID: "c", Name: "ping"})
	require.NoError(t, err)
	require.Equal(t, `{"success":true}`, up.sent()[0].output)
}

func TestDispatcher_Failures(t *testing.T) {
	tests := []struct {
		name   string
		call   Call
		reason Reason
	}{
		{name: "unknown tool", call: Call{ID: "c1", Name: "launch_rockets", RawArguments: `{}`}, reason: ReasonUnknownTool},
		{name: "malformed json", call: Call{ID: "c2", Name: "check_routes", RawArguments: `{"region":`}, reason: ReasonInvalidArguments},
		{name: "not an object", call: Call{ID: "c3", Name: "check_routes", RawArguments: `[1,2]`}, reason: ReasonInvalidArguments},
		{name: "missing required", call: Call{ID: "c4", Name: "check_routes", RawArguments: `{}`}, reason: ReasonInvalidArguments},
		{name: "wrong type", call: Call{ID: "c5", Name: "check_routes", RawArguments: `{"region":42}`}, reason: ReasonInvalidArguments},
		{name: "handler error", call: Call{ID: "c6", Name: "failing", RawArguments: `{}`}, reason: ReasonHandlerFailed},
		{name: "handler panic", call: Call{ID: "c7", Name: "panicking", RawArguments: `{}`}, reason: ReasonHandlerFailed},
		{name: "unencodable result", call: Call{ID: "c8", Name: "unencodable", RawArguments: `{}`}, reason: ReasonHandlerFailed},
	}

	r := NewRegistry(nil)
	require.NoError(t, r.RegisterAll(
		Registration{Tool: regionTool("check_routes"), Handler: noop},
		Registration{Tool: Tool{Name: "failing"}, Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return nil, errors.New("database unavailable")
		}},
		Registration{Tool: Tool{Name: "panicking"}, Handler: func(ctx context.Context, args map[string]any) (any, error) {
			panic("nil map")
		}},
		Registration{Tool: Tool{Name: "unencodable"}, Handler: func(ctx context.Context, args map[string]any) (any, error) {
			return make(chan int), nil
		}},
	))

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			up := &fakeUpstream{}
			call, err := NewDispatcher(r, up).Dispatch(context.Background(), tt.call)
			require.NoError(t, err)

			var de *DispatchError
			require.ErrorAs(t, call.Err, &de)
			require.Equal(t, tt.reason, de.Reason)

			sent := up.sent()
			require.Len(t, sent, 1)
			require.Equal(t, tt.call.ID, sent[0].callID)
			require.Contains(t, decodeOutput(t, sent[0].output), "error")
			require.Equal(t, 1, up.responses)
		})
	}
}

func TestDispatcher_AtMostOncePerCallID(t *testing.T) {
	r := NewRegistry(nil)
	calls := 0
	require.NoError(t, r.Register(Tool{Name: "ping"}, func(ctx context.Context, args map[string]any) (any, error) {
		calls++
		return "pong", nil
	}))

	up := &fakeUpstream{}
	d := NewDispatcher(r, up)

	_, err := d.Dispatch(context.Background(), Call{ID: "same", Name: "ping"})
	require.NoError(t, err)
	_, err = d.Dispatch(context.Background(), Call{ID: "same", Name: "ping"})
	require.ErrorIs(t, err, ErrDuplicateCall)

	require.Equal(t, 1, calls)
	require.Len(t, up.sent(), 1)
}

func TestDispatcher_CallIDsAreBounded(t *testing.T) {
	r := NewRegistry(nil)
	require.NoError(t, r.Register(Tool{Name: "ping"}, func(ctx context.Context, args map[string]any) (any, error) {
		return "pong", nil
	}))
	up := &fakeUpstream{}
	d := NewDispatcher(r, up)

	for i := 0; i < callWindow+20; i++ {
		_, err := d.Dispatch(context.Background(), Call{ID: fmt.Sprintf("call_%d", i), Name: "ping"})
		require.NoError(t, err)
	}
	require.Equal(t, callWindow, d.seen.Len())

	_, err := d.Dispatch(context.Background(), Call{ID: fmt.Sprintf("call_%d", callWindow+19), Name: "ping"})
	require.ErrorIs(t, err, ErrDuplicateCall)
}

func TestDispatcher_UpstreamGone(t *testing.T) {
	r := NewRegistry(nil)
	ran := false
	require.NoError(t, r.Register(Tool{Name: "notify"}, func(ctx context.Context, args map[string]any) (any, error) {
		ran = true
		return "sent", nil
	}))

	gone := errors.New("not connected")
	up := &fakeUpstream{err: gone}
	d := NewDispatcher(r, up)

	call, err := d.Dispatch(context.Background(), Call{ID: "c", Name: "notify"})
	require.ErrorIs(t, err, gone)
	require.True(t, ran)
	require.NoError(t, call.Err)
}

func TestDispatcher_GoRunsConcurrently(t *testing.T) {
	r := NewRegistry(nil)
	release := make(chan struct{})
	started := make(chan struct{}, 2)
	require.NoError(t, r.Register(Tool{Name: "slow"}, func(ctx context.Context, args map[string]any) (any, error) {
		started <- struct{}{}
		<-release
		return "done", nil
	}))

	up := &fakeUpstream{}
	var (
		mu       sync.Mutex
		outcomes []Outcome
	)
	d := NewDispatcher(r, up, WithObserver(func(c Call, o Outcome) {
		mu.Lock()
		defer mu.Unlock()
		outcomes = append(outcomes, o)
	}))

	ctx, cancel := context.WithCancel(context.Background())
	d.Go(ctx, Call{ID: "a", Name: "slow"})
	d.Go(ctx, Call{ID: "b", Name: "slow"})
	<-started
	<-started
	cancel()
	close(release)
	d.Wait()

	require.Len(t, up.sent(), 2)
	require.Equal(t, []Outcome{OutcomeSuccess, OutcomeSuccess}, outcomes)
}

func TestDispatcher_LatestRegistrationWins(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		versions := rapid.IntRange(1, 8).Draw(rt, "versions")

		r := NewRegistry(nil)
		executed := make([]int, 0, 1)
		for v := 0; v < versions; v++ {
			v := v
			require.NoError(rt, r.Register(Tool{Name: "echo"}, func(ctx context.Context, args map[string]any) (any, error) {
				executed = append(executed, v)
				return v, nil
			}))
		}

		up := &fakeUpstream{}
		_, err := NewDispatcher(r, up).Dispatch(context.Background(), Call{ID: "c", Name: "echo"})
		require.NoError(rt, err)
		require.Equal(rt, []int{versions - 1}, executed)
		require.Len(rt, r.All(), 1)
	})
}

func TestDispatcher_EveryCallAnsweredOnce(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		r := NewRegistry(nil)
		require.NoError(rt, r.RegisterAll(
			Registration{Tool: Tool{Name: "ok"}, Handler: noop},
			Registration{Tool: Tool{Name: "fail"}, Handler: func(ctx context.Context, args map[string]any) (any, error) {
				return nil, errors.New("fail")
			}},
		))

		names := rapid.SliceOf(rapid.SampledFrom([]string{"ok", "fail", "missing"})).Draw(rt, "names")
		raw := rapid.SliceOfN(rapid.SampledFrom([]string{"", "{}", "{", "null"}), len(names), len(names)).Draw(rt, "raw")

		up := &fakeUpstream{}
		d := NewDispatcher(r, up)
		for i, name := range names {
			d.Go(context.Background(), Call{ID: fmt.Sprintf("call_%d", i), Name: name, RawArguments: raw[i]})
		}
		d.Wait()

		answered := make(map[string]int)
		for _, o := range up.sent() {
			answered[o.callID]++
		}
		require.Len(rt, answered, len(names))
		for id, n := range answered {
			require.Equal(rt, 1, n, id)
		}
	})
}
