package tool

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/golang/groupcache/lru"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
	"github.com/xeipuuv/gojsonschema"
)

// Upstream is where call results go. Both methods may fail once the
// connection is gone; the dispatcher logs and tolerates that.
type Upstream interface {
	SendFunctionOutput(ctx context.Context, callID, output string) error
	CreateResponse(ctx context.Context) error
}

// Call is a function call awaiting its result.
type Call struct {
	ID           string
	ItemID       string
	Name         string
	RawArguments string
	Arguments    map[string]any
	Result       any
	Err          error
	Output       string
	Duration     time.Duration
}

type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeError   Outcome = "error"
)

type DispatcherOption func(*Dispatcher)

func WithDispatchLogger(logger *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.logger = logger.With(slog.String("component", "dispatcher"))
	}
}

// WithObserver is called once per answered call.
func WithObserver(fn func(c Call, outcome Outcome)) DispatcherOption {
	return func(d *Dispatcher) {
		d.observe = fn
	}
}

// callWindow is how many call ids are remembered to drop duplicates.
const callWindow = 1024

// Dispatcher resolves function calls against a Registry and sends exactly
// one output per call id upstream.
type Dispatcher struct {
	registry *Registry
	upstream Upstream
	logger   *slog.Logger
	observe  func(Call, Outcome)

	mu   sync.Mutex
	seen *lru.Cache
	wg   conc.WaitGroup
}

func NewDispatcher(registry *Registry, upstream Upstream, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		upstream: upstream,
		logger:   slog.New(slog.DiscardHandler),
		seen:     lru.New(callWindow),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Go dispatches call on its own goroutine. The dispatch outlives ctx
// cancellation so handler side effects are not cut short.
func (d *Dispatcher) Go(ctx context.Context, call Call) {
	ctx = context.WithoutCancel(ctx)
	d.wg.Go(func() {
		if _, err := d.Dispatch(ctx, call); err != nil && !errors.Is(err, ErrDuplicateCall) {
			d.logger.Warn("tool result not delivered", slog.String("call_id", call.ID), slog.String("name", call.Name), slog.Any("err", err))
		}
	})
}

// Wait blocks until all calls started with Go have finished.
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

// Dispatch runs call and answers it upstream. The returned error is about
// delivery only; tool failures are recorded in Call.Err and sent as the
// output.
func (d *Dispatcher) Dispatch(ctx context.Context, call Call) (Call, error) {
	if !d.claim(call.ID) {
		d.logger.Debug("duplicate call ignored", slog.String("call_id", call.ID), slog.String("name", call.Name))
		return call, fmt.Errorf("%w: %s", ErrDuplicateCall, call.ID)
	}

	start := time.Now()
	call.Result, call.Err = d.run(ctx, &call)
	call.Duration = time.Since(start)
	if call.Err == nil {
		out, err := encodeResult(call.Result)
		if err != nil {
			call.Err = &DispatchError{CallID: call.ID, Name: call.Name, Reason: ReasonHandlerFailed, Err: err}
		}
		call.Output = out
	}
	if call.Err != nil {
		call.Output = errorOutput(call.Err)
	}

	outcome := OutcomeSuccess
	if call.Err != nil {
		outcome = OutcomeError
	}

	d.logger.Info("tool call",
		slog.String("call_id", call.ID),
		slog.String("name", call.Name),
		slog.Any("args", call.Arguments),
		slog.String("output", call.Output),
		slog.Duration("duration", call.Duration),
		slog.Any("err", call.Err),
	)
	if d.observe != nil {
		d.observe(call, outcome)
	}

	if err := d.upstream.SendFunctionOutput(ctx, call.ID, call.Output); err != nil {
		return call, fmt.Errorf("send output: %w", err)
	}
	if err := d.upstream.CreateResponse(ctx); err != nil {
		return call, fmt.Errorf("continue response: %w", err)
	}
	return call, nil
}

func (d *Dispatcher) claim(callID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.seen.Get(callID); ok {
		return false
	}
	d.seen.Add(callID, struct{}{})
	return true
}

func (d *Dispatcher) run(ctx context.Context, call *Call) (any, error) {
	args, err := parseArguments(call.RawArguments)
	if err != nil {
		return nil, &DispatchError{CallID: call.ID, Name: call.Name, Reason: ReasonInvalidArguments, Err: err}
	}
	call.Arguments = args

	e, ok := d.registry.lookup(call.Name)
	if !ok {
		return nil, &DispatchError{CallID: call.ID, Name: call.Name, Reason: ReasonUnknownTool, Err: ErrUnknownTool}
	}

	applyDefaults(e.Tool.Parameters, args)
	if err := validate(e.schema, args); err != nil {
		return nil, &DispatchError{CallID: call.ID, Name: call.Name, Reason: ReasonInvalidArguments, Err: err}
	}

	var (
		pc  panics.Catcher
		res any
	)
	pc.Try(func() {
		res, err = e.Handler(ctx, args)
	})
	if r := pc.Recovered(); r != nil {
		err = r.AsError()
	}
	if err != nil {
		return nil, &DispatchError{CallID: call.ID, Name: call.Name, Reason: ReasonHandlerFailed, Err: err}
	}
	return res, nil
}

func parseArguments(raw string) (map[string]any, error) {
	args := make(map[string]any)
	if strings.TrimSpace(raw) == "" {
		return args, nil
	}
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		args = make(map[string]any)
	}
	return args, nil
}

func applyDefaults(params Parameters, args map[string]any) {
	for name, p := range params.Properties {
		if _, ok := args[name]; !ok && p.Default != nil {
			args[name] = p.Default
		}
	}
}

func validate(schema *gojsonschema.Schema, args map[string]any) error {
	result, err := schema.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return err
	}
	if result.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(result.Errors()))
	for _, e := range result.Errors() {
		msgs = append(msgs, e.String())
	}
	return errors.New(strings.Join(msgs, "; "))
}

func encodeResult(res any) (string, error) {
	if res == nil {
		d, _ := json.Marshal(map[string]any{
			"success": true,
		})
		return string(d), nil
	}
	d, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	return string(d), nil
}

func errorOutput(err error) string {
	d, _ := json.Marshal(map[string]any{
		"error": err.Error(),
	})
	return string(d)
}
