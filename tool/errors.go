package tool

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidTool   = errors.New("invalid tool")
	ErrUnknownTool   = errors.New("unknown tool")
	ErrDuplicateCall = errors.New("call already dispatched")
)

type Reason string

const (
	ReasonUnknownTool      Reason = "unknown_tool"
	ReasonInvalidArguments Reason = "invalid_arguments"
	ReasonHandlerFailed    Reason = "handler_failed"
)

// DispatchError describes why a call could not produce a result. It is
// reported upstream as the call output and never returned to the bus.
type DispatchError struct {
	CallID string
	Name   string
	Reason Reason
	Err    error
}

func (e *DispatchError) Error() string {
	switch e.Reason {
	case ReasonUnknownTool:
		return fmt.Sprintf("unknown tool: %s", e.Name)
	case ReasonInvalidArguments:
		return fmt.Sprintf("invalid arguments for %s: %v", e.Name, e.Err)
	default:
		return fmt.Sprintf("%s failed: %v", e.Name, e.Err)
	}
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
