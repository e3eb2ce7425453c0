package rtassist

import (
	"errors"
	"fmt"
)

// ErrNotConnected is returned, wrapped in a *TransportError, by every send
// made while the session has no live connection.
var ErrNotConnected = errors.New("not connected")

// ConnectionError reports a failed Connect. The session is disconnected
// afterwards and needs a fresh Connect.
type ConnectionError struct {
	Op  string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection %s: %v", e.Op, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// TransportError reports a failed send.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is logged for inbound messages that cannot be decoded. The
// message is skipped.
type DecodeError struct {
	Type string
	Err  error
}

func (e *DecodeError) Error() string {
	if e.Type == "" {
		return fmt.Sprintf("decode event: %v", e.Err)
	}
	return fmt.Sprintf("decode %s: %v", e.Type, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// MalformedEventError describes an event that decoded fine but lacks the
// structure needed to act on it, e.g. a completed item without content.
type MalformedEventError struct {
	Kind   string
	ItemID string
	Reason string
}

func (e *MalformedEventError) Error() string {
	return fmt.Sprintf("malformed %s (item %q): %s", e.Kind, e.ItemID, e.Reason)
}
