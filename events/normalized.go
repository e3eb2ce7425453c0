package events

import "time"

// Kind identifies a normalized event published on the session bus.
type Kind string

const (
	KindConnected                   Kind = "connection.established"
	KindDisconnected                Kind = "connection.closed"
	KindItemCreated                 Kind = "conversation.item.created"
	KindUpdated                     Kind = "conversation.updated"
	KindItemCompleted               Kind = "conversation.item.completed"
	KindInterrupted                 Kind = "conversation.interrupted"
	KindInputTranscriptionCompleted Kind = "conversation.item.input_audio_transcription.completed"
	KindFunctionCallCompleted       Kind = "function_call.completed"
	KindError                       Kind = "error"
)

// Event is a normalized inbound event. Wire messages are decoded into one of
// the types below before they reach subscribers.
type Event interface {
	Kind() Kind
	ReceivedAt() time.Time
}

type Received struct {
	At time.Time
}

func (r Received) ReceivedAt() time.Time { return r.At }

func Now() Received { return Received{At: time.Now()} }

type Connected struct {
	Received
	SessionID string
	Model     string
}

func (Connected) Kind() Kind { return KindConnected }

// Disconnected is the terminal event of a connection. Err is nil for a
// local disconnect.
type Disconnected struct {
	Received
	Err error
}

func (Disconnected) Kind() Kind { return KindDisconnected }

type ItemCreated struct {
	Received
	Item ConversationItem
}

func (ItemCreated) Kind() Kind { return KindItemCreated }

// Delta carries exactly one populated field.
type Delta struct {
	Audio      []byte
	Transcript string
	Text       string
	Arguments  string
}

type Updated struct {
	Received
	ItemID string
	Delta  Delta
}

func (Updated) Kind() Kind { return KindUpdated }

// ItemCompleted carries the item as reported by the service. Item is nil when
// the wire message did not contain one.
type ItemCompleted struct {
	Received
	Item *ConversationItem
}

func (ItemCompleted) Kind() Kind { return KindItemCompleted }

type Interrupted struct {
	Received
	ItemID       string
	AudioStartMs int
}

func (Interrupted) Kind() Kind { return KindInterrupted }

type InputTranscriptionCompleted struct {
	Received
	ItemID     string
	Transcript string
}

func (InputTranscriptionCompleted) Kind() Kind { return KindInputTranscriptionCompleted }

type FunctionCallCompleted struct {
	Received
	ItemID    string
	CallID    string
	Name      string
	Arguments string
}

func (FunctionCallCompleted) Kind() Kind { return KindFunctionCallCompleted }

type Failure struct {
	Received
	Detail ErrorDetail
}

func (Failure) Kind() Kind { return KindError }

func (f Failure) Error() string { return f.Detail.Error() }
