package events

import (
	"encoding/json"
	"fmt"

	nanoid "github.com/matoous/go-nanoid/v2"
)

// BaseEvent is the envelope every wire event carries.
type BaseEvent struct {
	EventID        string  `json:"event_id"`
	Type           string  `json:"type"`
	PreviousItemID *string `json:"previous_item_id,omitempty"`
}

// NewBaseEvent returns an envelope of eventType with a fresh "evt_" id.
func NewBaseEvent(eventType string) BaseEvent {
	return BaseEvent{EventID: "evt_" + nanoid.Must(), Type: eventType}
}

// Peek reads only the envelope of a wire event.
func Peek(data []byte) (BaseEvent, error) {
	var b BaseEvent
	err := json.Unmarshal(data, &b)
	return b, err
}

// Parse decodes a complete wire event of type T.
func Parse[T any](data []byte) (*T, error) {
	out := new(T)
	if err := json.Unmarshal(data, out); err != nil {
		return nil, fmt.Errorf("parse %T: %w", *out, err)
	}
	return out, nil
}
