package rtassist

import (
	"encoding/base64"
	"fmt"

	"github.com/codewandler/rtassist/events"
)

// decode turns one wire message of type typ into normalized events. A nil
// slice with a nil error means the type is not one the session acts on.
func decode(typ string, data []byte) ([]events.Event, error) {
	received := events.Now()

	switch typ {
	case events.TypeSessionCreated:
		evt, err := events.Parse[events.SessionCreatedEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		return []events.Event{events.Connected{
			Received:  received,
			SessionID: evt.Session.ID,
			Model:     evt.Session.Model,
		}}, nil

	case events.TypeConversationItemCreated:
		evt, err := events.Parse[events.ConversationItemCreatedEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		if evt.Item.ID == "" {
			return nil, &DecodeError{Type: typ, Err: fmt.Errorf("item without id")}
		}
		out := []events.Event{events.ItemCreated{Received: received, Item: evt.Item}}
		if evt.Item.Status == events.ItemStatusCompleted {
			item := evt.Item
			out = append(out, events.ItemCompleted{Received: received, Item: &item})
		}
		return out, nil

	case events.TypeResponseAudioDelta:
		evt, err := events.Parse[events.ResponseAudioDeltaEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		audio, err := base64.StdEncoding.DecodeString(evt.Delta)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: fmt.Errorf("audio delta: %w", err)}
		}
		return updated(received, evt.ItemID, events.Delta{Audio: audio}), nil

	case events.TypeResponseAudioTranscriptDelta:
		evt, err := events.Parse[events.ResponseAudioTranscriptDeltaEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		return updated(received, evt.ItemID, events.Delta{Transcript: evt.Delta}), nil

	case events.TypeResponseTextDelta:
		evt, err := events.Parse[events.ResponseTextDeltaEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		return updated(received, evt.ItemID, events.Delta{Text: evt.Delta}), nil

	case events.TypeResponseFunctionArgumentsDelta:
		evt, err := events.Parse[events.ResponseFunctionCallArgumentsDeltaEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		return updated(received, evt.ItemID, events.Delta{Arguments: evt.Delta}), nil

	case events.TypeResponseOutputItemDone:
		evt, err := events.Parse[events.ResponseOutputItemDoneEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		out := []events.Event{events.ItemCompleted{Received: received, Item: evt.Item}}
		if it := evt.Item; it != nil && it.Type == events.ItemTypeFunctionCall && it.Status == events.ItemStatusCompleted {
			out = append(out, events.FunctionCallCompleted{
				Received:  received,
				ItemID:    it.ID,
				CallID:    it.CallID,
				Name:      it.Name,
				Arguments: it.Arguments,
			})
		}
		return out, nil

	case events.TypeSpeechStarted:
		evt, err := events.Parse[events.SpeechStartedEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		return []events.Event{events.Interrupted{
			Received:     received,
			ItemID:       evt.ItemID,
			AudioStartMs: evt.AudioStartMs,
		}}, nil

	case events.TypeInputAudioTranscriptionCompleted:
		evt, err := events.Parse[events.InputAudioTranscriptionCompletedEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		return []events.Event{events.InputTranscriptionCompleted{
			Received:   received,
			ItemID:     evt.ItemID,
			Transcript: evt.Transcript,
		}}, nil

	case events.TypeError:
		evt, err := events.Parse[events.ErrorEvent](data)
		if err != nil {
			return nil, &DecodeError{Type: typ, Err: err}
		}
		return []events.Event{events.Failure{Received: received, Detail: evt.ErrorDetail}}, nil
	}

	return nil, nil
}

func updated(received events.Received, itemID string, d events.Delta) []events.Event {
	return []events.Event{events.Updated{Received: received, ItemID: itemID, Delta: d}}
}
