package rtassist

import (
	"testing"

	"github.com/codewandler/rtassist/events"
	"github.com/stretchr/testify/require"
)

func decodeKinds(t *testing.T, data string) []events.Event {
	t.Helper()
	base, err := events.Peek([]byte(data))
	require.NoError(t, err)
	evts, err := decode(base.Type, []byte(data))
	require.NoError(t, err)
	return evts
}

func TestDecode(t *testing.T) {
	t.Run("session created", func(t *testing.T) {
		evts := decodeKinds(t, `{"type":"session.created","session":{"id":"sess_1","model":"m"}}`)
		require.Equal(t, "sess_1", evts[0].(events.Connected).SessionID)
	})

	t.Run("audio delta", func(t *testing.T) {
		evts := decodeKinds(t, `{"type":"response.audio.delta","item_id":"1","delta":"AQI="}`)
		require.Len(t, evts, 1)
		u := evts[0].(events.Updated)
		require.Equal(t, "1", u.ItemID)
		require.Equal(t, []byte{1, 2}, u.Delta.Audio)
	})

	t.Run("deltas", func(t *testing.T) {
		require.Equal(t, "he", decodeKinds(t, `{"type":"response.audio_transcript.delta","item_id":"1","delta":"he"}`)[0].(events.Updated).Delta.Transcript)
		require.Equal(t, "hi", decodeKinds(t, `{"type":"response.text.delta","item_id":"1","delta":"hi"}`)[0].(events.Updated).Delta.Text)
		require.Equal(t, `{"a"`, decodeKinds(t, `{"type":"response.function_call_arguments.delta","item_id":"1","call_id":"c","delta":"{\"a\""}`)[0].(events.Updated).Delta.Arguments)
	})

	t.Run("item created completed", func(t *testing.T) {
		evts := decodeKinds(t, `{"type":"conversation.item.created","item":{"id":"u","type":"message","role":"user","status":"completed"}}`)
		require.Len(t, evts, 2)
		require.Equal(t, events.KindItemCreated, evts[0].Kind())
		require.Equal(t, events.KindItemCompleted, evts[1].Kind())
	})

	t.Run("function call done", func(t *testing.T) {
		evts := decodeKinds(t, `{"type":"response.output_item.done","item":{"id":"fc","type":"function_call","status":"completed","call_id":"c1","name":"check_routes","arguments":"{}"}}`)
		require.Len(t, evts, 2)
		fc := evts[1].(events.FunctionCallCompleted)
		require.Equal(t, events.FunctionCallCompleted{Received: fc.Received, ItemID: "fc", CallID: "c1", Name: "check_routes", Arguments: "{}"}, fc)
	})

	t.Run("message done", func(t *testing.T) {
		evts := decodeKinds(t, `{"type":"response.output_item.done","item":{"id":"m","type":"message","status":"completed"}}`)
		require.Len(t, evts, 1)
	})

	t.Run("speech started", func(t *testing.T) {
		evts := decodeKinds(t, `{"type":"input_audio_buffer.speech_started","item_id":"u","audio_start_ms":120}`)
		require.Equal(t, 120, evts[0].(events.Interrupted).AudioStartMs)
	})

	t.Run("input transcription", func(t *testing.T) {
		evts := decodeKinds(t, `{"type":"conversation.item.input_audio_transcription.completed","item_id":"u","transcript":"hi"}`)
		require.Equal(t, "hi", evts[0].(events.InputTranscriptionCompleted).Transcript)
	})

	t.Run("error", func(t *testing.T) {
		evts := decodeKinds(t, `{"type":"error","error":{"code":"invalid_value","message":"bad voice"}}`)
		require.EqualError(t, evts[0].(events.Failure), "invalid_value: bad voice")
	})

	t.Run("unknown type", func(t *testing.T) {
		require.Empty(t, decodeKinds(t, `{"type":"rate_limits.updated"}`))
	})
}

func TestDecode_Failures(t *testing.T) {
	tests := map[string]string{
		events.TypeResponseAudioDelta:      `{"type":"response.audio.delta","delta":"!!!"}`,
		events.TypeConversationItemCreated: `{"type":"conversation.item.created","item":{"type":"message"}}`,
		events.TypeSpeechStarted:           `{"type":"input_audio_buffer.speech_started","audio_start_ms":"soon"}`,
	}
	for typ, data := range tests {
		t.Run(typ, func(t *testing.T) {
			_, err := decode(typ, []byte(data))
			var de *DecodeError
			require.ErrorAs(t, err, &de)
			require.Equal(t, typ, de.Type)
		})
	}
}
