package events

import (
	"fmt"

	"github.com/codewandler/rtassist/tool"
)

// Server event types.
const (
	TypeError                            = "error"
	TypeSessionCreated                   = "session.created"
	TypeSessionUpdated                   = "session.updated"
	TypeConversationItemCreated          = "conversation.item.created"
	TypeInputAudioTranscriptionCompleted = "conversation.item.input_audio_transcription.completed"
	TypeSpeechStarted                    = "input_audio_buffer.speech_started"
	TypeSpeechStopped                    = "input_audio_buffer.speech_stopped"
	TypeResponseAudioDelta               = "response.audio.delta"
	TypeResponseAudioDone                = "response.audio.done"
	TypeResponseAudioTranscriptDelta     = "response.audio_transcript.delta"
	TypeResponseAudioTranscriptDone      = "response.audio_transcript.done"
	TypeResponseTextDelta                = "response.text.delta"
	TypeResponseFunctionArgumentsDelta   = "response.function_call_arguments.delta"
	TypeResponseOutputItemDone           = "response.output_item.done"
	TypeResponseDone                     = "response.done"
)

type AudioFormat string

const (
	AudioFormatPCM16 AudioFormat = "pcm16"
)

type ErrorEvent struct {
	BaseEvent
	ErrorDetail ErrorDetail `json:"error"`
}

func (e *ErrorEvent) Error() string {
	return e.ErrorDetail.Error()
}

// ErrorDetail holds the details of the error.
type ErrorDetail struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
	EventID string `json:"event_id"`
}

func (e *ErrorDetail) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

type SessionCreatedEvent struct {
	BaseEvent
	Session Session `json:"session"`
}

type SessionUpdatedEvent struct {
	BaseEvent
	Session Session `json:"session"`
}

type ResponseCreateEvent struct {
	BaseEvent
	Response ResponseCreatePayload `json:"response"`
}

func NewResponseCreateEvent(p ResponseCreatePayload) ResponseCreateEvent {
	return ResponseCreateEvent{BaseEvent: NewBaseEvent(TypeResponseCreate), Response: p}
}

type ResponseCreatePayload struct {
	Modalities        []string    `json:"modalities,omitempty"`
	Instructions      string      `json:"instructions,omitempty"`
	Voice             string      `json:"voice,omitempty"`
	OutputAudioFormat AudioFormat `json:"output_audio_format,omitempty"`
	Tools             []tool.Tool `json:"tools,omitempty"`
	ToolChoice        tool.Choice `json:"tool_choice,omitempty"`
	Temperature       float64     `json:"temperature,omitempty"`
	MaxOutputTokens   int         `json:"max_output_tokens,omitempty"`
}

type ConversationItemCreatedEvent struct {
	BaseEvent
	Item ConversationItem `json:"item"`
}

type InputAudioTranscriptionCompletedEvent struct {
	BaseEvent
	ItemID       string `json:"item_id"`
	ContentIndex int    `json:"content_index"`
	Transcript   string `json:"transcript"`
}

type SpeechStartedEvent struct {
	BaseEvent
	AudioStartMs int    `json:"audio_start_ms"`
	ItemID       string `json:"item_id"`
}

type SpeechStoppedEvent struct {
	BaseEvent
	AudioEndMs int    `json:"audio_end_ms"`
	ItemID     string `json:"item_id"`
}

type ResponseAudioDeltaEvent struct {
	BaseEvent
	ResponseId   string `json:"response_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	ItemID       string `json:"item_id"`
	Delta        string `json:"delta"`
}

type ResponseAudioDone struct {
	BaseEvent
	ResponseId   string `json:"response_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	ItemID       string `json:"item_id"`
}

type ResponseAudioTranscriptDeltaEvent struct {
	BaseEvent
	ResponseId   string `json:"response_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	ItemID       string `json:"item_id"`
	Delta        string `json:"delta"`
}

type ResponseAudioTranscriptDoneEvent struct {
	BaseEvent
	ResponseId   string `json:"response_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	ItemID       string `json:"item_id"`
	Transcript   string `json:"transcript"`
}

type ResponseTextDeltaEvent struct {
	BaseEvent
	ResponseId   string `json:"response_id"`
	OutputIndex  int    `json:"output_index"`
	ContentIndex int    `json:"content_index"`
	ItemID       string `json:"item_id"`
	Delta        string `json:"delta"`
}

type ResponseFunctionCallArgumentsDeltaEvent struct {
	BaseEvent
	ResponseId  string `json:"response_id"`
	OutputIndex int    `json:"output_index"`
	ItemID      string `json:"item_id"`
	CallID      string `json:"call_id"`
	Delta       string `json:"delta"`
}

type ResponseOutputItemDoneEvent struct {
	BaseEvent
	ResponseId  string            `json:"response_id"`
	OutputIndex int               `json:"output_index"`
	Item        *ConversationItem `json:"item"`
}

type ResponseDoneEvent struct {
	BaseEvent
	Response Response `json:"response"`
}

const (
	ResponseStatusCompleted = "completed"
	ResponseStatusCancelled = "cancelled"
	ResponseStatusFailed    = "failed"
)

type Response struct {
	ID     string             `json:"id"`
	Object string             `json:"object,omitempty"`
	Status string             `json:"status"`
	Output []ConversationItem `json:"output"`
}
