package events

import "github.com/codewandler/rtassist/tool"

// Client event types.
const (
	TypeSessionUpdate          = "session.update"
	TypeConversationItemCreate = "conversation.item.create"
	TypeResponseCreate         = "response.create"
	TypeInputAudioBufferAppend = "input_audio_buffer.append"
)

const (
	ItemTypeMessage            = "message"
	ItemTypeFunctionCall       = "function_call"
	ItemTypeFunctionCallOutput = "function_call_output"

	ItemStatusInProgress = "in_progress"
	ItemStatusCompleted  = "completed"
	ItemStatusIncomplete = "incomplete"

	ContentTypeInputText  = "input_text"
	ContentTypeInputAudio = "input_audio"
	ContentTypeText       = "text"
	ContentTypeAudio      = "audio"
)

type SessionUpdateEvent struct {
	BaseEvent
	Session SessionUpdate `json:"session"`
}

func NewSessionUpdateEvent(s SessionUpdate) SessionUpdateEvent {
	return SessionUpdateEvent{BaseEvent: NewBaseEvent(TypeSessionUpdate), Session: s}
}

type ConversationItemCreateEvent struct {
	BaseEvent
	Item ConversationItem `json:"item"`
}

func NewConversationItemCreateEvent(item ConversationItem) ConversationItemCreateEvent {
	return ConversationItemCreateEvent{BaseEvent: NewBaseEvent(TypeConversationItemCreate), Item: item}
}

type InputAudioBufferAppendEvent struct {
	BaseEvent
	Audio string `json:"audio"`
}

func NewInputAudioBufferAppendEvent(b64 string) InputAudioBufferAppendEvent {
	return InputAudioBufferAppendEvent{BaseEvent: NewBaseEvent(TypeInputAudioBufferAppend), Audio: b64}
}

// ConversationItem is the inner “item” object.
type ConversationItem struct {
	ID        string                    `json:"id,omitempty"`
	Object    string                    `json:"object,omitempty"`
	Type      string                    `json:"type"`
	Status    string                    `json:"status,omitempty"`
	Role      string                    `json:"role,omitempty"`
	Content   []ConversationItemContent `json:"content,omitempty"`
	CallID    string                    `json:"call_id,omitempty"`
	Name      string                    `json:"name,omitempty"`
	Arguments string                    `json:"arguments,omitempty"`
	Output    string                    `json:"output,omitempty"`
}

type ConversationItemContent struct {
	Type       string `json:"type"`
	Text       string `json:"text,omitempty"`
	Audio      string `json:"audio,omitempty"`
	Transcript string `json:"transcript,omitempty"`
}

// NewFunctionCallOutputItem answers the function call identified by callID.
func NewFunctionCallOutputItem(callID, output string) ConversationItem {
	return ConversationItem{
		Type:   ItemTypeFunctionCallOutput,
		CallID: callID,
		Output: output,
	}
}

// ToolChoiceFor returns auto when tools are present.
func ToolChoiceFor(tools []tool.Tool) tool.Choice {
	if len(tools) > 0 {
		return tool.ChoiceAuto
	}
	return tool.ChoiceNone
}
