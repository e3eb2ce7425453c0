package rtassist

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/codewandler/rtassist/bus"
	"github.com/codewandler/rtassist/events"
	"github.com/codewandler/rtassist/metrics"
	"github.com/codewandler/rtassist/ui"
	"github.com/golang/groupcache/lru"
	"github.com/google/uuid"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
	RoleSystem    = "system"
)

// Item is one turn of the conversation as accumulated from the event
// stream. Track is the playback track that was current when the item was
// created; audio of the item is always tagged with it.
type Item struct {
	ID         string
	Role       string
	Type       string
	Status     string
	Track      string
	CallID     string
	Name       string
	Transcript string
	Text       string
	Arguments  string
	Audio      []byte
	// Final is the transcript extracted on completion.
	Final string
}

type TranscriptStatus int

const (
	TranscriptEmpty TranscriptStatus = iota
	TranscriptPresent
	TranscriptMalformed
)

func (s TranscriptStatus) String() string {
	switch s {
	case TranscriptPresent:
		return "present"
	case TranscriptMalformed:
		return "malformed"
	default:
		return "empty"
	}
}

// TranscriptResult is the outcome of extracting the transcript of a
// completed item. Err is set only for TranscriptMalformed.
type TranscriptResult struct {
	Status TranscriptStatus
	Text   string
	Err    *MalformedEventError
}

// Transcript extracts the finalized transcript of a completed message item.
// Typed user input is not a transcript, so an item holding only input_text
// yields TranscriptEmpty.
func Transcript(it *events.ConversationItem) TranscriptResult {
	malformed := func(id, reason string) TranscriptResult {
		return TranscriptResult{
			Status: TranscriptMalformed,
			Err:    &MalformedEventError{Kind: string(events.KindItemCompleted), ItemID: id, Reason: reason},
		}
	}

	if it == nil {
		return malformed("", "missing item")
	}
	if it.Type != "" && it.Type != events.ItemTypeMessage {
		return TranscriptResult{Status: TranscriptEmpty}
	}
	if len(it.Content) == 0 {
		return malformed(it.ID, "no content")
	}

	var (
		parts      []string
		recognized bool
	)
	for _, c := range it.Content {
		switch c.Type {
		case events.ContentTypeAudio, events.ContentTypeInputAudio:
			recognized = true
			parts = append(parts, c.Transcript)
		case events.ContentTypeText:
			recognized = true
			parts = append(parts, c.Text)
		case events.ContentTypeInputText:
			recognized = true
		}
	}
	if !recognized {
		return malformed(it.ID, "no transcript content")
	}

	text := strings.TrimSpace(strings.Join(parts, "\n"))
	if text == "" {
		return TranscriptResult{Status: TranscriptEmpty}
	}
	return TranscriptResult{Status: TranscriptPresent, Text: text}
}

// tracks holds the current playback track id.
type tracks struct {
	mu sync.Mutex
	id string
}

func newTracks() *tracks {
	return &tracks{id: uuid.NewString()}
}

func (t *tracks) current() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.id
}

func (t *tracks) rotate() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.id = uuid.NewString()
	return t.id
}

// Conversation follows the items of a session and surfaces them to a
// ui.Sink: assistant audio as it streams, transcripts once items complete,
// and playback interruptions.
type Conversation struct {
	sink    ui.Sink
	tracks  *tracks
	logger  *slog.Logger
	metrics *metrics.Collector
	limit   int

	mu      sync.Mutex
	live    map[string]*Item
	active  string
	final   *lru.Cache
	shown   *lru.Cache
	history []Item
}

func newConversation(sink ui.Sink, t *tracks, logger *slog.Logger, m *metrics.Collector, limit int) *Conversation {
	return &Conversation{
		sink:    sink,
		tracks:  t,
		logger:  logger.With(slog.String("component", "conversation")),
		metrics: m,
		limit:   limit,
		live:    make(map[string]*Item),
		final:   lru.New(max(idWindow, limit)),
		shown:   lru.New(max(idWindow, limit)),
	}
}

// idWindow is how many finalized and shown item ids are remembered.
const idWindow = 1024

func hasID(c *lru.Cache, id string) bool {
	_, ok := c.Get(id)
	return ok
}

// attach subscribes the conversation to b. The returned func detaches it.
func (c *Conversation) attach(b *bus.Bus) func() {
	offs := []func(){
		b.On(events.KindItemCreated, c.onItemCreated),
		b.On(events.KindUpdated, c.onUpdated),
		b.On(events.KindItemCompleted, c.onItemCompleted),
		b.On(events.KindInterrupted, c.onInterrupted),
		b.On(events.KindInputTranscriptionCompleted, c.onInputTranscription),
	}
	return func() {
		for _, off := range offs {
			off()
		}
	}
}

// Active returns the assistant item currently streaming, if any.
func (c *Conversation) Active() (Item, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if it, ok := c.live[c.active]; ok {
		return *it, true
	}
	return Item{}, false
}

// History returns finalized items in completion order.
func (c *Conversation) History() []Item {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Item(nil), c.history...)
}

func (c *Conversation) onItemCreated(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.ItemCreated)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := evt.Item.ID
	if hasID(c.final, id) || c.live[id] != nil {
		return nil
	}

	c.live[id] = &Item{
		ID:        id,
		Role:      evt.Item.Role,
		Type:      evt.Item.Type,
		Status:    evt.Item.Status,
		Track:     c.tracks.current(),
		CallID:    evt.Item.CallID,
		Name:      evt.Item.Name,
		Arguments: evt.Item.Arguments,
	}

	switch evt.Item.Role {
	case RoleAssistant:
		if c.active != "" && c.active != id {
			c.logger.Debug("detaching assistant item", slog.String("item_id", c.active), slog.String("next", id))
		}
		c.active = id
	case RoleUser:
		c.active = ""
	}
	return nil
}

func (c *Conversation) onUpdated(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.Updated)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}

	c.mu.Lock()
	item := c.live[evt.ItemID]
	if item == nil {
		if hasID(c.final, evt.ItemID) {
			c.mu.Unlock()
			c.logger.Debug("delta for finalized item", slog.String("item_id", evt.ItemID))
			return nil
		}
		// deltas may precede conversation.item.created for response items
		item = &Item{
			ID:     evt.ItemID,
			Role:   RoleAssistant,
			Type:   events.ItemTypeMessage,
			Status: events.ItemStatusInProgress,
			Track:  c.tracks.current(),
		}
		c.live[evt.ItemID] = item
		c.active = evt.ItemID
	}

	var chunk *ui.AudioChunk
	d := evt.Delta
	switch {
	case len(d.Audio) > 0:
		item.Audio = append(item.Audio, d.Audio...)
		chunk = &ui.AudioChunk{
			Track:    item.Track,
			ItemID:   item.ID,
			MimeType: ui.MimeTypePCM16,
			Data:     d.Audio,
		}
	case d.Transcript != "":
		item.Transcript += d.Transcript
	case d.Text != "":
		item.Text += d.Text
	case d.Arguments != "":
		item.Arguments += d.Arguments
	}
	c.mu.Unlock()

	if chunk == nil {
		return nil
	}
	return c.sink.Audio(ctx, *chunk)
}

func (c *Conversation) onItemCompleted(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.ItemCompleted)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}
	if evt.Item == nil {
		c.logger.Debug("skipping completion", slog.Any("err", &MalformedEventError{Kind: string(evt.Kind()), Reason: "missing item"}))
		return nil
	}

	msg, ok := c.finalize(evt.Item)
	if !ok {
		return nil
	}
	return c.sink.Message(ctx, msg)
}

// finalize completes the item once. It reports the UI message to emit, if
// any.
func (c *Conversation) finalize(it *events.ConversationItem) (ui.Message, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if hasID(c.final, it.ID) {
		return ui.Message{}, false
	}

	item := c.live[it.ID]
	if item == nil {
		item = &Item{ID: it.ID, Type: it.Type, Track: c.tracks.current()}
	}
	delete(c.live, it.ID)
	c.final.Add(it.ID, struct{}{})
	if c.active == it.ID {
		c.active = ""
	}

	item.Status = it.Status
	if item.Status == "" {
		item.Status = events.ItemStatusCompleted
	}
	if it.Role != "" {
		item.Role = it.Role
	}
	if it.Type != "" {
		item.Type = it.Type
	}
	if it.Arguments != "" {
		item.Arguments = it.Arguments
	}
	if it.CallID != "" {
		item.CallID, item.Name = it.CallID, it.Name
	}

	var (
		msg  ui.Message
		emit bool
	)
	res := Transcript(it)
	switch res.Status {
	case TranscriptPresent:
		item.Final = res.Text
		if (item.Role == RoleAssistant || item.Role == RoleUser) && !hasID(c.shown, it.ID) {
			c.shown.Add(it.ID, struct{}{})
			msg, emit = messageFor(item.Role, it.ID, res.Text), true
		}
	case TranscriptMalformed:
		c.logger.Debug("no transcript", slog.Any("err", res.Err))
	}

	c.history = append(c.history, *item)
	if c.limit > 0 && len(c.history) > c.limit {
		c.history = append([]Item(nil), c.history[len(c.history)-c.limit:]...)
	}
	return msg, emit
}

func (c *Conversation) onInterrupted(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.Interrupted)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}

	c.mu.Lock()
	prev := c.active
	c.active = ""
	track := c.tracks.rotate()
	c.mu.Unlock()

	c.metrics.RecordInterrupt()
	c.logger.Debug("interrupted", slog.String("item_id", prev), slog.String("speech_item_id", evt.ItemID), slog.String("track", track))

	return c.sink.Interrupt(ctx, track)
}

func (c *Conversation) onInputTranscription(ctx context.Context, e events.Event) error {
	evt, ok := e.(events.InputTranscriptionCompleted)
	if !ok {
		return fmt.Errorf("unexpected event %T", e)
	}

	text := strings.TrimSpace(evt.Transcript)
	if text == "" {
		return nil
	}

	c.mu.Lock()
	if hasID(c.shown, evt.ItemID) {
		c.mu.Unlock()
		return nil
	}
	c.shown.Add(evt.ItemID, struct{}{})
	if item := c.live[evt.ItemID]; item != nil {
		item.Transcript = text
	}
	c.mu.Unlock()

	return c.sink.Message(ctx, messageFor(RoleUser, evt.ItemID, text))
}

func messageFor(role, itemID, text string) ui.Message {
	m := ui.Message{Role: ui.Role(role), Content: text, ItemID: itemID}
	switch role {
	case RoleUser:
		m.Author = ui.AuthorUser
	case RoleAssistant:
		m.Author = ui.AuthorAssistant
	}
	return m
}
