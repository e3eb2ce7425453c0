package ui

import (
	"context"
	"sync"
)

// Recorder is a Sink that keeps everything it receives. Its accessors are
// safe to call while a session is writing to it.
type Recorder struct {
	mu         sync.Mutex
	messages   []Message
	chunks     []AudioChunk
	interrupts []string
}

func (r *Recorder) Message(_ context.Context, m Message) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
	return nil
}

func (r *Recorder) Audio(_ context.Context, c AudioChunk) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c.Data = append([]byte(nil), c.Data...)
	r.chunks = append(r.chunks, c)
	return nil
}

func (r *Recorder) Interrupt(_ context.Context, track string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.interrupts = append(r.interrupts, track)
	return nil
}

func (r *Recorder) Messages() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Message(nil), r.messages...)
}

func (r *Recorder) Chunks() []AudioChunk {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]AudioChunk(nil), r.chunks...)
}

func (r *Recorder) Interrupts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.interrupts...)
}
