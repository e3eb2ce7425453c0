package ui

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console prints messages as "author> content" lines. Audio is ignored.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

func (c *Console) Message(_ context.Context, m Message) error {
	author := m.Author
	if author == "" {
		author = string(m.Role)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	_, err := fmt.Fprintf(c.w, "%s> %s\n", author, strings.TrimRight(m.Content, "\n"))
	return err
}

func (c *Console) Audio(context.Context, AudioChunk) error { return nil }

func (c *Console) Interrupt(context.Context, string) error { return nil }
