package ui

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestTrackGuard(t *testing.T) {
	ctx := context.Background()
	rec := &Recorder{}
	var dropped []AudioChunk
	g := NewTrackGuard(rec, "t1", OnAudio(func(c AudioChunk, forwarded bool) {
		if !forwarded {
			dropped = append(dropped, c)
		}
	}))

	require.NoError(t, g.Audio(ctx, AudioChunk{Track: "t1", Data: []byte{1}}))
	require.NoError(t, g.Interrupt(ctx, "t2"))
	require.NoError(t, g.Audio(ctx, AudioChunk{Track: "t1", Data: []byte{2}}))
	require.NoError(t, g.Audio(ctx, AudioChunk{Track: "t2", Data: []byte{3}}))

	chunks := rec.Chunks()
	require.Len(t, chunks, 2)
	require.Equal(t, []byte{1}, chunks[0].Data)
	require.Equal(t, []byte{3}, chunks[1].Data)
	require.Len(t, dropped, 1)
	require.Equal(t, []string{"t2"}, rec.Interrupts())
	require.Equal(t, "t2", g.Track())
}

type failingSink struct{ Recorder }

func (f *failingSink) Message(ctx context.Context, m Message) error {
	_ = f.Recorder.Message(ctx, m)
	return errors.New("closed")
}

func TestTee(t *testing.T) {
	a := &failingSink{}
	b := &Recorder{}
	s := Tee(a, b)

	err := s.Message(context.Background(), Message{Content: "hi"})
	require.Error(t, err)
	require.Len(t, a.Messages(), 1)
	require.Len(t, b.Messages(), 1)

	require.NoError(t, s.Interrupt(context.Background(), "t"))
	require.Equal(t, []string{"t"}, b.Interrupts())
}

func TestConsole(t *testing.T) {
	var out bytes.Buffer
	c := NewConsole(&out)

	require.NoError(t, c.Message(context.Background(), Message{Role: RoleAssistant, Author: AuthorAssistant, Content: "Hi, how can I help you?\n"}))
	require.NoError(t, c.Message(context.Background(), Message{Role: RoleUser, Content: "hello"}))
	require.Equal(t, "Assistant> Hi, how can I help you?\nuser> hello\n", out.String())
}

func TestPlayer(t *testing.T) {
	ctx := context.Background()
	p := NewPlayer(24_000, time.Second)

	require.NoError(t, p.Audio(ctx, AudioChunk{MimeType: MimeTypePCM16, Data: []byte{1, 0, 2, 0}}))
	require.Equal(t, 4, p.Buffered())

	b := make([]byte, 2)
	n, err := p.Read(b)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []byte{1, 0}, b)

	require.NoError(t, p.Interrupt(ctx, "next"))
	require.Equal(t, 0, p.Buffered())

	n, err = p.Read(b)
	require.NoError(t, err)
	require.Equal(t, 0, n)

	require.Error(t, p.Audio(ctx, AudioChunk{MimeType: "mp3", Data: []byte{1}}))
}
