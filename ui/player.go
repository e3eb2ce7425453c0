package ui

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/codewandler/rtassist/audio"
	"github.com/smallnest/ringbuffer"
)

// Player buffers assistant audio for a local output device. The buffer holds
// resampled pcm16 at the device rate and is cleared on Interrupt so playback
// stops at once.
type Player struct {
	buf    *ringbuffer.RingBuffer
	writer *audio.ResampleWriter
}

// NewPlayer creates a player for a device running at sampleRate that can
// hold capacity of audio.
func NewPlayer(sampleRate int, capacity time.Duration) *Player {
	buf := ringbuffer.New(audio.ChunkSize(sampleRate, capacity, audio.BytesPerSample, 1))
	return &Player{
		buf: buf,
		writer: &audio.ResampleWriter{
			Sink:     buf,
			FromRate: audio.ServiceRate,
			ToRate:   sampleRate,
		},
	}
}

func (p *Player) Message(context.Context, Message) error { return nil }

func (p *Player) Audio(_ context.Context, c AudioChunk) error {
	if c.MimeType != "" && c.MimeType != MimeTypePCM16 {
		return fmt.Errorf("unsupported audio format: %s", c.MimeType)
	}
	if _, err := p.writer.Write(c.Data); err != nil {
		return fmt.Errorf("buffer audio: %w", err)
	}
	return nil
}

func (p *Player) Interrupt(context.Context, string) error {
	p.writer.Reset()
	p.buf.Reset()
	return nil
}

// Buffered is the number of bytes waiting to be played.
func (p *Player) Buffered() int {
	return p.buf.Length()
}

// Read takes up to len(b) bytes of buffered audio. It returns 0, nil when
// nothing is buffered.
func (p *Player) Read(b []byte) (int, error) {
	n, err := p.buf.Read(b)
	if errors.Is(err, ringbuffer.ErrIsEmpty) {
		return n, nil
	}
	return n, err
}
