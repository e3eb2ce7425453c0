// Package audio has the PCM16 helpers used on both sides of a session:
// chunking microphone input into latency-sized frames and resampling between
// the service rate and the local device rate.
package audio

import (
	"errors"
	"fmt"
	"io"
	"time"
)

const (
	// ServiceRate is the sample rate of pcm16 audio exchanged with the
	// realtime service.
	ServiceRate = 24_000

	BytesPerSample = 2
)

// FixedChunkReader emits reads of exactly chunkSize bytes, except for the
// last one before EOF.
type FixedChunkReader struct {
	r         io.Reader
	chunkSize int
	eof       bool
}

func NewFixedChunkReader(r io.Reader, chunkSize int) *FixedChunkReader {
	return &FixedChunkReader{r: r, chunkSize: chunkSize}
}

// ChunkSize is the number of bytes covering d of audio.
func ChunkSize(sampleRate int, d time.Duration, bytesPerSample int, channels int) int {
	frames := int(float64(sampleRate) * d.Seconds())
	return frames * bytesPerSample * channels
}

// NewMonoChunkReader chunks mono pcm16 read from r into frames of latency.
func NewMonoChunkReader(r io.Reader, sampleRate int, latency time.Duration) *FixedChunkReader {
	return NewFixedChunkReader(r, ChunkSize(sampleRate, latency, BytesPerSample, 1))
}

func (f *FixedChunkReader) ChunkSize() int {
	return f.chunkSize
}

func (f *FixedChunkReader) Read(p []byte) (int, error) {
	if len(p) < f.chunkSize {
		return 0, fmt.Errorf("read buffer of %d bytes is smaller than chunk size %d", len(p), f.chunkSize)
	}
	if f.eof {
		return 0, io.EOF
	}

	n, err := io.ReadFull(f.r, p[:f.chunkSize])
	switch {
	case err == nil:
		return n, nil
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		f.eof = true
		if n == 0 {
			return 0, io.EOF
		}
		return n, nil
	default:
		return n, err
	}
}
