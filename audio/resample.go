package audio

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/faiface/beep"
)

// PCMStreamer streams little-endian mono pcm16 as a stereo beep.Streamer.
type PCMStreamer struct {
	pcm []byte
	pos int
}

func NewPCMStreamer(b []byte) *PCMStreamer {
	return &PCMStreamer{pcm: b[:len(b)&^1]}
}

func (s *PCMStreamer) Stream(samples [][2]float64) (n int, ok bool) {
	for n < len(samples) && s.pos < len(s.pcm) {
		v := float64(int16(binary.LittleEndian.Uint16(s.pcm[s.pos:]))) / 32768.0
		samples[n] = [2]float64{v, v}
		s.pos += BytesPerSample
		n++
	}
	return n, n > 0
}

func (s *PCMStreamer) Err() error { return nil }

// ResamplePCM converts mono pcm16 between sample rates.
func ResamplePCM(pcmData []byte, fromRate, toRate int) ([]byte, error) {
	if fromRate == toRate {
		return append([]byte(nil), pcmData...), nil
	}
	if fromRate <= 0 || toRate <= 0 {
		return nil, fmt.Errorf("invalid sample rates %d -> %d", fromRate, toRate)
	}

	resampler := beep.Resample(3, beep.SampleRate(fromRate), beep.SampleRate(toRate), NewPCMStreamer(pcmData))

	expected := len(pcmData) / BytesPerSample * toRate / fromRate
	out := make([]byte, 0, (expected+1)*BytesPerSample)
	frame := make([][2]float64, 512)
	for {
		n, ok := resampler.Stream(frame)
		for _, s := range frame[:n] {
			out = binary.LittleEndian.AppendUint16(out, uint16(toInt16((s[0]+s[1])/2)))
		}
		if !ok {
			return out, nil
		}
	}
}

func toInt16(v float64) int16 {
	return int16(max(-1, min(1, v)) * 32767)
}

// ResampleWriter resamples everything written to it before passing it on to
// Sink. An odd trailing byte is held back until the next write.
type ResampleWriter struct {
	Sink     io.Writer
	FromRate int
	ToRate   int

	mu   sync.Mutex
	tail []byte
}

func (w *ResampleWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	data := p
	if len(w.tail) > 0 {
		data = append(w.tail, p...)
		w.tail = nil
	}
	if len(data)%2 == 1 {
		w.tail = []byte{data[len(data)-1]}
		data = data[:len(data)-1]
	}
	if len(data) == 0 {
		return len(p), nil
	}

	out, err := ResamplePCM(data, w.FromRate, w.ToRate)
	if err != nil {
		return 0, err
	}
	if _, err := w.Sink.Write(out); err != nil {
		return 0, err
	}
	return len(p), nil
}

// Reset drops a held back byte.
func (w *ResampleWriter) Reset() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.tail = nil
}
