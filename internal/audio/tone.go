package audio

import (
	"context"
	"fmt"
	"math"
	"sync"
)

// ToneSource synthesizes a steady sine wave. It is useful for demos and as a
// deterministic input in tests.
type ToneSource struct {
	Frequency float64 // Hz
	Amplitude float64 // peak, 0-1
}

// NewToneSource creates a sine generator.
func NewToneSource(frequency, amplitude float64) *ToneSource {
	return &ToneSource{Frequency: frequency, Amplitude: amplitude}
}

// Open starts a phase-continuous generator using cfg's rate and frame size.
func (s *ToneSource) Open(ctx context.Context, cfg Config) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, Wrap(StreamInitFailed, "open", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, Wrap(StreamInitFailed, "open", err)
	}
	if s.Frequency <= 0 || s.Frequency >= float64(cfg.SampleRate)/2 {
		return nil, Errorf(StreamInitFailed, "open", "tone frequency %.2f Hz outside (0, %d)", s.Frequency, cfg.SampleRate/2)
	}

	return &toneStream{
		frequency:  s.Frequency,
		amplitude:  s.Amplitude,
		sampleRate: cfg.SampleRate,
		frameSize:  cfg.FrameSize,
	}, nil
}

type toneStream struct {
	mu         sync.Mutex
	frequency  float64
	amplitude  float64
	sampleRate int
	frameSize  int
	n          int64 // samples emitted so far
	closed     bool
}

func (s *toneStream) NextFrame() (*Frame, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, Wrap(DeviceUnavailable, "read", errStreamClosed)
	}

	frame := &Frame{
		Samples:    Sine(s.frequency, s.amplitude, s.sampleRate, s.frameSize, s.n),
		SampleRate: s.sampleRate,
	}
	s.n += int64(s.frameSize)
	return frame, nil
}

func (s *toneStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Sine returns size samples of a sine wave starting at sample index offset.
func Sine(frequency, amplitude float64, sampleRate, size int, offset int64) []float64 {
	out := make([]float64, size)
	w := 2 * math.Pi * frequency / float64(sampleRate)
	for i := range out {
		out[i] = amplitude * math.Sin(w*float64(offset+int64(i)))
	}
	return out
}

func (s *ToneSource) String() string {
	return fmt.Sprintf("tone %.2f Hz", s.Frequency)
}
