package audio

import (
	"context"
	"errors"
	"fmt"
	"math/bits"
)

// ErrNoFrame is returned by Stream.NextFrame when no new frame is buffered yet.
// It is not a failure; the caller should simply try again on its next tick.
var ErrNoFrame = errors.New("audio: no frame available")

// Frame represents one block of mono time-domain samples in [-1, 1].
type Frame struct {
	Samples    []float64
	SampleRate int
}

// Len returns the number of samples in the frame.
func (f *Frame) Len() int {
	if f == nil {
		return 0
	}
	return len(f.Samples)
}

// Config describes the stream a Source should open.
type Config struct {
	SampleRate int
	FrameSize  int // samples per frame, power of two
	Channels   int // input channels, down-mixed to mono
	Device     string

	// Amplification scales incoming samples before they reach the detector.
	Amplification float64

	// Capture hints. Sources that cannot honour them ignore them.
	EchoCancellation bool
	NoiseSuppression bool
	AutoGainControl  bool
}

// DefaultConfig returns the capture settings used when nothing else is configured.
func DefaultConfig() Config {
	return Config{
		SampleRate:       44100,
		FrameSize:        2048,
		Channels:         1,
		Amplification:    1.0,
		EchoCancellation: true,
		NoiseSuppression: true,
		AutoGainControl:  true,
	}
}

// Validate reports whether the config can be opened by any source.
func (c Config) Validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("audio: sample rate must be positive, got %d", c.SampleRate)
	}
	if c.FrameSize <= 0 || bits.OnesCount(uint(c.FrameSize)) != 1 {
		return fmt.Errorf("audio: frame size must be a power of two, got %d", c.FrameSize)
	}
	if c.Channels <= 0 {
		return fmt.Errorf("audio: channel count must be positive, got %d", c.Channels)
	}
	return nil
}

// Source opens audio streams.
type Source interface {
	// Open acquires the underlying device or file and returns a running stream.
	// Failures are reported as *Error.
	Open(ctx context.Context, cfg Config) (Stream, error)
}

// Stream hands out buffered frames until it is closed.
type Stream interface {
	// NextFrame returns the next frame, ErrNoFrame when none is ready yet,
	// or io.EOF when the input is exhausted.
	NextFrame() (*Frame, error)

	// Close releases the underlying resource. It is safe to call more than once.
	Close() error
}

// downmix averages interleaved channels into mono and applies gain.
func downmix(dst []float64, in []float32, channels int, gain float64) {
	if channels <= 1 {
		for i := range dst {
			dst[i] = float64(in[i]) * gain
		}
		return
	}

	for i := range dst {
		sum := 0.0
		for ch := 0; ch < channels; ch++ {
			sum += float64(in[i*channels+ch])
		}
		dst[i] = (sum / float64(channels)) * gain
	}
}
