package pitch

import (
	"math"

	"github.com/0xlemi/pitchfinder/internal/audio"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// DefaultSilenceThreshold is the RMS level below which a frame counts as silence.
const DefaultSilenceThreshold = 0.01

// FrameProcessor silence-gates frames and applies a Hann window in place.
type FrameProcessor struct {
	silenceThreshold float64
}

// NewFrameProcessor creates a processor with the given RMS gate. A
// threshold of zero or less selects DefaultSilenceThreshold.
func NewFrameProcessor(silenceThreshold float64) *FrameProcessor {
	if silenceThreshold <= 0 {
		silenceThreshold = DefaultSilenceThreshold
	}
	return &FrameProcessor{silenceThreshold: silenceThreshold}
}

// Process gates frame.Samples, removes their DC offset and windows them in
// place. On error the samples are untouched.
func (p *FrameProcessor) Process(frame *audio.Frame) error {
	if frame.Len() == 0 {
		return ErrEmptyBuffer
	}

	for _, v := range frame.Samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return ErrMalformedFrame
		}
	}

	if RMS(frame.Samples) < p.silenceThreshold {
		return ErrSilence
	}

	// A DC offset correlates at every lag; drop it before windowing
	floats.AddConst(-stat.Mean(frame.Samples, nil), frame.Samples)

	// Symmetric Hann: w[i] = 0.5·(1 − cos(2π·i/(L−1)))
	window.Apply(frame.Samples, window.Hann)
	return nil
}

// RMS calculates the root-mean-square level of samples.
func RMS(samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	return math.Sqrt(floats.Dot(samples, samples) / float64(len(samples)))
}
