package pitch

import (
	"errors"

	"github.com/0xlemi/pitchfinder/internal/audio"
)

// Errors. All of them mean "no candidate for this frame".
var (
	ErrEmptyBuffer      = errors.New("empty audio buffer")
	ErrSilence          = errors.New("volume below threshold")
	ErrMalformedFrame   = errors.New("frame contains non-finite samples")
	ErrNoPitch          = errors.New("no periodic signal in range")
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// Detector runs the per-frame half of the pipeline: gate, window, estimate.
type Detector struct {
	processor *FrameProcessor
	estimator *Estimator
}

// NewDetector creates a detector from a silence gate and estimator settings.
func NewDetector(silenceThreshold float64, cfg EstimatorConfig) *Detector {
	return &Detector{
		processor: NewFrameProcessor(silenceThreshold),
		estimator: NewEstimator(cfg),
	}
}

// DetectPitch analyzes a frame and returns its pitch candidate.
// The frame's samples are windowed in place.
func (d *Detector) DetectPitch(frame *audio.Frame) (Candidate, error) {
	if err := d.processor.Process(frame); err != nil {
		return Candidate{}, err
	}
	return d.estimator.Estimate(frame.Samples, frame.SampleRate)
}
