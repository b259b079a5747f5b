package pitch

import (
	"math"
	"sync"

	"github.com/mjibson/go-dsp/window"
)

// Estimator defaults.
const (
	DefaultMinFrequency = 80.0
	DefaultMaxFrequency = 1500.0
	DefaultThreshold    = 0.3
	DefaultPeakRatio    = 0.9
)

// Candidate is a per-frame pitch estimate.
type Candidate struct {
	Frequency   float64 // Hz
	Correlation float64 // 0-1
}

// EstimatorConfig tunes the autocorrelation search.
type EstimatorConfig struct {
	MinFrequency float64 // lowest detectable pitch (Hz)
	MaxFrequency float64 // highest detectable pitch (Hz)
	Threshold    float64 // correlation a peak must exceed

	// PeakRatio picks the first correlation peak within this fraction of the
	// strongest one. 1 selects the strongest peak outright.
	PeakRatio float64
}

// DefaultEstimatorConfig covers ~80-1500 Hz, voice and most strings.
func DefaultEstimatorConfig() EstimatorConfig {
	return EstimatorConfig{
		MinFrequency: DefaultMinFrequency,
		MaxFrequency: DefaultMaxFrequency,
		Threshold:    DefaultThreshold,
		PeakRatio:    DefaultPeakRatio,
	}
}

// Estimator finds the dominant period of a windowed frame by normalized
// autocorrelation.
//
// The Hann window makes c(lag) of a periodic signal decay with lag, which
// lets short lags outscore the true period of low notes. Each value is
// therefore divided by the same correlation of the window itself (Boersma,
// 1993) before peaks are compared.
type Estimator struct {
	cfg EstimatorConfig

	mu          sync.Mutex
	windowCorrs map[int][]float64 // frame length -> c_w(lag) for lag in [0, L-1]
}

// NewEstimator creates an estimator. Zero fields fall back to defaults.
func NewEstimator(cfg EstimatorConfig) *Estimator {
	def := DefaultEstimatorConfig()
	if cfg.MinFrequency <= 0 {
		cfg.MinFrequency = def.MinFrequency
	}
	if cfg.MaxFrequency <= 0 {
		cfg.MaxFrequency = def.MaxFrequency
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	if cfg.PeakRatio <= 0 || cfg.PeakRatio > 1 {
		cfg.PeakRatio = def.PeakRatio
	}
	return &Estimator{
		cfg:         cfg,
		windowCorrs: make(map[int][]float64),
	}
}

// LagRange returns the half-open lag search range [minLag, maxLag) for a
// sample rate and frame length.
func (e *Estimator) LagRange(sampleRate, frameLen int) (minLag, maxLag int) {
	fs := float64(sampleRate)
	minLag = int(math.Floor(fs / e.cfg.MaxFrequency))
	maxLag = int(math.Floor(fs / e.cfg.MinFrequency))
	if minLag < 1 {
		minLag = 1
	}
	// keep maxLag itself addressable as a neighbour
	if maxLag > frameLen-1 {
		maxLag = frameLen - 1
	}
	return minLag, maxLag
}

// Estimate returns the pitch candidate of a windowed frame, or ErrNoPitch
// when no periodicity strong enough lies inside the frequency band.
func (e *Estimator) Estimate(samples []float64, sampleRate int) (Candidate, error) {
	if len(samples) == 0 {
		return Candidate{}, ErrEmptyBuffer
	}
	if sampleRate <= 0 {
		return Candidate{}, ErrNoPitch
	}

	minLag, maxLag := e.LagRange(sampleRate, len(samples))
	if minLag >= maxLag {
		return Candidate{}, ErrNoPitch
	}

	// Neighbours on both sides are needed for peak tests and refinement
	lo, hi := minLag-1, maxLag
	corr := normalizedAutocorrelation(samples, lo, hi)
	wcorr := e.windowCorrelation(len(samples))
	for k := range corr {
		if w := wcorr[lo+k]; w > 1e-9 {
			corr[k] /= w
		} else {
			corr[k] = 0
		}
	}
	at := func(lag int) float64 { return corr[lag-lo] }

	var peaks []int
	best := math.Inf(-1)
	for lag := minLag; lag < maxLag; lag++ {
		v := at(lag)
		if v > at(lag-1) && v >= at(lag+1) {
			peaks = append(peaks, lag)
			if v > best {
				best = v
			}
		}
	}
	if len(peaks) == 0 || best <= e.cfg.Threshold {
		return Candidate{}, ErrNoPitch
	}

	lag := peaks[0]
	for _, p := range peaks {
		if at(p) >= e.cfg.PeakRatio*best {
			lag = p
			break
		}
	}
	if at(lag) <= e.cfg.Threshold {
		return Candidate{}, ErrNoPitch
	}

	fs := float64(sampleRate)
	if f := fs / float64(lag); f < e.cfg.MinFrequency || f > e.cfg.MaxFrequency {
		return Candidate{}, ErrNoPitch
	}

	frequency := fs / (float64(lag) + parabolicOffset(at(lag-1), at(lag), at(lag+1)))
	frequency = math.Max(e.cfg.MinFrequency, math.Min(e.cfg.MaxFrequency, frequency))

	return Candidate{
		Frequency:   frequency,
		Correlation: math.Max(0, math.Min(1, at(lag))),
	}, nil
}

// windowCorrelation returns the cached normalized autocorrelation of a Hann
// window of length n.
func (e *Estimator) windowCorrelation(n int) []float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	if c, ok := e.windowCorrs[n]; ok {
		return c
	}
	c := normalizedAutocorrelation(window.Hann(n), 0, n-1)
	e.windowCorrs[n] = c
	return c
}

// parabolicOffset fits a parabola through three equally spaced points and
// returns the vertex offset from the middle one, limited to half a sample.
func parabolicOffset(left, center, right float64) float64 {
	den := left - 2*center + right
	if den == 0 {
		return 0
	}
	delta := 0.5 * (left - right) / den
	if delta < -0.5 {
		delta = -0.5
	} else if delta > 0.5 {
		delta = 0.5
	}
	return delta
}
