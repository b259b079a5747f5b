package pitch

import (
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stability defaults.
const (
	DefaultHistorySize        = 5
	DefaultStabilityTolerance = 3.0 // Hz
)

// History is a bounded FIFO of recent candidate frequencies.
// The pointer marks the oldest element, i.e. the next one to be overwritten.
type History struct {
	values  []float64
	pointer int
	count   int
}

// NewHistory creates a history holding at most capacity values.
func NewHistory(capacity int) *History {
	if capacity < 1 {
		capacity = 1
	}
	return &History{values: make([]float64, capacity)}
}

// Push appends f, evicting the oldest value when full.
func (h *History) Push(f float64) {
	n := len(h.values)
	if h.count < n {
		h.values[(h.pointer+h.count)%n] = f
		h.count++
		return
	}
	h.values[h.pointer] = f
	h.pointer = (h.pointer + 1) % n
}

// Len returns the number of stored values.
func (h *History) Len() int { return h.count }

// Cap returns the capacity.
func (h *History) Cap() int { return len(h.values) }

// Full reports whether Len equals Cap.
func (h *History) Full() bool { return h.count == len(h.values) }

// Values returns the stored values, oldest first.
func (h *History) Values() []float64 {
	out := make([]float64, h.count)
	for i := range out {
		out[i] = h.values[(h.pointer+i)%len(h.values)]
	}
	return out
}

// Clear drops every value.
func (h *History) Clear() {
	h.pointer = 0
	h.count = 0
}

// StabilityFilter promotes a reading once the last N candidates agree.
type StabilityFilter struct {
	history   *History
	tolerance float64
}

// NewStabilityFilter creates a filter over size candidates that must all lie
// within tolerance Hz of their mean. A tolerance of zero or less selects
// DefaultStabilityTolerance.
func NewStabilityFilter(size int, tolerance float64) *StabilityFilter {
	if tolerance <= 0 {
		tolerance = DefaultStabilityTolerance
	}
	return &StabilityFilter{
		history:   NewHistory(size),
		tolerance: tolerance,
	}
}

// Observe records a candidate. It returns the mean frequency and true when
// the history is full and every value is within tolerance of that mean.
func (s *StabilityFilter) Observe(c Candidate) (float64, bool) {
	s.history.Push(c.Frequency)
	if !s.history.Full() {
		return 0, false
	}

	values := s.history.Values()
	avg := stat.Mean(values, nil)
	for _, v := range values {
		if math.Abs(v-avg) > s.tolerance {
			return 0, false
		}
	}
	return avg, true
}

// Reset clears the history.
func (s *StabilityFilter) Reset() {
	s.history.Clear()
}

// Len returns how many candidates are buffered.
func (s *StabilityFilter) Len() int {
	return s.history.Len()
}
