package pitch

import (
	"slices"
	"testing"
)

func TestHistory(t *testing.T) {
	t.Parallel()

	h := NewHistory(5)
	if h.Len() != 0 || h.Cap() != 5 || h.Full() {
		t.Fatalf("new history: len %d cap %d full %v", h.Len(), h.Cap(), h.Full())
	}

	for i := 1; i <= 3; i++ {
		h.Push(float64(i))
	}
	if got := h.Values(); !slices.Equal(got, []float64{1, 2, 3}) {
		t.Errorf("Values() = %v", got)
	}

	for i := 4; i <= 7; i++ {
		h.Push(float64(i))
	}
	if !h.Full() {
		t.Error("history should be full")
	}
	if got := h.Values(); !slices.Equal(got, []float64{3, 4, 5, 6, 7}) {
		t.Errorf("Values() = %v, want oldest evicted", got)
	}

	h.Clear()
	if h.Len() != 0 || len(h.Values()) != 0 {
		t.Errorf("after Clear: len %d", h.Len())
	}
	h.Push(9)
	if got := h.Values(); !slices.Equal(got, []float64{9}) {
		t.Errorf("Values() after Clear = %v", got)
	}
}

func TestNewHistoryMinimumCapacity(t *testing.T) {
	t.Parallel()

	h := NewHistory(0)
	h.Push(1)
	h.Push(2)
	if got := h.Values(); !slices.Equal(got, []float64{2}) {
		t.Errorf("Values() = %v", got)
	}
}

func TestStabilityFilter(t *testing.T) {
	t.Parallel()

	observe := func(s *StabilityFilter, f float64) (float64, bool) {
		return s.Observe(Candidate{Frequency: f, Correlation: 0.9})
	}

	t.Run("fills before promoting", func(t *testing.T) {
		s := NewStabilityFilter(DefaultHistorySize, DefaultStabilityTolerance)
		for i := 1; i < DefaultHistorySize; i++ {
			if _, ok := observe(s, 440); ok {
				t.Fatalf("stable after %d candidates", i)
			}
		}
		got, ok := observe(s, 440)
		if !ok || got != 440 {
			t.Fatalf("Observe = %v, %v; want 440, true", got, ok)
		}
	})

	t.Run("outlier holds until flushed", func(t *testing.T) {
		s := NewStabilityFilter(DefaultHistorySize, DefaultStabilityTolerance)
		for range 4 {
			observe(s, 440)
		}
		if _, ok := observe(s, 460); ok {
			t.Fatal("outlier promoted")
		}
		// the outlier stays in the window for four more candidates
		for i := range 4 {
			if _, ok := observe(s, 440); ok {
				t.Fatalf("promoted with outlier in history at step %d", i)
			}
		}
		if got, ok := observe(s, 440); !ok || got != 440 {
			t.Fatalf("Observe = %v, %v; want 440, true", got, ok)
		}
	})

	t.Run("tolerance is inclusive", func(t *testing.T) {
		s := NewStabilityFilter(DefaultHistorySize, DefaultStabilityTolerance)
		var (
			got float64
			ok  bool
		)
		for _, f := range []float64{437, 443, 440, 440, 440} {
			got, ok = observe(s, f)
		}
		if !ok || got != 440 {
			t.Fatalf("Observe = %v, %v; want 440, true", got, ok)
		}
	})

	t.Run("beyond tolerance", func(t *testing.T) {
		s := NewStabilityFilter(DefaultHistorySize, DefaultStabilityTolerance)
		var ok bool
		for _, f := range []float64{440, 440, 440, 440, 445} {
			_, ok = observe(s, f)
		}
		if ok {
			t.Fatal("445 is 4 Hz from the mean of 441")
		}
	})

	t.Run("reset", func(t *testing.T) {
		s := NewStabilityFilter(DefaultHistorySize, DefaultStabilityTolerance)
		for range 3 {
			observe(s, 440)
		}
		s.Reset()
		if s.Len() != 0 {
			t.Fatalf("Len() = %d after Reset", s.Len())
		}
		for range 4 {
			if _, ok := observe(s, 440); ok {
				t.Fatal("promoted before history refilled")
			}
		}
	})
}
