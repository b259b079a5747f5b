package pitch

import (
	"math/cmplx"

	"github.com/mjibson/go-dsp/fft"
)

// normalizedAutocorrelation returns
//
//	c(lag) = 2·Σ x[i]·x[i+lag] / Σ (x[i]² + x[i+lag]²),  i ∈ [0, len(x)-lag)
//
// for every lag in [lo, hi]; out[k] holds c(lo+k). A zero denominator yields 0.
// hi must be smaller than len(x).
//
// The lagged products come from one zero-padded FFT (Wiener-Khinchin), the
// energies from prefix sums, so the cost is O(n log n) instead of O(n·lags).
func normalizedAutocorrelation(x []float64, lo, hi int) []float64 {
	n := len(x)
	out := make([]float64, hi-lo+1)
	if n == 0 {
		return out
	}

	// Pad to at least 2n so the circular correlation does not wrap
	size := nextPowerOfTwo(2 * n)
	padded := make([]float64, size)
	copy(padded, x)

	spectrum := fft.FFTReal(padded)
	for i, v := range spectrum {
		spectrum[i] = v * cmplx.Conj(v)
	}
	products := fft.IFFT(spectrum)

	// energy[k] = Σ x[i]² for i < k
	energy := make([]float64, n+1)
	for i, v := range x {
		energy[i+1] = energy[i] + v*v
	}

	for lag := lo; lag <= hi; lag++ {
		den := energy[n-lag] + (energy[n] - energy[lag])
		if den <= 0 {
			continue
		}
		out[lag-lo] = 2 * real(products[lag]) / den
	}
	return out
}

func nextPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}
