// Package indicator
package indicator

import "math"

// Valid reports whether a series value is usable (not NaN).
// Leading entries of every rolling indicator are NaN until the window fills.
func Valid(v float64) bool {
	return !math.IsNaN(v)
}

// At returns series[i] and whether it is a usable value.
func At(series []float64, i int) (float64, bool) {
	if i < 0 || i >= len(series) {
		return math.NaN(), false
	}
	return series[i], Valid(series[i])
}

// ValueOr returns series[i], or def when the index is out of range or the
// value is not yet available.
func ValueOr(series []float64, i int, def float64) float64 {
	if v, ok := At(series, i); ok {
		return v
	}
	return def
}

func nanSlice(n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.NaN()
	}
	return out
}

func windowMean(values []float64, end, period int) float64 {
	sum := 0.0
	for i := end - period + 1; i <= end; i++ {
		sum += values[i]
	}
	return sum / float64(period)
}

// windowStd is the sample standard deviation (ddof=1) over the trailing window.
func windowStd(values []float64, end, period int) float64 {
	if period < 2 {
		return math.NaN()
	}
	mean := windowMean(values, end, period)
	var ss float64
	for i := end - period + 1; i <= end; i++ {
		d := values[i] - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(period-1))
}
