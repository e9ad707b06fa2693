package dsp

import "math"

// Mean returns the arithmetic mean of x, or 0 for an empty slice.
func Mean(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}

	var sum float64
	for _, v := range x {
		sum += v
	}

	return sum / float64(len(x))
}

// StdDev returns the sample standard deviation of x (ddof=1), or 0 for
// slices shorter than 2.
func StdDev(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}

	mean := Mean(x)

	var sumSq float64
	for _, v := range x {
		d := v - mean
		sumSq += d * d
	}

	return math.Sqrt(sumSq / float64(len(x)-1))
}

// ZScore subtracts the mean and divides by the sample standard deviation.
// When std is effectively zero (< 1e-9) it returns an all-zero slice rather
// than dividing by it, per SPEC_FULL.md §4.1.
func ZScore(x []float64) []float64 {
	out := make([]float64, len(x))

	std := StdDev(x)
	if std < 1e-9 {
		return out
	}

	mean := Mean(x)
	for i, v := range x {
		out[i] = (v - mean) / std
	}

	return out
}
