// Package peaks finds local maxima in a band-passed, z-scored PPG signal,
// enforcing physiological minimum-distance and amplitude constraints, per
// SPEC_FULL.md §4.4.
package peaks

import (
	"math"

	"github.com/zhmura/VivoPulse-sub002/internal/dsp"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Options configures the peak detector.
type Options struct {
	KSigma      float64 // amplitude gate: x[i] >= mean + KSigma*std, default 0.3
	RefractoryS float64 // minimum inter-peak distance in seconds, default 0.4 (150 bpm ceiling)
}

// DefaultOptions returns the values from SPEC_FULL.md §4.4.
func DefaultOptions() Options {
	return Options{KSigma: 0.3, RefractoryS: 0.4}
}

// Detect locates peaks in x (sampled at fs Hz) and derives per-peak
// sharpness and instantaneous heart rate.
func Detect(x []float64, fs float64, opts Options) []types.PeakInfo {
	if opts.KSigma == 0 && opts.RefractoryS == 0 {
		opts = DefaultOptions()
	}

	if len(x) < 3 {
		return nil
	}

	mean := dsp.Mean(x)
	std := dsp.StdDev(x)
	threshold := mean + opts.KSigma*std

	refractorySamples := int(math.Round(fs * opts.RefractoryS))
	if refractorySamples < 1 {
		refractorySamples = 1
	}

	var peaks []types.PeakInfo

	lastIdx := -refractorySamples - 1

	for i := 1; i < len(x)-1; i++ {
		if x[i] <= x[i-1] || x[i] <= x[i+1] {
			continue
		}

		if x[i] < threshold {
			continue
		}

		if i-lastIdx < refractorySamples {
			continue
		}

		lastIdx = i

		trough := adjacentTroughMin(x, i, refractorySamples)
		fwhm := fwhmSamples(x, i, trough)

		sharpness := 0.0
		if fwhm > 0 {
			sharpness = (x[i] - trough) / fwhm
		}

		info := types.PeakInfo{
			IndexSample: i,
			TimeMs:      float64(i) / fs * 1000,
			ValueZ:      x[i],
			SharpnessPx: sharpness,
			FwhmMs:      fwhm / fs * 1000,
		}

		if n := len(peaks); n > 0 {
			intervalS := (info.TimeMs - peaks[n-1].TimeMs) / 1000
			if intervalS > 0 {
				info.InstantaneousHrBpm = 60.0 / intervalS
			}
		}

		peaks = append(peaks, info)
	}

	return peaks
}

// adjacentTroughMin returns the lower of the local minima immediately
// preceding and following the peak at idx, searched within one refractory
// window on each side.
func adjacentTroughMin(x []float64, idx, window int) float64 {
	left := idx - window
	if left < 0 {
		left = 0
	}

	right := idx + window
	if right > len(x)-1 {
		right = len(x) - 1
	}

	leftMin := x[idx]
	for i := left; i <= idx; i++ {
		if x[i] < leftMin {
			leftMin = x[i]
		}
	}

	rightMin := x[idx]
	for i := idx; i <= right; i++ {
		if x[i] < rightMin {
			rightMin = x[i]
		}
	}

	if leftMin < rightMin {
		return leftMin
	}

	return rightMin
}

// fwhmSamples returns the full width at half maximum of the peak at idx,
// in samples, using linear interpolation at the half-max crossings for
// sub-sample resolution.
func fwhmSamples(x []float64, idx int, trough float64) float64 {
	halfMax := trough + (x[idx]-trough)/2

	leftCross := float64(idx)

	for i := idx; i > 0; i-- {
		if x[i-1] <= halfMax {
			leftCross = interpCrossing(float64(i-1), x[i-1], float64(i), x[i], halfMax)

			break
		}

		if i == 1 {
			leftCross = 0
		}
	}

	rightCross := float64(idx)

	for i := idx; i < len(x)-1; i++ {
		if x[i+1] <= halfMax {
			rightCross = interpCrossing(float64(i), x[i], float64(i+1), x[i+1], halfMax)

			break
		}

		if i == len(x)-2 {
			rightCross = float64(len(x) - 1)
		}
	}

	return rightCross - leftCross
}

func interpCrossing(x0, y0, x1, y1, target float64) float64 {
	if y1 == y0 {
		return x0
	}

	frac := (target - y0) / (y1 - y0)

	return x0 + frac*(x1-x0)
}
