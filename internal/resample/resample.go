// Package resample converts two independently clocked, irregularly
// timestamped sample streams onto a common uniform time grid, estimating
// and reporting the clock drift between them, per SPEC_FULL.md §4.2.
package resample

import (
	"fmt"

	"github.com/zhmura/VivoPulse-sub002/internal/fault"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Result is the uniformly sampled output of the resampler, before band-pass
// filtering or z-scoring.
type Result struct {
	TimeMs       []float64
	Face         []float64
	Finger       []float64
	SampleRateHz float64
	DriftMsPerS  float64
}

// minOverlapS is the minimum usable overlap window; shorter windows fail
// with ErrInsufficientData (spec.md §4.2's INSUFFICIENT_OVERLAP).
const minOverlapS = 2.0

// Resample builds a uniform grid at fsOut Hz spanning the overlapping time
// range of raw.Face and raw.Finger, linearly interpolating each channel
// onto it, and estimates the finger-relative-to-face clock drift.
func Resample(raw types.RawSeriesBuffer, fsOut float64) (Result, error) {
	if len(raw.Face) < 2 || len(raw.Finger) < 2 {
		return Result{}, fmt.Errorf("%w: need at least 2 samples per channel", fault.ErrInsufficientData)
	}

	if fsOut <= 0 {
		fsOut = 100
	}

	t0Ns := maxInt64(raw.Face[0].TimestampNs, raw.Finger[0].TimestampNs)
	t1Ns := minInt64(raw.Face[len(raw.Face)-1].TimestampNs, raw.Finger[len(raw.Finger)-1].TimestampNs)

	overlapS := float64(t1Ns-t0Ns) / 1e9
	if overlapS < minOverlapS {
		return Result{}, fmt.Errorf("%w: overlap %.2fs < %.2fs", fault.ErrInsufficientData, overlapS, minOverlapS)
	}

	driftMsPerS := estimateDrift(raw.Face, raw.Finger)

	step := 1.0 / fsOut

	nPoints := int(overlapS/step) + 1
	timeMs := make([]float64, nPoints)
	grid := make([]float64, nPoints)

	t0S := float64(t0Ns) / 1e9
	for i := range grid {
		tS := t0S + float64(i)*step
		grid[i] = tS
		timeMs[i] = (tS - t0S) * 1000
	}

	return Result{
		TimeMs:       timeMs,
		Face:         interpolate(raw.Face, grid),
		Finger:       interpolate(raw.Finger, grid),
		SampleRateHz: fsOut,
		DriftMsPerS:  driftMsPerS,
	}, nil
}

// estimateDrift regresses each channel's timestamps against its sample
// index to get an average inter-sample interval, then reports the
// finger-relative-to-face clock rate difference as ms drift per elapsed
// second, per SPEC_FULL.md §4.2.
func estimateDrift(face, finger []types.TimestampedSample) float64 {
	faceSlope := regressIntervalS(face)
	fingerSlope := regressIntervalS(finger)

	if faceSlope <= 0 {
		return 0
	}

	return (fingerSlope - faceSlope) / faceSlope * 1000
}

// regressIntervalS fits timestamp (seconds) = a + b*index via least squares
// and returns b, the average inter-sample interval in seconds.
func regressIntervalS(samples []types.TimestampedSample) float64 {
	n := len(samples)
	if n < 2 {
		return 0
	}

	var sumI, sumT, sumII, sumIT float64

	for i, s := range samples {
		fi := float64(i)
		tS := float64(s.TimestampNs) / 1e9

		sumI += fi
		sumT += tS
		sumII += fi * fi
		sumIT += fi * tS
	}

	fn := float64(n)
	denom := fn*sumII - sumI*sumI

	if denom == 0 {
		return 0
	}

	return (fn*sumIT - sumI*sumT) / denom
}

// interpolate linearly interpolates samples (sorted, non-decreasing
// timestamps) onto gridS (seconds, sorted, within the samples' time range).
func interpolate(samples []types.TimestampedSample, gridS []float64) []float64 {
	out := make([]float64, len(gridS))

	j := 0

	for i, tS := range gridS {
		tNs := int64(tS * 1e9)

		for j < len(samples)-2 && float64(samples[j+1].TimestampNs) <= tS*1e9 {
			j++
		}

		left := samples[j]
		right := samples[minInt(j+1, len(samples)-1)]

		if right.TimestampNs == left.TimestampNs {
			out[i] = left.Value

			continue
		}

		frac := float64(tNs-left.TimestampNs) / float64(right.TimestampNs-left.TimestampNs)
		if frac < 0 {
			frac = 0
		}

		if frac > 1 {
			frac = 1
		}

		out[i] = left.Value + frac*(right.Value-left.Value)
	}

	return out
}

func maxInt64(a, b int64) int64 {
	if a > b {
		return a
	}

	return b
}

func minInt64(a, b int64) int64 {
	if a < b {
		return a
	}

	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}

	return b
}
