// Package pipeline orchestrates resample -> band-pass -> detrend -> z-score
// for both channels, producing a ProcessedSeries, per SPEC_FULL.md §4.3.
package pipeline

import (
	"github.com/zhmura/VivoPulse-sub002/internal/dsp"
	"github.com/zhmura/VivoPulse-sub002/internal/resample"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Config holds the pipeline's tunables. Zero values fall back to
// SPEC_FULL.md §4.3's defaults in Process.
type Config struct {
	SampleRateHz  float64 // default 100
	BandPass      dsp.BandPassOptions
	MinOverlapS   float64 // default 5 (spec.md §4.3's validity floor)
}

// DefaultConfig returns the physiological-band defaults from spec.md §4.3.
func DefaultConfig() Config {
	return Config{
		SampleRateHz: 100,
		BandPass:     dsp.DefaultBandPassOptions(),
		MinOverlapS:  5,
	}
}

// Process is a pure function: resample -> band-pass -> detrend -> z-score.
// On insufficient overlap or an unstable (near-zero variance) filtered
// signal it returns a ProcessedSeries with IsValid=false rather than an
// error, per spec.md §7's propagation policy.
func Process(raw types.RawSeriesBuffer, cfg Config) types.ProcessedSeries {
	if cfg.SampleRateHz <= 0 {
		cfg.SampleRateHz = 100
	}

	if cfg.MinOverlapS <= 0 {
		cfg.MinOverlapS = 5
	}

	resampled, err := resample.Resample(raw, cfg.SampleRateHz)
	if err != nil {
		return types.ProcessedSeries{IsValid: false}
	}

	overlapS := float64(len(resampled.TimeMs)) / cfg.SampleRateHz
	if overlapS < cfg.MinOverlapS {
		return types.ProcessedSeries{IsValid: false}
	}

	face := finish(resampled.Face, cfg.SampleRateHz, cfg.BandPass)
	finger := finish(resampled.Finger, cfg.SampleRateHz, cfg.BandPass)

	if !isStable(face) || !isStable(finger) {
		return types.ProcessedSeries{IsValid: false}
	}

	return types.ProcessedSeries{
		TimeMs:       resampled.TimeMs,
		Face:         face,
		Finger:       finger,
		SampleRateHz: cfg.SampleRateHz,
		IsValid:      true,
		DriftMsPerS:  resampled.DriftMsPerS,
	}
}

func finish(x []float64, fs float64, bp dsp.BandPassOptions) []float64 {
	filtered := dsp.BandPass(x, fs, bp)
	detrended := dsp.Detrend(filtered)

	return dsp.ZScore(detrended)
}

func isStable(x []float64) bool {
	if len(x) == 0 {
		return false
	}

	return dsp.StdDev(x) > 1e-9
}

// DeriveBeatGeometry computes rise time and reflection ratio per beat from
// the face channel's peak/trough geometry, per SPEC_FULL.md §4.15. facePeaks
// must be sorted by IndexSample.
func DeriveBeatGeometry(series types.ProcessedSeries, facePeaks []types.PeakInfo) []types.RiseReflection {
	if len(facePeaks) < 2 {
		return nil
	}

	out := make([]types.RiseReflection, 0, len(facePeaks)-1)

	for i := 1; i < len(facePeaks); i++ {
		prevPeak := facePeaks[i-1]
		curPeak := facePeaks[i]

		footIdx, footVal := beatFoot(series.Face, prevPeak.IndexSample, curPeak.IndexSample)

		riseSamples := curPeak.IndexSample - footIdx
		riseMs := float64(riseSamples) / series.SampleRateHz * 1000
		if riseMs < 0 {
			riseMs = 0
		}

		reflRatio := 0.0

		if i+1 < len(facePeaks) {
			nextFootIdx, _ := beatFoot(series.Face, curPeak.IndexSample, facePeaks[i+1].IndexSample)

			secondaryVal := secondaryPeak(series.Face, curPeak.IndexSample, nextFootIdx, footVal)

			primaryAmp := curPeak.ValueZ - footVal
			if primaryAmp > 1e-9 && secondaryVal > footVal {
				reflRatio = (secondaryVal - footVal) / primaryAmp
			}
		}

		out = append(out, types.RiseReflection{RiseMs: riseMs, ReflRatio: reflRatio})
	}

	return out
}

// beatFoot finds the local minimum ("foot") of the beat between the
// previous and current peak, searched in the second half of the interval
// (closest to the current peak), matching where a pulse foot sits just
// before the systolic upstroke.
func beatFoot(x []float64, prevIdx, curIdx int) (idx int, val float64) {
	mid := (prevIdx + curIdx) / 2

	best := mid
	bestVal := x[mid]

	for i := mid; i < curIdx; i++ {
		if x[i] < bestVal {
			bestVal = x[i]
			best = i
		}
	}

	return best, bestVal
}

// secondaryPeak finds the highest local maximum strictly between curIdx (the
// beat's systolic peak) and nextFootIdx (the following beat's foot) — the
// descending limb where a dicrotic notch reflection actually appears. Returns
// footVal (i.e. no reflection found) if none qualifies.
func secondaryPeak(x []float64, curIdx, nextFootIdx int, footVal float64) float64 {
	best := footVal

	for i := curIdx + 1; i < nextFootIdx-1; i++ {
		if x[i] > x[i-1] && x[i] > x[i+1] && x[i] > best {
			best = x[i]
		}
	}

	return best
}
