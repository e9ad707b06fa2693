// Package ptt computes pulse transit time between the finger and face
// channels via sliding-window cross-correlation, per SPEC_FULL.md §4.6.
package ptt

import (
	"math"
	"sort"

	"github.com/zhmura/VivoPulse-sub002/internal/dsp"
	"github.com/zhmura/VivoPulse-sub002/internal/peaks"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Config holds the PTT calculator's tunables, kept in one place per
// spec.md §9's calibration-constant note.
type Config struct {
	WindowS             float64 // default 4
	MaxLagMs            float64 // default 500
	MinWindows          int     // default 3
	ConfidenceThreshold float64 // default 60; below this quality is forced to Poor
	W1, W2              float64 // SQI weights, default 1 each
	PhysiologicalLoMs   float64 // default 50
	PhysiologicalHiMs   float64 // default 150
}

// DefaultConfig returns the values from SPEC_FULL.md §4.6.
func DefaultConfig() Config {
	return Config{
		WindowS:             4,
		MaxLagMs:            500,
		MinWindows:          3,
		ConfidenceThreshold: 60,
		W1:                  1,
		W2:                  1,
		PhysiologicalLoMs:   50,
		PhysiologicalHiMs:   150,
	}
}

type windowResult struct {
	lagMs     float64
	corr      float64
	sharpness float64
}

// Compute returns the PTT estimate for series, using sqiFace/sqiFinger (0-100)
// as confidence inputs.
func Compute(series types.ProcessedSeries, sqiFace, sqiFinger types.ChannelSqi, cfg Config) types.PttResult {
	if cfg.MinWindows == 0 {
		cfg = DefaultConfig()
	}

	if !series.IsValid || series.SampleRateHz <= 0 {
		return types.PttResult{Quality: types.QualityUnknown}
	}

	windowSamples := int(cfg.WindowS * series.SampleRateHz)
	if windowSamples < 2 {
		return types.PttResult{Quality: types.QualityUnknown}
	}

	numWindows := len(series.Face) / windowSamples
	if numWindows < cfg.MinWindows {
		return types.PttResult{Quality: types.QualityUnknown}
	}

	maxLagSamples := int(cfg.MaxLagMs / 1000 * series.SampleRateHz)

	results := make([]windowResult, 0, numWindows)

	for w := 0; w < numWindows; w++ {
		start := w * windowSamples
		end := start + windowSamples

		faceWin := series.Face[start:end]
		fingerWin := series.Finger[start:end]

		lagMs, corr, ok := correlateWindow(faceWin, fingerWin, series.SampleRateHz, maxLagSamples)
		if !ok {
			continue
		}

		sharpness := meanPeakSharpness(faceWin, series.SampleRateHz)

		results = append(results, windowResult{lagMs: lagMs, corr: corr, sharpness: sharpness})
	}

	if len(results) < cfg.MinWindows {
		return types.PttResult{Quality: types.QualityUnknown}
	}

	lags := make([]float64, len(results))
	corrs := make([]float64, len(results))
	sharpSum := 0.0

	for i, r := range results {
		lags[i] = r.lagMs
		corrs[i] = r.corr
		sharpSum += r.sharpness
	}

	lagMs := median(lags)
	corrScore := median(corrs)
	stabilitySd := dsp.StdDev(lags)
	meanSharpness := sharpSum / float64(len(results))

	confidence := 100 * cfg.W1 * (float64(sqiFace) / 100) * cfg.W2 * (float64(sqiFinger) / 100) *
		clip01((corrScore-0.5)/0.4) * clip01(meanSharpness/0.2)

	quality := qualityFor(confidence, cfg)

	if allOutsidePhysiologicalRange(lags, cfg) && quality.Rank() > types.QualityFair.Rank() {
		quality = types.QualityFair
	}

	return types.PttResult{
		LagMs:         lagMs,
		CorrScore:     corrScore,
		StabilitySdMs: stabilitySd,
		ConfidencePct: confidence,
		Quality:       quality,
	}
}

func correlateWindow(face, finger []float64, fs float64, maxLag int) (lagMs, corr float64, ok bool) {
	if maxLag < 1 || len(face) <= 2*maxLag {
		return 0, 0, false
	}

	result := dsp.CrossCorrelate(face, finger, maxLag)
	if len(result.Corr) == 0 {
		return 0, 0, false
	}

	idx := dsp.ArgMax(result.Corr)
	lagSamples := float64(result.Lags[idx])

	if offset, refined := dsp.ParabolicRefine(result.Corr, idx); refined {
		lagSamples += offset
	}

	return lagSamples / fs * 1000, result.Corr[idx], true
}

func meanPeakSharpness(face []float64, fs float64) float64 {
	found := peaks.Detect(face, fs, peaks.DefaultOptions())
	if len(found) == 0 {
		return 0
	}

	var sum float64
	for _, p := range found {
		sum += p.SharpnessPx
	}

	return sum / float64(len(found))
}

func median(x []float64) float64 {
	n := len(x)
	if n == 0 {
		return 0
	}

	sorted := make([]float64, n)
	copy(sorted, x)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })

	if n%2 == 1 {
		return sorted[n/2]
	}

	return (sorted[n/2-1] + sorted[n/2]) / 2
}

func clip01(v float64) float64 {
	if v < 0 {
		return 0
	}

	if v > 1 {
		return 1
	}

	return v
}

// QualityFor labels a confidence percentage per the same threshold ladder
// Compute uses, exported so other detectors (good-sync) can score a locally
// recomputed confidence consistently.
func QualityFor(confidence float64, cfg Config) types.Quality {
	return qualityFor(confidence, cfg)
}

func qualityFor(confidence float64, cfg Config) types.Quality {
	if confidence < cfg.ConfidenceThreshold {
		return types.QualityPoor
	}

	switch {
	case confidence >= 85:
		return types.QualityExcellent
	case confidence >= 70:
		return types.QualityGood
	case confidence >= 60:
		return types.QualityFair
	default:
		return types.QualityPoor
	}
}

func allOutsidePhysiologicalRange(lags []float64, cfg Config) bool {
	for _, l := range lags {
		abs := math.Abs(l)
		if abs >= cfg.PhysiologicalLoMs && abs <= cfg.PhysiologicalHiMs {
			return false
		}
	}

	return true
}
