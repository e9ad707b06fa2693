package ptt_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/zhmura/VivoPulse-sub002/internal/pipeline"
	"github.com/zhmura/VivoPulse-sub002/internal/ptt"
	"github.com/zhmura/VivoPulse-sub002/internal/sim"
)

// Scenario 1 ("Simulated PTT") from spec.md §8.
func TestComputeSimulatedPtt(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.HrBpm = 72
	opts.PttMs = 120
	opts.NoiseLevel = 0.02
	opts.DurationS = 30

	raw := sim.Generate(opts)
	series := pipeline.Process(raw, pipeline.DefaultConfig())
	require.True(t, series.IsValid)

	result := ptt.Compute(series, 90, 90, ptt.DefaultConfig())

	assert.InDelta(t, 120, result.LagMs, 5)
	assert.GreaterOrEqual(t, result.CorrScore, 0.90)
	assert.LessOrEqual(t, result.StabilitySdMs, 5.0)
}

func TestComputeInsufficientWindowsIsUnknown(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.DurationS = 6 // fewer than 3 full 4s windows

	raw := sim.Generate(opts)
	series := pipeline.Process(raw, pipeline.DefaultConfig())
	require.True(t, series.IsValid)

	result := ptt.Compute(series, 90, 90, ptt.DefaultConfig())

	assert.Equal(t, 0, int(result.Quality))
}

func TestComputeLowConfidenceForcesQualityPoor(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.DurationS = 30

	raw := sim.Generate(opts)
	series := pipeline.Process(raw, pipeline.DefaultConfig())
	require.True(t, series.IsValid)

	// Near-zero channel SQI collapses the confidence formula regardless of
	// correlation quality.
	result := ptt.Compute(series, 5, 5, ptt.DefaultConfig())

	assert.Less(t, result.ConfidencePct, 60.0)
	assert.EqualValues(t, 1, result.Quality) // QualityPoor
}

// P1: across a range of configured lags and noise levels, the recovered lag
// stays close to the configured one.
func TestComputeRecoversConfiguredLagAcrossRange(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		pttMs := rapid.Float64Range(40, 160).Draw(rt, "pttMs")
		noise := rapid.Float64Range(0, 0.05).Draw(rt, "noise")

		opts := sim.DefaultOptions()
		opts.PttMs = pttMs
		opts.NoiseLevel = noise
		opts.DurationS = 30

		raw := sim.Generate(opts)
		series := pipeline.Process(raw, pipeline.DefaultConfig())
		if !series.IsValid {
			return
		}

		result := ptt.Compute(series, 90, 90, ptt.DefaultConfig())
		if result.Quality == 0 {
			return
		}

		assert.InDelta(rt, pttMs, result.LagMs, 15)
	})
}
