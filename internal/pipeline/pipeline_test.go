package pipeline_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhmura/VivoPulse-sub002/internal/dsp"
	"github.com/zhmura/VivoPulse-sub002/internal/pipeline"
	"github.com/zhmura/VivoPulse-sub002/internal/sim"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

type point struct {
	idx int
	val float64
}

// piecewise linearly interpolates between points (sorted by idx) to build a
// signal of length n.
func piecewise(points []point, n int) []float64 {
	x := make([]float64, n)

	for i := 0; i < len(points)-1; i++ {
		a, b := points[i], points[i+1]
		for j := a.idx; j <= b.idx && j < n; j++ {
			frac := float64(j-a.idx) / float64(b.idx-a.idx)
			x[j] = a.val + frac*(b.val-a.val)
		}
	}

	return x
}

// P2: ProcessedSeries mean of face/finger each < 1e-2; std within 1% of 1.0.
func TestProcessProducesZScoredSeries(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.DurationS = 30

	raw := sim.Generate(opts)
	series := pipeline.Process(raw, pipeline.DefaultConfig())

	require.True(t, series.IsValid)
	assert.Equal(t, len(series.TimeMs), len(series.Face))
	assert.Equal(t, len(series.TimeMs), len(series.Finger))

	assert.Less(t, math.Abs(dsp.Mean(series.Face)), 1e-2)
	assert.Less(t, math.Abs(dsp.Mean(series.Finger)), 1e-2)
	assert.InDelta(t, 1.0, dsp.StdDev(series.Face), 0.01)
	assert.InDelta(t, 1.0, dsp.StdDev(series.Finger), 0.01)
}

// DeriveBeatGeometry must find the dicrotic/secondary peak on the descending
// limb after the systolic peak (between the peak and the next beat's foot),
// not on the ascending limb before it.
func TestDeriveBeatGeometryFindsDicroticNotchOnDescendingLimb(t *testing.T) {
	x := piecewise([]point{
		{0, 0},
		{40, -0.2},
		{50, 2.0},  // beat 1 peak
		{90, -0.3},
		{110, 0.5}, // spurious bump on the ASCENDING limb before beat 2's peak
		{130, -0.1},
		{150, 2.0}, // beat 2 peak (under test)
		{165, -0.2},
		{180, 0.8}, // true dicrotic notch on the DESCENDING limb after beat 2
		{200, -0.3},
		{250, 2.0}, // beat 3 peak
		{290, -0.2},
		{300, -0.2},
	}, 301)

	series := types.ProcessedSeries{Face: x, SampleRateHz: 100, IsValid: true}
	facePeaks := []types.PeakInfo{
		{IndexSample: 50, ValueZ: 2.0},
		{IndexSample: 150, ValueZ: 2.0},
		{IndexSample: 250, ValueZ: 2.0},
	}

	beats := pipeline.DeriveBeatGeometry(series, facePeaks)
	require.Len(t, beats, 2)

	// beat 2 (curPeak=150): reflRatio should reflect the 0.8-height notch at
	// index 180, not the 0.5-height bump at index 110 on the upstroke.
	assert.InDelta(t, 0.4286, beats[0].ReflRatio, 0.01)

	// beat 3 (curPeak=250): no following peak to bound the descending-limb
	// search, so reflRatio falls back to 0 rather than searching unbounded.
	assert.Equal(t, 0.0, beats[1].ReflRatio)
}

func TestProcessInvalidOnShortSession(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.DurationS = 2 // below the 5s validity floor

	raw := sim.Generate(opts)
	series := pipeline.Process(raw, pipeline.DefaultConfig())

	assert.False(t, series.IsValid)
	assert.Empty(t, series.Face)
}
