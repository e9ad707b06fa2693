package goodsync_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhmura/VivoPulse-sub002/internal/goodsync"
	"github.com/zhmura/VivoPulse-sub002/internal/pipeline"
	"github.com/zhmura/VivoPulse-sub002/internal/sim"
	"github.com/zhmura/VivoPulse-sub002/internal/sqi"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

func cleanSamples(series types.ProcessedSeries) []types.SignalSample {
	samples := make([]types.SignalSample, len(series.TimeMs))
	for i, ms := range series.TimeMs {
		samples[i] = types.SignalSample{
			TimestampNs:         int64(ms * 1e6),
			FaceMotionRmsPx:     0.1,
			FingerSaturationPct: 0.01,
		}
	}

	return samples
}

func TestDetectAdmitsCleanSessionAsOneSegment(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.DurationS = 30
	opts.NoiseLevel = 0.01

	raw := sim.Generate(opts)
	series := pipeline.Process(raw, pipeline.DefaultConfig())
	require.True(t, series.IsValid)

	// The synthetic waveform is a smooth two-harmonic sine, much wider at
	// half-max than a real PPG systolic peak, so the FWHM gate is relaxed
	// here.
	cfg := goodsync.DefaultConfig()
	cfg.MaxFwhmMs = 400

	segments := goodsync.Detect(series, cleanSamples(series), types.ImuTrace{}, sqi.DefaultConfig(), cfg)

	require.NotEmpty(t, segments)

	for _, seg := range segments {
		assert.Greater(t, seg.EndS, seg.StartS)
		assert.GreaterOrEqual(t, int(seg.SqiFace), 60)
		assert.GreaterOrEqual(t, int(seg.SqiFinger), 60)
	}
}

func TestDetectRejectsNoisySession(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.DurationS = 30
	opts.NoiseLevel = 0.01

	raw := sim.Generate(opts)
	series := pipeline.Process(raw, pipeline.DefaultConfig())
	require.True(t, series.IsValid)

	samples := make([]types.SignalSample, len(series.TimeMs))
	for i, ms := range series.TimeMs {
		samples[i] = types.SignalSample{
			TimestampNs:         int64(ms * 1e6),
			FaceMotionRmsPx:     5.0, // well above the 1.0px gate
			FingerSaturationPct: 0.01,
		}
	}

	segments := goodsync.Detect(series, samples, types.ImuTrace{}, sqi.DefaultConfig(), goodsync.DefaultConfig())

	assert.Empty(t, segments)
}
