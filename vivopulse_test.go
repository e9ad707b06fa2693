package vivopulse_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	vivopulse "github.com/zhmura/VivoPulse-sub002"
	"github.com/zhmura/VivoPulse-sub002/internal/sim"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

func TestEngineEndToEndSimulatedSession(t *testing.T) {
	opts := sim.DefaultOptions()
	opts.DurationS = 30

	raw := sim.Generate(opts)

	cfg := vivopulse.DefaultConfig()
	cfg.TrendStorePath = filepath.Join(t.TempDir(), "trend.json")

	engine := vivopulse.NewEngine(cfg)

	ctx := context.Background()

	series, err := engine.Process(ctx, raw)
	require.NoError(t, err)
	require.True(t, series.IsValid)

	facePeaks := engine.DetectFacePeaks(series)
	assert.NotEmpty(t, facePeaks)

	sqiFace, sqiFinger := engine.ScoreChannels(series, 0.1, 0, 0.01, 0)
	assert.Greater(t, int(sqiFace), 0)
	assert.Greater(t, int(sqiFinger), 0)

	pttResult := engine.ComputePTT(ctx, series, sqiFace, sqiFinger)
	assert.InDelta(t, opts.PttMs, pttResult.LagMs, 15)

	beats := engine.DeriveBeatGeometry(series, facePeaks)
	assert.NotEmpty(t, beats)

	combinedSqi := (float64(sqiFace) + float64(sqiFinger)) / 2
	entry := types.VascularTrendEntry{PttMs: pttResult.LagMs, RiseMs: beats[0].RiseMs, ReflRatio: beats[0].ReflRatio}

	summary, err := engine.RecordVascularTrend(entry, pttResult.Quality != types.QualityUnknown, pttResult.ConfidencePct, combinedSqi)
	require.NoError(t, err)
	assert.Nil(t, summary) // first session: no baseline yet
}

func TestEngineProcessRespectsCancellation(t *testing.T) {
	engine := vivopulse.NewEngine(vivopulse.DefaultConfig())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := engine.Process(ctx, types.RawSeriesBuffer{})
	assert.Error(t, err)
}

func TestRecordVascularTrendWithoutStoreConfiguredErrors(t *testing.T) {
	engine := vivopulse.NewEngine(vivopulse.DefaultConfig())

	_, err := engine.RecordVascularTrend(types.VascularTrendEntry{}, true, 90, 90)
	assert.Error(t, err)
}
