// Package vivopulse turns dual-channel PPG luma streams into cardiovascular
// indicators: heart rate, pulse transit time, channel signal quality, good-
// sync export windows, and a longitudinal vascular trend index.
//
// Usage:
//
//	cfg := vivopulse.DefaultConfig()
//	engine := vivopulse.NewEngine(cfg)
//
//	series, err := engine.Process(ctx, raw)
//	if err != nil {
//	    return err
//	}
//
//	sqiFace, sqiFinger := engine.ScoreChannels(series, motionPx, 0, saturationPct, 0)
//	result := engine.ComputePTT(ctx, series, sqiFace, sqiFinger)
//	segments := engine.DetectGoodSync(series, samples, imu)
package vivopulse

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/zhmura/VivoPulse-sub002/internal/dsp"
	"github.com/zhmura/VivoPulse-sub002/internal/fault"
	"github.com/zhmura/VivoPulse-sub002/internal/goodsync"
	"github.com/zhmura/VivoPulse-sub002/internal/peaks"
	"github.com/zhmura/VivoPulse-sub002/internal/pipeline"
	"github.com/zhmura/VivoPulse-sub002/internal/ptt"
	"github.com/zhmura/VivoPulse-sub002/internal/sqi"
	"github.com/zhmura/VivoPulse-sub002/internal/trend"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Config aggregates every sub-package's tunables into one immutable record,
// threaded explicitly into NewEngine rather than held as mutable package
// state.
type Config struct {
	Pipeline pipeline.Config
	Peaks    peaks.Options
	Sqi      sqi.Config
	Ptt      ptt.Config
	GoodSync goodsync.Config
	Trend    trend.Config

	// TrendStorePath is where the vascular trend history is persisted. Empty
	// disables trend tracking: RecordVascularTrend always returns an error.
	TrendStorePath string
}

// DefaultConfig returns every sub-package's documented defaults.
func DefaultConfig() Config {
	return Config{
		Pipeline: pipeline.DefaultConfig(),
		Peaks:    peaks.DefaultOptions(),
		Sqi:      sqi.DefaultConfig(),
		Ptt:      ptt.DefaultConfig(),
		GoodSync: goodsync.DefaultConfig(),
		Trend:    trend.DefaultConfig(),
	}
}

// Engine is the entry point for batch (non-realtime) session analysis. It
// holds no mutable state beyond its trend store, which is internally
// synchronized.
type Engine struct {
	cfg   Config
	trend *trend.Store
}

// NewEngine builds an Engine from cfg. If cfg.TrendStorePath is set, a
// trend.Store is opened against it.
func NewEngine(cfg Config) *Engine {
	e := &Engine{cfg: cfg}

	if cfg.TrendStorePath != "" {
		e.trend = trend.NewStore(cfg.TrendStorePath, cfg.Trend)
	}

	return e
}

// Process runs the signal pipeline (resample, band-pass, detrend, z-score)
// over raw, checking ctx for cancellation before and after the pipeline run.
// A non-finite sample value returns fault.ErrInvalidInput. Insufficient
// overlap or an unstable filtered signal is not an error: the returned
// series simply has IsValid=false.
func (e *Engine) Process(ctx context.Context, raw types.RawSeriesBuffer) (types.ProcessedSeries, error) {
	if err := ctx.Err(); err != nil {
		return types.ProcessedSeries{}, fmt.Errorf("%w: %s", fault.ErrCancelled, err)
	}

	for _, channel := range [][]types.TimestampedSample{raw.Face, raw.Finger} {
		for _, s := range channel {
			if math.IsNaN(s.Value) || math.IsInf(s.Value, 0) {
				return types.ProcessedSeries{}, fmt.Errorf("%w: non-finite sample at %d ns", fault.ErrInvalidInput, s.TimestampNs)
			}
		}
	}

	series := pipeline.Process(raw, e.cfg.Pipeline)

	if err := ctx.Err(); err != nil {
		return types.ProcessedSeries{}, fmt.Errorf("%w: %s", fault.ErrCancelled, err)
	}

	if !series.IsValid {
		slog.Warn("signal pipeline produced an invalid series", "samples_face", len(raw.Face), "samples_finger", len(raw.Finger))
	}

	return series, nil
}

// DetectFacePeaks runs the peak detector over series' face channel.
func (e *Engine) DetectFacePeaks(series types.ProcessedSeries) []types.PeakInfo {
	if !series.IsValid {
		return nil
	}

	return peaks.Detect(series.Face, series.SampleRateHz, e.cfg.Peaks)
}

// ScoreChannels computes face and finger channel SQI from their SNR
// (derived from series directly), plus externally measured motion,
// saturation and IMU inputs.
func (e *Engine) ScoreChannels(series types.ProcessedSeries, motionPx, faceImuG, saturationPct, fingerImuG float64) (face, finger types.ChannelSqi) {
	faceSnr := dsp.SnrDb(series.Face, series.SampleRateHz, 0.7, 4.0)
	fingerSnr := dsp.SnrDb(series.Finger, series.SampleRateHz, 0.7, 4.0)

	face = sqi.Face(faceSnr, motionPx, faceImuG, e.cfg.Sqi)
	finger = sqi.Finger(fingerSnr, saturationPct, fingerImuG, e.cfg.Sqi)

	return face, finger
}

// ComputePTT estimates pulse transit time between face and finger channels.
func (e *Engine) ComputePTT(ctx context.Context, series types.ProcessedSeries, sqiFace, sqiFinger types.ChannelSqi) types.PttResult {
	if ctx.Err() != nil || !series.IsValid {
		return types.PttResult{Quality: types.QualityUnknown}
	}

	return ptt.Compute(series, sqiFace, sqiFinger, e.cfg.Ptt)
}

// DetectGoodSync finds merged time spans where both channels clear the
// good-sync quality gates, each with a locally recomputed PTT.
func (e *Engine) DetectGoodSync(series types.ProcessedSeries, samples []types.SignalSample, imu types.ImuTrace) []types.ExportSegment {
	if !series.IsValid {
		return nil
	}

	return goodsync.Detect(series, samples, imu, e.cfg.Sqi, e.cfg.GoodSync)
}

// DeriveBeatGeometry computes per-beat rise time and reflection ratio from
// the face channel's peak geometry, feeding RecordVascularTrend.
func (e *Engine) DeriveBeatGeometry(series types.ProcessedSeries, facePeaks []types.PeakInfo) []types.RiseReflection {
	return pipeline.DeriveBeatGeometry(series, facePeaks)
}

// RecordVascularTrend appends entry to the persisted trend history (if it
// clears the confidence/SQI floors) and returns a baseline-comparison
// summary once enough history has accumulated. Returns fault.ErrInvalidInput
// if no trend store path was configured.
func (e *Engine) RecordVascularTrend(entry types.VascularTrendEntry, pttValid bool, confidence, combinedSqi float64) (*types.VascularTrendSummary, error) {
	if e.trend == nil {
		return nil, fmt.Errorf("%w: no trend store configured", fault.ErrInvalidInput)
	}

	// Persistence failures are logged and swallowed inside the trend store
	// itself; MaybeRecordAndSummarize never returns a persistence error.
	return e.trend.MaybeRecordAndSummarize(entry, pttValid, confidence, combinedSqi)
}
