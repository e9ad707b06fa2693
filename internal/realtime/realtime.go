// Package realtime runs the live per-frame quality engine: per-channel sample
// slices trimmed to the last BufferS seconds on every append (not a
// fixed-capacity ring buffer), plus a goroutine that turns incoming
// SignalSamples into a quality snapshot, per SPEC_FULL.md §4.8 and §5's
// concurrency model.
package realtime

import (
	"context"
	"math"
	"sync"

	"github.com/zhmura/VivoPulse-sub002/internal/dsp"
	"github.com/zhmura/VivoPulse-sub002/internal/peaks"
	"github.com/zhmura/VivoPulse-sub002/internal/pipeline"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Config holds the realtime engine's tunables.
type Config struct {
	BufferS           float64 // ring buffer depth, default 20
	MinSnrS           float64 // minimum buffered seconds before SNR is reported, default 4
	HrWindowS         float64 // recent window used for the headline HR estimate, default 10
	ChannelCapacity   int     // Push channel depth, default 60 (~2s at 30fps)
	SampleRateHz      float64 // internal resample target, default 30
	SaturationGatePct float64 // default 0.15
	MotionGatePx      float64 // default 1.0
	SnrGateDb         float64 // default 6
	HrMismatchBpm     float64 // default 15
}

// DefaultConfig returns the thresholds from spec.md §4.8.
func DefaultConfig() Config {
	return Config{
		BufferS:           20,
		MinSnrS:           4,
		HrWindowS:         10,
		ChannelCapacity:   60,
		SampleRateHz:      30,
		SaturationGatePct: 0.15,
		MotionGatePx:      1.0,
		SnrGateDb:         6,
		HrMismatchBpm:     15,
	}
}

// Engine ingests SignalSamples on its own goroutine and exposes a
// thread-safe, continuously updated RealTimeQualityState.
type Engine struct {
	cfg Config

	in   chan types.SignalSample
	done chan struct{}
	once sync.Once

	mu    sync.Mutex
	state types.RealTimeQualityState

	face   []types.TimestampedSample
	finger []types.TimestampedSample
}

// NewEngine constructs an Engine. Call Run in its own goroutine to start
// processing, and Push to feed it frames.
func NewEngine(cfg Config) *Engine {
	if cfg.ChannelCapacity == 0 {
		cfg = DefaultConfig()
	}

	return &Engine{
		cfg:  cfg,
		in:   make(chan types.SignalSample, cfg.ChannelCapacity),
		done: make(chan struct{}),
	}
}

// Push enqueues a frame for processing. If the channel is full the oldest
// queued frame is dropped to make room, per spec.md §5's drop-oldest
// overflow policy; Push never blocks the caller.
func (e *Engine) Push(s types.SignalSample) {
	select {
	case e.in <- s:
		return
	default:
	}

	select {
	case <-e.in:
	default:
	}

	select {
	case e.in <- s:
	default:
	}
}

// Run processes queued frames until ctx is cancelled or Close is called. It
// is meant to be started once, in its own goroutine.
func (e *Engine) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-e.done:
			return
		case s := <-e.in:
			e.ingest(s)
		}
	}
}

// Close stops Run. Safe to call more than once.
func (e *Engine) Close() {
	e.once.Do(func() { close(e.done) })
}

// State returns the most recently computed quality snapshot.
func (e *Engine) State() types.RealTimeQualityState {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.state
}

func (e *Engine) ingest(s types.SignalSample) {
	cutoffNs := s.TimestampNs - int64(e.cfg.BufferS*1e9)

	e.face = appendTrimmed(e.face, types.TimestampedSample{TimestampNs: s.TimestampNs, Value: s.FaceMeanLuma}, cutoffNs)
	e.finger = appendTrimmed(e.finger, types.TimestampedSample{TimestampNs: s.TimestampNs, Value: s.FingerMeanLuma}, cutoffNs)

	state := e.computeState(s)

	e.mu.Lock()
	e.state = state
	e.mu.Unlock()
}

func appendTrimmed(buf []types.TimestampedSample, sample types.TimestampedSample, cutoffNs int64) []types.TimestampedSample {
	buf = append(buf, sample)

	start := 0
	for start < len(buf) && buf[start].TimestampNs < cutoffNs {
		start++
	}

	return buf[start:]
}

func (e *Engine) computeState(latest types.SignalSample) types.RealTimeQualityState {
	raw := types.RawSeriesBuffer{Face: e.face, Finger: e.finger}

	cfg := pipeline.Config{
		SampleRateHz: e.cfg.SampleRateHz,
		BandPass:     dsp.DefaultBandPassOptions(),
		MinOverlapS:  e.cfg.MinSnrS,
	}

	series := pipeline.Process(raw, cfg)

	var faceSnr, fingerSnr *float64

	var hrDelta float64

	if series.IsValid {
		snr := dsp.SnrDb(series.Face, series.SampleRateHz, 0.7, 4.0)
		faceSnr = &snr

		snr2 := dsp.SnrDb(series.Finger, series.SampleRateHz, 0.7, 4.0)
		fingerSnr = &snr2

		hrDelta = estimateHrDelta(series, e.cfg.HrWindowS)
	}

	state := types.RealTimeQualityState{
		FaceSnrDb:     faceSnr,
		FingerSnrDb:   fingerSnr,
		MotionRmsPx:   latest.FaceMotionRmsPx,
		SaturationPct: latest.FingerSaturationPct,
		HrDeltaBpm:    hrDelta,
		UpdatedAtMs:   float64(latest.TimestampNs) / 1e6,
	}

	state.Tip = tipFor(state, e.cfg)

	return state
}

// estimateHrDelta compares the heart rate estimated over the most recent
// windowS seconds of the face channel against the same window of the finger
// channel: ΔHR = |HR_face - HR_finger|, per spec.md §4.8.
func estimateHrDelta(series types.ProcessedSeries, windowS float64) float64 {
	recentSamples := int(windowS * series.SampleRateHz)
	if recentSamples > len(series.Face) {
		recentSamples = len(series.Face)
	}

	faceHr := meanHr(peaks.Detect(series.Face[len(series.Face)-recentSamples:], series.SampleRateHz, peaks.DefaultOptions()))
	fingerHr := meanHr(peaks.Detect(series.Finger[len(series.Finger)-recentSamples:], series.SampleRateHz, peaks.DefaultOptions()))

	if faceHr == 0 || fingerHr == 0 {
		return 0
	}

	return math.Abs(faceHr - fingerHr)
}

func meanHr(found []types.PeakInfo) float64 {
	var sum float64

	var count int

	for _, p := range found {
		if p.InstantaneousHrBpm == 0 {
			continue
		}

		sum += p.InstantaneousHrBpm
		count++
	}

	if count == 0 {
		return 0
	}

	return sum / float64(count)
}

// tipFor ranks gating reasons by severity: saturation, then motion, then low
// SNR, then HR instability, falling back to "OK".
func tipFor(state types.RealTimeQualityState, cfg Config) string {
	switch {
	case state.SaturationPct > cfg.SaturationGatePct:
		return "finger saturated, reposition or reduce torch brightness"
	case state.MotionRmsPx > cfg.MotionGatePx:
		return "hold still"
	case state.FaceSnrDb != nil && *state.FaceSnrDb < cfg.SnrGateDb:
		return "face signal weak, improve lighting"
	case state.FingerSnrDb != nil && *state.FingerSnrDb < cfg.SnrGateDb:
		return "finger signal weak, check contact"
	case math.Abs(state.HrDeltaBpm) > cfg.HrMismatchBpm:
		return "heart rate reading unstable"
	default:
		return "OK"
	}
}
