// Package goodsync detects time spans where both channels are simultaneously
// clean enough to trust a PTT reading, per SPEC_FULL.md §4.7.
package goodsync

import (
	"github.com/zhmura/VivoPulse-sub002/internal/dsp"
	"github.com/zhmura/VivoPulse-sub002/internal/peaks"
	"github.com/zhmura/VivoPulse-sub002/internal/ptt"
	"github.com/zhmura/VivoPulse-sub002/internal/sqi"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Config holds the good-sync detector's gating thresholds, centralized per
// spec.md §9's calibration-constant note.
type Config struct {
	WindowS       float64 // default 6
	OverlapFrac   float64 // default 0.5
	MaxLagMs      float64 // default 500, cross-correlation search range
	MinSqi        float64 // default 60
	MaxMotionPx   float64 // default 1.0
	MaxSaturation float64 // default 0.15 (fraction)
	MinCorr       float64 // default 0.80
	MaxFwhmMs     float64 // default 120
}

// DefaultConfig returns the thresholds from spec.md §4.7.
func DefaultConfig() Config {
	return Config{
		WindowS:       6,
		OverlapFrac:   0.5,
		MaxLagMs:      500,
		MinSqi:        60,
		MaxMotionPx:   1.0,
		MaxSaturation: 0.15,
		MinCorr:       0.80,
		MaxFwhmMs:     120,
	}
}

type window struct {
	startIdx, endIdx int
	admitted         bool
	faceSqi          types.ChannelSqi
	fingerSqi        types.ChannelSqi
}

// Detect scans series in overlapping windows, scores each against the
// quality gates, merges adjacent admitted windows, and returns one
// ExportSegment per merged span with a locally recomputed PTT.
func Detect(series types.ProcessedSeries, samples []types.SignalSample, imu types.ImuTrace, sqiCfg sqi.Config, cfg Config) []types.ExportSegment {
	if !series.IsValid || series.SampleRateHz <= 0 {
		return nil
	}

	windowSamples := int(cfg.WindowS * series.SampleRateHz)
	if windowSamples < 2 {
		return nil
	}

	step := int(float64(windowSamples) * (1 - cfg.OverlapFrac))
	if step < 1 {
		step = 1
	}

	maxLag := int(cfg.MaxLagMs / 1000 * series.SampleRateHz)

	var windows []window

	for start := 0; start+windowSamples <= len(series.Face); start += step {
		end := start + windowSamples
		windows = append(windows, scoreWindow(series, samples, imu, sqiCfg, cfg, maxLag, start, end))
	}

	return mergeSegments(series, samples, imu, sqiCfg, cfg, maxLag, windows)
}

func scoreWindow(series types.ProcessedSeries, samples []types.SignalSample, imu types.ImuTrace, sqiCfg sqi.Config, cfg Config, maxLag, start, end int) window {
	faceWin := series.Face[start:end]
	fingerWin := series.Finger[start:end]

	startMs := series.TimeMs[start]
	endMs := series.TimeMs[end-1]

	avgMotion, avgSaturation, avgImu := averageAuxiliary(samples, imu, startMs, endMs)

	faceSnr := dsp.SnrDb(faceWin, series.SampleRateHz, 0.7, 4.0)
	fingerSnr := dsp.SnrDb(fingerWin, series.SampleRateHz, 0.7, 4.0)

	faceSqi := sqi.Face(faceSnr, avgMotion, avgImu, sqiCfg)
	fingerSqi := sqi.Finger(fingerSnr, avgSaturation, avgImu, sqiCfg)

	corr, _ := correlate(faceWin, fingerWin, maxLag, series.SampleRateHz)
	meanFwhm := meanFaceFwhmMs(faceWin, series.SampleRateHz)

	admitted := float64(faceSqi) >= cfg.MinSqi &&
		float64(fingerSqi) >= cfg.MinSqi &&
		avgMotion <= cfg.MaxMotionPx &&
		avgSaturation <= cfg.MaxSaturation &&
		corr >= cfg.MinCorr &&
		meanFwhm <= cfg.MaxFwhmMs

	return window{startIdx: start, endIdx: end, admitted: admitted, faceSqi: faceSqi, fingerSqi: fingerSqi}
}

// mergeSegments collapses consecutive admitted windows into contiguous spans
// and recomputes PTT over each span's full extent.
func mergeSegments(series types.ProcessedSeries, samples []types.SignalSample, imu types.ImuTrace, sqiCfg sqi.Config, cfg Config, maxLag int, windows []window) []types.ExportSegment {
	var segments []types.ExportSegment

	i := 0
	for i < len(windows) {
		if !windows[i].admitted {
			i++
			continue
		}

		j := i
		for j+1 < len(windows) && windows[j+1].admitted {
			j++
		}

		segments = append(segments, buildSegment(series, samples, imu, sqiCfg, cfg, maxLag, windows[i:j+1]))

		i = j + 1
	}

	return segments
}

func buildSegment(series types.ProcessedSeries, samples []types.SignalSample, imu types.ImuTrace, sqiCfg sqi.Config, cfg Config, maxLag int, span []window) types.ExportSegment {
	startIdx := span[0].startIdx
	endIdx := span[len(span)-1].endIdx

	faceWin := series.Face[startIdx:endIdx]
	fingerWin := series.Finger[startIdx:endIdx]

	startMs := series.TimeMs[startIdx]
	endMs := series.TimeMs[endIdx-1]

	avgMotion, avgSaturation, avgImu := averageAuxiliary(samples, imu, startMs, endMs)

	faceSnr := dsp.SnrDb(faceWin, series.SampleRateHz, 0.7, 4.0)
	fingerSnr := dsp.SnrDb(fingerWin, series.SampleRateHz, 0.7, 4.0)

	faceSqi := sqi.Face(faceSnr, avgMotion, avgImu, sqiCfg)
	fingerSqi := sqi.Finger(fingerSnr, avgSaturation, avgImu, sqiCfg)

	corr, lagMs := correlate(faceWin, fingerWin, maxLag, series.SampleRateHz)
	sharpness := meanFaceSharpness(faceWin, series.SampleRateHz)

	pttCfg := ptt.DefaultConfig()
	confidence := 100 * pttCfg.W1 * (float64(faceSqi) / 100) * pttCfg.W2 * (float64(fingerSqi) / 100) *
		clip01((corr-0.5)/0.4) * clip01(sharpness/0.2)

	result := types.PttResult{
		LagMs:         lagMs,
		CorrScore:     corr,
		ConfidencePct: confidence,
		Quality:       ptt.QualityFor(confidence, pttCfg),
	}

	return types.ExportSegment{
		StartS:    startMs / 1000,
		EndS:      endMs / 1000,
		Ptt:       result,
		Corr:      corr,
		SqiFace:   faceSqi,
		SqiFinger: fingerSqi,
	}
}

func correlate(face, finger []float64, maxLag int, fs float64) (corr, lagMs float64) {
	if maxLag < 1 || len(face) <= 2*maxLag {
		return 0, 0
	}

	result := dsp.CrossCorrelate(face, finger, maxLag)
	if len(result.Corr) == 0 {
		return 0, 0
	}

	idx := dsp.ArgMax(result.Corr)
	lagSamples := float64(result.Lags[idx])

	if offset, ok := dsp.ParabolicRefine(result.Corr, idx); ok {
		lagSamples += offset
	}

	return result.Corr[idx], lagSamples / fs * 1000
}

func meanFaceFwhmMs(face []float64, fs float64) float64 {
	found := peaks.Detect(face, fs, peaks.DefaultOptions())
	if len(found) == 0 {
		return 1e9 // no detected beat: fails the FWHM gate
	}

	var sum float64
	for _, p := range found {
		sum += p.FwhmMs
	}

	return sum / float64(len(found))
}

func meanFaceSharpness(face []float64, fs float64) float64 {
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

func averageAuxiliary(samples []types.SignalSample, imu types.ImuTrace, startMs, endMs float64) (motionPx, saturation, imuG float64) {
	startNs := int64(startMs * 1e6)
	endNs := int64(endMs * 1e6)

	var motionSum, satSum float64
	var count int

	for _, s := range samples {
		if s.TimestampNs < startNs || s.TimestampNs > endNs {
			continue
		}

		motionSum += s.FaceMotionRmsPx
		satSum += s.FingerSaturationPct
		count++
	}

	if count > 0 {
		motionPx = motionSum / float64(count)
		saturation = satSum / float64(count)
	}

	var imuSum float64
	var imuCount int

	for i, ts := range imu.TimestampsNs {
		if ts < startNs || ts > endNs {
			continue
		}

		imuSum += imu.AccelRmsG[i]
		imuCount++
	}

	if imuCount > 0 {
		imuG = imuSum / float64(imuCount)
	}

	return motionPx, saturation, imuG
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
