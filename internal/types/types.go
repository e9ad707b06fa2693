// Package types holds the plain value structs shared by every analyzer
// package. No behavior lives here, only the data model from SPEC_FULL.md §3.
package types

// TimestampedSample is one raw luma reading from a single channel (face or
// finger). Timestamps must be strictly non-decreasing within a channel.
type TimestampedSample struct {
	TimestampNs int64
	Value       float64
}

// RawSeriesBuffer is the per-session input to the engine: two ordered,
// independently clocked luma streams.
type RawSeriesBuffer struct {
	Face   []TimestampedSample
	Finger []TimestampedSample
}

// ProcessedSeries is the uniformly sampled, band-passed, z-scored output of
// the signal pipeline. All three slices share the same length and grid.
type ProcessedSeries struct {
	TimeMs       []float64
	Face         []float64
	Finger       []float64
	SampleRateHz float64
	IsValid      bool
	DriftMsPerS  float64 // finger-relative-to-face clock drift estimate
}

// Quality labels a PttResult's overall confidence bucket.
type Quality int

const (
	QualityUnknown Quality = iota
	QualityPoor
	QualityFair
	QualityGood
	QualityExcellent
)

// Rank orders qualities worst-to-best for threshold comparisons (e.g.
// capping a quality at FAIR without lowering one already below it).
func (q Quality) Rank() int {
	return int(q)
}

func (q Quality) String() string {
	switch q {
	case QualityExcellent:
		return "EXCELLENT"
	case QualityGood:
		return "GOOD"
	case QualityFair:
		return "FAIR"
	case QualityPoor:
		return "POOR"
	case QualityUnknown:
		return "UNKNOWN"
	}

	return "UNKNOWN"
}

// PttResult is the pulse transit time estimate between finger and face.
type PttResult struct {
	LagMs         float64
	CorrScore     float64
	StabilitySdMs float64
	ConfidencePct float64
	Quality       Quality
}

// ChannelSqi is a 0-100 signal quality index for one channel.
type ChannelSqi int

// ClampSqi converts v to a ChannelSqi bounded to [0, 100].
func ClampSqi(v float64) ChannelSqi {
	if v < 0 {
		return 0
	}

	if v > 100 {
		return 100
	}

	return ChannelSqi(v)
}

// SignalSample is the realtime wire type fed to the realtime quality engine,
// one per capture frame.
type SignalSample struct {
	TimestampNs         int64
	FaceMeanLuma        float64
	FingerMeanLuma      float64
	FaceMotionRmsPx     float64
	FingerSaturationPct float64
	TorchEnabled        bool
}

// ImuTrace is an optional IMU accelerometer-RMS trace aligned to the same
// clock as the luma streams.
type ImuTrace struct {
	TimestampsNs []int64
	AccelRmsG    []float64
}

// RealTimeQualityState is the live-updating quality snapshot the realtime
// engine exposes. SNR fields are pointers: nil until enough buffer has
// accumulated to compute them.
type RealTimeQualityState struct {
	FaceSnrDb      *float64
	FingerSnrDb    *float64
	MotionRmsPx    float64
	SaturationPct  float64
	HrDeltaBpm     float64
	Tip            string
	UpdatedAtMs    float64
}

// ExportSegment is a detected good-sync time window.
type ExportSegment struct {
	StartS    float64
	EndS      float64
	Ptt       PttResult
	Corr      float64
	SqiFace   ChannelSqi
	SqiFinger ChannelSqi
}

// VascularTrendEntry is one accepted session measurement appended to the
// rolling trend window.
type VascularTrendEntry struct {
	TimestampMs int64
	PttMs       float64
	RiseMs      float64
	ReflRatio   float64
}

// VascularTrendSummary is the per-session longitudinal comparison against
// baseline, returned only once enough history has accumulated.
type VascularTrendSummary struct {
	Index     int
	DeltaPtt  float64
	DeltaRise float64
	DeltaRefl float64
}

// PeakInfo describes one detected pulse peak in a ProcessedSeries.
type PeakInfo struct {
	IndexSample        int
	TimeMs             float64
	ValueZ             float64
	SharpnessPx        float64
	FwhmMs             float64
	InstantaneousHrBpm float64 // 0 for the first peak (no preceding interval)
}

// RiseReflection is the per-beat rise time / reflection ratio pair derived
// from a channel's peak/trough geometry, consumed by the vascular trend
// store.
type RiseReflection struct {
	RiseMs    float64
	ReflRatio float64
}
