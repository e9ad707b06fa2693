// Package output builds the engine's two export surfaces: a flattened JSON
// map (mirroring the teacher's result-to-map convention) and typed CSV rows
// for the raw/filtered trace, per SPEC_FULL.md §4.16.
package output

import (
	"encoding/json"
	"fmt"

	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Row is one sample of the per-session CSV export: time_ms, raw_value,
// filtered_value, is_peak, phase_tag.
type Row struct {
	TimeMs        float64
	RawValue      float64
	FilteredValue float64
	IsPeak        bool
	PhaseTag      string
}

// Phase tag values. "peak" marks the detected systolic peak sample itself;
// "rise" marks the second half of each gap between two consecutive peaks;
// "decay" marks everything else (the first half of each gap and the samples
// before the first or after the last peak).
const (
	PhaseRise  = "rise"
	PhasePeak  = "peak"
	PhaseDecay = "decay"
)

// BuildExportRows zips a raw (pre-filter, resampled) trace against its
// filtered counterpart and annotates each sample with peak/phase metadata
// from facePeaks, which must be sorted by IndexSample.
func BuildExportRows(timeMs, raw, filtered []float64, facePeaks []types.PeakInfo) []Row {
	n := len(timeMs)
	if len(raw) < n {
		n = len(raw)
	}

	if len(filtered) < n {
		n = len(filtered)
	}

	rows := make([]Row, n)

	peakIdx := make(map[int]bool, len(facePeaks))
	for _, p := range facePeaks {
		peakIdx[p.IndexSample] = true
	}

	for i := 0; i < n; i++ {
		rows[i] = Row{
			TimeMs:        timeMs[i],
			RawValue:      raw[i],
			FilteredValue: filtered[i],
			IsPeak:        peakIdx[i],
			PhaseTag:      phaseTagFor(i, facePeaks),
		}
	}

	return rows
}

func phaseTagFor(i int, facePeaks []types.PeakInfo) string {
	for _, p := range facePeaks {
		if i == p.IndexSample {
			return PhasePeak
		}
	}

	// Find the nearest peak at or after i; if i falls in the back half of
	// the gap since the previous peak, call it rise, otherwise decay.
	var prevIdx, nextIdx int = -1, -1

	for _, p := range facePeaks {
		if p.IndexSample < i {
			prevIdx = p.IndexSample
		}

		if p.IndexSample > i && nextIdx == -1 {
			nextIdx = p.IndexSample
		}
	}

	switch {
	case prevIdx == -1:
		return PhaseDecay
	case nextIdx == -1:
		return PhaseDecay
	default:
		mid := (prevIdx + nextIdx) / 2
		if i >= mid {
			return PhaseRise
		}

		return PhaseDecay
	}
}

// ResultToMap flattens a session's results into the canonical map used for
// JSON serialization, following the teacher's result-to-map convention:
// nil-guarded optional sections of primitive fields, plus a "biomarkers"
// entry holding the []BiomarkerVariant panel.
func ResultToMap(series types.ProcessedSeries, pttResult types.PttResult, sqiFace, sqiFinger types.ChannelSqi, segments []types.ExportSegment, trendSummary *types.VascularTrendSummary) map[string]any {
	out := map[string]any{
		"sample_rate_hz": series.SampleRateHz,
		"is_valid":       series.IsValid,
		"drift_ms_per_s": series.DriftMsPerS,
		"ptt": map[string]any{
			"lag_ms":          pttResult.LagMs,
			"corr_score":      pttResult.CorrScore,
			"stability_sd_ms": pttResult.StabilitySdMs,
			"confidence_pct":  pttResult.ConfidencePct,
			"quality":         pttResult.Quality.String(),
		},
		"sqi": map[string]any{
			"face":   int(sqiFace),
			"finger": int(sqiFinger),
		},
	}

	if len(segments) > 0 {
		rows := make([]any, 0, len(segments))
		for _, seg := range segments {
			rows = append(rows, map[string]any{
				"start_s":    seg.StartS,
				"end_s":      seg.EndS,
				"corr":       seg.Corr,
				"sqi_face":   int(seg.SqiFace),
				"sqi_finger": int(seg.SqiFinger),
				"ptt": map[string]any{
					"lag_ms":         seg.Ptt.LagMs,
					"confidence_pct": seg.Ptt.ConfidencePct,
					"quality":        seg.Ptt.Quality.String(),
				},
			})
		}

		out["good_sync_segments"] = rows
	}

	if trendSummary != nil {
		out["vascular_trend"] = map[string]any{
			"index":      trendSummary.Index,
			"delta_ptt":  trendSummary.DeltaPtt,
			"delta_rise": trendSummary.DeltaRise,
			"delta_refl": trendSummary.DeltaRefl,
		}
	}

	out["biomarkers"] = biomarkerPanel(pttResult, trendSummary)

	return out
}

// biomarkerPanel assembles the session's forward-compatible biomarker panel:
// one BiomarkerVariant per derived indicator, so a future analyzer's
// additions round-trip through UnknownVariant on older decoders instead of
// breaking the session JSON's shape.
func biomarkerPanel(pttResult types.PttResult, trendSummary *types.VascularTrendSummary) []BiomarkerVariant {
	panel := []BiomarkerVariant{
		{Kind: VariantPtt, Ptt: &PttVariant{LagMs: pttResult.LagMs, ConfidencePct: pttResult.ConfidencePct}},
	}

	if trendSummary != nil {
		panel = append(panel, BiomarkerVariant{Kind: VariantVascularIndex, VascularIndex: &VascularIndexVariant{Index: trendSummary.Index}})
	}

	return panel
}

// VariantKind tags a BiomarkerVariant's concrete payload.
type VariantKind int

const (
	VariantUnknown VariantKind = iota
	VariantPtt
	VariantVascularIndex
)

// BiomarkerVariant is a forward-compatible sum type for exported biomarker
// extras, replacing a loosely typed string-keyed map so new biomarker kinds
// can be added without breaking existing decoders, per SPEC_FULL.md §4.17.
type BiomarkerVariant struct {
	Kind           VariantKind
	Ptt            *PttVariant
	VascularIndex  *VascularIndexVariant
	Unknown        *UnknownVariant
}

// PttVariant carries a PTT reading as a biomarker extra.
type PttVariant struct {
	LagMs         float64
	ConfidencePct float64
}

// VascularIndexVariant carries a vascular trend index as a biomarker extra.
type VascularIndexVariant struct {
	Index int
}

// UnknownVariant preserves an unrecognized biomarker payload verbatim so
// decoders built against an older schema version don't lose data.
type UnknownVariant struct {
	Label string
	Raw   json.RawMessage
}

// MarshalJSON renders the variant as {"kind": "...", ...fields}.
func (b BiomarkerVariant) MarshalJSON() ([]byte, error) {
	switch b.Kind {
	case VariantPtt:
		return json.Marshal(map[string]any{
			"kind":           "ptt",
			"lag_ms":         b.Ptt.LagMs,
			"confidence_pct": b.Ptt.ConfidencePct,
		})
	case VariantVascularIndex:
		return json.Marshal(map[string]any{
			"kind":  "vascular_index",
			"index": b.VascularIndex.Index,
		})
	case VariantUnknown:
		return json.Marshal(map[string]any{
			"kind":  b.Unknown.Label,
			"raw":   b.Unknown.Raw,
		})
	default:
		return nil, fmt.Errorf("biomarker variant: unrecognized kind %d", b.Kind)
	}
}

// UnmarshalJSON decodes a variant, routing unrecognized "kind" values to
// UnknownVariant instead of failing.
func (b *BiomarkerVariant) UnmarshalJSON(data []byte) error {
	var envelope struct {
		Kind string `json:"kind"`
	}

	if err := json.Unmarshal(data, &envelope); err != nil {
		return err
	}

	switch envelope.Kind {
	case "ptt":
		var v struct {
			LagMs         float64 `json:"lag_ms"`
			ConfidencePct float64 `json:"confidence_pct"`
		}

		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}

		b.Kind = VariantPtt
		b.Ptt = &PttVariant{LagMs: v.LagMs, ConfidencePct: v.ConfidencePct}
	case "vascular_index":
		var v struct {
			Index int `json:"index"`
		}

		if err := json.Unmarshal(data, &v); err != nil {
			return err
		}

		b.Kind = VariantVascularIndex
		b.VascularIndex = &VascularIndexVariant{Index: v.Index}
	default:
		b.Kind = VariantUnknown
		b.Unknown = &UnknownVariant{Label: envelope.Kind, Raw: json.RawMessage(data)}
	}

	return nil
}
