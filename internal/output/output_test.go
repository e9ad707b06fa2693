package output_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zhmura/VivoPulse-sub002/internal/output"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

func TestBuildExportRowsMarksPeaksAndPhases(t *testing.T) {
	timeMs := []float64{0, 10, 20, 30, 40, 50}
	raw := []float64{0, 1, 2, 1, 0, -1}
	filtered := []float64{0, 1, 2, 1, 0, -1}

	peaks := []types.PeakInfo{{IndexSample: 2, ValueZ: 2}}

	rows := output.BuildExportRows(timeMs, raw, filtered, peaks)

	require.Len(t, rows, 6)
	assert.True(t, rows[2].IsPeak)
	assert.Equal(t, output.PhasePeak, rows[2].PhaseTag)
	assert.False(t, rows[0].IsPeak)
	assert.False(t, rows[5].IsPeak)
}

func TestResultToMapIncludesTrendOnlyWhenPresent(t *testing.T) {
	series := types.ProcessedSeries{SampleRateHz: 100, IsValid: true}
	ptt := types.PttResult{LagMs: 120, Quality: types.QualityGood}

	withoutTrend := output.ResultToMap(series, ptt, 90, 85, nil, nil)
	_, ok := withoutTrend["vascular_trend"]
	assert.False(t, ok)

	summary := &types.VascularTrendSummary{Index: 62}
	withTrend := output.ResultToMap(series, ptt, 90, 85, nil, summary)

	trendMap, ok := withTrend["vascular_trend"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, 62, trendMap["index"])
}

func TestResultToMapEmitsBiomarkerPanel(t *testing.T) {
	series := types.ProcessedSeries{SampleRateHz: 100, IsValid: true}
	ptt := types.PttResult{LagMs: 118, ConfidencePct: 82, Quality: types.QualityGood}
	summary := &types.VascularTrendSummary{Index: 57}

	result := output.ResultToMap(series, ptt, 90, 85, nil, summary)

	panel, ok := result["biomarkers"].([]output.BiomarkerVariant)
	require.True(t, ok)
	require.Len(t, panel, 2)

	assert.Equal(t, output.VariantPtt, panel[0].Kind)
	require.NotNil(t, panel[0].Ptt)
	assert.InDelta(t, 118, panel[0].Ptt.LagMs, 0.001)

	assert.Equal(t, output.VariantVascularIndex, panel[1].Kind)
	require.NotNil(t, panel[1].VascularIndex)
	assert.Equal(t, 57, panel[1].VascularIndex.Index)

	// the panel must actually serialize through BiomarkerVariant's tagged
	// encoding, not a plain struct dump.
	data, err := json.Marshal(panel)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"kind":"ptt"`)
	assert.Contains(t, string(data), `"kind":"vascular_index"`)
}

func TestBiomarkerVariantRoundTripsPtt(t *testing.T) {
	v := output.BiomarkerVariant{Kind: output.VariantPtt, Ptt: &output.PttVariant{LagMs: 120, ConfidencePct: 80}}

	data, err := json.Marshal(v)
	require.NoError(t, err)

	var decoded output.BiomarkerVariant
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, output.VariantPtt, decoded.Kind)
	require.NotNil(t, decoded.Ptt)
	assert.InDelta(t, 120, decoded.Ptt.LagMs, 0.001)
}

func TestBiomarkerVariantPreservesUnknownKind(t *testing.T) {
	data := []byte(`{"kind":"future_biomarker","value":42}`)

	var decoded output.BiomarkerVariant
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, output.VariantUnknown, decoded.Kind)
	require.NotNil(t, decoded.Unknown)
	assert.Equal(t, "future_biomarker", decoded.Unknown.Label)
}
