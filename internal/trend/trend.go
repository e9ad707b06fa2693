// Package trend persists a rolling window of vascular measurements and
// scores each new session against that personal baseline, per
// SPEC_FULL.md §4.9.
package trend

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/zhmura/VivoPulse-sub002/internal/fault"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Config holds the trend store's calibration constants, centralized per
// spec.md §9's note against scattering these across call sites.
type Config struct {
	WindowSize     int     // history entries retained, default 10
	MinBaseline    int     // entries required before a summary is emitted, default 5
	MinConfidence  float64 // PTT confidence floor to accept an entry, default 70
	MinCombinedSqi float64 // combined channel SQI floor, default 70
	StdFloor       float64 // below this, a metric's std is replaced by 1.0, default 1e-6
}

// DefaultConfig returns the values from spec.md §4.9.
func DefaultConfig() Config {
	return Config{
		WindowSize:     10,
		MinBaseline:    5,
		MinConfidence:  70,
		MinCombinedSqi: 70,
		StdFloor:       1e-6,
	}
}

// Store is a file-backed, mutex-guarded rolling window of VascularTrendEntry
// values for one user/session identity.
type Store struct {
	mu   sync.Mutex
	path string
	cfg  Config
}

// NewStore returns a Store persisting to path.
func NewStore(path string, cfg Config) *Store {
	if cfg.WindowSize == 0 {
		cfg = DefaultConfig()
	}

	return &Store{path: path, cfg: cfg}
}

// MaybeRecordAndSummarize accepts entry if pttValid and both confidence and
// combinedSqi clear their floors; otherwise it is rejected without touching
// the stored history. An accepted entry is always persisted; a summary is
// only returned once the pre-existing history has reached MinBaseline
// entries.
func (s *Store) MaybeRecordAndSummarize(entry types.VascularTrendEntry, pttValid bool, confidence, combinedSqi float64) (*types.VascularTrendSummary, error) {
	if !pttValid || confidence < s.cfg.MinConfidence || combinedSqi < s.cfg.MinCombinedSqi {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.load()
	if err != nil {
		return nil, err
	}

	var summary *types.VascularTrendSummary
	if len(history) >= s.cfg.MinBaseline {
		summary = summarize(entry, history, s.cfg)
	}

	history = append(history, entry)
	if len(history) > s.cfg.WindowSize {
		history = history[len(history)-s.cfg.WindowSize:]
	}

	// Persistence failure is best-effort: log and swallow, never surface to
	// the caller, per fault.ErrPersistenceFailure's contract.
	if err := s.persist(history); err != nil {
		slog.Error("vascular trend persistence failed", "error", err, "path", s.path)
	}

	return summary, nil
}

func summarize(entry types.VascularTrendEntry, history []types.VascularTrendEntry, cfg Config) *types.VascularTrendSummary {
	pttMean, pttStd := meanStd(pluck(history, func(e types.VascularTrendEntry) float64 { return e.PttMs }))
	riseMean, riseStd := meanStd(pluck(history, func(e types.VascularTrendEntry) float64 { return e.RiseMs }))
	reflMean, reflStd := meanStd(pluck(history, func(e types.VascularTrendEntry) float64 { return e.ReflRatio }))

	zPtt := clipZ(zScore(entry.PttMs, pttMean, pttStd, cfg.StdFloor))
	zRise := clipZ(zScore(entry.RiseMs, riseMean, riseStd, cfg.StdFloor))
	zRefl := clipZ(zScore(entry.ReflRatio, reflMean, reflStd, cfg.StdFloor))

	composite := (zPtt - zRise - zRefl) / 3

	index := int(math.Round(50 + 12.5*composite))
	if index < 0 {
		index = 0
	}

	if index > 100 {
		index = 100
	}

	return &types.VascularTrendSummary{
		Index:     index,
		DeltaPtt:  entry.PttMs - pttMean,
		DeltaRise: entry.RiseMs - riseMean,
		DeltaRefl: entry.ReflRatio - reflMean,
	}
}

func pluck(history []types.VascularTrendEntry, f func(types.VascularTrendEntry) float64) []float64 {
	out := make([]float64, len(history))
	for i, e := range history {
		out[i] = f(e)
	}

	return out
}

func meanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}

	for _, v := range x {
		mean += v
	}

	mean /= float64(len(x))

	if len(x) < 2 {
		return mean, 0
	}

	var sumSq float64
	for _, v := range x {
		d := v - mean
		sumSq += d * d
	}

	return mean, math.Sqrt(sumSq / float64(len(x)-1))
}

// zScore standardizes v against mean/std, flooring std at floor (substituting
// 1.0 when std falls below it) to avoid division instability on a
// near-constant baseline.
func zScore(v, mean, std, floor float64) float64 {
	if std < floor {
		std = 1.0
	}

	return (v - mean) / std
}

func clipZ(z float64) float64 {
	if z < -2 {
		return -2
	}

	if z > 2 {
		return 2
	}

	return z
}

// load reads the history file, treating a missing or corrupt (unparsable)
// file as an empty history, and dropping any entry with a non-finite field.
func (s *Store) load() ([]types.VascularTrendEntry, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("vascular trend history unreadable, starting from an empty baseline",
				"error", fmt.Errorf("%w: %s", fault.ErrReadFailure, err), "path", s.path)
		}

		return nil, nil
	}

	var entries []types.VascularTrendEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, nil
	}

	clean := make([]types.VascularTrendEntry, 0, len(entries))

	for _, e := range entries {
		if !finite(e.PttMs) || !finite(e.RiseMs) || !finite(e.ReflRatio) {
			continue
		}

		clean = append(clean, e)
	}

	sort.SliceStable(clean, func(i, j int) bool { return clean[i].TimestampMs < clean[j].TimestampMs })

	return clean, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// persist writes entries to s.path via a temp-file-then-rename so a crash
// mid-write never leaves a partially written history file.
func (s *Store) persist(entries []types.VascularTrendEntry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("%w: marshal trend history: %s", fault.ErrPersistenceFailure, err)
	}

	dir := filepath.Dir(s.path)

	tmp, err := os.CreateTemp(dir, ".trend-*.tmp")
	if err != nil {
		return fmt.Errorf("%w: create temp file: %s", fault.ErrPersistenceFailure, err)
	}

	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)

		return fmt.Errorf("%w: write temp file: %s", fault.ErrPersistenceFailure, err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("%w: close temp file: %s", fault.ErrPersistenceFailure, err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)

		return fmt.Errorf("%w: rename temp file: %s", fault.ErrPersistenceFailure, err)
	}

	return nil
}
