// Package sim generates synthetic dual-channel PPG sessions for tests and
// the vivopulse-sim CLI demo, per SPEC_FULL.md §4.10.
package sim

import (
	"math"

	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Options configures the synthetic PPG generator.
type Options struct {
	HrBpm        float64 // pulse rate, default 72
	PttMs        float64 // finger delay relative to face, default 120
	NoiseLevel   float64 // Gaussian noise std as a fraction of signal amplitude, default 0.02
	DriftMsPerS  float64 // optional linear finger-clock drift, default 0
	DurationS    float64 // session length, default 30
	SampleRateHz float64 // default 100
	Seed         int64   // default 0; deterministic given the same seed
}

// DefaultOptions returns the scenario-1 configuration from SPEC_FULL.md §8.
func DefaultOptions() Options {
	return Options{
		HrBpm:        72,
		PttMs:        120,
		NoiseLevel:   0.02,
		DriftMsPerS:  0,
		DurationS:    30,
		SampleRateHz: 100,
		Seed:         0,
	}
}

// lcg is a small deterministic linear-congruential generator so the
// simulator never depends on math/rand's global state or seeding behavior
// changing across Go versions.
type lcg struct {
	state uint64
}

func newLCG(seed int64) *lcg {
	return &lcg{state: uint64(seed)*2862933555777941757 + 3037000493}
}

func (g *lcg) next() float64 {
	g.state = g.state*6364136223846793005 + 1442695040888963407

	return float64(g.state>>11) / float64(1<<53)
}

// gaussian draws an approximately standard-normal sample via the
// Box-Muller transform.
func (g *lcg) gaussian() float64 {
	u1 := math.Max(g.next(), 1e-12)
	u2 := g.next()

	return math.Sqrt(-2*math.Log(u1)) * math.Cos(2*math.Pi*u2)
}

// Generate builds a RawSeriesBuffer with face and finger luma streams: face
// is a fundamental sine at hr_bpm/60 Hz plus a half-amplitude second
// harmonic, finger is the same waveform delayed by PttMs, both carrying
// independent Gaussian noise. Deterministic for a given Seed.
func Generate(opts Options) types.RawSeriesBuffer {
	if opts.SampleRateHz <= 0 {
		opts.SampleRateHz = 100
	}

	if opts.DurationS <= 0 {
		opts.DurationS = 30
	}

	n := int(opts.SampleRateHz * opts.DurationS)
	fundamentalHz := opts.HrBpm / 60.0
	pttS := opts.PttMs / 1000.0

	rngFace := newLCG(opts.Seed)
	rngFinger := newLCG(opts.Seed + 1)

	face := make([]types.TimestampedSample, n)
	finger := make([]types.TimestampedSample, n)

	for i := 0; i < n; i++ {
		tS := float64(i) / opts.SampleRateHz

		faceVal := pulseWave(fundamentalHz, tS) + opts.NoiseLevel*rngFace.gaussian()
		fingerVal := pulseWave(fundamentalHz, tS-pttS) + opts.NoiseLevel*rngFinger.gaussian()

		faceNs := int64(tS * 1e9)

		driftS := (opts.DriftMsPerS / 1000.0) * tS // offset grows linearly at the configured ms/s rate
		fingerNs := int64((tS + driftS) * 1e9)

		face[i] = types.TimestampedSample{TimestampNs: faceNs, Value: faceVal}
		finger[i] = types.TimestampedSample{TimestampNs: fingerNs, Value: fingerVal}
	}

	return types.RawSeriesBuffer{Face: face, Finger: finger}
}

// pulseWave is the fundamental-plus-second-harmonic waveform shared by both
// channels before delay, noise, and drift are applied.
func pulseWave(fundamentalHz, tS float64) float64 {
	return math.Sin(2*math.Pi*fundamentalHz*tS) + 0.5*math.Sin(2*math.Pi*2*fundamentalHz*tS)
}
