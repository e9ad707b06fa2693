package dsp

import "math"

// BandPassOptions configures the Butterworth band-pass filter.
type BandPassOptions struct {
	LowHz  float64 // lower cutoff (default 0.7 Hz, physiological HR floor)
	HighHz float64 // upper cutoff (default 4.0 Hz, physiological HR ceiling)
	Order  int     // filter order, default 2; rounded up to an even number
}

// DefaultBandPassOptions returns the physiological-HR band from SPEC_FULL.md
// §4.3 / spec.md §4.1.
func DefaultBandPassOptions() BandPassOptions {
	return BandPassOptions{LowHz: 0.7, HighHz: 4.0, Order: 2}
}

// BandPass applies a zero-phase Butterworth band-pass to x, sampled at fs Hz.
// For series covering at least 5 seconds it filters forward then backward
// (true zero-phase, doubling the effective order); for shorter series it
// filters forward only, after priming the filter state with a mirrored
// ramp-up prefix that is discarded from the output (SPEC_FULL.md §4.1).
func BandPass(x []float64, fs float64, opts BandPassOptions) []float64 {
	if opts.LowHz <= 0 {
		opts.LowHz = 0.7
	}

	if opts.HighHz <= 0 {
		opts.HighHz = 4.0
	}

	if opts.Order <= 0 {
		opts.Order = 2
	}

	sections := (opts.Order + 1) / 2
	hpfs := butterworthSections(sectionKindHighPass, opts.LowHz, fs, sections)
	lpfs := butterworthSections(sectionKindLowPass, opts.HighHz, fs, sections)

	durationS := float64(len(x)) / fs
	if durationS >= 5.0 {
		return filtFilt(x, hpfs, lpfs)
	}

	return filtForwardRamped(x, hpfs, lpfs, fs, opts.LowHz)
}

type sectionKind int

const (
	sectionKindLowPass sectionKind = iota
	sectionKindHighPass
)

// butterworthSections builds n cascaded second-order sections approximating
// an order-2n Butterworth filter at cutoff fc, using the pole angles of a
// Butterworth prototype to pick each section's Q (RBJ audio-EQ-cookbook
// biquad design, same bilinear-transform approach as the teacher's
// K-weighting filter).
func butterworthSections(kind sectionKind, fc, fs float64, n int) []biquad {
	if fc >= fs/2 {
		fc = fs/2 - 1e-6
	}

	w0 := 2 * math.Pi * fc / fs
	cosw0 := math.Cos(w0)
	sinw0 := math.Sin(w0)

	out := make([]biquad, n)

	for k := 0; k < n; k++ {
		theta := math.Pi * float64(2*k+1) / float64(4*n)
		q := 1 / (2 * math.Cos(theta))
		alpha := sinw0 / (2 * q)

		var b0, b1, b2, a0, a1, a2 float64

		switch kind {
		case sectionKindLowPass:
			b0 = (1 - cosw0) / 2
			b1 = 1 - cosw0
			b2 = (1 - cosw0) / 2
		case sectionKindHighPass:
			b0 = (1 + cosw0) / 2
			b1 = -(1 + cosw0)
			b2 = (1 + cosw0) / 2
		}

		a0 = 1 + alpha
		a1 = -2 * cosw0
		a2 = 1 - alpha

		out[k] = biquad{
			b0: b0 / a0,
			b1: b1 / a0,
			b2: b2 / a0,
			a1: a1 / a0,
			a2: a2 / a0,
		}
	}

	return out
}

func cascade(x []float64, stages []biquad) []float64 {
	out := make([]float64, len(x))
	copy(out, x)

	for _, stage := range stages {
		var st biquadState
		for i, v := range out {
			out[i] = st.process(stage, v)
		}
	}

	return out
}

func filtForward(x []float64, hpfs, lpfs []biquad) []float64 {
	return cascade(cascade(x, hpfs), lpfs)
}

// filtFilt applies the cascade forward then backward for true zero phase.
func filtFilt(x []float64, hpfs, lpfs []biquad) []float64 {
	forward := filtForward(x, hpfs, lpfs)
	reverse(forward)

	backward := filtForward(forward, hpfs, lpfs)
	reverse(backward)

	return backward
}

// filtForwardRamped primes the filter with a mirrored prefix of the signal's
// own onset so the transient settles before the reported samples begin, then
// discards the prefix from the output.
func filtForwardRamped(x []float64, hpfs, lpfs []biquad, fs, lowHz float64) []float64 {
	if len(x) == 0 {
		return x
	}

	ramp := int(2 * fs / lowHz)
	if ramp > len(x)-1 {
		ramp = len(x) - 1
	}

	if ramp <= 0 {
		return filtForward(x, hpfs, lpfs)
	}

	primed := make([]float64, ramp+len(x))
	for i := 0; i < ramp; i++ {
		primed[i] = x[ramp-i]
	}

	copy(primed[ramp:], x)

	filtered := filtForward(primed, hpfs, lpfs)

	return filtered[ramp:]
}

func reverse(x []float64) {
	for i, j := 0, len(x)-1; i < j; i, j = i+1, j-1 {
		x[i], x[j] = x[j], x[i]
	}
}
