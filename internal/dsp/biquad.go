// Package dsp holds the signal-processing primitives shared by every
// higher-level component: the Butterworth band-pass, z-score normaliser,
// linear detrend, band power, FFT wrapper, and cross-correlation.
//
// The biquad filter shape (coefficients + running state, Direct Form I)
// mirrors the K-weighting filter in the teacher's loudness analyzer.
package dsp

// biquad holds normalised second-order-section coefficients (a0 folded in).
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// biquadState holds the running Direct Form I state for one biquad section.
type biquadState struct {
	x1, x2 float64
	y1, y2 float64
}

func (s *biquadState) process(b biquad, in float64) float64 {
	out := b.b0*in + b.b1*s.x1 + b.b2*s.x2 - b.a1*s.y1 - b.a2*s.y2

	s.x2 = s.x1
	s.x1 = in
	s.y2 = s.y1
	s.y1 = out

	return out
}

func (s *biquadState) reset() {
	*s = biquadState{}
}
