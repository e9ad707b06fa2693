package dsp

import (
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
)

// hannWindow returns a Hann window of the given size, as in the teacher's
// spectral analyzer.
func hannWindow(size int) []float64 {
	w := make([]float64, size)
	if size == 1 {
		w[0] = 1

		return w
	}

	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(size-1)))
	}

	return w
}

// Magnitude returns the FFT magnitude spectrum of x (bins 0..n/2 inclusive).
func Magnitude(x []float64) []float64 {
	n := len(x)
	if n == 0 {
		return nil
	}

	fft := fourier.NewFFT(n)
	coeffs := fft.Coefficients(nil, x)

	mag := make([]float64, len(coeffs))
	for i, c := range coeffs {
		mag[i] = math.Hypot(real(c), imag(c))
	}

	return mag
}

// WelchBandPower estimates the mean power in [loHz, hiHz] using Welch's
// method: overlapping Hann-windowed segments, averaged periodograms. Returns
// 0 if fewer than one full segment fits.
func WelchBandPower(x []float64, fs float64, loHz, hiHz float64, segmentLen int) float64 {
	if segmentLen <= 1 || len(x) < segmentLen {
		return 0
	}

	hop := segmentLen / 2
	if hop < 1 {
		hop = 1
	}

	window := hannWindow(segmentLen)

	var windowPower float64
	for _, w := range window {
		windowPower += w * w
	}

	binHz := fs / float64(segmentLen)
	loBin := int(loHz / binHz)
	hiBin := int(hiHz / binHz)

	if loBin < 0 {
		loBin = 0
	}

	segBuf := make([]float64, segmentLen)

	var powerSum float64

	segments := 0

	for start := 0; start+segmentLen <= len(x); start += hop {
		for i := 0; i < segmentLen; i++ {
			segBuf[i] = x[start+i] * window[i]
		}

		mag := Magnitude(segBuf)

		hi := hiBin
		if hi >= len(mag) {
			hi = len(mag) - 1
		}

		var bandSum float64
		for b := loBin; b <= hi; b++ {
			bandSum += mag[b] * mag[b]
		}

		powerSum += bandSum / (windowPower * float64(segmentLen))
		segments++
	}

	if segments == 0 {
		return 0
	}

	return powerSum / float64(segments)
}

// SnrDb estimates the in-band-to-out-of-band power ratio of x, in decibels,
// using a 4s Welch segment (or the full series if shorter). Returns 0 if x
// is too short to estimate (fewer than 8 samples).
func SnrDb(x []float64, fs, loHz, hiHz float64) float64 {
	segmentLen := int(fs * 4)
	if segmentLen > len(x) {
		segmentLen = len(x)
	}

	if segmentLen < 8 {
		return 0
	}

	inBand := WelchBandPower(x, fs, loHz, hiHz, segmentLen)
	total := WelchBandPower(x, fs, 0, fs/2, segmentLen)

	outOfBand := total - inBand
	if outOfBand < 1e-12 {
		outOfBand = 1e-12
	}

	return 10 * math.Log10(inBand/outOfBand)
}
