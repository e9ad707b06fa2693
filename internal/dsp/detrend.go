package dsp

// Detrend subtracts the least-squares line fit through x, removing linear
// drift before band-passing or z-scoring.
func Detrend(x []float64) []float64 {
	n := len(x)
	if n < 2 {
		out := make([]float64, n)
		copy(out, x)

		return out
	}

	var sumI, sumV, sumII, sumIV float64

	for i, v := range x {
		fi := float64(i)
		sumI += fi
		sumV += v
		sumII += fi * fi
		sumIV += fi * v
	}

	fn := float64(n)
	denom := fn*sumII - sumI*sumI

	var slope, intercept float64
	if denom != 0 {
		slope = (fn*sumIV - sumI*sumV) / denom
		intercept = (sumV - slope*sumI) / fn
	} else {
		intercept = sumV / fn
	}

	out := make([]float64, n)
	for i, v := range x {
		out[i] = v - (slope*float64(i) + intercept)
	}

	return out
}
