package sqi_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/zhmura/VivoPulse-sub002/internal/sqi"
)

// P5: Channel SQI is monotone non-increasing in each penalty input and
// clamped to [0, 100].
func TestFaceSqiMonotoneAndClamped(t *testing.T) {
	cfg := sqi.DefaultConfig()

	prev := sqi.Face(20, 0, 0, cfg)
	assert.EqualValues(t, 100, prev)

	for _, motion := range []float64{0, 0.5, 1, 2, 5, 50} {
		s := sqi.Face(20, motion, 0, cfg)
		assert.LessOrEqual(t, int(s), int(prev))
		assert.GreaterOrEqual(t, int(s), 0)
		assert.LessOrEqual(t, int(s), 100)

		prev = s
	}

	extreme := sqi.Face(-100, 100, 100, cfg)
	assert.EqualValues(t, 0, extreme)
}

func TestFingerSqiMonotoneAndClamped(t *testing.T) {
	cfg := sqi.DefaultConfig()

	prev := sqi.Finger(20, 0, 0, cfg)
	assert.EqualValues(t, 100, prev)

	for _, sat := range []float64{0, 0.05, 0.1, 0.3, 1.0} {
		s := sqi.Finger(20, sat, 0, cfg)
		assert.LessOrEqual(t, int(s), int(prev))

		prev = s
	}

	extreme := sqi.Finger(-100, 1, 1, cfg)
	assert.EqualValues(t, 0, extreme)
}

func TestSqiMonotoneInSnr(t *testing.T) {
	cfg := sqi.DefaultConfig()

	prevFace := sqi.Face(0, 0, 0, cfg)

	for _, snr := range []float64{0, 3, 6, 10, 20} {
		s := sqi.Face(snr, 0, 0, cfg)
		assert.GreaterOrEqual(t, int(s), int(prevFace))

		prevFace = s
	}
}
