// Package sqi scores per-channel signal quality from SNR, motion, saturation
// and IMU inputs using the documented penalty curves in SPEC_FULL.md §4.5.
// Per spec.md §9's open question on calibration constants, every penalty
// slope lives in one Config record rather than being hard-coded at multiple
// call sites.
package sqi

import "github.com/zhmura/VivoPulse-sub002/internal/types"

// Config holds the calibration constants for both channels' penalty curves.
type Config struct {
	FaceSnrFloorDb     float64 // penalty kicks in below this SNR, default 6
	FaceSnrSlope       float64 // default 10
	FaceMotionFloorPx  float64 // default 0.5
	FaceMotionSlope    float64 // default 40
	FaceImuFloorG      float64 // default 0.05
	FaceImuSlope       float64 // default 200

	FingerSnrFloorDb   float64 // default 10
	FingerSnrSlope     float64 // default 8
	FingerSatFloorPct  float64 // default 0.05
	FingerSatSlope     float64 // default 500
	FingerImuFloorG    float64 // default 0.05
	FingerImuSlope     float64 // default 200
}

// DefaultConfig returns the penalty curve constants from SPEC_FULL.md §4.5.
func DefaultConfig() Config {
	return Config{
		FaceSnrFloorDb:    6,
		FaceSnrSlope:      10,
		FaceMotionFloorPx: 0.5,
		FaceMotionSlope:   40,
		FaceImuFloorG:     0.05,
		FaceImuSlope:      200,

		FingerSnrFloorDb:  10,
		FingerSnrSlope:    8,
		FingerSatFloorPct: 0.05,
		FingerSatSlope:    500,
		FingerImuFloorG:   0.05,
		FingerImuSlope:    200,
	}
}

func penalty(value, floor, slope float64) float64 {
	d := value - floor
	if d < 0 {
		d = 0
	}

	return d * slope
}

// Face scores face-channel quality from SNR, motion RMS and IMU RMS. The
// score is monotone non-increasing in motion and IMU, non-decreasing in SNR,
// and clamped to [0, 100].
func Face(snrDb, motionPx, imuG float64, cfg Config) types.ChannelSqi {
	score := 100.0

	// SNR penalty is inverted: it fires when SNR is LOW, so the penalty
	// input here is (floor - snr), not snr itself.
	score -= penalty(cfg.FaceSnrFloorDb-snrDb, 0, cfg.FaceSnrSlope)
	score -= penalty(motionPx, cfg.FaceMotionFloorPx, cfg.FaceMotionSlope)
	score -= penalty(imuG, cfg.FaceImuFloorG, cfg.FaceImuSlope)

	return types.ClampSqi(score)
}

// Finger scores finger-channel quality from SNR, saturation percentage and
// IMU RMS.
func Finger(snrDb, satPct, imuG float64, cfg Config) types.ChannelSqi {
	score := 100.0

	score -= penalty(cfg.FingerSnrFloorDb-snrDb, 0, cfg.FingerSnrSlope)
	score -= penalty(satPct, cfg.FingerSatFloorPct, cfg.FingerSatSlope)
	score -= penalty(imuG, cfg.FingerImuFloorG, cfg.FingerImuSlope)

	return types.ClampSqi(score)
}
