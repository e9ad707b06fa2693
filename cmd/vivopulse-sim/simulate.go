package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/urfave/cli/v3"

	vivopulse "github.com/zhmura/VivoPulse-sub002"
	"github.com/zhmura/VivoPulse-sub002/internal/output"
	"github.com/zhmura/VivoPulse-sub002/internal/sim"
	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

// Numeric session parameters are plain string flags parsed with strconv:
// the simulator's inputs are small decimals (bpm, ms, fractional noise) and
// this avoids committing to a particular float-flag spelling across CLI
// library versions.
func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Generate a synthetic dual-channel PPG session and run the engine over it",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "hr", Usage: "heart rate in bpm", Value: "72"},
			&cli.StringFlag{Name: "ptt", Usage: "finger delay relative to face, in ms", Value: "120"},
			&cli.StringFlag{Name: "noise", Usage: "Gaussian noise std as a fraction of signal amplitude", Value: "0.02"},
			&cli.StringFlag{Name: "drift", Usage: "finger clock drift, ms per second", Value: "0"},
			&cli.StringFlag{Name: "duration", Usage: "session length in seconds", Value: "30"},
			&cli.IntFlag{Name: "seed", Usage: "RNG seed", Value: 0},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			hr, err := strconv.ParseFloat(cmd.String("hr"), 64)
			if err != nil {
				return fmt.Errorf("--hr: %w", err)
			}

			pttMs, err := strconv.ParseFloat(cmd.String("ptt"), 64)
			if err != nil {
				return fmt.Errorf("--ptt: %w", err)
			}

			noise, err := strconv.ParseFloat(cmd.String("noise"), 64)
			if err != nil {
				return fmt.Errorf("--noise: %w", err)
			}

			drift, err := strconv.ParseFloat(cmd.String("drift"), 64)
			if err != nil {
				return fmt.Errorf("--drift: %w", err)
			}

			duration, err := strconv.ParseFloat(cmd.String("duration"), 64)
			if err != nil {
				return fmt.Errorf("--duration: %w", err)
			}

			opts := sim.Options{
				HrBpm:        hr,
				PttMs:        pttMs,
				NoiseLevel:   noise,
				DriftMsPerS:  drift,
				DurationS:    duration,
				SampleRateHz: 100,
				Seed:         int64(cmd.Int("seed")),
			}

			raw := sim.Generate(opts)

			return runAndPrint(ctx, raw)
		},
	}
}

func runAndPrint(ctx context.Context, raw types.RawSeriesBuffer) error {
	engine := vivopulse.NewEngine(vivopulse.DefaultConfig())

	series, err := engine.Process(ctx, raw)
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	sqiFace, sqiFinger := engine.ScoreChannels(series, 0.1, 0, 0.01, 0)
	pttResult := engine.ComputePTT(ctx, series, sqiFace, sqiFinger)
	segments := engine.DetectGoodSync(series, nil, types.ImuTrace{})

	report := output.ResultToMap(series, pttResult, sqiFace, sqiFinger, segments, nil)

	encoded, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode report: %w", err)
	}

	fmt.Println(string(encoded))

	return nil
}
