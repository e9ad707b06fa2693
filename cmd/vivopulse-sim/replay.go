package main

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/urfave/cli/v3"

	"github.com/zhmura/VivoPulse-sub002/internal/types"
)

var errReplayArgCount = errors.New("expected exactly one argument: CSV file path")

func replayCommand() *cli.Command {
	return &cli.Command{
		Name:      "replay",
		Usage:     "Run the engine over a recorded CSV session",
		ArgsUsage: "<file>",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			if cmd.NArg() != 1 {
				return fmt.Errorf("%w: got %d", errReplayArgCount, cmd.NArg())
			}

			raw, err := loadReplayCSV(cmd.Args().First())
			if err != nil {
				return fmt.Errorf("load replay file: %w", err)
			}

			return runAndPrint(ctx, raw)
		},
	}
}

// loadReplayCSV reads a headerless or header-led CSV of
// timestamp_ns,face_luma,finger_luma[,motion_px,sat_pct] rows. Only the
// first three columns are read: motion/saturation columns, when present, are
// ignored, and rows with fewer than three fields are skipped.
func loadReplayCSV(path string) (types.RawSeriesBuffer, error) {
	f, err := os.Open(path)
	if err != nil {
		return types.RawSeriesBuffer{}, err
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var raw types.RawSeriesBuffer

	first := true

	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}

		if err != nil {
			return types.RawSeriesBuffer{}, err
		}

		if len(record) < 3 {
			continue
		}

		ts, errTs := strconv.ParseInt(record[0], 10, 64)
		if errTs != nil {
			if first {
				// Likely a header row; skip it rather than failing the load.
				first = false

				continue
			}

			return types.RawSeriesBuffer{}, fmt.Errorf("parse timestamp_ns %q: %w", record[0], errTs)
		}

		first = false

		face, err := strconv.ParseFloat(record[1], 64)
		if err != nil {
			return types.RawSeriesBuffer{}, fmt.Errorf("parse face_luma %q: %w", record[1], err)
		}

		finger, err := strconv.ParseFloat(record[2], 64)
		if err != nil {
			return types.RawSeriesBuffer{}, fmt.Errorf("parse finger_luma %q: %w", record[2], err)
		}

		raw.Face = append(raw.Face, types.TimestampedSample{TimestampNs: ts, Value: face})
		raw.Finger = append(raw.Finger, types.TimestampedSample{TimestampNs: ts, Value: finger})
	}

	return raw, nil
}
