package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/urfave/cli/v3"
)

func main() {
	ctx := context.Background()

	appl := &cli.Command{
		Name:  "vivopulse-sim",
		Usage: "PPG cardiovascular indicator engine demo",
		Commands: []*cli.Command{
			simulateCommand(),
			replayCommand(),
		},
	}

	if err := appl.Run(ctx, os.Args); err != nil {
		slog.Error("failed to run", "error", err)
		os.Exit(1)
	}
}
