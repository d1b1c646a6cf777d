package cmd

import (
	"bufio"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rlfeed/iox"
	"github.com/justapithecus/rlfeed/log"
	"github.com/justapithecus/rlfeed/sim"
)

// SimulateCommand returns the simulate command.
// Simulate writes a synthetic event stream suitable as rlfeed run input.
func SimulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Generate a synthetic NDJSON event stream",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:  "events",
				Usage: "Number of decisions to generate",
				Value: 100,
			},
			&cli.Uint64Flag{
				Name:  "seed",
				Usage: "Random seed; equal seeds produce equal streams",
				Value: 1,
			},
			&cli.BoolFlag{
				Name:  "inline-cost",
				Usage: "Fold each outcome into its decision as _label_cost",
			},
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file (default: stdout)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level for diagnostics on stderr",
				Value: "warn",
			},
		},
		Action: simulateAction,
	}
}

func simulateAction(c *cli.Context) error {
	if c.Int("events") < 0 {
		return cli.Exit("--events must be >= 0", 1)
	}
	level, err := log.ParseLevel(c.String("log-level"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	gen, err := sim.New(sim.Config{
		Events:     c.Int("events"),
		Seed:       c.Uint64("seed"),
		InlineCost: c.Bool("inline-cost"),
	}, log.New(nil, os.Stderr, level))
	if err != nil {
		return err
	}

	out, err := iox.CreateOutput(c.String("out"))
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer iox.DiscardClose(out)

	w := bufio.NewWriter(out)
	if _, err := gen.Run(c.Context, w); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("simulate: %w", err)
	}
	return out.Close()
}
