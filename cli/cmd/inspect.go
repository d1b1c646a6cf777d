package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rlfeed/cli/reader"
	"github.com/justapithecus/rlfeed/cli/render"
	"github.com/justapithecus/rlfeed/cli/tui"
)

// InspectCommand returns the inspect command.
// Inspect dumps the entries of a single binlog event log.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Dump the entries of an event log file",
		ArgsUsage: "<binlog-file>",
		Flags: append(ReadOnlyFlags(),
			&cli.IntFlag{
				Name:  "limit",
				Usage: "Show at most this many entries (0 = all)",
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("binlog file required", 1)
	}
	if c.Int("limit") < 0 {
		return cli.Exit("--limit must be >= 0", 1)
	}

	resp, err := reader.GetReader().InspectLog(c.Args().First(), c.Int("limit"))
	if err != nil {
		return fmt.Errorf("inspect %s: %w", c.Args().First(), err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		return r.RenderTUI(tui.ViewInspectLog, resp)
	}

	// The table format cannot nest rows, so it shows the entries alone.
	if r.Format() == render.FormatTable {
		return r.Render(resp.Entries)
	}
	return r.Render(resp)
}
