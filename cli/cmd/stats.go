package cmd

import (
	"errors"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rlfeed/cli/reader"
	"github.com/justapithecus/rlfeed/cli/render"
	"github.com/justapithecus/rlfeed/cli/tui"
)

// StatsCommand returns the stats command.
// Stats joins interactions with observations and reports how many matched.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:   "stats",
		Usage:  "Show join statistics for an interaction and observation log",
		Flags:  append(ReadOnlyFlags(), joinSourceFlags()...),
		Action: statsAction,
	}
}

func statsAction(c *cli.Context) error {
	src := joinSourceFromFlags(c)

	stats, err := reader.GetReader().JoinStats(c.Context, src)
	if err != nil {
		if errors.Is(err, reader.ErrNoSource) {
			return cli.Exit("--interactions/--observations or --from-lode required", 1)
		}
		return fmt.Errorf("join %s: %w", src.Describe(), err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("tui") {
		// Without a terminal the view is printed once instead.
		if !isStderrTTY() {
			_, err := fmt.Fprintln(c.App.Writer, tui.RenderStatsStatic(tui.ViewStatsJoin, stats))
			return err
		}
		return r.RenderTUI(tui.ViewStatsJoin, stats)
	}

	return r.Render(stats)
}

func joinSourceFromFlags(c *cli.Context) reader.JoinSource {
	return reader.JoinSource{
		Interactions: c.String("interactions"),
		Observations: c.String("observations"),
		LodePath:     c.String("from-lode"),
		Dataset:      c.String("dataset"),
		AppID:        c.String("app-id"),
	}
}
