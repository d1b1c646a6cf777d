package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/rlfeed/cli/reader"
	"github.com/justapithecus/rlfeed/iox"
)

// JoinCommand returns the join command.
// Join writes one DSJSON training line per interaction.
func JoinCommand() *cli.Command {
	return &cli.Command{
		Name:  "join",
		Usage: "Join interaction and observation logs into DSJSON training lines",
		Flags: append(joinSourceFlags(),
			&cli.StringFlag{
				Name:    "out",
				Aliases: []string{"o"},
				Usage:   "Output file (default: stdout)",
			},
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the join summary on stderr",
			},
		),
		Action: joinAction,
	}
}

func joinAction(c *cli.Context) error {
	src := joinSourceFromFlags(c)

	j, err := reader.LoadJoiner(c.Context, src)
	if err != nil {
		if errors.Is(err, reader.ErrNoSource) {
			return cli.Exit("--interactions/--observations or --from-lode required", 1)
		}
		return fmt.Errorf("load %s: %w", src.Describe(), err)
	}

	out, err := iox.CreateOutput(c.String("out"))
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}

	summary, err := j.Emit(out)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return fmt.Errorf("write join output: %w", err)
	}

	if !c.Bool("quiet") {
		fmt.Fprintf(os.Stderr, "joined=%d unjoined=%d orphans=%d duplicates=%d\n",
			summary.Joined, summary.Unjoined, summary.Orphans, summary.Duplicates)
	}
	return nil
}
