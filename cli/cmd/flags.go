// Package cmd provides CLI commands for the rlfeed binary.
package cmd

import (
	"os"

	"github.com/urfave/cli/v2"
)

// Shared flags for read-only commands.
var (
	// FormatFlag selects output format: json, table, yaml.
	FormatFlag = &cli.StringFlag{
		Name:    "format",
		Aliases: []string{"f"},
		Usage:   "Output format: json, table, yaml",
	}

	// NoColorFlag disables colored output.
	NoColorFlag = &cli.BoolFlag{
		Name:  "no-color",
		Usage: "Disable colored output",
	}

	// TUIFlag enables Bubble Tea interactive mode.
	// Only valid for select read-only commands (inspect, stats).
	TUIFlag = &cli.BoolFlag{
		Name:  "tui",
		Usage: "Enable interactive TUI mode (inspect, stats only)",
	}
)

// ReadOnlyFlags returns the shared flags for all read-only commands.
// Includes --tui so that unsupported commands can provide explicit error messages
// instead of generic "flag not defined" errors.
func ReadOnlyFlags() []cli.Flag {
	return []cli.Flag{
		FormatFlag,
		NoColorFlag,
		TUIFlag,
	}
}

// joinSourceFlags select the entries a join reads: two binlog files, or a
// lode dataset.
func joinSourceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:  "interactions",
			Usage: "Interaction event log (binlog)",
		},
		&cli.StringFlag{
			Name:  "observations",
			Usage: "Observation event log (binlog)",
		},
		&cli.StringFlag{
			Name:  "from-lode",
			Usage: "Read both entry kinds from the lode dataset rooted at this directory",
		},
		&cli.StringFlag{
			Name:  "app-id",
			Usage: "Application id partition to read (with --from-lode)",
		},
		&cli.StringFlag{
			Name:  "dataset",
			Usage: "Lode dataset id (with --from-lode)",
		},
	}
}

// isStderrTTY reports whether stderr is attached to a terminal.
func isStderrTTY() bool {
	info, err := os.Stderr.Stat()
	if err != nil {
		return false
	}
	return (info.Mode() & os.ModeCharDevice) != 0
}
