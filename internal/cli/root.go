package cli

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/mirror/internal/engine"
	"github.com/roach88/mirror/internal/remote"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigFile string

	// Remote replaces the HTTP client built from the configured endpoint.
	Remote remote.Client

	// Logger replaces the logger built from the configuration.
	Logger *slog.Logger

	// IDs generates ids for locally added rows. Default: UUIDv7.
	IDs engine.IDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the mirror CLI.
func NewRootCommand() *cobra.Command {
	return NewRootCommandWithOptions(&RootOptions{})
}

// NewRootCommandWithOptions creates the root command around caller-owned
// options, so tests can inject a remote and a logger.
func NewRootCommandWithOptions(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Keep a local, editable mirror of remote pages and databases",
		Long: `mirror pulls remote pages and databases into plain files, lets you
edit them with any tool, and pushes your edits back.

Pages become Markdown files with front matter. Databases become a
directory holding schema.yaml and data.csv. Edits on both sides are
detected by content fingerprints and reported as conflicts, never merged.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return NewExitError(ExitCommandError,
					fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
			}
			return nil
		},
	}

	// Global flags
	flags := cmd.PersistentFlags()
	flags.BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	flags.StringVar(&opts.Format, "format", "text", "output format (json|text)")
	flags.StringVar(&opts.ConfigFile, "config", "", "config file (default: ./.mirror.yaml, then ~/.mirror.yaml)")

	// Config overrides, read through the config package by flag name.
	flags.String("root", "", "mirror root directory")
	flags.String("endpoint", "", "remote service URL")
	flags.String("journal", "", "sync journal database path")
	flags.String("log-file", "", "write logs to a rotated file instead of stderr")
	flags.String("log-level", "", "log level (debug|info|warn|error)")

	cmd.AddCommand(NewPullCommand(opts))
	cmd.AddCommand(NewPushCommand(opts))
	cmd.AddCommand(NewStatusCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewLogCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
