package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mirror/internal/engine"
	"github.com/roach88/mirror/internal/journal"
)

// LogOptions holds flags for the log command.
type LogOptions struct {
	*RootOptions
	RunID  string
	Record string
	Limit  int
}

// NewLogCommand creates the log command.
func NewLogCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &LogOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show the sync journal",
		Long: `Show past pull and push runs, newest first, with how many records
ended in conflict or failed.

With --run, show every record reconciled by that run. With --record,
show the history of one record across runs.

Examples:
  mirror log
  mirror log --limit 5
  mirror log --run 0190c3a2-...
  mirror log --record db-123`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLog(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "show the entries of one run")
	cmd.Flags().StringVar(&opts.Record, "record", "", "show the history of one record")
	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 10, "number of runs to show (0 for all)")
	cmd.MarkFlagsMutuallyExclusive("run", "record")

	return cmd
}

func runLog(opts *LogOptions, cmd *cobra.Command) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	s, err := openSession(cmd, opts.RootOptions, needJournal)
	if err != nil {
		return err
	}
	defer s.Close()

	if opts.RunID != "" || opts.Record != "" {
		var entries []journal.Entry
		if opts.RunID != "" {
			entries, err = s.journal.Entries(ctx, opts.RunID)
		} else {
			entries, err = s.journal.RecordHistory(ctx, opts.Record)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read journal", err)
		}
		if s.out.JSON() {
			return s.out.Success(entries)
		}
		if len(entries) == 0 {
			fmt.Fprintln(s.out.Writer, "No journal entries.")
			return nil
		}
		for _, e := range entries {
			fmt.Fprintf(s.out.Writer, "%s %s %s/%s  %s\n",
				styleFaint(e.RecordedAt.Local().Format(time.DateTime)),
				styleOutcome(engine.Outcome(e.Outcome)),
				e.Collection, e.Slug, e.RecordID)
			if e.Message != "" {
				fmt.Fprintf(s.out.Writer, "           %s\n", e.Message)
			}
		}
		return nil
	}

	runs, err := s.journal.Runs(ctx, opts.Limit)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read journal", err)
	}
	if s.out.JSON() {
		return s.out.Success(runs)
	}
	if len(runs) == 0 {
		fmt.Fprintln(s.out.Writer, "No sync runs recorded.")
		return nil
	}
	for _, r := range runs {
		line := fmt.Sprintf("%s %-4s %s  %d record(s)", r.ID, r.Direction,
			styleFaint(r.StartedAt.Local().Format(time.DateTime)), r.Entries)
		if r.Conflicts > 0 {
			line += ", " + styleWarn(fmt.Sprintf("%d conflict(s)", r.Conflicts))
		}
		if r.Failures > 0 {
			line += ", " + styleError(fmt.Sprintf("%d failed", r.Failures))
		}
		fmt.Fprintln(s.out.Writer, line)
	}
	return nil
}
