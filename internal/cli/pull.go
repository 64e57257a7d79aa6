package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/mirror/internal/engine"
)

// PullOptions holds flags for the pull command.
type PullOptions struct {
	*RootOptions
	Force bool
	IDs   []string
}

// NewPullCommand creates the pull command.
func NewPullCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PullOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "pull",
		Short: "Bring remote records into the local mirror",
		Long: `Fetch every remote page and database and write it into the mirror.

Records with local edits that were never pushed are left untouched and
reported as conflicts. Use --force to discard those edits and take the
remote version.

Examples:
  mirror pull
  mirror pull --id db-123 --id page-456
  mirror pull --force --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPull(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "overwrite local edits")
	cmd.Flags().StringSliceVar(&opts.IDs, "id", nil, "pull only these record ids")

	return cmd
}

func runPull(opts *PullOptions, cmd *cobra.Command) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	s, err := openSession(cmd, opts.RootOptions, needRemote|needJournal)
	if err != nil {
		return err
	}
	defer s.Close()

	s.out.VerboseLog("pulling into %s", s.cfg.Root)
	report, err := s.engine.Pull(ctx, engine.PullOptions{Force: opts.Force, IDs: opts.IDs})
	if err != nil && !isCancelled(err) {
		return WrapExitError(ExitCommandError, "pull failed", err)
	}
	if outErr := s.out.Report("pull", report); outErr != nil {
		return outErr
	}
	if err != nil {
		return WrapExitError(ExitFailure, "pull interrupted", err)
	}
	return syncExit(report)
}

// syncExit turns an incomplete pass into exit code 1.
func syncExit(report engine.Report) error {
	if n := report.Count(engine.OutcomeFailed); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) failed", n))
	}
	if n := report.Count(engine.OutcomeConflict); n > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d record(s) in conflict", n))
	}
	return nil
}
