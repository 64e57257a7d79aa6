package cli

import (
	"github.com/spf13/cobra"

	"github.com/roach88/mirror/internal/engine"
)

// PushOptions holds flags for the push command.
type PushOptions struct {
	*RootOptions
	Force bool
	IDs   []string
}

// NewPushCommand creates the push command.
func NewPushCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &PushOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "push",
		Short: "Send local edits to the remote",
		Long: `Send every locally modified page and database to the remote.

A record whose remote copy changed since the last pull is reported as a
conflict and nothing is written; pull first, or use --force to overwrite
the remote. Rows the remote rejects stay in the local files and are
retried by the next push.

Examples:
  mirror push
  mirror push --id db-123
  mirror push --force`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPush(opts, cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Force, "force", false, "push even if the remote changed since the last pull")
	cmd.Flags().StringSliceVar(&opts.IDs, "id", nil, "push only these record ids")

	return cmd
}

func runPush(opts *PushOptions, cmd *cobra.Command) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	s, err := openSession(cmd, opts.RootOptions, needRemote|needJournal)
	if err != nil {
		return err
	}
	defer s.Close()

	s.out.VerboseLog("pushing from %s", s.cfg.Root)
	report, err := s.engine.Push(ctx, engine.PushOptions{Force: opts.Force, IDs: opts.IDs})
	if err != nil && !isCancelled(err) {
		return WrapExitError(ExitCommandError, "push failed", err)
	}
	if outErr := s.out.Report("push", report); outErr != nil {
		return outErr
	}
	if err != nil {
		return WrapExitError(ExitFailure, "push interrupted", err)
	}
	return syncExit(report)
}
