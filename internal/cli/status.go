package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/mirror/internal/watch"
)

// StatusOptions holds flags for the status command.
type StatusOptions struct {
	*RootOptions
	Watch    bool
	Debounce time.Duration
}

// NewStatusCommand creates the status command.
func NewStatusCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &StatusOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show which local records have unpushed edits",
		Long: `Classify every local record as synced or modified without
contacting the remote. Records that cannot be read are listed as skipped.

With --watch, the classification is printed again after every change to
the mirror until interrupted.

Examples:
  mirror status
  mirror status --watch`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "re-check after every change")
	cmd.Flags().DurationVar(&opts.Debounce, "debounce", watch.DefaultDebounce, "quiet period before re-checking")

	return cmd
}

func runStatus(opts *StatusOptions, cmd *cobra.Command) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	s, err := openSession(cmd, opts.RootOptions, 0)
	if err != nil {
		return err
	}
	defer s.Close()

	show := func(ctx context.Context) error {
		report, err := s.engine.Status(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "status failed", err)
		}
		return s.out.Status(report)
	}

	if !opts.Watch {
		return show(ctx)
	}

	if err := os.MkdirAll(s.cfg.Root, 0o755); err != nil {
		return WrapExitError(ExitCommandError, "failed to create mirror root", err)
	}
	w := watch.New(s.cfg.Root, watch.WithDebounce(opts.Debounce), watch.WithLogger(s.logger))
	err = w.Run(ctx, func(ctx context.Context) error {
		if !s.out.JSON() {
			fmt.Fprintf(s.out.Writer, "\n%s\n", styleFaint(time.Now().Format(time.TimeOnly)))
		}
		return show(ctx)
	})
	if err != nil {
		return WrapExitError(ExitCommandError, "watch failed", err)
	}
	return nil
}
