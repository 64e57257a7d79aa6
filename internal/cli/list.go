package cli

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/roach88/mirror/internal/model"
)

// ListEntry is a remote record and where it is mirrored, if anywhere.
type ListEntry struct {
	model.RecordSummary
	Local string `json:"local,omitempty"`
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the records visible on the remote",
		Long: `List every page and database the remote exposes, marking the
ones already present in the local mirror.

Examples:
  mirror list
  mirror list --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(rootOpts, cmd)
		},
	}
	return cmd
}

func runList(opts *RootOptions, cmd *cobra.Command) error {
	ctx, stop := commandContext(cmd)
	defer stop()

	s, err := openSession(cmd, opts, needRemote)
	if err != nil {
		return err
	}
	defer s.Close()

	summaries, err := s.remote.ListRecords(ctx)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list remote records", err)
	}
	local, err := s.localPaths()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list local records", err)
	}

	entries := make([]ListEntry, 0, len(summaries))
	for _, sum := range summaries {
		entries = append(entries, ListEntry{RecordSummary: sum, Local: local[sum.ID]})
	}

	if s.out.JSON() {
		return s.out.Success(entries)
	}
	if len(entries) == 0 {
		fmt.Fprintln(s.out.Writer, "No remote records.")
		return nil
	}
	for _, e := range entries {
		where := styleFaint("not pulled")
		if e.Local != "" {
			where = e.Local
		}
		fmt.Fprintf(s.out.Writer, "%-9s %-24s %s  %s\n", e.Kind, e.ID, e.Title, where)
	}
	return nil
}

// localPaths maps record ids to their path relative to the mirror root.
func (s *session) localPaths() (map[string]string, error) {
	paths := make(map[string]string)
	dbs, err := s.store.ListAllDatabases()
	if err != nil {
		return nil, err
	}
	for _, db := range dbs.Databases {
		paths[db.Schema.ID] = filepath.Join(db.Collection, db.Slug)
	}
	pages, err := s.store.ListAllPages()
	if err != nil {
		return nil, err
	}
	for _, p := range pages.Pages {
		paths[p.Doc.ID] = filepath.Join(p.Collection, p.Slug) + ".md"
	}
	return paths, nil
}
