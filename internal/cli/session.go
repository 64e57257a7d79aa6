package cli

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/roach88/mirror/internal/config"
	"github.com/roach88/mirror/internal/engine"
	"github.com/roach88/mirror/internal/journal"
	"github.com/roach88/mirror/internal/logging"
	"github.com/roach88/mirror/internal/records"
	"github.com/roach88/mirror/internal/remote"
)

// need lists the collaborators a command uses beyond the record store.
type need int

const (
	needRemote need = 1 << iota
	needJournal
)

// session is everything a command works with, built from the resolved
// configuration.
type session struct {
	cfg     config.Config
	logger  *slog.Logger
	out     *OutputFormatter
	store   *records.Store
	remote  remote.Client
	journal *journal.Journal
	engine  *engine.Engine
	closers []io.Closer
}

func openSession(cmd *cobra.Command, opts *RootOptions, needs need) (*session, error) {
	cfg, err := config.Load(config.LoadOptions{
		File:        opts.ConfigFile,
		SearchPaths: searchPaths(),
		Flags:       cmd.Flags(),
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	s := &session{
		cfg: cfg,
		out: &OutputFormatter{
			Format:    opts.Format,
			Writer:    cmd.OutOrStdout(),
			ErrWriter: cmd.ErrOrStderr(),
			Verbose:   opts.Verbose,
		},
	}

	s.logger = opts.Logger
	if s.logger == nil {
		logger, closer, err := logging.New(logging.Options{
			Level:   cfg.LogLevel,
			Verbose: opts.Verbose,
			File:    cfg.LogFile,
			Stderr:  cmd.ErrOrStderr(),
		})
		if err != nil {
			return nil, WrapExitError(ExitCommandError, "failed to set up logging", err)
		}
		s.logger = logger
		s.closers = append(s.closers, closer)
	}
	if cfg.Source != "" {
		s.logger.Debug("config loaded", "file", cfg.Source)
	}

	s.store = records.New(cfg.Root, records.WithLogger(s.logger))
	engineOpts := []engine.EngineOption{engine.WithLogger(s.logger)}
	if opts.IDs != nil {
		engineOpts = append(engineOpts, engine.WithIDGenerator(opts.IDs))
	}

	if needs&needRemote != 0 {
		client, err := newRemote(cfg, opts, s.logger)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.remote = client
	}

	if needs&needJournal != 0 {
		j, err := journal.Open(cfg.Journal)
		if err != nil {
			s.Close()
			return nil, WrapExitError(ExitCommandError, "failed to open journal", err)
		}
		s.journal = j
		s.closers = append(s.closers, j)
		engineOpts = append(engineOpts, engine.WithRecorder(j))
	}

	s.engine = engine.New(s.store, s.remote, engineOpts...)
	return s, nil
}

func newRemote(cfg config.Config, opts *RootOptions, logger *slog.Logger) (remote.Client, error) {
	if opts.Remote != nil {
		return opts.Remote, nil
	}
	if cfg.Endpoint == "" {
		return nil, NewExitError(ExitCommandError,
			"no remote endpoint configured: set endpoint in .mirror.yaml, MIRROR_ENDPOINT or --endpoint")
	}
	return remote.NewHTTPClient(cfg.Endpoint, cfg.Token,
		remote.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		remote.WithLogger(logger)), nil
}

// Close releases the journal and the log file, in reverse order of opening.
func (s *session) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil && s.logger != nil {
			s.logger.Error("error closing resource", "error", err)
		}
	}
	s.closers = nil
}

func searchPaths() []string {
	paths := []string{"."}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, home)
	}
	return paths
}

// commandContext derives a context that is cancelled on SIGINT or SIGTERM.
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

// isCancelled reports whether err only means the user interrupted the pass.
func isCancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
