package engine

import (
	"context"
	"log/slog"

	"github.com/roach88/mirror/internal/journal"
	"github.com/roach88/mirror/internal/model"
	"github.com/roach88/mirror/internal/records"
	"github.com/roach88/mirror/internal/remote"
)

// DefaultCollection holds records whose remote collection has no usable name.
const DefaultCollection = "default"

// Outcome is what reconciliation did to one record.
type Outcome string

const (
	OutcomeCreated   Outcome = "created"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeConflict  Outcome = "conflict"
	OutcomePushed    Outcome = "pushed"
	OutcomeDeleted   Outcome = "deleted"
	OutcomeFailed    Outcome = "failed"
)

// RecordResult describes the reconciliation of a single record.
type RecordResult struct {
	RecordID   string           `json:"record_id"`
	Kind       model.RecordKind `json:"kind"`
	Collection string           `json:"collection"`
	Slug       string           `json:"slug"`
	Title      string           `json:"title,omitempty"`
	Outcome    Outcome          `json:"outcome,omitempty"`
	State      string           `json:"state,omitempty"`

	// Hash is the fingerprint stamped on the record, when one was written.
	Hash string `json:"hash,omitempty"`

	// Message explains conflicts and failures.
	Message string `json:"message,omitempty"`

	// Row counts and per-row rejections of a database push.
	Created    int               `json:"created,omitempty"`
	Updated    int               `json:"updated,omitempty"`
	Deleted    int               `json:"deleted,omitempty"`
	RowErrors  []remote.RowError `json:"row_errors,omitempty"`
	Unresolved []Unresolved      `json:"unresolved,omitempty"`

	Err error `json:"-"`
}

// Report is the outcome of a batch pass.
type Report struct {
	RunID   string            `json:"run_id,omitempty"`
	Results []RecordResult    `json:"results"`
	Skipped []records.Skipped `json:"skipped,omitempty"`
}

// Count returns how many results have the given outcome.
func (r Report) Count(o Outcome) int {
	n := 0
	for _, res := range r.Results {
		if res.Outcome == o {
			n++
		}
	}
	return n
}

// HasConflicts reports whether any record ended in conflict.
func (r Report) HasConflicts() bool {
	return r.Count(OutcomeConflict) > 0
}

// HasFailures reports whether any record failed.
func (r Report) HasFailures() bool {
	return r.Count(OutcomeFailed) > 0
}

// Recorder receives every reconciliation result. The journal implements it.
type Recorder interface {
	BeginRun(ctx context.Context, direction journal.Direction) (string, error)
	Record(ctx context.Context, e journal.Entry) error
}

// Engine reconciles the record store with a remote.
type Engine struct {
	store    *records.Store
	remote   remote.Client
	logger   *slog.Logger
	recorder Recorder
	ids      IDGenerator
}

// EngineOption allows configuration of engine collaborators.
type EngineOption func(*Engine)

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = l
	}
}

// WithRecorder journals every result of Pull and Push.
func WithRecorder(r Recorder) EngineOption {
	return func(e *Engine) {
		e.recorder = r
	}
}

// WithIDGenerator sets the generator for ids of locally authored rows.
// Default: UUIDv7Generator.
func WithIDGenerator(g IDGenerator) EngineOption {
	return func(e *Engine) {
		e.ids = g
	}
}

// New creates an Engine over a record store and a remote client.
func New(store *records.Store, client remote.Client, opts ...EngineOption) *Engine {
	e := &Engine{
		store:  store,
		remote: client,
		logger: slog.Default(),
		ids:    UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// location is where a record lives in the store.
type location struct {
	collection string
	slug       string
}

// localIndex maps record ids to their current location in the store, so a
// record renamed remotely is still updated in place.
type localIndex struct {
	databases map[string]location
	pages     map[string]location
}

func (e *Engine) buildIndex() (localIndex, error) {
	idx := localIndex{
		databases: make(map[string]location),
		pages:     make(map[string]location),
	}

	dbs, err := e.store.ListAllDatabases()
	if err != nil {
		return idx, err
	}
	for _, db := range dbs.Databases {
		idx.databases[db.Schema.ID] = location{db.Collection, db.Slug}
	}

	pages, err := e.store.ListAllPages()
	if err != nil {
		return idx, err
	}
	for _, p := range pages.Pages {
		idx.pages[p.Doc.ID] = location{p.Collection, p.Slug}
	}
	return idx, nil
}

// placeFor derives the location of a record that has no local copy yet.
func placeFor(id, title, collectionSlug, collectionID, slug string) location {
	loc := location{collection: records.Slugify(collectionSlug), slug: records.Slugify(slug)}
	if loc.collection == "" {
		loc.collection = records.Slugify(collectionID)
	}
	if loc.collection == "" {
		loc.collection = DefaultCollection
	}
	if loc.slug == "" {
		loc.slug = records.Slugify(title)
	}
	if loc.slug == "" {
		loc.slug = records.Slugify(id)
	}
	if loc.slug == "" {
		loc.slug = "untitled"
	}
	return loc
}

// begin opens a journal run when a recorder is configured.
func (e *Engine) begin(ctx context.Context, dir journal.Direction) string {
	if e.recorder == nil {
		return ""
	}
	runID, err := e.recorder.BeginRun(ctx, dir)
	if err != nil {
		e.logger.Warn("journal unavailable", "error", err)
		return ""
	}
	return runID
}

// record journals and logs one result. Journal failures never fail a sync.
func (e *Engine) record(ctx context.Context, runID string, res RecordResult) {
	attrs := []any{
		"record", res.RecordID,
		"kind", res.Kind,
		"path", res.Collection + "/" + res.Slug,
		"outcome", res.Outcome,
	}
	switch res.Outcome {
	case OutcomeFailed:
		e.logger.Error("record failed", append(attrs, "error", res.Err)...)
	case OutcomeConflict:
		e.logger.Warn("record in conflict", append(attrs, "reason", res.Message)...)
	default:
		e.logger.Info("record reconciled", attrs...)
	}

	if e.recorder == nil || runID == "" {
		return
	}
	entry := journal.Entry{
		RunID:      runID,
		RecordID:   res.RecordID,
		Kind:       string(res.Kind),
		Collection: res.Collection,
		Slug:       res.Slug,
		Outcome:    string(res.Outcome),
		Hash:       res.Hash,
		Message:    res.Message,
	}
	if err := e.recorder.Record(ctx, entry); err != nil {
		e.logger.Warn("journal write failed", "record", res.RecordID, "error", err)
	}
}

func failed(res RecordResult, err *SyncError) RecordResult {
	res.Outcome = OutcomeFailed
	res.Err = err
	res.Message = err.Error()
	return res
}
