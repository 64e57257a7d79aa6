package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"

	"github.com/roach88/mirror/internal/engine"
	"github.com/roach88/mirror/internal/journal"
	"github.com/roach88/mirror/internal/model"
	"github.com/roach88/mirror/internal/records"
	"github.com/roach88/mirror/internal/remote"
	"github.com/roach88/mirror/internal/testutil"
)

// localIDSeq prefixes the generated part of ids given to rows added
// locally, so the first added row is pushed as "local-n-1".
const localIDSeq = "n"

// Harness holds the collaborators of one scenario run.
type Harness struct {
	store   *records.Store
	remote  *remote.Memory
	journal *journal.Journal
	engine  *engine.Engine
	clock   *testutil.DeterministicClock
}

// Run executes a scenario in a fresh temporary directory and returns the
// result. An error means the scenario could not be executed at all; failed
// expectations are reported in the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext is Run with a caller-supplied context.
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	dir, err := os.MkdirTemp("", "mirror-scenario-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create scenario directory: %w", err)
	}
	defer os.RemoveAll(dir)

	h, err := newHarness(dir)
	if err != nil {
		return nil, err
	}
	defer h.journal.Close()

	h.seed(scenario.Remote)

	result := NewResult()
	for i, step := range scenario.Steps {
		if err := h.runStep(ctx, i, step, result); err != nil {
			return nil, fmt.Errorf("step %d (%s): %w", i, step.Action, err)
		}
	}

	for _, msg := range h.evaluate(ctx, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

func newHarness(dir string) (*Harness, error) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := testutil.NewClock()

	j, err := journal.Open(filepath.Join(dir, "journal.db"),
		journal.WithClock(clock.Now),
		journal.WithRunIDs(testutil.NewSequenceGenerator("run").Generate))
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	h := &Harness{
		store:   records.New(filepath.Join(dir, "mirror"), records.WithLogger(logger)),
		remote:  remote.NewMemory(remote.WithClock(clock.Now)),
		journal: j,
		clock:   clock,
	}
	h.engine = engine.New(h.store, h.remote,
		engine.WithLogger(logger),
		engine.WithRecorder(j),
		engine.WithIDGenerator(testutil.NewSequenceGenerator(localIDSeq)))
	return h, nil
}

// OptionID is the id a seeded select option gets.
func OptionID(name string) string {
	return "opt-" + records.Slugify(name)
}

func (h *Harness) seed(seed RemoteSeed) {
	for _, db := range seed.Databases {
		h.remote.PutDatabase(h.seedSchema(db), seedRows(db.Rows))
	}
	for _, p := range seed.Pages {
		h.remote.PutPage(model.PageDocument{
			ID:             p.ID,
			Title:          p.Title,
			CollectionID:   "col-" + p.Collection,
			CollectionSlug: p.Collection,
			UpdatedAt:      h.clock.Now(),
			Content:        p.Content,
		})
	}
}

func (h *Harness) seedSchema(db DatabaseSeed) model.SchemaDocument {
	schema := model.SchemaDocument{
		ID:             db.ID,
		Title:          db.Title,
		CollectionID:   "col-" + db.Collection,
		CollectionSlug: db.Collection,
		Slug:           db.Slug,
		UpdatedAt:      h.clock.Now(),
	}
	for i, p := range db.Properties {
		prop := model.PropertyDescriptor{
			ID:        p.ID,
			Name:      p.Name,
			Type:      model.PropertyType(p.Type),
			SortOrder: i,
		}
		if len(p.Options) > 0 {
			opts := make([]model.SelectOption, len(p.Options))
			for j, name := range p.Options {
				opts[j] = model.SelectOption{ID: OptionID(name), Name: name}
			}
			prop.Config = map[string]any{"options": model.OptionsConfig(opts...)}
		}
		schema.Properties = append(schema.Properties, prop)
	}
	return schema
}

func seedRows(seeds []RowSeed) []model.Row {
	rows := make([]model.Row, 0, len(seeds))
	for _, s := range seeds {
		row := model.Row{ID: s.ID, Title: s.Title}
		setValues(&row, s.Values)
		rows = append(rows, row)
	}
	return rows
}

// setValues writes values onto a row. An empty value clears the property.
func setValues(row *model.Row, values map[string]string) {
	for pid, v := range values {
		if v == "" {
			delete(row.Properties, pid)
			continue
		}
		if row.Properties == nil {
			row.Properties = make(map[string]*string)
		}
		row.Properties[pid] = model.Text(v)
	}
}

func (h *Harness) runStep(ctx context.Context, i int, st Step, result *Result) error {
	switch st.Action {
	case ActionPull:
		report, err := h.engine.Pull(ctx, engine.PullOptions{Force: st.Force})
		if err != nil {
			return err
		}
		traceReport(i, st, report, result)
		return nil

	case ActionPush:
		report, err := h.engine.Push(ctx, engine.PushOptions{Force: st.Force})
		if err != nil {
			return err
		}
		traceReport(i, st, report, result)
		return nil

	case ActionEditRow, ActionAddRow, ActionDeleteRow:
		if err := h.editLocalRows(st); err != nil {
			return err
		}

	case ActionEditPage:
		page, ok, err := h.store.FindPage(st.Record)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no local page %q", st.Record)
		}
		if err := h.store.WritePageContent(page.Collection, page.Slug, st.Content); err != nil {
			return err
		}

	case ActionRemoteEditRow:
		if err := h.editRemoteRow(ctx, st); err != nil {
			return err
		}

	case ActionRemoteEditPage:
		page, err := h.remote.FetchPage(ctx, st.Record)
		if err != nil {
			return err
		}
		page.Content = st.Content
		page.UpdatedAt = h.clock.Now()
		h.remote.PutPage(page)

	case ActionRemoteRemove:
		h.remote.Remove(st.Record)

	case ActionFailRow:
		h.remote.FailRow(st.Row, st.Message)

	default:
		return fmt.Errorf("unknown action %q", st.Action)
	}

	result.AddTrace(TraceEvent{Step: i, Action: st.Action, RecordID: st.Record, RowID: st.Row})
	return nil
}

func (h *Harness) editLocalRows(st Step) error {
	db, ok, err := h.store.FindDatabase(st.Record)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no local database %q", st.Record)
	}

	rows := db.Rows
	switch st.Action {
	case ActionAddRow:
		row := model.Row{ID: st.Row, Title: st.Title}
		setValues(&row, st.Values)
		rows = append(rows, row)
	default:
		idx := rowIndex(rows, st.Row)
		if idx < 0 {
			return fmt.Errorf("no local row %q in %s", st.Row, st.Record)
		}
		if st.Action == ActionDeleteRow {
			rows = append(rows[:idx], rows[idx+1:]...)
			break
		}
		if st.Title != "" {
			rows[idx].Title = st.Title
		}
		setValues(&rows[idx], st.Values)
	}
	return h.store.WriteRows(db.Collection, db.Slug, rows)
}

func (h *Harness) editRemoteRow(ctx context.Context, st Step) error {
	snap, err := h.remote.FetchDatabase(ctx, st.Record)
	if err != nil {
		return err
	}
	idx := rowIndex(snap.Rows, st.Row)
	if idx < 0 {
		return fmt.Errorf("no remote row %q in %s", st.Row, st.Record)
	}
	if st.Title != "" {
		snap.Rows[idx].Title = st.Title
	}
	setValues(&snap.Rows[idx], st.Values)
	snap.Schema.UpdatedAt = h.clock.Now()
	h.remote.PutDatabase(snap.Schema, snap.Rows)
	return nil
}

// traceReport records one event per result and checks the step's expect
// clause against the reported outcomes.
func traceReport(i int, st Step, report engine.Report, result *Result) {
	for _, res := range report.Results {
		result.AddTrace(TraceEvent{
			Step:     i,
			Action:   st.Action,
			RecordID: res.RecordID,
			Outcome:  string(res.Outcome),
			Created:  res.Created,
			Updated:  res.Updated,
			Deleted:  res.Deleted,
			Rejected: len(res.RowErrors),
			Message:  res.Message,
		})
	}

	got := result.Outcomes(i)
	ids := make([]string, 0, len(st.Expect))
	for id := range st.Expect {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		want := st.Expect[id]
		actual, ok := got[id]
		if !ok {
			actual = "<not reconciled>"
		}
		if actual != want {
			result.AddError(fmt.Sprintf("step %d (%s): record %s: expected outcome %q, got %q",
				i, st.Action, id, want, actual))
		}
	}
}

func rowIndex(rows []model.Row, id string) int {
	for i, r := range rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}
