package harness

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/mirror/internal/engine"
	"github.com/roach88/mirror/internal/model"
)

// AssertionError is returned when an assertion fails.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Record   string
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "Assertion failed: %s", e.Type)
	if e.Record != "" {
		fmt.Fprintf(&buf, " [%s]", e.Record)
	}
	fmt.Fprintf(&buf, "\n  Expected: %s\n  Actual: %s", e.Expected, e.Actual)
	return buf.String()
}

// evaluate checks every assertion and returns the failure messages.
func (h *Harness) evaluate(ctx context.Context, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		if err := h.check(ctx, a); err != nil {
			errs = append(errs, fmt.Sprintf("assertions[%d]: %s", i, err))
		}
	}
	return errs
}

func (h *Harness) check(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertLocalState:
		return h.assertLocalState(ctx, a)
	case AssertLocalRow:
		rows, err := h.localRows(a.Record)
		if err != nil {
			return err
		}
		return assertRow(a, rows)
	case AssertRemoteRow:
		snap, err := h.remote.FetchDatabase(ctx, a.Record)
		if err != nil {
			return err
		}
		return assertRow(a, snap.Rows)
	case AssertRowCount:
		return h.assertRowCount(ctx, a)
	case AssertLocalPage:
		page, ok, err := h.store.FindPage(a.Record)
		if err != nil {
			return err
		}
		if !ok {
			return mismatch(a, "local page", "missing")
		}
		return assertContent(a, page.Doc.Content)
	case AssertRemotePage:
		page, err := h.remote.FetchPage(ctx, a.Record)
		if err != nil {
			return err
		}
		return assertContent(a, page.Content)
	case AssertStampsMatch:
		return h.assertStamps(ctx, a)
	case AssertJournalCount:
		return h.assertJournalCount(ctx, a)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

func (h *Harness) assertLocalState(ctx context.Context, a Assertion) error {
	report, err := h.engine.Status(ctx)
	if err != nil {
		return err
	}
	for _, res := range report.Results {
		if res.RecordID == a.Record {
			if res.State != a.State {
				return mismatch(a, a.State, res.State)
			}
			return nil
		}
	}
	return mismatch(a, a.State, "no local record")
}

func (h *Harness) localRows(id string) ([]model.Row, error) {
	db, ok, err := h.store.FindDatabase(id)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no local database %q", id)
	}
	return db.Rows, nil
}

func assertRow(a Assertion, rows []model.Row) error {
	idx := rowIndex(rows, a.Row)
	if a.Absent {
		if idx >= 0 {
			return mismatch(a, "row "+a.Row+" absent", "row present")
		}
		return nil
	}
	if idx < 0 {
		return mismatch(a, "row "+a.Row+" present", "row absent")
	}

	row := rows[idx]
	if a.Title != "" && row.Title != a.Title {
		return mismatch(a, fmt.Sprintf("title %q", a.Title), fmt.Sprintf("title %q", row.Title))
	}
	pids := make([]string, 0, len(a.Values))
	for pid := range a.Values {
		pids = append(pids, pid)
	}
	sort.Strings(pids)
	for _, pid := range pids {
		if got := row.Value(pid); got != a.Values[pid] {
			return mismatch(a, fmt.Sprintf("%s = %q", pid, a.Values[pid]), fmt.Sprintf("%s = %q", pid, got))
		}
	}
	return nil
}

func (h *Harness) assertRowCount(ctx context.Context, a Assertion) error {
	var rows []model.Row
	if a.Side == "local" {
		local, err := h.localRows(a.Record)
		if err != nil {
			return err
		}
		rows = local
	} else {
		snap, err := h.remote.FetchDatabase(ctx, a.Record)
		if err != nil {
			return err
		}
		rows = snap.Rows
	}
	if len(rows) != a.Count {
		return mismatch(a, fmt.Sprintf("%d %s rows", a.Count, a.Side), fmt.Sprintf("%d", len(rows)))
	}
	return nil
}

func assertContent(a Assertion, got string) error {
	if got != a.Content {
		return mismatch(a, fmt.Sprintf("%q", a.Content), fmt.Sprintf("%q", got))
	}
	return nil
}

// assertStamps checks that a record is fully in sync: both local stamps
// equal the fingerprint of what the remote holds now.
func (h *Harness) assertStamps(ctx context.Context, a Assertion) error {
	if db, ok, err := h.store.FindDatabase(a.Record); err != nil {
		return err
	} else if ok {
		snap, err := h.remote.FetchDatabase(ctx, a.Record)
		if err != nil {
			return err
		}
		return compareStamps(a, db.Schema.LocalHash, db.Schema.RemoteHash, engine.SnapshotFingerprint(snap))
	}

	page, ok, err := h.store.FindPage(a.Record)
	if err != nil {
		return err
	}
	if !ok {
		return mismatch(a, "local record", "missing")
	}
	remotePage, err := h.remote.FetchPage(ctx, a.Record)
	if err != nil {
		return err
	}
	return compareStamps(a, page.Doc.LocalHash, page.Doc.RemoteHash, engine.RemotePageFingerprint(remotePage))
}

func compareStamps(a Assertion, local, remote, want string) error {
	if local != want || remote != want {
		return mismatch(a, "local and remote stamps "+want,
			fmt.Sprintf("local %s, remote %s", local, remote))
	}
	return nil
}

func (h *Harness) assertJournalCount(ctx context.Context, a Assertion) error {
	runs, err := h.journal.Runs(ctx, 0)
	if err != nil {
		return err
	}
	n := 0
	for _, run := range runs {
		entries, err := h.journal.Entries(ctx, run.ID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			if e.Outcome == a.Outcome && (a.Record == "" || e.RecordID == a.Record) {
				n++
			}
		}
	}
	if n != a.Count {
		return mismatch(a, fmt.Sprintf("%d %s entries", a.Count, a.Outcome), fmt.Sprintf("%d", n))
	}
	return nil
}

func mismatch(a Assertion, expected, actual string) *AssertionError {
	return &AssertionError{Type: a.Type, Record: a.Record, Expected: expected, Actual: actual}
}
