package engine

import (
	"context"
	"fmt"

	"github.com/roach88/mirror/internal/journal"
	"github.com/roach88/mirror/internal/model"
)

// PullOptions selects what Pull reconciles.
type PullOptions struct {
	// Force overwrites local edits instead of reporting a conflict.
	Force bool

	// IDs limits the pass to these remote records. Empty means all.
	IDs []string
}

// Pull brings every selected remote record into the local mirror. A
// record's failure is captured in its result and never stops the pass;
// only listing failures and cancellation return an error.
func (e *Engine) Pull(ctx context.Context, opts PullOptions) (Report, error) {
	summaries, err := e.remote.ListRecords(ctx)
	if err != nil {
		return Report{}, remoteError("", "list remote records", err)
	}
	idx, err := e.buildIndex()
	if err != nil {
		return Report{}, storeError("", "index local records", err)
	}

	selected := summaries
	var missing []string
	if len(opts.IDs) > 0 {
		selected, missing = selectSummaries(summaries, opts.IDs)
	}

	report := Report{RunID: e.begin(ctx, journal.DirectionPull)}
	for _, id := range missing {
		res := failed(RecordResult{RecordID: id}, &SyncError{
			Code:     ErrCodeNotFound,
			RecordID: id,
			Message:  "no such remote record",
		})
		e.record(ctx, report.RunID, res)
		report.Results = append(report.Results, res)
	}

	for _, s := range selected {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		var res RecordResult
		switch s.Kind {
		case model.KindDatabase:
			res = e.pullDatabase(ctx, s.ID, opts.Force, idx)
		case model.KindPage:
			res = e.pullPage(ctx, s.ID, opts.Force, idx)
		default:
			res = failed(RecordResult{RecordID: s.ID, Kind: s.Kind, Title: s.Title}, &SyncError{
				Code:     ErrCodeRemoteFailure,
				RecordID: s.ID,
				Message:  fmt.Sprintf("unknown record kind %q", s.Kind),
			})
		}
		e.record(ctx, report.RunID, res)
		report.Results = append(report.Results, res)
	}
	return report, nil
}

func selectSummaries(all []model.RecordSummary, ids []string) (selected []model.RecordSummary, missing []string) {
	byID := make(map[string]model.RecordSummary, len(all))
	for _, s := range all {
		byID[s.ID] = s
	}
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			selected = append(selected, s)
		} else {
			missing = append(missing, id)
		}
	}
	return selected, missing
}

// PullDatabase reconciles one remote database into the mirror.
func (e *Engine) PullDatabase(ctx context.Context, id string, force bool) RecordResult {
	idx, err := e.buildIndex()
	if err != nil {
		return failed(RecordResult{RecordID: id, Kind: model.KindDatabase}, storeError(id, "index local records", err))
	}
	return e.pullDatabase(ctx, id, force, idx)
}

// PullPage reconciles one remote page into the mirror.
func (e *Engine) PullPage(ctx context.Context, id string, force bool) RecordResult {
	idx, err := e.buildIndex()
	if err != nil {
		return failed(RecordResult{RecordID: id, Kind: model.KindPage}, storeError(id, "index local records", err))
	}
	return e.pullPage(ctx, id, force, idx)
}

func (e *Engine) pullDatabase(ctx context.Context, id string, force bool, idx localIndex) RecordResult {
	res := RecordResult{RecordID: id, Kind: model.KindDatabase}

	snap, err := e.remote.FetchDatabase(ctx, id)
	if err != nil {
		return failed(res, remoteError(id, "fetch database", err))
	}
	schema, rows, remoteHash := normalizeSnapshot(snap)
	res.Title = schema.Title

	loc, known := idx.databases[id]
	if !known {
		loc = freeLocation(idx.databases, id,
			placeFor(id, schema.Title, schema.CollectionSlug, schema.CollectionID, schema.Slug))
	}
	res.Collection, res.Slug = loc.collection, loc.slug

	res.Outcome = OutcomeCreated
	if local, ok := e.store.LoadDatabase(loc.collection, loc.slug); ok && known {
		state := ClassifyDatabase(local)
		if state == model.Modified && !force {
			res.Outcome = OutcomeConflict
			res.Message = conflictReason(local.Schema.RemoteHash == remoteHash)
			return res
		}
		if state == model.Synced && local.Schema.RemoteHash == remoteHash {
			res.Outcome = OutcomeUnchanged
			res.Hash = remoteHash
			return res
		}
		res.Outcome = OutcomeUpdated
	}

	if err := e.store.SaveDatabase(loc.collection, loc.slug, schema, rows, remoteHash); err != nil {
		return failed(res, storeError(id, "save database", err))
	}
	idx.databases[id] = loc
	res.Hash = remoteHash
	return res
}

func (e *Engine) pullPage(ctx context.Context, id string, force bool, idx localIndex) RecordResult {
	res := RecordResult{RecordID: id, Kind: model.KindPage}

	fetched, err := e.remote.FetchPage(ctx, id)
	if err != nil {
		return failed(res, remoteError(id, "fetch page", err))
	}
	page, remoteHash := normalizePage(fetched)
	res.Title = page.Title

	loc, known := idx.pages[id]
	if !known {
		loc = freeLocation(idx.pages, id,
			placeFor(id, page.Title, page.CollectionSlug, page.CollectionID, page.Slug))
	}
	res.Collection, res.Slug = loc.collection, loc.slug

	res.Outcome = OutcomeCreated
	if local, ok := e.store.LoadPage(loc.collection, loc.slug); ok && known {
		state := ClassifyPage(local)
		if state == model.Modified && !force {
			res.Outcome = OutcomeConflict
			res.Message = conflictReason(local.Doc.RemoteHash == remoteHash)
			return res
		}
		if state == model.Synced && local.Doc.RemoteHash == remoteHash {
			res.Outcome = OutcomeUnchanged
			res.Hash = remoteHash
			return res
		}
		res.Outcome = OutcomeUpdated
	}

	if err := e.store.SavePage(loc.collection, loc.slug, page, remoteHash); err != nil {
		return failed(res, storeError(id, "save page", err))
	}
	idx.pages[id] = loc
	res.Hash = remoteHash
	return res
}

// freeLocation returns want unless another record already lives there, in
// which case the record id is appended to the slug.
func freeLocation(taken map[string]location, id string, want location) location {
	for other, loc := range taken {
		if other != id && loc == want {
			return location{collection: want.collection, slug: want.slug + "-" + placeFor(id, "", "", "", id).slug}
		}
	}
	return want
}

func conflictReason(remoteUnchanged bool) string {
	if remoteUnchanged {
		return "local changes not pushed; push them or pull with --force"
	}
	return "local and remote both changed; pull with --force to discard local changes"
}
