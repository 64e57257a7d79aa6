package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/mirror/internal/fingerprint"
	"github.com/roach88/mirror/internal/journal"
	"github.com/roach88/mirror/internal/model"
	"github.com/roach88/mirror/internal/records"
	"github.com/roach88/mirror/internal/remote"
	"github.com/roach88/mirror/internal/tabular"
)

// PushOptions selects what Push reconciles.
type PushOptions struct {
	// Force pushes even when the remote changed since the last pull.
	Force bool

	// IDs limits the pass to these records. Empty means all.
	IDs []string
}

// Push sends local edits of every selected record to the remote. Records
// without local edits are checked for remote deletion and otherwise left
// alone. A record's failure never stops the pass.
func (e *Engine) Push(ctx context.Context, opts PushOptions) (Report, error) {
	dbs, err := e.store.ListAllDatabases()
	if err != nil {
		return Report{}, storeError("", "list local databases", err)
	}
	pages, err := e.store.ListAllPages()
	if err != nil {
		return Report{}, storeError("", "list local pages", err)
	}

	want := make(map[string]bool, len(opts.IDs))
	for _, id := range opts.IDs {
		want[id] = true
	}
	selected := func(id string) bool {
		return len(want) == 0 || want[id]
	}

	report := Report{
		RunID:   e.begin(ctx, journal.DirectionPush),
		Skipped: append(dbs.Skipped, pages.Skipped...),
	}

	for _, db := range dbs.Databases {
		if !selected(db.Schema.ID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := e.pushDatabase(ctx, db, opts.Force)
		e.record(ctx, report.RunID, res)
		report.Results = append(report.Results, res)
	}
	for _, p := range pages.Pages {
		if !selected(p.Doc.ID) {
			continue
		}
		if err := ctx.Err(); err != nil {
			return report, err
		}
		res := e.pushPage(ctx, p, opts.Force)
		e.record(ctx, report.RunID, res)
		report.Results = append(report.Results, res)
	}
	return report, nil
}

// PushDatabase pushes one local database.
func (e *Engine) PushDatabase(ctx context.Context, collection, slug string, force bool) RecordResult {
	db, ok := e.store.LoadDatabase(collection, slug)
	if !ok {
		return failed(RecordResult{Kind: model.KindDatabase, Collection: collection, Slug: slug}, &SyncError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("no local database at %s/%s", collection, slug),
		})
	}
	return e.pushDatabase(ctx, db, force)
}

// PushPage pushes one local page.
func (e *Engine) PushPage(ctx context.Context, collection, slug string, force bool) RecordResult {
	page, ok := e.store.LoadPage(collection, slug)
	if !ok {
		return failed(RecordResult{Kind: model.KindPage, Collection: collection, Slug: slug}, &SyncError{
			Code:    ErrCodeNotFound,
			Message: fmt.Sprintf("no local page at %s/%s", collection, slug),
		})
	}
	return e.pushPage(ctx, page, force)
}

func (e *Engine) pushDatabase(ctx context.Context, local records.Database, force bool) RecordResult {
	id := local.Schema.ID
	res := RecordResult{
		RecordID:   id,
		Kind:       model.KindDatabase,
		Collection: local.Collection,
		Slug:       local.Slug,
		Title:      local.Schema.Title,
	}
	state := ClassifyDatabase(local)

	snap, err := e.remote.FetchDatabase(ctx, id)
	if errors.Is(err, remote.ErrNotFound) {
		return e.remoteGone(res, state, func() error {
			return e.store.DeleteDatabase(local.Collection, local.Slug)
		})
	}
	if err != nil {
		return failed(res, remoteError(id, "fetch baseline", err))
	}
	baseSchema, baseRows, baseHash := normalizeSnapshot(snap)

	if state == model.Synced {
		res.Outcome = OutcomeUnchanged
		res.Hash = local.Schema.RemoteHash
		return res
	}
	if baseHash != local.Schema.RemoteHash && !force {
		res.Outcome = OutcomeConflict
		res.Message = "remote changed since last pull; pull first or push with --force"
		return res
	}
	if err := checkSchema(local.Schema, baseSchema); err != nil {
		return failed(res, err)
	}
	localRows, serr := carryRenamed(local, baseSchema)
	if serr != nil {
		return failed(res, serr)
	}

	optionSchema := baseSchema
	if schemaChanged(local.Schema, baseSchema) {
		stored, err := e.remote.UpdateDatabase(ctx, local.Schema)
		if err != nil {
			return failed(res, remoteError(id, "update schema", err))
		}
		optionSchema = stored
	}

	rows := e.assignLocalIDs(localRows)
	diff := DiffRows(rows, baseRows)
	options := optionIndex(optionSchema, local.Schema)

	batch := remote.RowBatch{DatabaseID: id}
	for _, r := range diff.Create {
		w, unresolved := ToWireRow(r, local.Schema, options)
		batch.Create = append(batch.Create, w)
		res.Unresolved = append(res.Unresolved, unresolved...)
	}
	for _, r := range diff.Update {
		w, unresolved := ToWireRow(r, local.Schema, options)
		batch.Update = append(batch.Update, w)
		res.Unresolved = append(res.Unresolved, unresolved...)
	}
	for _, r := range diff.Delete {
		batch.Delete = append(batch.Delete, r.ID)
	}

	if !batch.Empty() {
		applied, err := e.remote.ApplyRows(ctx, batch)
		if err != nil {
			return failed(res, remoteError(id, "apply rows", err))
		}
		res.Created, res.Updated, res.Deleted = applied.Created, applied.Updated, applied.Deleted
		res.RowErrors = applied.Errors
	}

	post, err := e.remote.FetchDatabase(ctx, id)
	if err != nil {
		return failed(res, remoteError(id, "re-fetch after write", err))
	}
	postSchema, postRows, postHash := normalizeSnapshot(post)
	kept := keepRejected(postRows, rows, res.RowErrors)

	if err := e.store.SaveDatabase(local.Collection, local.Slug, postSchema, kept, postHash); err != nil {
		return failed(res, storeError(id, "save database", err))
	}

	e.logger.Debug("database pushed",
		"record", id,
		"created", res.Created,
		"updated", res.Updated,
		"deleted", res.Deleted,
		"rejected", len(res.RowErrors))

	res.Outcome = OutcomePushed
	res.Title = postSchema.Title
	res.Hash = postHash
	if len(res.RowErrors) > 0 {
		res.Message = fmt.Sprintf("%d row(s) rejected by remote; kept locally for the next push", len(res.RowErrors))
	}
	return res
}

func (e *Engine) pushPage(ctx context.Context, local records.Page, force bool) RecordResult {
	id := local.Doc.ID
	res := RecordResult{
		RecordID:   id,
		Kind:       model.KindPage,
		Collection: local.Collection,
		Slug:       local.Slug,
		Title:      local.Doc.Title,
	}
	state := ClassifyPage(local)

	current, err := e.remote.FetchPage(ctx, id)
	if errors.Is(err, remote.ErrNotFound) {
		return e.remoteGone(res, state, func() error {
			return e.store.DeletePage(local.Collection, local.Slug)
		})
	}
	if err != nil {
		return failed(res, remoteError(id, "fetch baseline", err))
	}
	_, baseHash := normalizePage(current)

	if state == model.Synced {
		res.Outcome = OutcomeUnchanged
		res.Hash = local.Doc.RemoteHash
		return res
	}
	if baseHash != local.Doc.RemoteHash && !force {
		res.Outcome = OutcomeConflict
		res.Message = "remote changed since last pull; pull first or push with --force"
		return res
	}

	if _, err := e.remote.UpdatePage(ctx, local.Doc); err != nil {
		return failed(res, remoteError(id, "update page", err))
	}
	fetched, err := e.remote.FetchPage(ctx, id)
	if err != nil {
		return failed(res, remoteError(id, "re-fetch after write", err))
	}
	post, postHash := normalizePage(fetched)

	if err := e.store.SavePage(local.Collection, local.Slug, post, postHash); err != nil {
		return failed(res, storeError(id, "save page", err))
	}
	res.Outcome = OutcomePushed
	res.Title = post.Title
	res.Hash = postHash
	return res
}

// remoteGone handles a local record whose remote no longer exists. An
// unedited copy follows the remote and is deleted; an edited one is left
// for the user to resolve.
func (e *Engine) remoteGone(res RecordResult, state model.SyncState, remove func() error) RecordResult {
	if state == model.Modified {
		res.Outcome = OutcomeConflict
		res.Message = "record was deleted remotely but has local changes"
		return res
	}
	if err := remove(); err != nil {
		return failed(res, storeError(res.RecordID, "delete local copy", err))
	}
	res.Outcome = OutcomeDeleted
	return res
}

// assignLocalIDs gives every row without an id a temporary local one.
func (e *Engine) assignLocalIDs(rows []model.Row) []model.Row {
	out := model.CloneRows(rows)
	for i := range out {
		if out[i].ID == "" {
			out[i].ID = LocalIDPrefix + e.ids.Generate()
		}
	}
	return out
}

// checkSchema rejects local schema edits the remote cannot apply.
func checkSchema(local, base model.SchemaDocument) *SyncError {
	if err := local.Validate(); err != nil {
		return &SyncError{Code: ErrCodeIncompatibleSchema, RecordID: local.ID, Message: "invalid schema", Err: err}
	}
	for _, p := range local.Properties {
		b, ok := base.Property(p.ID)
		if ok && b.Type != p.Type {
			return &SyncError{
				Code:     ErrCodeIncompatibleSchema,
				RecordID: local.ID,
				Message:  fmt.Sprintf("property %q changes type from %s to %s", p.Name, b.Type, p.Type),
			}
		}
	}
	return nil
}

// carryRenamed moves the values of unmapped data columns onto the property
// each column headed in the baseline layout. That is how a property renamed
// in the schema file but not in the data file reads back. A column that
// leads to no property of the local schema fails the push before any write,
// since pushing without it would clear its values on the remote.
func carryRenamed(local records.Database, base model.SchemaDocument) ([]model.Row, *SyncError) {
	if len(local.Unmapped) == 0 {
		return local.Rows, nil
	}
	baseHeaders := tabular.HeaderIndex(base.Properties)
	rows := model.CloneRows(local.Rows)
	for _, header := range (tabular.Table{Unmapped: local.Unmapped}).Headers() {
		pid, ok := baseHeaders[header]
		if _, kept := local.Schema.Property(pid); !ok || !kept {
			return nil, &SyncError{
				Code:     ErrCodeIncompatibleSchema,
				RecordID: local.Schema.ID,
				Message:  fmt.Sprintf("column %q in %s matches no property; rename or remove it before pushing", header, records.DataFile),
			}
		}
		for i, value := range local.Unmapped[header] {
			if value == "" || i >= len(rows) || rows[i].Value(pid) != "" {
				continue
			}
			if rows[i].Properties == nil {
				rows[i].Properties = make(map[string]*string)
			}
			rows[i].Properties[pid] = model.Text(value)
		}
	}
	return rows, nil
}

func schemaChanged(local, base model.SchemaDocument) bool {
	if local.Title != base.Title {
		return true
	}
	return fingerprint.SchemaFingerprint(local.Properties, local.DataSources) !=
		fingerprint.SchemaFingerprint(base.Properties, base.DataSources)
}

// keepRejected overlays the local form of every rejected row onto the
// post-write rows: failed creates are re-added, failed updates keep the
// local values and failed deletes stay deleted.
func keepRejected(post, local []model.Row, rejected []remote.RowError) []model.Row {
	if len(rejected) == 0 {
		return post
	}
	byID := make(map[string]model.Row, len(local))
	for _, r := range local {
		byID[r.ID] = r
	}

	out := model.CloneRows(post)
	for _, re := range rejected {
		switch re.Op {
		case remote.OpCreate:
			if r, ok := byID[re.RowID]; ok {
				out = append(out, r)
			}
		case remote.OpUpdate:
			r, ok := byID[re.RowID]
			if !ok {
				continue
			}
			if i := indexOfRow(out, re.RowID); i >= 0 {
				out[i] = r
			} else {
				out = append(out, r)
			}
		case remote.OpDelete:
			if i := indexOfRow(out, re.RowID); i >= 0 {
				out = append(out[:i], out[i+1:]...)
			}
		}
	}
	return out
}

func indexOfRow(rows []model.Row, id string) int {
	for i, r := range rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}
