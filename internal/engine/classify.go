package engine

import (
	"github.com/roach88/mirror/internal/fingerprint"
	"github.com/roach88/mirror/internal/model"
	"github.com/roach88/mirror/internal/records"
	"github.com/roach88/mirror/internal/remote"
)

// ClassifyDatabase reports whether a local database has unpushed edits.
func ClassifyDatabase(db records.Database) model.SyncState {
	if fingerprint.DocumentFingerprint(db.Schema, db.Rows) != db.Schema.LocalHash {
		return model.Modified
	}
	return model.Synced
}

// ClassifyPage reports whether a local page has unpushed edits.
func ClassifyPage(page records.Page) model.SyncState {
	if fingerprint.PageFingerprint(page.Doc) != page.Doc.LocalHash {
		return model.Modified
	}
	return model.Synced
}

// normalizeSnapshot reduces a remote snapshot to exactly what the local
// files can hold: configs in codec form, row values limited to the
// schema's properties with blanks dropped. Its fingerprint therefore
// matches the fingerprint of the same snapshot after a save and load.
func normalizeSnapshot(snap remote.DatabaseSnapshot) (model.SchemaDocument, []model.Row, string) {
	schema := model.CloneSchema(snap.Schema)
	known := make(map[string]bool, len(schema.Properties))
	for i := range schema.Properties {
		schema.Properties[i].Config = model.NormalizeConfig(schema.Properties[i].Config)
		known[schema.Properties[i].ID] = true
	}
	schema.UpdatedAt = schema.UpdatedAt.UTC()

	rows := make([]model.Row, 0, len(snap.Rows))
	for _, r := range snap.Rows {
		row := model.Row{ID: r.ID, Title: r.Title, DataSourceID: r.DataSourceID}
		for pid, v := range r.Properties {
			if !known[pid] || model.IsBlank(v) {
				continue
			}
			if row.Properties == nil {
				row.Properties = make(map[string]*string)
			}
			row.Properties[pid] = model.Text(*v)
		}
		rows = append(rows, row)
	}

	return schema, rows, fingerprint.DocumentFingerprint(schema, rows)
}

func normalizePage(page model.PageDocument) (model.PageDocument, string) {
	page.UpdatedAt = page.UpdatedAt.UTC()
	return page, fingerprint.PageFingerprint(page)
}

// SnapshotFingerprint returns the fingerprint a snapshot has once it is
// stored locally.
func SnapshotFingerprint(snap remote.DatabaseSnapshot) string {
	_, _, hash := normalizeSnapshot(snap)
	return hash
}

// RemotePageFingerprint returns the fingerprint a remote page has once it is
// stored locally.
func RemotePageFingerprint(page model.PageDocument) string {
	_, hash := normalizePage(page)
	return hash
}
