package engine

import (
	"context"

	"github.com/roach88/mirror/internal/model"
)

// Status classifies every local record without contacting the remote.
func (e *Engine) Status(ctx context.Context) (Report, error) {
	dbs, err := e.store.ListAllDatabases()
	if err != nil {
		return Report{}, storeError("", "list local databases", err)
	}
	pages, err := e.store.ListAllPages()
	if err != nil {
		return Report{}, storeError("", "list local pages", err)
	}

	report := Report{Skipped: append(dbs.Skipped, pages.Skipped...)}
	for _, db := range dbs.Databases {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Results = append(report.Results, RecordResult{
			RecordID:   db.Schema.ID,
			Kind:       model.KindDatabase,
			Collection: db.Collection,
			Slug:       db.Slug,
			Title:      db.Schema.Title,
			State:      ClassifyDatabase(db).String(),
			Hash:       db.Schema.LocalHash,
		})
	}
	for _, p := range pages.Pages {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Results = append(report.Results, RecordResult{
			RecordID:   p.Doc.ID,
			Kind:       model.KindPage,
			Collection: p.Collection,
			Slug:       p.Slug,
			Title:      p.Doc.Title,
			State:      ClassifyPage(p).String(),
			Hash:       p.Doc.LocalHash,
		})
	}
	return report, nil
}
