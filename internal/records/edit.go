package records

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/roach88/mirror/internal/fsutil"
	"github.com/roach88/mirror/internal/model"
	"github.com/roach88/mirror/internal/tabular"
)

// The methods in this file change record content the way an editor does:
// the sync stamps are left as they were, so the record reads back as
// Modified when the content differs from what was last synced.

// WriteRows replaces the rows of an existing database. It refuses to
// rewrite a data file holding unmapped columns, since their values would
// be lost.
func (s *Store) WriteRows(collection, slug string, rows []model.Row) error {
	db, err := s.readDatabase(collection, slug)
	if err != nil {
		return fmt.Errorf("write rows %s/%s: %w", collection, slug, err)
	}
	if len(db.Unmapped) > 0 {
		return fmt.Errorf("write rows %s/%s: %w", collection, slug, &UnmappedError{Headers: tabular.Table{Unmapped: db.Unmapped}.Headers()})
	}
	path := filepath.Join(s.DatabaseDir(collection, slug), DataFile)
	if err := tabular.WriteFile(path, rows, db.Schema.Properties); err != nil {
		return fmt.Errorf("write rows %s/%s: %w", collection, slug, err)
	}
	return nil
}

// WritePageContent replaces the body of an existing page.
func (s *Store) WritePageContent(collection, slug, content string) error {
	page, err := s.readPage(collection, slug)
	if err != nil {
		return fmt.Errorf("write page %s/%s: %w", collection, slug, err)
	}
	page.Doc.Content = content
	data, err := encodePage(page.Doc)
	if err != nil {
		return fmt.Errorf("write page %s/%s: %w", collection, slug, err)
	}
	if err := fsutil.WriteFileAtomic(s.PagePath(collection, slug), data); err != nil {
		return fmt.Errorf("write page %s/%s: %w", collection, slug, err)
	}
	return nil
}

// FindDatabase returns the local database with the given record id.
func (s *Store) FindDatabase(id string) (Database, bool, error) {
	listing, err := s.ListAllDatabases()
	if err != nil {
		return Database{}, false, err
	}
	for _, db := range listing.Databases {
		if db.Schema.ID == id {
			return db, true, nil
		}
	}
	return Database{}, false, nil
}

// FindPage returns the local page with the given record id.
func (s *Store) FindPage(id string) (Page, bool, error) {
	listing, err := s.ListAllPages()
	if err != nil {
		return Page{}, false, err
	}
	for _, p := range listing.Pages {
		if p.Doc.ID == id {
			return p, true, nil
		}
	}
	return Page{}, false, nil
}

// UnmappedError reports data columns that match no property.
type UnmappedError struct {
	Headers []string
}

func (e *UnmappedError) Error() string {
	return fmt.Sprintf("%s has columns matching no property: %s", DataFile, strings.Join(e.Headers, ", "))
}

