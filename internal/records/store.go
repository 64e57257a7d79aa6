package records

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/roach88/mirror/internal/model"
	"github.com/roach88/mirror/internal/schemadoc"
	"github.com/roach88/mirror/internal/tabular"
)

// File names inside a database directory.
const (
	SchemaFile = "schema.yaml"
	DataFile   = "data.csv"
	PageExt    = ".md"
)

// ErrCorrupt marks a record that exists on disk but cannot be read back.
var ErrCorrupt = errors.New("corrupt record")

// Database is a loaded database record.
type Database struct {
	Collection string
	Slug       string
	Schema     model.SchemaDocument
	Rows       []model.Row

	// Unmapped holds data columns whose header matches no property of the
	// schema, such as the old header of a renamed property. See
	// tabular.Table.
	Unmapped map[string][]string
}

// Page is a loaded page record.
type Page struct {
	Collection string
	Slug       string
	Doc        model.PageDocument
}

// Skipped names a record left out of a listing and why.
type Skipped struct {
	Path   string
	Reason string
}

// Listing is the result of enumerating records.
type Listing struct {
	Databases []Database
	Pages     []Page
	Skipped   []Skipped
}

// Store owns the on-disk representation of the mirror.
type Store struct {
	root   string
	logger *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithLogger sets the logger used for skipped and unreadable records.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// New returns a Store rooted at root. Nothing is created until the first
// save.
func New(root string, opts ...StoreOption) *Store {
	s := &Store{
		root:   root,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Root returns the root directory.
func (s *Store) Root() string {
	return s.root
}

// DatabaseDir returns the directory holding a database record.
func (s *Store) DatabaseDir(collection, slug string) string {
	return filepath.Join(s.root, collection, slug)
}

// PagePath returns the file holding a page record.
func (s *Store) PagePath(collection, slug string) string {
	return filepath.Join(s.root, collection, slug+PageExt)
}

// LoadDatabase reads a database record. It reports false when the record
// does not exist or cannot be parsed.
func (s *Store) LoadDatabase(collection, slug string) (Database, bool) {
	db, err := s.readDatabase(collection, slug)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("database unreadable", "collection", collection, "slug", slug, "error", err)
		}
		return Database{}, false
	}
	return db, true
}

func (s *Store) readDatabase(collection, slug string) (Database, error) {
	dir := s.DatabaseDir(collection, slug)
	schemaPath := filepath.Join(dir, SchemaFile)
	schema, ok, err := schemadoc.ReadFile(schemaPath)
	if err != nil {
		return Database{}, err
	}
	if !ok {
		if _, statErr := os.Stat(schemaPath); errors.Is(statErr, os.ErrNotExist) {
			return Database{}, fmt.Errorf("%s: %w", schemaPath, os.ErrNotExist)
		}
		return Database{}, fmt.Errorf("%w: %s does not parse", ErrCorrupt, SchemaFile)
	}
	table, err := tabular.ReadTable(filepath.Join(dir, DataFile), schema.Properties)
	if err != nil {
		return Database{}, err
	}
	return Database{
		Collection: collection,
		Slug:       slug,
		Schema:     schema,
		Rows:       table.Rows,
		Unmapped:   table.Unmapped,
	}, nil
}

// SaveDatabase persists a database record and stamps both of its hashes
// with remoteHash, so a freshly saved record starts in sync. The schema's
// collection slug and slug are set to the record's location.
//
// The row file is written before the schema file. A crash between the two
// leaves new rows under the old stamps, which reads back as Modified.
func (s *Store) SaveDatabase(collection, slug string, schema model.SchemaDocument, rows []model.Row, remoteHash string) error {
	schema.CollectionSlug = collection
	schema.Slug = slug
	schema.LocalHash = remoteHash
	schema.RemoteHash = remoteHash

	dir := s.DatabaseDir(collection, slug)
	if err := tabular.WriteFile(filepath.Join(dir, DataFile), rows, schema.Properties); err != nil {
		return fmt.Errorf("save database %s/%s: %w", collection, slug, err)
	}
	if err := schemadoc.WriteFile(filepath.Join(dir, SchemaFile), schema); err != nil {
		return fmt.Errorf("save database %s/%s: %w", collection, slug, err)
	}
	return nil
}

// DeleteDatabase removes a database record. Deleting a missing record is
// not an error.
func (s *Store) DeleteDatabase(collection, slug string) error {
	if err := os.RemoveAll(s.DatabaseDir(collection, slug)); err != nil {
		return fmt.Errorf("delete database %s/%s: %w", collection, slug, err)
	}
	return nil
}

// Collections lists the collection directories under the root, sorted by
// name. A missing root has no collections.
func (s *Store) Collections() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list collections: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() && !hidden(e.Name()) {
			names = append(names, e.Name())
		}
	}
	return names, nil
}

// ListDatabases loads every database in a collection.
func (s *Store) ListDatabases(collection string) (Listing, error) {
	var listing Listing
	err := s.walkCollection(collection, func(name string, isDir bool) {
		if !isDir {
			return
		}
		db, err := s.readDatabase(collection, name)
		if err != nil {
			listing.skip(s.logger, s.DatabaseDir(collection, name), err)
			return
		}
		listing.Databases = append(listing.Databases, db)
	})
	return listing, err
}

// ListAllDatabases loads every database in every collection.
func (s *Store) ListAllDatabases() (Listing, error) {
	return s.listAll(s.ListDatabases)
}

// ListPages loads every page in a collection.
func (s *Store) ListPages(collection string) (Listing, error) {
	var listing Listing
	err := s.walkCollection(collection, func(name string, isDir bool) {
		if isDir || !strings.HasSuffix(name, PageExt) {
			return
		}
		slug := strings.TrimSuffix(name, PageExt)
		page, err := s.readPage(collection, slug)
		if err != nil {
			listing.skip(s.logger, s.PagePath(collection, slug), err)
			return
		}
		listing.Pages = append(listing.Pages, page)
	})
	return listing, err
}

// ListAllPages loads every page in every collection.
func (s *Store) ListAllPages() (Listing, error) {
	return s.listAll(s.ListPages)
}

func (s *Store) listAll(list func(string) (Listing, error)) (Listing, error) {
	collections, err := s.Collections()
	if err != nil {
		return Listing{}, err
	}

	var all Listing
	for _, c := range collections {
		l, err := list(c)
		if err != nil {
			return all, err
		}
		all.Databases = append(all.Databases, l.Databases...)
		all.Pages = append(all.Pages, l.Pages...)
		all.Skipped = append(all.Skipped, l.Skipped...)
	}
	return all, nil
}

func (s *Store) walkCollection(collection string, visit func(name string, isDir bool)) error {
	entries, err := os.ReadDir(filepath.Join(s.root, collection))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("list collection %s: %w", collection, err)
	}
	for _, e := range entries {
		if hidden(e.Name()) {
			continue
		}
		visit(e.Name(), e.IsDir())
	}
	return nil
}

func (l *Listing) skip(logger *slog.Logger, path string, err error) {
	logger.Warn("skipping record", "path", path, "error", err)
	l.Skipped = append(l.Skipped, Skipped{Path: path, Reason: err.Error()})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".")
}
