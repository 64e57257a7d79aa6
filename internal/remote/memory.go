package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/roach88/mirror/internal/model"
)

// Memory is an in-process remote. It behaves like the real service where
// the engine can observe it: created rows get server ids, select option ids
// are stored back as display names, and rows are applied one at a time.
//
// Failures can be injected per row (FailRow) or per record (FailFetch).
// Memory is safe for concurrent use.
type Memory struct {
	mu sync.Mutex

	databases map[string]*memDatabase
	pages     map[string]model.PageDocument

	nextRow   int
	writes    int
	failRows  map[string]string
	failFetch map[string]error
	now       func() time.Time
}

type memDatabase struct {
	schema model.SchemaDocument
	rows   []model.Row
}

// MemoryOption configures a Memory remote.
type MemoryOption func(*Memory)

// WithClock sets the time source used for UpdatedAt stamps.
func WithClock(now func() time.Time) MemoryOption {
	return func(m *Memory) {
		m.now = now
	}
}

// NewMemory returns an empty in-process remote.
func NewMemory(opts ...MemoryOption) *Memory {
	m := &Memory{
		databases: make(map[string]*memDatabase),
		pages:     make(map[string]model.PageDocument),
		failRows:  make(map[string]string),
		failFetch: make(map[string]error),
		now:       func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// PutDatabase stores a database, replacing any previous version.
func (m *Memory) PutDatabase(schema model.SchemaDocument, rows []model.Row) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.databases[schema.ID] = &memDatabase{
		schema: model.CloneSchema(schema),
		rows:   model.CloneRows(rows),
	}
}

// PutPage stores a page, replacing any previous version.
func (m *Memory) PutPage(page model.PageDocument) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pages[page.ID] = page
}

// Remove deletes a record of either kind.
func (m *Memory) Remove(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.databases, id)
	delete(m.pages, id)
}

// FailRow makes every write of the row with this id fail with message.
// For creates the id is the one the client sent.
func (m *Memory) FailRow(rowID, message string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failRows[rowID] = message
}

// FailFetch makes every fetch of the record fail with err. A nil err
// clears the failure.
func (m *Memory) FailFetch(id string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failFetch, id)
		return
	}
	m.failFetch[id] = err
}

// Writes returns how many write calls have been made.
func (m *Memory) Writes() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

// ListRecords implements Client. Summaries are sorted by id.
func (m *Memory) ListRecords(ctx context.Context) ([]model.RecordSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.RecordSummary
	for _, db := range m.databases {
		s := db.schema
		out = append(out, model.RecordSummary{
			ID: s.ID, Kind: model.KindDatabase, Title: s.Title,
			CollectionID: s.CollectionID, CollectionSlug: s.CollectionSlug,
			Slug: s.Slug, UpdatedAt: s.UpdatedAt,
		})
	}
	for _, p := range m.pages {
		out = append(out, model.RecordSummary{
			ID: p.ID, Kind: model.KindPage, Title: p.Title,
			CollectionID: p.CollectionID, CollectionSlug: p.CollectionSlug,
			Slug: p.Slug, UpdatedAt: p.UpdatedAt,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// FetchDatabase implements Client.
func (m *Memory) FetchDatabase(ctx context.Context, id string) (DatabaseSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return DatabaseSnapshot{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failFetch[id]; err != nil {
		return DatabaseSnapshot{}, err
	}
	db, ok := m.databases[id]
	if !ok {
		return DatabaseSnapshot{}, fmt.Errorf("database %s: %w", id, ErrNotFound)
	}
	return DatabaseSnapshot{
		Schema: model.CloneSchema(db.schema),
		Rows:   model.CloneRows(db.rows),
	}, nil
}

// FetchPage implements Client.
func (m *Memory) FetchPage(ctx context.Context, id string) (model.PageDocument, error) {
	if err := ctx.Err(); err != nil {
		return model.PageDocument{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.failFetch[id]; err != nil {
		return model.PageDocument{}, err
	}
	p, ok := m.pages[id]
	if !ok {
		return model.PageDocument{}, fmt.Errorf("page %s: %w", id, ErrNotFound)
	}
	return p, nil
}

// ApplyRows implements Client.
func (m *Memory) ApplyRows(ctx context.Context, batch RowBatch) (BatchResult, error) {
	if err := ctx.Err(); err != nil {
		return BatchResult{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	db, ok := m.databases[batch.DatabaseID]
	if !ok {
		return BatchResult{}, fmt.Errorf("database %s: %w", batch.DatabaseID, ErrNotFound)
	}
	m.writes++

	var res BatchResult
	reject := func(op RowOp, id, msg string) {
		res.Errors = append(res.Errors, RowError{Op: op, RowID: id, Message: msg})
	}

	for _, w := range batch.Create {
		if msg, fail := m.failRows[w.ID]; fail {
			reject(OpCreate, w.ID, msg)
			continue
		}
		m.nextRow++
		row := model.Row{ID: "row-" + strconv.Itoa(m.nextRow)}
		applyWire(&row, w, db.schema)
		db.rows = append(db.rows, row)
		res.Created++
	}

	for _, w := range batch.Update {
		if msg, fail := m.failRows[w.ID]; fail {
			reject(OpUpdate, w.ID, msg)
			continue
		}
		idx := findRow(db.rows, w.ID)
		if idx < 0 {
			reject(OpUpdate, w.ID, "row does not exist")
			continue
		}
		applyWire(&db.rows[idx], w, db.schema)
		res.Updated++
	}

	for _, id := range batch.Delete {
		if msg, fail := m.failRows[id]; fail {
			reject(OpDelete, id, msg)
			continue
		}
		idx := findRow(db.rows, id)
		if idx < 0 {
			reject(OpDelete, id, "row does not exist")
			continue
		}
		db.rows = append(db.rows[:idx], db.rows[idx+1:]...)
		res.Deleted++
	}

	if res.Created+res.Updated+res.Deleted > 0 {
		db.schema.UpdatedAt = m.now()
	}
	return res, nil
}

// UpdateDatabase implements Client.
func (m *Memory) UpdateDatabase(ctx context.Context, schema model.SchemaDocument) (model.SchemaDocument, error) {
	if err := ctx.Err(); err != nil {
		return model.SchemaDocument{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	db, ok := m.databases[schema.ID]
	if !ok {
		return model.SchemaDocument{}, fmt.Errorf("database %s: %w", schema.ID, ErrNotFound)
	}
	m.writes++

	updated := model.CloneSchema(schema)
	db.schema.Title = updated.Title
	db.schema.DataSources = updated.DataSources
	db.schema.Properties = updated.Properties
	for i := range db.schema.Properties {
		db.schema.Properties[i].Config = model.NormalizeConfig(db.schema.Properties[i].Config)
	}
	db.schema.UpdatedAt = m.now()
	return model.CloneSchema(db.schema), nil
}

// UpdatePage implements Client.
func (m *Memory) UpdatePage(ctx context.Context, page model.PageDocument) (model.PageDocument, error) {
	if err := ctx.Err(); err != nil {
		return model.PageDocument{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.pages[page.ID]
	if !ok {
		return model.PageDocument{}, fmt.Errorf("page %s: %w", page.ID, ErrNotFound)
	}
	m.writes++

	stored.Title = page.Title
	stored.Content = page.Content
	stored.UpdatedAt = m.now()
	m.pages[page.ID] = stored
	return stored, nil
}

func findRow(rows []model.Row, id string) int {
	for i, r := range rows {
		if r.ID == id {
			return i
		}
	}
	return -1
}

// applyWire writes a wire row onto a stored row, turning option ids back
// into display names the way the service reports them.
func applyWire(row *model.Row, w WireRow, schema model.SchemaDocument) {
	row.Title = w.Title
	row.DataSourceID = w.DataSourceID
	for pid, v := range w.Properties {
		text := storedText(v, schema, pid)
		if text == "" {
			delete(row.Properties, pid)
			continue
		}
		if row.Properties == nil {
			row.Properties = make(map[string]*string)
		}
		row.Properties[pid] = model.Text(text)
	}
}

func storedText(v any, schema model.SchemaDocument, pid string) string {
	prop, _ := schema.Property(pid)
	names := make(map[string]string)
	for _, opt := range model.SelectOptions(prop.Config) {
		names[opt.ID] = opt.Name
	}
	display := func(id string) string {
		if name, ok := names[id]; ok {
			return name
		}
		return id
	}

	switch val := v.(type) {
	case nil:
		return ""
	case string:
		if prop.Type == model.PropertyTypeSelect {
			return display(val)
		}
		return val
	case []string:
		out := make([]string, len(val))
		for i, id := range val {
			out[i] = display(id)
		}
		return model.JoinMulti(out)
	case []any:
		out := make([]string, 0, len(val))
		for _, item := range val {
			out = append(out, display(fmt.Sprint(item)))
		}
		return model.JoinMulti(out)
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(data)
	}
}
