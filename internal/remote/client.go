// Package remote is the transport boundary to the service that owns the
// authoritative copy of every page and database.
//
// The engine only talks to the Client interface. HTTPClient speaks JSON to
// a real endpoint; Memory is an in-process remote used by tests and the
// scenario harness.
package remote

import (
	"context"
	"errors"

	"github.com/roach88/mirror/internal/model"
)

// ErrNotFound is returned, possibly wrapped, when a record does not exist
// on the remote.
var ErrNotFound = errors.New("record not found")

// DatabaseSnapshot is a database as the remote currently holds it.
type DatabaseSnapshot struct {
	Schema model.SchemaDocument
	Rows   []model.Row
}

// WireRow is a row in the form the remote accepts on write. Select values
// carry option ids: a string for select and a []string for multi_select.
// Other values are strings or nil.
type WireRow struct {
	ID           string         `json:"id,omitempty"`
	Title        string         `json:"title"`
	DataSourceID string         `json:"dataSourceId,omitempty"`
	Properties   map[string]any `json:"properties,omitempty"`
}

// RowBatch is one round of row writes against a database. Create rows carry
// the local id so per-row errors can be matched back to them.
type RowBatch struct {
	DatabaseID string    `json:"databaseId"`
	Create     []WireRow `json:"create,omitempty"`
	Update     []WireRow `json:"update,omitempty"`
	Delete     []string  `json:"delete,omitempty"`
}

// Empty reports whether the batch has nothing to apply.
func (b RowBatch) Empty() bool {
	return len(b.Create) == 0 && len(b.Update) == 0 && len(b.Delete) == 0
}

// RowOp names the kind of row write.
type RowOp string

const (
	OpCreate RowOp = "create"
	OpUpdate RowOp = "update"
	OpDelete RowOp = "delete"
)

// RowError is a single rejected row write.
type RowError struct {
	Op      RowOp  `json:"op"`
	RowID   string `json:"rowId"`
	Message string `json:"message"`
}

// BatchResult reports what a RowBatch did. Rows are applied independently:
// a rejected row shows up in Errors and does not undo the others.
type BatchResult struct {
	Created int        `json:"created"`
	Updated int        `json:"updated"`
	Deleted int        `json:"deleted"`
	Errors  []RowError `json:"errors,omitempty"`
}

// Client is everything the sync engine needs from the remote.
type Client interface {
	// ListRecords returns a summary of every record visible to the caller.
	ListRecords(ctx context.Context) ([]model.RecordSummary, error)

	// FetchDatabase returns the current schema and rows of a database.
	FetchDatabase(ctx context.Context, id string) (DatabaseSnapshot, error)

	// FetchPage returns the current content of a page.
	FetchPage(ctx context.Context, id string) (model.PageDocument, error)

	// ApplyRows creates, updates and deletes rows of one database.
	ApplyRows(ctx context.Context, batch RowBatch) (BatchResult, error)

	// UpdateDatabase replaces the title, data sources and properties of a
	// database and returns the stored schema.
	UpdateDatabase(ctx context.Context, schema model.SchemaDocument) (model.SchemaDocument, error)

	// UpdatePage replaces the title and content of a page and returns the
	// stored page.
	UpdatePage(ctx context.Context, page model.PageDocument) (model.PageDocument, error)
}
