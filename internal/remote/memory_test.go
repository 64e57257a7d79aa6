package remote

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirror/internal/model"
)

var fixedNow = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func memorySchema() model.SchemaDocument {
	return model.SchemaDocument{
		ID:    "db-1",
		Title: "Tasks",
		Slug:  "tasks",
		Properties: []model.PropertyDescriptor{
			{ID: "p-status", Name: "Status", Type: model.PropertyTypeSelect, Config: map[string]any{
				"options": model.OptionsConfig(
					model.SelectOption{ID: "o-todo", Name: "Todo"},
					model.SelectOption{ID: "o-done", Name: "Done"},
				),
			}},
			{ID: "p-tags", Name: "Tags", Type: model.PropertyTypeMultiSelect, Config: map[string]any{
				"options": model.OptionsConfig(
					model.SelectOption{ID: "t-a", Name: "Alpha"},
					model.SelectOption{ID: "t-b", Name: "Beta"},
				),
			}},
			{ID: "p-notes", Name: "Notes", Type: model.PropertyTypeText},
		},
	}
}

func newTestMemory() *Memory {
	m := NewMemory(WithClock(func() time.Time { return fixedNow }))
	m.PutDatabase(memorySchema(), []model.Row{
		{ID: "r1", Title: "One", Properties: map[string]*string{"p-status": model.Text("Todo")}},
		{ID: "r2", Title: "Two"},
	})
	return m
}

func TestMemoryFetchReturnsCopies(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	snap, err := m.FetchDatabase(ctx, "db-1")
	require.NoError(t, err)
	snap.Rows[0].Title = "changed"
	*snap.Rows[0].Properties["p-status"] = "changed"

	again, err := m.FetchDatabase(ctx, "db-1")
	require.NoError(t, err)
	assert.Equal(t, "One", again.Rows[0].Title)
	assert.Equal(t, "Todo", again.Rows[0].Value("p-status"))
}

func TestMemoryNotFound(t *testing.T) {
	m := NewMemory()
	ctx := context.Background()

	_, err := m.FetchDatabase(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.FetchPage(ctx, "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.ApplyRows(ctx, RowBatch{DatabaseID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.UpdatePage(ctx, model.PageDocument{ID: "nope"})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryApplyRows(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	res, err := m.ApplyRows(ctx, RowBatch{
		DatabaseID: "db-1",
		Create: []WireRow{{ID: "local-1", Title: "Three", Properties: map[string]any{
			"p-status": "o-done",
			"p-tags":   []string{"t-b", "t-a", "unknown"},
			"p-notes":  "hello",
		}}},
		Update: []WireRow{{ID: "r1", Title: "One!", Properties: map[string]any{
			"p-status": nil,
			"p-notes":  "n",
		}}},
		Delete: []string{"r2"},
	})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{Created: 1, Updated: 1, Deleted: 1}, res)
	assert.Equal(t, 1, m.Writes())

	snap, err := m.FetchDatabase(ctx, "db-1")
	require.NoError(t, err)
	require.Len(t, snap.Rows, 2)

	assert.Equal(t, model.Row{ID: "r1", Title: "One!", Properties: map[string]*string{
		"p-notes": model.Text("n"),
	}}, snap.Rows[0])
	assert.Equal(t, model.Row{ID: "row-1", Title: "Three", Properties: map[string]*string{
		"p-status": model.Text("Done"),
		"p-tags":   model.Text("Beta, Alpha, unknown"),
		"p-notes":  model.Text("hello"),
	}}, snap.Rows[1])
	assert.Equal(t, fixedNow, snap.Schema.UpdatedAt)
}

func TestMemoryApplyRowsPartialFailure(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	m.FailRow("r1", "validation failed")
	m.FailRow("local-9", "quota exceeded")

	res, err := m.ApplyRows(ctx, RowBatch{
		DatabaseID: "db-1",
		Create:     []WireRow{{ID: "local-9", Title: "x"}, {ID: "local-10", Title: "y"}},
		Update:     []WireRow{{ID: "r1", Title: "z"}, {ID: "ghost", Title: "g"}},
		Delete:     []string{"r2"},
	})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Created)
	assert.Equal(t, 0, res.Updated)
	assert.Equal(t, 1, res.Deleted)
	assert.Equal(t, []RowError{
		{Op: OpCreate, RowID: "local-9", Message: "quota exceeded"},
		{Op: OpUpdate, RowID: "r1", Message: "validation failed"},
		{Op: OpUpdate, RowID: "ghost", Message: "row does not exist"},
	}, res.Errors)

	snap, err := m.FetchDatabase(ctx, "db-1")
	require.NoError(t, err)
	assert.Equal(t, "One", snap.Rows[0].Title)
}

func TestMemoryFailFetch(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	boom := errors.New("connection reset")

	m.FailFetch("db-1", boom)
	_, err := m.FetchDatabase(ctx, "db-1")
	assert.ErrorIs(t, err, boom)

	m.FailFetch("db-1", nil)
	_, err = m.FetchDatabase(ctx, "db-1")
	assert.NoError(t, err)
}

func TestMemoryUpdateDatabaseNormalizesConfig(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()

	schema := memorySchema()
	schema.Title = "Renamed"
	schema.Properties[2].Config = map[string]any{"precision": 2}

	stored, err := m.UpdateDatabase(ctx, schema)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, map[string]any{"precision": int64(2)}, stored.Properties[2].Config)
	assert.Equal(t, fixedNow, stored.UpdatedAt)
}

func TestMemoryPagesAndListing(t *testing.T) {
	m := newTestMemory()
	ctx := context.Background()
	m.PutPage(model.PageDocument{ID: "pg-1", Title: "Notes", Content: "old"})

	updated, err := m.UpdatePage(ctx, model.PageDocument{ID: "pg-1", Title: "Notes", Content: "new"})
	require.NoError(t, err)
	assert.Equal(t, "new", updated.Content)
	assert.Equal(t, fixedNow, updated.UpdatedAt)

	list, err := m.ListRecords(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "db-1", list[0].ID)
	assert.Equal(t, model.KindDatabase, list[0].Kind)
	assert.Equal(t, "pg-1", list[1].ID)
	assert.Equal(t, model.KindPage, list[1].Kind)

	m.Remove("pg-1")
	_, err = m.FetchPage(ctx, "pg-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryHonorsCancelledContext(t *testing.T) {
	m := newTestMemory()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := m.FetchDatabase(ctx, "db-1")
	assert.ErrorIs(t, err, context.Canceled)
}
