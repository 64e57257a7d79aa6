package remote

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirror/internal/model"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *HTTPClient {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewHTTPClient(srv.URL+"/", "secret",
		WithHTTPClient(srv.Client()),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
	)
}

func TestHTTPFetchDatabase(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/v1/databases/db-1", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{
			"schema": {
				"id": "db-1",
				"title": "Tasks",
				"updatedAt": "2026-01-02T03:04:05Z",
				"dataSources": [{"id": "ds-1", "name": "Main", "sortOrder": 0}],
				"properties": [
					{"id": "p1", "name": "Estimate", "type": "number", "sortOrder": 1, "config": {"precision": 2, "ratio": 0.5}}
				]
			},
			"rows": [
				{"id": "r1", "title": "One", "properties": {"p1": "3", "p2": null}}
			]
		}`)
	})

	snap, err := client.FetchDatabase(context.Background(), "db-1")
	require.NoError(t, err)

	assert.Equal(t, "Tasks", snap.Schema.Title)
	assert.Equal(t, []model.DataSourceDescriptor{{ID: "ds-1", Name: "Main"}}, snap.Schema.DataSources)
	require.Len(t, snap.Schema.Properties, 1)
	assert.Equal(t, map[string]any{"precision": int64(2), "ratio": 0.5}, snap.Schema.Properties[0].Config)
	assert.Equal(t, model.PropertyTypeNumber, snap.Schema.Properties[0].Type)

	require.Len(t, snap.Rows, 1)
	assert.Equal(t, "3", snap.Rows[0].Value("p1"))
	assert.Nil(t, snap.Rows[0].Properties["p2"])
}

func TestHTTPNotFound(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such record", http.StatusNotFound)
	})

	_, err := client.FetchPage(context.Background(), "pg-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestHTTPServerError(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream exploded", http.StatusBadGateway)
	})

	_, err := client.ListRecords(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 502")
	assert.Contains(t, err.Error(), "upstream exploded")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestHTTPApplyRows(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/databases/db%2F1/rows", r.URL.EscapedPath())
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var batch RowBatch
		require.NoError(t, json.NewDecoder(r.Body).Decode(&batch))
		assert.Equal(t, "db/1", batch.DatabaseID)
		require.Len(t, batch.Create, 1)
		assert.Equal(t, "o-done", batch.Create[0].Properties["p-status"])
		assert.Equal(t, []string{"r9"}, batch.Delete)

		io.WriteString(w, `{"created": 1, "deleted": 0, "errors": [{"op": "delete", "rowId": "r9", "message": "locked"}]}`)
	})

	res, err := client.ApplyRows(context.Background(), RowBatch{
		DatabaseID: "db/1",
		Create:     []WireRow{{ID: "local-1", Title: "x", Properties: map[string]any{"p-status": "o-done"}}},
		Delete:     []string{"r9"},
	})
	require.NoError(t, err)
	assert.Equal(t, BatchResult{
		Created: 1,
		Errors:  []RowError{{Op: OpDelete, RowID: "r9", Message: "locked"}},
	}, res)
}

func TestHTTPUpdatePage(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		var in map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "new body", in["content"])

		io.WriteString(w, `{"id": "pg-1", "title": "Notes", "content": "new body", "updatedAt": "2026-02-03T00:00:00Z"}`)
	})

	page, err := client.UpdatePage(context.Background(), model.PageDocument{ID: "pg-1", Title: "Notes", Content: "new body"})
	require.NoError(t, err)
	assert.Equal(t, "new body", page.Content)
	assert.Equal(t, 2026, page.UpdatedAt.Year())
}

func TestHTTPUpdateDatabaseSendsSchema(t *testing.T) {
	client := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		var in schemaDTO
		require.NoError(t, json.NewDecoder(r.Body).Decode(&in))
		assert.Equal(t, "Renamed", in.Title)
		require.Len(t, in.Properties, 1)
		assert.Equal(t, "select", in.Properties[0].Type)

		require.NoError(t, json.NewEncoder(w).Encode(in))
	})

	schema := model.SchemaDocument{ID: "db-1", Title: "Renamed", Properties: []model.PropertyDescriptor{
		{ID: "p1", Name: "Status", Type: model.PropertyTypeSelect},
	}}
	stored, err := client.UpdateDatabase(context.Background(), schema)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", stored.Title)
	assert.Equal(t, schema.Properties, stored.Properties)
}
