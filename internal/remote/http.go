package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/roach88/mirror/internal/model"
)

// DefaultTimeout bounds a single HTTP request.
const DefaultTimeout = 30 * time.Second

// HTTPClient talks to the remote service over JSON/HTTP with a bearer
// token.
//
// Routes, relative to the endpoint:
//
//	GET  /v1/records
//	GET  /v1/databases/{id}
//	PUT  /v1/databases/{id}
//	POST /v1/databases/{id}/rows
//	GET  /v1/pages/{id}
//	PUT  /v1/pages/{id}
type HTTPClient struct {
	base   string
	token  string
	http   *http.Client
	logger *slog.Logger
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(h *HTTPClient) {
		h.http = c
	}
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *slog.Logger) HTTPOption {
	return func(h *HTTPClient) {
		h.logger = l
	}
}

// NewHTTPClient returns a client for endpoint authenticating with token.
func NewHTTPClient(endpoint, token string, opts ...HTTPOption) *HTTPClient {
	h := &HTTPClient{
		base:   strings.TrimRight(endpoint, "/"),
		token:  token,
		http:   &http.Client{Timeout: DefaultTimeout},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Wire forms. Values use *string so null survives the round trip.

type schemaDTO struct {
	ID             string          `json:"id"`
	Title          string          `json:"title"`
	CollectionID   string          `json:"collectionId"`
	CollectionSlug string          `json:"collectionSlug"`
	Slug           string          `json:"slug"`
	UpdatedAt      time.Time       `json:"updatedAt"`
	DataSources    []dataSourceDTO `json:"dataSources"`
	Properties     []propertyDTO   `json:"properties"`
}

type dataSourceDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

type propertyDTO struct {
	ID           string         `json:"id"`
	Name         string         `json:"name"`
	Type         string         `json:"type"`
	DataSourceID string         `json:"dataSourceId,omitempty"`
	SortOrder    int            `json:"sortOrder"`
	Config       map[string]any `json:"config,omitempty"`
}

type rowDTO struct {
	ID           string             `json:"id"`
	Title        string             `json:"title"`
	DataSourceID string             `json:"dataSourceId,omitempty"`
	Properties   map[string]*string `json:"properties,omitempty"`
}

type databaseDTO struct {
	Schema schemaDTO `json:"schema"`
	Rows   []rowDTO  `json:"rows"`
}

type pageDTO struct {
	ID             string    `json:"id"`
	Title          string    `json:"title"`
	CollectionID   string    `json:"collectionId"`
	CollectionSlug string    `json:"collectionSlug"`
	Slug           string    `json:"slug"`
	UpdatedAt      time.Time `json:"updatedAt"`
	Content        string    `json:"content"`
}

type recordsDTO struct {
	Records []model.RecordSummary `json:"records"`
}

// ListRecords implements Client.
func (h *HTTPClient) ListRecords(ctx context.Context) ([]model.RecordSummary, error) {
	var out recordsDTO
	if err := h.do(ctx, http.MethodGet, "/v1/records", nil, &out); err != nil {
		return nil, err
	}
	return out.Records, nil
}

// FetchDatabase implements Client.
func (h *HTTPClient) FetchDatabase(ctx context.Context, id string) (DatabaseSnapshot, error) {
	var out databaseDTO
	if err := h.do(ctx, http.MethodGet, "/v1/databases/"+url.PathEscape(id), nil, &out); err != nil {
		return DatabaseSnapshot{}, err
	}
	snap := DatabaseSnapshot{Schema: out.Schema.toModel()}
	for _, r := range out.Rows {
		snap.Rows = append(snap.Rows, model.Row{
			ID:           r.ID,
			Title:        r.Title,
			DataSourceID: r.DataSourceID,
			Properties:   r.Properties,
		})
	}
	return snap, nil
}

// FetchPage implements Client.
func (h *HTTPClient) FetchPage(ctx context.Context, id string) (model.PageDocument, error) {
	var out pageDTO
	if err := h.do(ctx, http.MethodGet, "/v1/pages/"+url.PathEscape(id), nil, &out); err != nil {
		return model.PageDocument{}, err
	}
	return out.toModel(), nil
}

// ApplyRows implements Client.
func (h *HTTPClient) ApplyRows(ctx context.Context, batch RowBatch) (BatchResult, error) {
	var out BatchResult
	path := "/v1/databases/" + url.PathEscape(batch.DatabaseID) + "/rows"
	if err := h.do(ctx, http.MethodPost, path, batch, &out); err != nil {
		return BatchResult{}, err
	}
	return out, nil
}

// UpdateDatabase implements Client.
func (h *HTTPClient) UpdateDatabase(ctx context.Context, schema model.SchemaDocument) (model.SchemaDocument, error) {
	var out schemaDTO
	path := "/v1/databases/" + url.PathEscape(schema.ID)
	if err := h.do(ctx, http.MethodPut, path, schemaFromModel(schema), &out); err != nil {
		return model.SchemaDocument{}, err
	}
	return out.toModel(), nil
}

// UpdatePage implements Client.
func (h *HTTPClient) UpdatePage(ctx context.Context, page model.PageDocument) (model.PageDocument, error) {
	var out pageDTO
	in := pageDTO{ID: page.ID, Title: page.Title, Content: page.Content}
	if err := h.do(ctx, http.MethodPut, "/v1/pages/"+url.PathEscape(page.ID), in, &out); err != nil {
		return model.PageDocument{}, err
	}
	return out.toModel(), nil
}

// do sends one request and decodes the JSON response into out. A 404 is
// reported as ErrNotFound; any other non-2xx status is an error carrying
// the start of the response body.
func (h *HTTPClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s %s: %w", method, path, err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.base+path, body)
	if err != nil {
		return fmt.Errorf("build %s %s: %w", method, path, err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if h.token != "" {
		req.Header.Set("Authorization", "Bearer "+h.token)
	}

	start := time.Now()
	resp, err := h.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	h.logger.Debug("remote request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%s %s: %w", method, path, ErrNotFound)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: unexpected status %d: %s",
			method, path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	if out == nil {
		return nil
	}
	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

func (s schemaDTO) toModel() model.SchemaDocument {
	doc := model.SchemaDocument{
		ID:             s.ID,
		Title:          s.Title,
		CollectionID:   s.CollectionID,
		CollectionSlug: s.CollectionSlug,
		Slug:           s.Slug,
		UpdatedAt:      s.UpdatedAt.UTC(),
	}
	for _, ds := range s.DataSources {
		doc.DataSources = append(doc.DataSources, model.DataSourceDescriptor(ds))
	}
	for _, p := range s.Properties {
		doc.Properties = append(doc.Properties, model.PropertyDescriptor{
			ID:           p.ID,
			Name:         p.Name,
			Type:         model.PropertyType(p.Type),
			DataSourceID: p.DataSourceID,
			SortOrder:    p.SortOrder,
			Config:       model.NormalizeConfig(p.Config),
		})
	}
	return doc
}

func schemaFromModel(doc model.SchemaDocument) schemaDTO {
	s := schemaDTO{
		ID:             doc.ID,
		Title:          doc.Title,
		CollectionID:   doc.CollectionID,
		CollectionSlug: doc.CollectionSlug,
		Slug:           doc.Slug,
		UpdatedAt:      doc.UpdatedAt,
	}
	for _, ds := range doc.DataSources {
		s.DataSources = append(s.DataSources, dataSourceDTO(ds))
	}
	for _, p := range doc.Properties {
		s.Properties = append(s.Properties, propertyDTO{
			ID:           p.ID,
			Name:         p.Name,
			Type:         string(p.Type),
			DataSourceID: p.DataSourceID,
			SortOrder:    p.SortOrder,
			Config:       p.Config,
		})
	}
	return s
}

func (p pageDTO) toModel() model.PageDocument {
	return model.PageDocument{
		ID:             p.ID,
		Title:          p.Title,
		CollectionID:   p.CollectionID,
		CollectionSlug: p.CollectionSlug,
		Slug:           p.Slug,
		UpdatedAt:      p.UpdatedAt.UTC(),
		Content:        p.Content,
	}
}
