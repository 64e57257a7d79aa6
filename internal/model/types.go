package model

import (
	"fmt"
	"time"
)

// PropertyType is the type of a database property (column).
// The set is open: unknown type names from the remote are preserved verbatim.
type PropertyType string

const (
	PropertyTypeTitle       PropertyType = "title"
	PropertyTypeText        PropertyType = "text"
	PropertyTypeRichText    PropertyType = "rich_text"
	PropertyTypeNumber      PropertyType = "number"
	PropertyTypeSelect      PropertyType = "select"
	PropertyTypeMultiSelect PropertyType = "multi_select"
	PropertyTypeDate        PropertyType = "date"
	PropertyTypeCheckbox    PropertyType = "checkbox"
	PropertyTypeURL         PropertyType = "url"
	PropertyTypeEmail       PropertyType = "email"
	PropertyTypePhone       PropertyType = "phone"
	PropertyTypePeople      PropertyType = "people"
	PropertyTypeRelation    PropertyType = "relation"
	PropertyTypeFormula     PropertyType = "formula"
)

// IsSelect reports whether values of this type are resolved against the
// property's option list when pushed.
func (t PropertyType) IsSelect() bool {
	return t == PropertyTypeSelect || t == PropertyTypeMultiSelect
}

// PropertyDescriptor describes one column of a database.
type PropertyDescriptor struct {
	ID   string
	Name string
	Type PropertyType

	// DataSourceID is the owning data source, or "" when the property is shared.
	DataSourceID string

	// SortOrder drives column layout in the tabular file.
	SortOrder int

	// Config is the open-ended type configuration (select options, number
	// format, relation target...). Top-level values are nil, bool, int64,
	// float64 or string; composites are map[string]any / []any.
	Config map[string]any
}

// DataSourceDescriptor is one origin of rows within a database.
type DataSourceDescriptor struct {
	ID        string
	Name      string
	SortOrder int
}

// SchemaDocument is the structured half of a mirrored database.
type SchemaDocument struct {
	ID             string
	Title          string
	CollectionID   string
	CollectionSlug string
	Slug           string
	UpdatedAt      time.Time

	// LocalHash is the fingerprint of the document at the last sync.
	LocalHash string
	// RemoteHash is the fingerprint of the remote snapshot at the last sync.
	RemoteHash string

	DataSources []DataSourceDescriptor
	Properties  []PropertyDescriptor
}

// Validate checks the identity invariants of the schema.
func (s *SchemaDocument) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("id is required")
	}
	seen := make(map[string]bool, len(s.Properties))
	for _, p := range s.Properties {
		if p.ID == "" {
			return fmt.Errorf("property %q has no id", p.Name)
		}
		if seen[p.ID] {
			return fmt.Errorf("duplicate property id %q", p.ID)
		}
		seen[p.ID] = true
	}
	seen = make(map[string]bool, len(s.DataSources))
	for _, ds := range s.DataSources {
		if ds.ID == "" {
			return fmt.Errorf("data source %q has no id", ds.Name)
		}
		if seen[ds.ID] {
			return fmt.Errorf("duplicate data source id %q", ds.ID)
		}
		seen[ds.ID] = true
	}
	return nil
}

// Property returns the property with the given id.
func (s *SchemaDocument) Property(id string) (PropertyDescriptor, bool) {
	for _, p := range s.Properties {
		if p.ID == id {
			return p, true
		}
	}
	return PropertyDescriptor{}, false
}

// Row is one record of a database in its local text form.
type Row struct {
	ID    string
	Title string

	// DataSourceID references a DataSourceDescriptor, or "" for none.
	DataSourceID string

	// Properties maps PropertyDescriptor.ID to a text value; nil is null.
	Properties map[string]*string
}

// Value returns the text of a property, "" when null or absent.
func (r Row) Value(propertyID string) string {
	return Deref(r.Properties[propertyID])
}

// Equal reports whether two rows carry the same content.
// Blank and null property values are equivalent.
func (r Row) Equal(other Row) bool {
	if r.ID != other.ID || r.Title != other.Title || r.DataSourceID != other.DataSourceID {
		return false
	}
	for k, v := range r.Properties {
		if !ValuesEqual(v, other.Properties[k]) {
			return false
		}
	}
	for k, v := range other.Properties {
		if _, ok := r.Properties[k]; !ok && !IsBlank(v) {
			return false
		}
	}
	return true
}

// PageDocument is a free-text page.
type PageDocument struct {
	ID             string
	Title          string
	CollectionID   string
	CollectionSlug string
	Slug           string
	UpdatedAt      time.Time
	LocalHash      string
	RemoteHash     string
	Content        string
}

// RecordKind distinguishes the two kinds of mirrored records.
type RecordKind string

const (
	KindPage     RecordKind = "page"
	KindDatabase RecordKind = "database"
)

// RecordSummary identifies a remote record without its content.
type RecordSummary struct {
	ID             string     `json:"id"`
	Kind           RecordKind `json:"kind"`
	Title          string     `json:"title"`
	CollectionID   string     `json:"collection_id"`
	CollectionSlug string     `json:"collection_slug"`
	Slug           string     `json:"slug"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// SyncState is the derived synchronization state of a local record.
type SyncState int

const (
	// Synced means the local content matches the last synchronized fingerprint.
	Synced SyncState = iota
	// Modified means local edits exist that were never pushed.
	Modified
	// Conflict means local edits exist and the remote has also changed.
	Conflict
)

// String returns a human-readable representation of the state.
func (s SyncState) String() string {
	switch s {
	case Synced:
		return "synced"
	case Modified:
		return "modified"
	case Conflict:
		return "conflict"
	default:
		return "unknown"
	}
}
