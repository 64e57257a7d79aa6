package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"

	"github.com/roach88/mirror/internal/model"
)

// Length is the number of hex characters kept from the digest.
const Length = 16

// Domain prefixes for fingerprint separation.
// The version suffix allows a future algorithm migration.
const (
	DomainSchema   = "mirror/schema/v1"
	DomainRows     = "mirror/rows/v1"
	DomainDocument = "mirror/document/v1"
	DomainPage     = "mirror/page/v1"
)

// Fingerprint digests arbitrary bytes to a short hex string.
// Used for equality comparison only, never for security.
func Fingerprint(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])[:Length]
}

// hashWithDomain computes SHA256(domain + 0x00 + data), truncated.
// The null byte prevents domain/data boundary ambiguity.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))[:Length]
}

// SchemaFingerprint fingerprints the schema's properties and data sources.
// Both collections are sorted by ID first, so the result does not depend on
// the order in which they were read.
func SchemaFingerprint(properties []model.PropertyDescriptor, dataSources []model.DataSourceDescriptor) string {
	props := slices.Clone(properties)
	slices.SortStableFunc(props, func(a, b model.PropertyDescriptor) int {
		return strings.Compare(a.ID, b.ID)
	})
	sources := slices.Clone(dataSources)
	slices.SortStableFunc(sources, func(a, b model.DataSourceDescriptor) int {
		return strings.Compare(a.ID, b.ID)
	})

	propList := make([]any, len(props))
	for i, p := range props {
		config := p.Config
		if config == nil {
			config = map[string]any{}
		}
		propList[i] = map[string]any{
			"id":             p.ID,
			"name":           p.Name,
			"type":           string(p.Type),
			"data_source_id": p.DataSourceID,
			"sort_order":     p.SortOrder,
			"config":         config,
		}
	}
	sourceList := make([]any, len(sources))
	for i, ds := range sources {
		sourceList[i] = map[string]any{
			"id":         ds.ID,
			"name":       ds.Name,
			"sort_order": ds.SortOrder,
		}
	}

	return hashCanonical(DomainSchema, map[string]any{
		"properties":   propList,
		"data_sources": sourceList,
	})
}

// RowSetFingerprint fingerprints a row set independent of row order.
// Null and blank property values are omitted, so a missing key, a null and
// an empty string all fingerprint the same.
func RowSetFingerprint(rows []model.Row) string {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b model.Row) int {
		return strings.Compare(a.ID, b.ID)
	})

	list := make([]any, len(sorted))
	for i, r := range sorted {
		props := make(map[string]any, len(r.Properties))
		for k, v := range r.Properties {
			if model.IsBlank(v) {
				continue
			}
			props[k] = *v
		}
		list[i] = map[string]any{
			"id":             r.ID,
			"title":          r.Title,
			"data_source_id": r.DataSourceID,
			"properties":     props,
		}
	}

	return hashCanonical(DomainRows, list)
}

// DocumentFingerprint combines the schema and row fingerprints of a database.
func DocumentFingerprint(schema model.SchemaDocument, rows []model.Row) string {
	combined := SchemaFingerprint(schema.Properties, schema.DataSources) + RowSetFingerprint(rows)
	return hashWithDomain(DomainDocument, []byte(combined))
}

// PageFingerprint fingerprints the editable content of a page.
func PageFingerprint(page model.PageDocument) string {
	return hashCanonical(DomainPage, map[string]any{
		"title":   page.Title,
		"content": page.Content,
	})
}

// hashCanonical fingerprints the canonical form of v. Values that have no
// canonical form (NaN, unsupported types) fall back to their Go syntax
// representation, which keeps fingerprinting total.
func hashCanonical(domain string, v any) string {
	data, err := MarshalCanonical(v)
	if err != nil {
		data = []byte(fmt.Sprintf("%#v", v))
	}
	return hashWithDomain(domain, data)
}
