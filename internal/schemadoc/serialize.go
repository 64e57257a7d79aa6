package schemadoc

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/roach88/mirror/internal/fsutil"
	"github.com/roach88/mirror/internal/model"
)

// Serialize renders doc in the schema file format. Collections are written
// in their current order; config keys are sorted.
func Serialize(doc model.SchemaDocument) string {
	var b strings.Builder

	writeLine(&b, 0, "id", quote(doc.ID))
	writeLine(&b, 0, "title", quote(doc.Title))
	writeLine(&b, 0, "collectionId", quote(doc.CollectionID))
	writeLine(&b, 0, "collectionSlug", quote(doc.CollectionSlug))
	writeLine(&b, 0, "slug", quote(doc.Slug))
	writeLine(&b, 0, "updatedAt", formatTime(doc.UpdatedAt))
	writeLine(&b, 0, "localHash", quote(doc.LocalHash))
	writeLine(&b, 0, "remoteHash", quote(doc.RemoteHash))

	if len(doc.DataSources) == 0 {
		writeLine(&b, 0, "dataSources", "[]")
	} else {
		b.WriteString("dataSources:\n")
		for _, ds := range doc.DataSources {
			b.WriteString("  - id: " + quote(ds.ID) + "\n")
			writeLine(&b, 4, "name", quote(ds.Name))
			writeLine(&b, 4, "sortOrder", formatValue(ds.SortOrder))
		}
	}

	if len(doc.Properties) == 0 {
		writeLine(&b, 0, "properties", "[]")
	} else {
		b.WriteString("properties:\n")
		for _, prop := range doc.Properties {
			b.WriteString("  - id: " + quote(prop.ID) + "\n")
			writeLine(&b, 4, "name", quote(prop.Name))
			writeLine(&b, 4, "type", quote(string(prop.Type)))
			if prop.DataSourceID == "" {
				writeLine(&b, 4, "dataSourceId", "null")
			} else {
				writeLine(&b, 4, "dataSourceId", quote(prop.DataSourceID))
			}
			writeLine(&b, 4, "sortOrder", formatValue(prop.SortOrder))
			writeConfig(&b, prop.Config)
		}
	}

	return b.String()
}

func writeConfig(b *strings.Builder, config map[string]any) {
	if len(config) == 0 {
		writeLine(b, 4, "config", "{}")
		return
	}
	b.WriteString("    config:\n")

	keys := make([]string, 0, len(config))
	for k := range config {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		writeLine(b, 6, formatKey(k), formatValue(config[k]))
	}
}

func writeLine(b *strings.Builder, indent int, key, value string) {
	b.WriteString(strings.Repeat(" ", indent))
	b.WriteString(key)
	b.WriteString(": ")
	b.WriteString(value)
	b.WriteByte('\n')
}

func formatTime(ts time.Time) string {
	if ts.IsZero() {
		return "null"
	}
	return quote(ts.UTC().Format(time.RFC3339Nano))
}

// ReadFile loads and parses a schema file. A missing file, or one that does
// not parse, reports ok == false. Only other read failures are errors.
func ReadFile(path string) (model.SchemaDocument, bool, error) {
	data, found, err := fsutil.ReadFileIfExists(path)
	if err != nil {
		return model.SchemaDocument{}, false, fmt.Errorf("read schema: %w", err)
	}
	if !found {
		return model.SchemaDocument{}, false, nil
	}
	doc, ok := Parse(string(data))
	return doc, ok, nil
}

// WriteFile serializes doc to path atomically, creating parent directories.
func WriteFile(path string, doc model.SchemaDocument) error {
	if err := fsutil.WriteFileAtomic(path, []byte(Serialize(doc))); err != nil {
		return fmt.Errorf("write schema: %w", err)
	}
	return nil
}
