// Package tabular reads and writes the row file of a mirrored database.
//
// The format is comma-separated text with a header row. Columns are always
// id, title and dataSourceId followed by the schema's properties in sort
// order, so the layout is driven by the schema and stays stable across
// writes. Fields containing a comma, a double quote or a line break are
// quoted with inner quotes doubled.
package tabular

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/mirror/internal/fsutil"
	"github.com/roach88/mirror/internal/model"
)

// Fixed column headers.
const (
	ColumnID           = "id"
	ColumnTitle        = "title"
	ColumnDataSourceID = "dataSourceId"
)

// Column is one column of the table. PropertyID is empty for the fixed
// columns.
type Column struct {
	Header     string
	PropertyID string
}

// Columns returns the column layout for a property list. Property columns
// are headed by property name; a name that repeats or collides with a
// fixed column falls back to the property id, suffixed with ~2, ~3 ... if
// the id is taken as well.
func Columns(properties []model.PropertyDescriptor) []Column {
	sorted := make([]model.PropertyDescriptor, len(properties))
	copy(sorted, properties)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortOrder < sorted[j].SortOrder
	})

	nameCount := make(map[string]int, len(sorted))
	for _, p := range sorted {
		nameCount[p.Name]++
	}

	cols := []Column{{Header: ColumnID}, {Header: ColumnTitle}, {Header: ColumnDataSourceID}}
	used := map[string]bool{ColumnID: true, ColumnTitle: true, ColumnDataSourceID: true}
	for _, p := range sorted {
		header := p.Name
		if header == "" || nameCount[header] > 1 || used[header] {
			header = p.ID
		}
		for n := 2; used[header]; n++ {
			header = fmt.Sprintf("%s~%d", p.ID, n)
		}
		used[header] = true
		cols = append(cols, Column{Header: header, PropertyID: p.ID})
	}
	return cols
}

// Serialize renders rows as a table. Null values become empty fields.
func Serialize(rows []model.Row, properties []model.PropertyDescriptor) string {
	cols := Columns(properties)

	var b strings.Builder
	fields := make([]string, len(cols))
	for i, c := range cols {
		fields[i] = c.Header
	}
	writeRecord(&b, fields)

	for _, row := range rows {
		for i, c := range cols {
			fields[i] = cell(row, c)
		}
		writeRecord(&b, fields)
	}
	return b.String()
}

func cell(row model.Row, c Column) string {
	if c.PropertyID != "" {
		return row.Value(c.PropertyID)
	}
	switch c.Header {
	case ColumnID:
		return row.ID
	case ColumnTitle:
		return row.Title
	default:
		return row.DataSourceID
	}
}

func writeRecord(b *strings.Builder, fields []string) {
	for i, f := range fields {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(quoteField(f))
	}
	b.WriteByte('\n')
}

func quoteField(f string) string {
	if !strings.ContainsAny(f, ",\"\r\n") {
		return f
	}
	return `"` + strings.ReplaceAll(f, `"`, `""`) + `"`
}

// ParseRecords reads a table into one map per data row, keyed by header.
// Columns missing from a short row read as "". Blank lines are skipped.
func ParseRecords(text string) []map[string]string {
	records := scan(text)
	if len(records) == 0 {
		return nil
	}

	header := records[0]
	out := make([]map[string]string, 0, len(records)-1)
	for _, fields := range records[1:] {
		rec := make(map[string]string, len(header))
		for i, h := range header {
			if i < len(fields) {
				rec[h] = fields[i]
			} else {
				rec[h] = ""
			}
		}
		out = append(out, rec)
	}
	return out
}

// Table is a parsed row file.
type Table struct {
	Rows []model.Row

	// Unmapped holds the columns whose header names neither a fixed column
	// nor a property, keyed by header. Each value lists that column's
	// fields in row order, aligned with Rows.
	Unmapped map[string][]string
}

// Headers returns the unmapped headers, sorted.
func (t Table) Headers() []string {
	headers := make([]string, 0, len(t.Unmapped))
	for h := range t.Unmapped {
		headers = append(headers, h)
	}
	sort.Strings(headers)
	return headers
}

// Parse reads a table into rows using the property list to map headers
// back to property ids. A header may be either the property name used by
// Columns or the raw property id. Empty property fields are left out of
// the row, which reads them as null. Unknown columns are ignored; use
// ParseTable to keep them.
func Parse(text string, properties []model.PropertyDescriptor) []model.Row {
	return ParseTable(text, properties).Rows
}

// ParseTable is Parse that also keeps the fields of every column it could
// not map to a property.
func ParseTable(text string, properties []model.PropertyDescriptor) Table {
	headerToID := HeaderIndex(properties)
	for _, p := range properties {
		if _, taken := headerToID[p.ID]; !taken {
			headerToID[p.ID] = p.ID
		}
	}

	var table Table
	records := ParseRecords(text)
	for i, rec := range records {
		row := model.Row{
			ID:           rec[ColumnID],
			Title:        rec[ColumnTitle],
			DataSourceID: rec[ColumnDataSourceID],
		}
		for header, value := range rec {
			if header == ColumnID || header == ColumnTitle || header == ColumnDataSourceID {
				continue
			}
			pid, ok := headerToID[header]
			if !ok {
				if table.Unmapped == nil {
					table.Unmapped = make(map[string][]string)
				}
				if table.Unmapped[header] == nil {
					table.Unmapped[header] = make([]string, len(records))
				}
				table.Unmapped[header][i] = value
				continue
			}
			if value == "" {
				continue
			}
			if row.Properties == nil {
				row.Properties = make(map[string]*string)
			}
			row.Properties[pid] = model.Text(value)
		}
		table.Rows = append(table.Rows, row)
	}
	return table
}

// HeaderIndex maps the property column headers of Columns to property ids.
func HeaderIndex(properties []model.PropertyDescriptor) map[string]string {
	index := make(map[string]string, len(properties))
	for _, c := range Columns(properties) {
		if c.PropertyID != "" {
			index[c.Header] = c.PropertyID
		}
	}
	return index
}

// ReadFile loads rows from path. A missing file yields no rows and no error.
func ReadFile(path string, properties []model.PropertyDescriptor) ([]model.Row, error) {
	table, err := ReadTable(path, properties)
	return table.Rows, err
}

// ReadTable loads a table from path, keeping unmapped columns. A missing
// file yields an empty table and no error.
func ReadTable(path string, properties []model.PropertyDescriptor) (Table, error) {
	data, ok, err := fsutil.ReadFileIfExists(path)
	if err != nil {
		return Table{}, fmt.Errorf("read rows: %w", err)
	}
	if !ok {
		return Table{}, nil
	}
	return ParseTable(string(data), properties), nil
}

// WriteFile serializes rows to path atomically.
func WriteFile(path string, rows []model.Row, properties []model.PropertyDescriptor) error {
	if err := fsutil.WriteFileAtomic(path, []byte(Serialize(rows, properties))); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}
