package tabular

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/mirror/internal/model"
)

func taskProperties() []model.PropertyDescriptor {
	return []model.PropertyDescriptor{
		{ID: "p-title", Name: "title", Type: model.PropertyTypeText, SortOrder: 2},
		{ID: "p-status", Name: "Status", Type: model.PropertyTypeSelect, SortOrder: 1},
		{ID: "p-notes", Name: "Notes", Type: model.PropertyTypeText, SortOrder: 0},
	}
}

func taskRows() []model.Row {
	return []model.Row{
		{ID: "r1", Title: "Write docs", DataSourceID: "ds-1", Properties: map[string]*string{
			"p-notes":  model.Text(`He said, "hi"`),
			"p-status": model.Text("Todo"),
		}},
		{ID: "r2", Title: "Multi\nline", Properties: map[string]*string{
			"p-status": model.Text("Done"),
			"p-title":  model.Text("x,y"),
		}},
	}
}

func TestColumns(t *testing.T) {
	tests := []struct {
		name       string
		properties []model.PropertyDescriptor
		expected   []string
	}{
		{"no properties", nil, []string{"id", "title", "dataSourceId"}},
		{"sorted by sort order", taskProperties(), []string{"id", "title", "dataSourceId", "Notes", "Status", "p-title"}},
		{"duplicate names fall back to ids", []model.PropertyDescriptor{
			{ID: "a", Name: "Tag", SortOrder: 0},
			{ID: "b", Name: "Tag", SortOrder: 1},
			{ID: "c", Name: "", SortOrder: 2},
		}, []string{"id", "title", "dataSourceId", "a", "b", "c"}},
		{"fallback id taken by a name", []model.PropertyDescriptor{
			{ID: "x", Name: "Tag", SortOrder: 0},
			{ID: "Tag", Name: "", SortOrder: 1},
		}, []string{"id", "title", "dataSourceId", "Tag", "Tag~2"}},
		{"stable for equal sort order", []model.PropertyDescriptor{
			{ID: "z", Name: "Zed"},
			{ID: "y", Name: "Why"},
		}, []string{"id", "title", "dataSourceId", "Zed", "Why"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var headers []string
			for _, c := range Columns(tt.properties) {
				headers = append(headers, c.Header)
			}
			assert.Equal(t, tt.expected, headers)
		})
	}
}

func TestSerializeGolden(t *testing.T) {
	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, "tasks_rows", []byte(Serialize(taskRows(), taskProperties())))
}

func TestQuotedCommaAndQuote(t *testing.T) {
	props := []model.PropertyDescriptor{{ID: "p-notes", Name: "Notes", Type: model.PropertyTypeText}}
	rows := []model.Row{{ID: "r1", Title: "t", Properties: map[string]*string{"p-notes": model.Text(`He said, "hi"`)}}}

	out := Serialize(rows, props)
	assert.Equal(t, "id,title,dataSourceId,Notes\nr1,t,,\"He said, \"\"hi\"\"\"\n", out)

	parsed := Parse(out, props)
	require.Len(t, parsed, 1)
	assert.Equal(t, `He said, "hi"`, parsed[0].Value("p-notes"))
}

func TestRoundTrip(t *testing.T) {
	props := taskProperties()
	rows := taskRows()

	assert.Equal(t, rows, Parse(Serialize(rows, props), props))
}

func TestRoundTripNormalizesBlank(t *testing.T) {
	props := taskProperties()
	rows := []model.Row{{ID: "r1", Properties: map[string]*string{
		"p-notes":  nil,
		"p-status": model.Text(""),
	}}}

	parsed := Parse(Serialize(rows, props), props)
	require.Len(t, parsed, 1)
	assert.True(t, rows[0].Equal(parsed[0]))
	assert.Nil(t, parsed[0].Properties)
}

func TestParseRecords(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []map[string]string
	}{
		{"empty", "", nil},
		{"header only", "a,b\n", []map[string]string{}},
		{"short row defaults", "a,b,c\n1\n", []map[string]string{{"a": "1", "b": "", "c": ""}}},
		{"extra fields ignored", "a\n1,2\n", []map[string]string{{"a": "1"}}},
		{"crlf", "a,b\r\n1,2\r\n3,4", []map[string]string{{"a": "1", "b": "2"}, {"a": "3", "b": "4"}}},
		{"blank lines skipped", "a,b\n\n1,2\n\n", []map[string]string{{"a": "1", "b": "2"}}},
		{"newline in quotes", "a,b\n\"x\r\ny\",z\n", []map[string]string{{"a": "x\r\ny", "b": "z"}}},
		{"doubled quote", "a\n\"\"\"q\"\"\"\n", []map[string]string{{"a": `"q"`}}},
		{"empty fields row", "a,b\n,\n", []map[string]string{{"a": "", "b": ""}}},
		{"utf-8", "name\n\"Café, naïve\"\n", []map[string]string{{"name": "Café, naïve"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseRecords(tt.input))
		})
	}
}

func TestParseAcceptsPropertyIDHeaders(t *testing.T) {
	props := taskProperties()
	text := "id,title,dataSourceId,p-notes,Status,unknown\nr1,T,,hello,Done,zzz\n"

	rows := Parse(text, props)
	require.Len(t, rows, 1)
	assert.Equal(t, map[string]*string{
		"p-notes":  model.Text("hello"),
		"p-status": model.Text("Done"),
	}, rows[0].Properties)
}

func TestReadFileMissing(t *testing.T) {
	rows, err := ReadFile(filepath.Join(t.TempDir(), "data.csv"), taskProperties())
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestWriteAndReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tasks", "data.csv")

	require.NoError(t, WriteFile(path, taskRows(), taskProperties()))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, Serialize(taskRows(), taskProperties()), string(raw))

	rows, err := ReadFile(path, taskProperties())
	require.NoError(t, err)
	assert.Equal(t, taskRows(), rows)
}

func TestRoundTripWithCollidingFallback(t *testing.T) {
	props := []model.PropertyDescriptor{
		{ID: "x", Name: "Tag", SortOrder: 0},
		{ID: "Tag", Name: "", SortOrder: 1},
	}
	rows := []model.Row{{ID: "r1", Title: "t", Properties: map[string]*string{
		"x":   model.Text("first"),
		"Tag": model.Text("second"),
	}}}

	assert.Equal(t, rows, Parse(Serialize(rows, props), props))
}

func TestParseTableKeepsUnmappedColumns(t *testing.T) {
	props := []model.PropertyDescriptor{{ID: "p-status", Name: "State", Type: model.PropertyTypeSelect}}
	text := "id,title,dataSourceId,Status,Extra\nr1,a,,Todo,\nr2,b,,Done,x\n"

	table := ParseTable(text, props)
	require.Len(t, table.Rows, 2)
	assert.Nil(t, table.Rows[0].Properties)
	assert.Equal(t, []string{"Extra", "Status"}, table.Headers())
	assert.Equal(t, []string{"Todo", "Done"}, table.Unmapped["Status"])
	assert.Equal(t, []string{"", "x"}, table.Unmapped["Extra"])

	assert.Equal(t, table.Rows, Parse(text, props))
}

func TestParseTableAllMapped(t *testing.T) {
	table := ParseTable(Serialize(taskRows(), taskProperties()), taskProperties())
	assert.Nil(t, table.Unmapped)
	assert.Empty(t, table.Headers())
}

func TestReadTable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data.csv")
	require.NoError(t, os.WriteFile(path, []byte("id,title,dataSourceId,Old\nr1,a,,v\n"), 0o644))

	table, err := ReadTable(path, taskProperties())
	require.NoError(t, err)
	assert.Equal(t, []string{"v"}, table.Unmapped["Old"])

	missing, err := ReadTable(filepath.Join(t.TempDir(), "none.csv"), taskProperties())
	require.NoError(t, err)
	assert.Empty(t, missing.Rows)
	assert.Nil(t, missing.Unmapped)
}
