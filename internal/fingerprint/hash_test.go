package fingerprint

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/roach88/mirror/internal/model"
)

func sampleSchema() model.SchemaDocument {
	return model.SchemaDocument{
		ID:    "db-1",
		Title: "Tasks",
		DataSources: []model.DataSourceDescriptor{
			{ID: "ds-a", Name: "Main", SortOrder: 0},
			{ID: "ds-b", Name: "Archive", SortOrder: 1},
		},
		Properties: []model.PropertyDescriptor{
			{ID: "p-status", Name: "Status", Type: model.PropertyTypeSelect, SortOrder: 0, Config: map[string]any{
				"options": model.OptionsConfig(model.SelectOption{ID: "o1", Name: "Todo"}, model.SelectOption{ID: "o2", Name: "Done"}),
			}},
			{ID: "p-due", Name: "Due", Type: model.PropertyTypeDate, SortOrder: 1},
		},
	}
}

func sampleRows() []model.Row {
	return []model.Row{
		{ID: "r1", Title: "Write docs", DataSourceID: "ds-a", Properties: map[string]*string{"p-status": model.Text("Todo")}},
		{ID: "r2", Title: "Ship", Properties: map[string]*string{"p-status": model.Text("Done"), "p-due": model.Text("2026-02-01")}},
	}
}

func TestFingerprintLength(t *testing.T) {
	fp := Fingerprint([]byte("hello"))
	assert.Len(t, fp, Length)
	assert.Equal(t, fp, Fingerprint([]byte("hello")))
	assert.NotEqual(t, fp, Fingerprint([]byte("hello!")))
}

func TestDocumentFingerprintDeterminism(t *testing.T) {
	schema := sampleSchema()
	rows := sampleRows()

	fp1 := DocumentFingerprint(schema, rows)
	fp2 := DocumentFingerprint(schema, rows)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, Length)
}

func TestSchemaFingerprintOrderInvariant(t *testing.T) {
	schema := sampleSchema()
	reordered := sampleSchema()
	reordered.Properties[0], reordered.Properties[1] = reordered.Properties[1], reordered.Properties[0]
	reordered.DataSources[0], reordered.DataSources[1] = reordered.DataSources[1], reordered.DataSources[0]

	assert.Equal(t,
		SchemaFingerprint(schema.Properties, schema.DataSources),
		SchemaFingerprint(reordered.Properties, reordered.DataSources))
}

func TestRowSetFingerprintOrderInvariant(t *testing.T) {
	rows := sampleRows()
	reversed := []model.Row{rows[1], rows[0]}

	assert.Equal(t, RowSetFingerprint(rows), RowSetFingerprint(reversed))
}

func TestSchemaFingerprintDoesNotMutateInput(t *testing.T) {
	schema := sampleSchema()
	schema.Properties[0], schema.Properties[1] = schema.Properties[1], schema.Properties[0]
	first := schema.Properties[0].ID

	SchemaFingerprint(schema.Properties, schema.DataSources)

	assert.Equal(t, first, schema.Properties[0].ID)
}

func TestDocumentFingerprintSensitivity(t *testing.T) {
	base := DocumentFingerprint(sampleSchema(), sampleRows())

	tests := []struct {
		name   string
		mutate func(*model.SchemaDocument, []model.Row)
	}{
		{"property config", func(s *model.SchemaDocument, _ []model.Row) {
			s.Properties[1].Config = map[string]any{"format": "iso"}
		}},
		{"property name", func(s *model.SchemaDocument, _ []model.Row) {
			s.Properties[0].Name = "State"
		}},
		{"data source name", func(s *model.SchemaDocument, _ []model.Row) {
			s.DataSources[1].Name = "Old"
		}},
		{"row value", func(_ *model.SchemaDocument, rows []model.Row) {
			rows[0].Properties["p-status"] = model.Text("Done")
		}},
		{"row title", func(_ *model.SchemaDocument, rows []model.Row) {
			rows[1].Title = "Ship it"
		}},
		{"row data source", func(_ *model.SchemaDocument, rows []model.Row) {
			rows[1].DataSourceID = "ds-b"
		}},
		{"new value", func(_ *model.SchemaDocument, rows []model.Row) {
			rows[0].Properties["p-due"] = model.Text("2026-03-01")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			schema := sampleSchema()
			rows := sampleRows()
			tt.mutate(&schema, rows)
			assert.NotEqual(t, base, DocumentFingerprint(schema, rows))
		})
	}
}

func TestDocumentFingerprintIgnoresMetadata(t *testing.T) {
	base := DocumentFingerprint(sampleSchema(), sampleRows())

	schema := sampleSchema()
	schema.LocalHash = "ffffffffffffffff"
	schema.RemoteHash = "eeeeeeeeeeeeeeee"
	schema.Slug = "renamed"

	assert.Equal(t, base, DocumentFingerprint(schema, sampleRows()))
}

func TestRowSetFingerprintBlankEqualsNull(t *testing.T) {
	withNull := []model.Row{{ID: "r1", Properties: map[string]*string{"a": nil}}}
	withBlank := []model.Row{{ID: "r1", Properties: map[string]*string{"a": model.Text("")}}}
	missing := []model.Row{{ID: "r1"}}

	assert.Equal(t, RowSetFingerprint(withNull), RowSetFingerprint(withBlank))
	assert.Equal(t, RowSetFingerprint(withNull), RowSetFingerprint(missing))
}

func TestSchemaFingerprintNumberForms(t *testing.T) {
	asInt := []model.PropertyDescriptor{{ID: "p", Config: map[string]any{"precision": int64(2)}}}
	asFloat := []model.PropertyDescriptor{{ID: "p", Config: map[string]any{"precision": 2.0}}}

	assert.Equal(t, SchemaFingerprint(asInt, nil), SchemaFingerprint(asFloat, nil))
}

func TestSchemaFingerprintNilConfigEqualsEmpty(t *testing.T) {
	nilConfig := []model.PropertyDescriptor{{ID: "p"}}
	emptyConfig := []model.PropertyDescriptor{{ID: "p", Config: map[string]any{}}}

	assert.Equal(t, SchemaFingerprint(nilConfig, nil), SchemaFingerprint(emptyConfig, nil))
}

func TestFingerprintIsTotal(t *testing.T) {
	props := []model.PropertyDescriptor{{ID: "p", Config: map[string]any{"bad": math.NaN()}}}

	assert.NotPanics(t, func() {
		fp := SchemaFingerprint(props, nil)
		assert.Len(t, fp, Length)
	})
}

func TestPageFingerprint(t *testing.T) {
	page := model.PageDocument{ID: "pg-1", Title: "Notes", Content: "# Hello\n"}
	base := PageFingerprint(page)

	page.LocalHash = "x"
	assert.Equal(t, base, PageFingerprint(page))

	page.Content = "# Hello!\n"
	assert.NotEqual(t, base, PageFingerprint(page))

	page.Content = "# Hello\n"
	page.Title = "Other"
	assert.NotEqual(t, base, PageFingerprint(page))
}
