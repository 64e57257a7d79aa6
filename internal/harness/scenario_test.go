package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadScenario_AllTestdata(t *testing.T) {
	paths, err := filepath.Glob("testdata/scenarios/*.yaml")
	require.NoError(t, err)
	require.NotEmpty(t, paths)

	for _, path := range paths {
		t.Run(filepath.Base(path), func(t *testing.T) {
			s, err := LoadScenario(path)
			require.NoError(t, err)
			assert.NotEmpty(t, s.Name)
		})
	}
}

func TestLoadScenario_Fields(t *testing.T) {
	s, err := LoadScenario("testdata/scenarios/push_status_change.yaml")
	require.NoError(t, err)

	require.Len(t, s.Remote.Databases, 1)
	db := s.Remote.Databases[0]
	assert.Equal(t, "db-1", db.ID)
	assert.Equal(t, []string{"Todo", "Done"}, db.Properties[0].Options)
	assert.Equal(t, "Todo", db.Rows[0].Values["p-status"])

	require.Len(t, s.Remote.Pages, 1)
	assert.Equal(t, "# Notes\n", s.Remote.Pages[0].Content)

	require.Len(t, s.Steps, 4)
	assert.Equal(t, ActionPull, s.Steps[0].Action)
	assert.Equal(t, map[string]string{"db-1": "created", "pg-1": "created"}, s.Steps[0].Expect)
	assert.Equal(t, "r1", s.Steps[1].Row)
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := filepath.Join(t.TempDir(), "typo.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
name: typo
description: misspelled key
steps:
  - action: pull
assertion:
  - type: journal_count
    outcome: created
`), 0o644))

	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{
			name:    "missing name",
			yaml:    "description: d\nsteps: [{action: pull}]\nassertions: [{type: journal_count, outcome: created}]",
			wantErr: "name is required",
		},
		{
			name:    "missing description",
			yaml:    "name: n\nsteps: [{action: pull}]\nassertions: [{type: journal_count, outcome: created}]",
			wantErr: "description is required",
		},
		{
			name:    "no steps",
			yaml:    "name: n\ndescription: d\nassertions: [{type: journal_count, outcome: created}]",
			wantErr: "steps list is required",
		},
		{
			name:    "no assertions",
			yaml:    "name: n\ndescription: d\nsteps: [{action: pull}]",
			wantErr: "assertions list is required",
		},
		{
			name:    "unknown action",
			yaml:    "name: n\ndescription: d\nsteps: [{action: jump}]\nassertions: [{type: journal_count, outcome: created}]",
			wantErr: `unknown action "jump"`,
		},
		{
			name:    "edit without row",
			yaml:    "name: n\ndescription: d\nsteps: [{action: edit_row, record: db-1}]\nassertions: [{type: journal_count, outcome: created}]",
			wantErr: "row is required for edit_row",
		},
		{
			name:    "edit without record",
			yaml:    "name: n\ndescription: d\nsteps: [{action: edit_page}]\nassertions: [{type: journal_count, outcome: created}]",
			wantErr: "record is required for edit_page",
		},
		{
			name:    "unknown assertion",
			yaml:    "name: n\ndescription: d\nsteps: [{action: pull}]\nassertions: [{type: vibes, record: db-1}]",
			wantErr: `unknown assertion type "vibes"`,
		},
		{
			name:    "bad state",
			yaml:    "name: n\ndescription: d\nsteps: [{action: pull}]\nassertions: [{type: local_state, record: db-1, state: conflict}]",
			wantErr: "state must be synced or modified",
		},
		{
			name:    "bad side",
			yaml:    "name: n\ndescription: d\nsteps: [{action: pull}]\nassertions: [{type: row_count, record: db-1, side: both}]",
			wantErr: "side must be local or remote",
		},
		{
			name:    "journal count without outcome",
			yaml:    "name: n\ndescription: d\nsteps: [{action: pull}]\nassertions: [{type: journal_count}]",
			wantErr: "outcome is required",
		},
		{
			name: "duplicate record ids",
			yaml: `name: n
description: d
remote:
  databases: [{id: x, title: T, collection: c, properties: []}]
  pages: [{id: x, title: P, collection: c, content: ""}]
steps: [{action: pull}]
assertions: [{type: journal_count, outcome: created}]`,
			wantErr: `duplicate id "x"`,
		},
		{
			name: "options on text property",
			yaml: `name: n
description: d
remote:
  databases: [{id: x, title: T, collection: c, properties: [{id: p, name: P, type: text, options: [A]}]}]
steps: [{action: pull}]
assertions: [{type: journal_count, outcome: created}]`,
			wantErr: "options need a select type",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
