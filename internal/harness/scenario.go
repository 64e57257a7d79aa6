package harness

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/mirror/internal/model"
)

// Scenario is one end-to-end sync test.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Remote is the state of the remote before the first step.
	Remote RemoteSeed `yaml:"remote"`

	// Steps run in order.
	Steps []Step `yaml:"steps"`

	// Assertions are checked after the last step.
	Assertions []Assertion `yaml:"assertions"`
}

// RemoteSeed lists the records the remote starts with.
type RemoteSeed struct {
	Databases []DatabaseSeed `yaml:"databases,omitempty"`
	Pages     []PageSeed     `yaml:"pages,omitempty"`
}

// DatabaseSeed is a remote database.
type DatabaseSeed struct {
	ID         string         `yaml:"id"`
	Title      string         `yaml:"title"`
	Collection string         `yaml:"collection"`
	Slug       string         `yaml:"slug,omitempty"`
	Properties []PropertySeed `yaml:"properties"`
	Rows       []RowSeed      `yaml:"rows,omitempty"`
}

// PropertySeed is a database property. Options name the choices of a
// select or multi_select property.
type PropertySeed struct {
	ID      string   `yaml:"id"`
	Name    string   `yaml:"name"`
	Type    string   `yaml:"type"`
	Options []string `yaml:"options,omitempty"`
}

// RowSeed is a database row. Values map property ids to text.
type RowSeed struct {
	ID     string            `yaml:"id"`
	Title  string            `yaml:"title"`
	Values map[string]string `yaml:"values,omitempty"`
}

// PageSeed is a remote page.
type PageSeed struct {
	ID         string `yaml:"id"`
	Title      string `yaml:"title"`
	Collection string `yaml:"collection"`
	Content    string `yaml:"content"`
}

// Step is one action against the mirror or the remote.
type Step struct {
	// Action is one of the Action constants.
	Action string `yaml:"action"`

	// Record is the id of the database or page the step targets.
	Record string `yaml:"record,omitempty"`

	// Row is the target row id. add_row leaves it empty.
	Row string `yaml:"row,omitempty"`

	// Title, when set, replaces the row title.
	Title string `yaml:"title,omitempty"`

	// Values are property values to set. An empty string clears a value.
	Values map[string]string `yaml:"values,omitempty"`

	// Content is the new body of a page.
	Content string `yaml:"content,omitempty"`

	// Message is the rejection reason for fail_row.
	Message string `yaml:"message,omitempty"`

	// Force applies to pull and push.
	Force bool `yaml:"force,omitempty"`

	// Expect maps record ids to the outcome pull or push must report.
	Expect map[string]string `yaml:"expect,omitempty"`
}

// Step actions.
const (
	ActionPull           = "pull"
	ActionPush           = "push"
	ActionEditRow        = "edit_row"
	ActionAddRow         = "add_row"
	ActionDeleteRow      = "delete_row"
	ActionEditPage       = "edit_page"
	ActionRemoteEditRow  = "remote_edit_row"
	ActionRemoteEditPage = "remote_edit_page"
	ActionRemoteRemove   = "remote_remove"
	ActionFailRow        = "fail_row"
)

// Assertion validates the final state of the mirror, the remote or the
// journal.
type Assertion struct {
	// Type is one of the Assert constants.
	Type string `yaml:"type"`

	// Record is the database or page id.
	Record string `yaml:"record,omitempty"`

	// Row is the row id (local_row, remote_row).
	Row string `yaml:"row,omitempty"`

	// Title is the expected row title, checked when set.
	Title string `yaml:"title,omitempty"`

	// Values are expected property values. Subset match.
	Values map[string]string `yaml:"values,omitempty"`

	// Absent expects the row not to exist.
	Absent bool `yaml:"absent,omitempty"`

	// Content is the expected page body.
	Content string `yaml:"content,omitempty"`

	// State is "synced" or "modified" (local_state).
	State string `yaml:"state,omitempty"`

	// Side is "local" or "remote" (row_count).
	Side string `yaml:"side,omitempty"`

	// Outcome filters journal entries (journal_count).
	Outcome string `yaml:"outcome,omitempty"`

	// Count is the expected number of rows or journal entries.
	Count int `yaml:"count,omitempty"`
}

// Assertion types.
const (
	AssertLocalState   = "local_state"
	AssertLocalRow     = "local_row"
	AssertRemoteRow    = "remote_row"
	AssertRowCount     = "row_count"
	AssertLocalPage    = "local_page"
	AssertRemotePage   = "remote_page"
	AssertStampsMatch  = "stamps_match"
	AssertJournalCount = "journal_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // catches "assertion:" vs "assertions:"
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	ids := make(map[string]bool)
	for i, db := range s.Remote.Databases {
		if db.ID == "" {
			return fmt.Errorf("remote.databases[%d]: id is required", i)
		}
		if ids[db.ID] {
			return fmt.Errorf("remote.databases[%d]: duplicate id %q", i, db.ID)
		}
		ids[db.ID] = true
		for j, p := range db.Properties {
			if p.ID == "" || p.Name == "" || p.Type == "" {
				return fmt.Errorf("remote.databases[%d].properties[%d]: id, name and type are required", i, j)
			}
			if len(p.Options) > 0 && !model.PropertyType(p.Type).IsSelect() {
				return fmt.Errorf("remote.databases[%d].properties[%d]: options need a select type", i, j)
			}
		}
		for j, r := range db.Rows {
			if r.ID == "" {
				return fmt.Errorf("remote.databases[%d].rows[%d]: id is required", i, j)
			}
		}
	}
	for i, p := range s.Remote.Pages {
		if p.ID == "" {
			return fmt.Errorf("remote.pages[%d]: id is required", i)
		}
		if ids[p.ID] {
			return fmt.Errorf("remote.pages[%d]: duplicate id %q", i, p.ID)
		}
		ids[p.ID] = true
	}

	for i, step := range s.Steps {
		if err := validateStep(i, &step); err != nil {
			return err
		}
	}
	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	needRecord := func() error {
		if st.Record == "" {
			return fmt.Errorf("steps[%d]: record is required for %s", index, st.Action)
		}
		return nil
	}
	needRow := func() error {
		if err := needRecord(); err != nil {
			return err
		}
		if st.Row == "" {
			return fmt.Errorf("steps[%d]: row is required for %s", index, st.Action)
		}
		return nil
	}

	switch st.Action {
	case "":
		return fmt.Errorf("steps[%d]: action is required", index)
	case ActionPull, ActionPush:
		return nil
	case ActionEditRow, ActionDeleteRow, ActionRemoteEditRow:
		return needRow()
	case ActionFailRow:
		if st.Row == "" {
			return fmt.Errorf("steps[%d]: row is required for %s", index, st.Action)
		}
		return nil
	case ActionAddRow, ActionEditPage, ActionRemoteEditPage, ActionRemoteRemove:
		return needRecord()
	default:
		return fmt.Errorf("steps[%d]: unknown action %q", index, st.Action)
	}
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}
	if a.Type != AssertJournalCount && a.Record == "" {
		return fmt.Errorf("assertions[%d]: record is required for %s", index, a.Type)
	}

	switch a.Type {
	case AssertLocalState:
		if a.State != model.Synced.String() && a.State != model.Modified.String() {
			return fmt.Errorf("assertions[%d]: state must be synced or modified", index)
		}
	case AssertLocalRow, AssertRemoteRow:
		if a.Row == "" {
			return fmt.Errorf("assertions[%d]: row is required for %s", index, a.Type)
		}
	case AssertRowCount:
		if a.Side != "local" && a.Side != "remote" {
			return fmt.Errorf("assertions[%d]: side must be local or remote", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	case AssertLocalPage, AssertRemotePage, AssertStampsMatch:
	case AssertJournalCount:
		if a.Outcome == "" {
			return fmt.Errorf("assertions[%d]: outcome is required for journal_count", index)
		}
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
