package testutil

import (
	"github.com/roach88/mirror/internal/model"
)

// TasksSchema is a small database with a select, a text and a
// multi_select property.
func TasksSchema() model.SchemaDocument {
	return model.SchemaDocument{
		ID:             "db-1",
		Title:          "Tasks",
		CollectionID:   "col-1",
		CollectionSlug: "work",
		Slug:           "tasks",
		UpdatedAt:      Epoch,
		Properties: []model.PropertyDescriptor{
			{ID: "p-status", Name: "Status", Type: model.PropertyTypeSelect, SortOrder: 0, Config: map[string]any{
				"options": model.OptionsConfig(
					model.SelectOption{ID: "o-todo", Name: "Todo"},
					model.SelectOption{ID: "o-done", Name: "Done", Color: "green"},
				),
			}},
			{ID: "p-notes", Name: "Notes", Type: model.PropertyTypeText, SortOrder: 1},
			{ID: "p-tags", Name: "Tags", Type: model.PropertyTypeMultiSelect, SortOrder: 2},
		},
	}
}

// TasksRows are the rows of TasksSchema.
func TasksRows() []model.Row {
	return []model.Row{
		{ID: "r1", Title: "Write docs", Properties: map[string]*string{
			"p-status": model.Text("Todo"),
		}},
		{ID: "r2", Title: "Ship it", Properties: map[string]*string{
			"p-status": model.Text("Done"),
			"p-notes":  model.Text(`He said, "hi"`),
		}},
	}
}

// NotesPage is a page in the same collection as TasksSchema.
func NotesPage() model.PageDocument {
	return model.PageDocument{
		ID:             "pg-1",
		Title:          "Meeting Notes",
		CollectionID:   "col-1",
		CollectionSlug: "work",
		UpdatedAt:      Epoch,
		Content:        "# Agenda\n\n- budget\n",
	}
}
