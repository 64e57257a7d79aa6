package engine

import (
	"strings"

	"github.com/roach88/mirror/internal/model"
	"github.com/roach88/mirror/internal/remote"
)

// Unresolved is a select value that matched no configured option. It is
// still sent as-is; the remote decides whether it is valid.
type Unresolved struct {
	RowID      string `json:"row_id"`
	PropertyID string `json:"property_id"`
	Value      string `json:"value"`
}

// ResolveSelect converts the stored text of a select or multi_select cell
// into option ids. A select yields a string, a multi_select a []string.
// Names are matched exactly first, then case-insensitively; text that is
// already an option id is kept. Names that match nothing pass through and
// are returned in unresolved.
func ResolveSelect(propType model.PropertyType, options []model.SelectOption, text string) (value any, unresolved []string) {
	lookup := func(name string) string {
		for _, opt := range options {
			if opt.Name == name {
				return opt.ID
			}
		}
		for _, opt := range options {
			if strings.EqualFold(opt.Name, name) {
				return opt.ID
			}
		}
		for _, opt := range options {
			if opt.ID == name {
				return opt.ID
			}
		}
		unresolved = append(unresolved, name)
		return name
	}

	if propType == model.PropertyTypeMultiSelect {
		names := model.SplitMulti(text)
		ids := make([]string, 0, len(names))
		for _, n := range names {
			ids = append(ids, lookup(n))
		}
		return ids, unresolved
	}
	return lookup(strings.TrimSpace(text)), unresolved
}

// ToWireRow converts a local row into the remote's write form. Every
// property of schema is included so cleared values are cleared remotely.
// Select options come from options when it knows the property, otherwise
// from schema itself.
func ToWireRow(row model.Row, schema model.SchemaDocument, options map[string][]model.SelectOption) (remote.WireRow, []Unresolved) {
	w := remote.WireRow{
		ID:           row.ID,
		Title:        row.Title,
		DataSourceID: row.DataSourceID,
		Properties:   make(map[string]any, len(schema.Properties)),
	}

	var unresolved []Unresolved
	for _, p := range schema.Properties {
		v := row.Properties[p.ID]
		if model.IsBlank(v) {
			w.Properties[p.ID] = nil
			continue
		}
		if !p.Type.IsSelect() {
			w.Properties[p.ID] = *v
			continue
		}

		opts, ok := options[p.ID]
		if !ok {
			opts = model.SelectOptions(p.Config)
		}
		value, missing := ResolveSelect(p.Type, opts, *v)
		w.Properties[p.ID] = value
		for _, name := range missing {
			unresolved = append(unresolved, Unresolved{RowID: row.ID, PropertyID: p.ID, Value: name})
		}
	}
	return w, unresolved
}

// optionIndex collects select options per property, preferring the first
// schema that configures any for a property.
func optionIndex(schemas ...model.SchemaDocument) map[string][]model.SelectOption {
	idx := make(map[string][]model.SelectOption)
	for _, s := range schemas {
		for _, p := range s.Properties {
			if !p.Type.IsSelect() {
				continue
			}
			if _, ok := idx[p.ID]; ok {
				continue
			}
			if opts := model.SelectOptions(p.Config); len(opts) > 0 {
				idx[p.ID] = opts
			}
		}
	}
	return idx
}
