package model

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Text returns a pointer to s, for building row values.
func Text(s string) *string {
	return &s
}

// Deref returns the text of v, "" when v is null.
func Deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

// IsBlank reports whether v is null or the empty string.
func IsBlank(v *string) bool {
	return v == nil || *v == ""
}

// ValuesEqual compares two property values, treating blank and null as equal.
func ValuesEqual(a, b *string) bool {
	if IsBlank(a) || IsBlank(b) {
		return IsBlank(a) && IsBlank(b)
	}
	return *a == *b
}

// NormalizeConfig converts json.Number values at the top level of a config
// map into int64 or float64, matching what the schema codec reads back.
// Nested composites keep json.Number. Returns nil for an empty map.
func NormalizeConfig(config map[string]any) map[string]any {
	if len(config) == 0 {
		return nil
	}
	out := make(map[string]any, len(config))
	for k, v := range config {
		out[k] = NormalizeNumber(v)
	}
	return out
}

// NormalizeNumber converts a json.Number or Go integer into int64, and any
// other numeric form into float64. Non-numeric values are returned unchanged.
func NormalizeNumber(v any) any {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i
		}
		if f, err := n.Float64(); err == nil {
			return f
		}
		return string(n)
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

// SelectOption is one allowed value of a select or multi_select property.
type SelectOption struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Color string `json:"color,omitempty"`
}

// SelectOptions reads the option list from a property config.
// The list lives under the "options" key as an array of objects.
// Malformed entries are skipped.
func SelectOptions(config map[string]any) []SelectOption {
	raw, ok := config["options"].([]any)
	if !ok {
		return nil
	}
	var options []SelectOption
	for _, entry := range raw {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		opt := SelectOption{
			ID:    stringField(obj["id"]),
			Name:  stringField(obj["name"]),
			Color: stringField(obj["color"]),
		}
		if opt.ID == "" && opt.Name == "" {
			continue
		}
		options = append(options, opt)
	}
	return options
}

// OptionsConfig builds the config value for a list of select options.
func OptionsConfig(options ...SelectOption) []any {
	out := make([]any, 0, len(options))
	for _, opt := range options {
		obj := map[string]any{"id": opt.ID, "name": opt.Name}
		if opt.Color != "" {
			obj["color"] = opt.Color
		}
		out = append(out, obj)
	}
	return out
}

// SplitMulti splits a multi_select cell into its trimmed, non-empty names.
func SplitMulti(s string) []string {
	var names []string
	for _, part := range strings.Split(s, ",") {
		if name := strings.TrimSpace(part); name != "" {
			names = append(names, name)
		}
	}
	return names
}

// JoinMulti renders multi_select names back into a single cell.
func JoinMulti(names []string) string {
	return strings.Join(names, ", ")
}

func stringField(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case json.Number:
		return s.String()
	case int64:
		return strconv.FormatInt(s, 10)
	case nil:
		return ""
	default:
		return ""
	}
}
