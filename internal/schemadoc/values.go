package schemadoc

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/roach88/mirror/internal/model"
)

var (
	integerPattern  = regexp.MustCompile(`^-?[0-9]+$`)
	decimalPattern  = regexp.MustCompile(`^-?[0-9]+\.[0-9]+$`)
	plainKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_][A-Za-z0-9_.\-]*$`)
)

// formatValue renders a scalar or composite value for the right-hand side
// of a "key: value" line.
func formatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return quote(val)
	case bool:
		return strconv.FormatBool(val)
	case int:
		return strconv.Itoa(val)
	case int32:
		return strconv.FormatInt(int64(val), 10)
	case int64:
		return strconv.FormatInt(val, 10)
	case float32:
		return formatFloat(float64(val))
	case float64:
		return formatFloat(val)
	case json.Number:
		return formatValue(model.NormalizeNumber(val))
	default:
		return formatJSON(v)
	}
}

// formatFloat always writes a fraction so the value reads back as a float.
// Non-finite floats have no bare form and are written as quoted text.
func formatFloat(f float64) string {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return quote(strconv.FormatFloat(f, 'g', -1, 64))
	}
	s := strconv.FormatFloat(f, 'f', -1, 64)
	if !strings.Contains(s, ".") {
		s += ".0"
	}
	return s
}

// formatJSON writes composite values as single-line JSON.
func formatJSON(v any) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return quote(fmt.Sprint(v))
	}
	return strings.TrimRight(buf.String(), "\n")
}

// formatKey leaves identifier-like keys bare and quotes everything else.
func formatKey(k string) string {
	if plainKeyPattern.MatchString(k) {
		return k
	}
	return quote(k)
}

func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for i := 0; i < len(s); i++ {
		switch c := s[i]; c {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteByte(c)
		}
	}
	b.WriteByte('"')
	return b.String()
}

func unquote(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 == len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch s[i] {
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 't':
			b.WriteByte('\t')
		default:
			b.WriteByte(s[i])
		}
	}
	return b.String()
}

// decodeValue interprets the right-hand side of a line. The checks run in a
// fixed order: null forms, booleans, integers, decimals, JSON composites,
// quoted strings, and finally the literal text.
func decodeValue(raw string) any {
	switch raw {
	case "", "null", "~":
		return nil
	case "true":
		return true
	case "false":
		return false
	}

	if integerPattern.MatchString(raw) {
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i
		}
		return raw
	}
	if decimalPattern.MatchString(raw) {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	}
	if raw[0] == '{' || raw[0] == '[' {
		if v, ok := decodeJSON(raw); ok {
			return v
		}
		return raw
	}
	if len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"' {
		return unquote(raw[1 : len(raw)-1])
	}
	return raw
}

// decodeJSON decodes exactly one JSON value, keeping numbers as json.Number.
func decodeJSON(raw string) (any, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, false
	}
	return v, true
}

// splitKeyValue splits "key: value" into its parts. Keys may be quoted.
func splitKeyValue(content string) (key, raw string, ok bool) {
	if strings.HasPrefix(content, `"`) {
		end := closingQuote(content)
		if end < 0 {
			return "", "", false
		}
		key = unquote(content[1:end])
		rest := content[end+1:]
		if !strings.HasPrefix(rest, ":") {
			return "", "", false
		}
		return key, strings.TrimSpace(rest[1:]), true
	}

	idx := strings.Index(content, ":")
	if idx <= 0 {
		return "", "", false
	}
	if idx+1 < len(content) && content[idx+1] != ' ' {
		return "", "", false
	}
	return content[:idx], strings.TrimSpace(content[idx+1:]), true
}

// closingQuote returns the index of the quote that closes the string opened
// at s[0], skipping escaped characters, or -1.
func closingQuote(s string) int {
	for i := 1; i < len(s); i++ {
		switch s[i] {
		case '\\':
			i++
		case '"':
			return i
		}
	}
	return -1
}

// asString coerces a decoded value into a document string field.
func asString(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case bool:
		return strconv.FormatBool(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	default:
		return formatJSON(val)
	}
}

// asInt coerces a decoded value into an integer field, 0 when not numeric.
func asInt(v any) int {
	switch val := v.(type) {
	case int64:
		return int(val)
	case float64:
		return int(val)
	case string:
		i, err := strconv.Atoi(val)
		if err != nil {
			return 0
		}
		return i
	default:
		return 0
	}
}

// asConfig coerces a decoded value into a config map, nil when empty.
func asConfig(v any) map[string]any {
	m, ok := v.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	return m
}
