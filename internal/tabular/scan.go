package tabular

import "strings"

// scan splits text into records of fields. It walks the input one byte at
// a time; the delimiter, quote and line breaks are all ASCII so multi-byte
// UTF-8 sequences pass through untouched.
//
// Inside quotes a doubled quote is a literal quote and line breaks are kept.
// Outside quotes only a comma ends a field and LF, CR or CRLF ends a record.
// A record made of a single empty field is a blank line and is dropped.
func scan(text string) [][]string {
	var (
		records  [][]string
		record   []string
		field    strings.Builder
		inQuotes bool
		pending  bool
	)

	endField := func() {
		record = append(record, field.String())
		field.Reset()
	}
	endRecord := func() {
		endField()
		if len(record) > 1 || record[0] != "" {
			records = append(records, record)
		}
		record = nil
		pending = false
	}

	for i := 0; i < len(text); i++ {
		c := text[i]
		if inQuotes {
			if c == '"' {
				if i+1 < len(text) && text[i+1] == '"' {
					field.WriteByte('"')
					i++
				} else {
					inQuotes = false
				}
			} else {
				field.WriteByte(c)
			}
			continue
		}

		switch c {
		case '"':
			inQuotes = true
			pending = true
		case ',':
			endField()
			pending = true
		case '\r':
			if i+1 < len(text) && text[i+1] == '\n' {
				i++
			}
			endRecord()
		case '\n':
			endRecord()
		default:
			field.WriteByte(c)
			pending = true
		}
	}

	if pending {
		endRecord()
	}
	return records
}
