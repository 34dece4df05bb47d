// Package csvline tokenizes the bulk notice CSV one logical line at a time.
//
// The daily exports are not strict RFC 4180 (stray quotes, short rows, columns
// that move between days), so the tokenizer is lenient: it never fails, and a
// row is always read through a Header by column name.
package csvline

import "strings"

// Split returns the fields of a single comma-delimited line. Double quotes wrap a
// field, and "" inside a quoted field is a literal quote. An unterminated quote
// leaves the remainder of the line in the last field.
func Split(line string) []string {
	var (
		fields   []string
		cur      strings.Builder
		inQuotes bool
	)
	for i := 0; i < len(line); i++ {
		c := line[i]
		switch {
		case c == '"':
			if inQuotes && i+1 < len(line) && line[i+1] == '"' {
				cur.WriteByte('"')
				i++
				continue
			}
			inQuotes = !inQuotes
		case c == ',' && !inQuotes:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteByte(c)
		}
	}
	return append(fields, cur.String())
}

// maxSpan bounds how many physical lines one quoted field may join, so a
// stray quote costs a few rows rather than the rest of the day.
const maxSpan = 32

// Lines splits a document into non-blank logical lines, dropping a leading
// UTF-8 byte order mark and trailing carriage returns. A newline inside a
// quoted field continues the line; the field keeps it as "\n".
func Lines(doc string) []string {
	doc = strings.TrimPrefix(doc, "\ufeff")
	raw := strings.Split(doc, "\n")
	out := make([]string, 0, len(raw))
	var (
		pending []string
		open    bool
	)
	for _, l := range raw {
		l = strings.TrimRight(l, "\r")
		if len(pending) == 0 && strings.TrimSpace(l) == "" {
			continue
		}
		pending = append(pending, l)
		if strings.Count(l, `"`)%2 == 1 {
			open = !open
		}
		if open && len(pending) < maxSpan {
			continue
		}
		out = append(out, strings.Join(pending, "\n"))
		pending, open = pending[:0:0], false
	}
	if len(pending) > 0 {
		out = append(out, strings.Join(pending, "\n"))
	}
	return out
}

// Header maps a header row's trimmed column names to their index.
type Header map[string]int

func NewHeader(fields []string) Header {
	h := make(Header, len(fields))
	for i, f := range fields {
		name := strings.TrimSpace(f)
		if _, dup := h[name]; dup {
			continue
		}
		h[name] = i
	}
	return h
}

// Get returns the first non-empty trimmed value among the named columns.
// Unknown columns and rows shorter than the header resolve to "".
func (h Header) Get(row []string, names ...string) string {
	for _, n := range names {
		idx, ok := h[n]
		if !ok || idx >= len(row) {
			continue
		}
		if v := strings.TrimSpace(row[idx]); v != "" {
			return v
		}
	}
	return ""
}

// Has reports whether any of the named columns is present.
func (h Header) Has(names ...string) bool {
	for _, n := range names {
		if _, ok := h[n]; ok {
			return true
		}
	}
	return false
}
