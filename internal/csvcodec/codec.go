// Package csvcodec reads and writes the comma-separated text used for bulk
// record import and export.
//
// Decoding is lenient about layout: blank lines are dropped, short rows are
// padded, and every field is trimmed. Encoding always quotes values.
package csvcodec

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

var (
	// ErrEmptyInput is returned when the text has no header or no data rows.
	ErrEmptyInput = errors.New("empty file: expected a header and at least one data row")

	// ErrInvalidCSV is wrapped by decode failures such as an unterminated quote.
	ErrInvalidCSV = errors.New("invalid csv")
)

// Row is one decoded data record.
type Row struct {
	Line   int      // 1-based line number where the record starts
	Fields []string // Trimmed field values, padded to the header width
}

// Decode parses text into a header and its data rows.
//
// A UTF-8 or UTF-16 byte order mark is honored and stripped, invalid UTF-8
// is replaced, and records are split on newlines outside double quotes.
// Fewer than two non-blank records yields ErrEmptyInput.
func Decode(text string) (header []string, rows []Row, err error) {
	clean, _, err := transform.String(unicode.BOMOverride(unicode.UTF8.NewDecoder()), text)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: encoding error: %v", ErrInvalidCSV, err)
	}

	records, err := splitRecords(clean)
	if err != nil {
		return nil, nil, err
	}

	var kept []Row
	for _, r := range records {
		if strings.TrimSpace(r.text) == "" {
			continue
		}
		kept = append(kept, Row{Line: r.line, Fields: splitFields(r.text)})
	}
	if len(kept) < 2 {
		return nil, nil, ErrEmptyInput
	}

	header = kept[0].Fields
	rows = kept[1:]
	for i := range rows {
		for len(rows[i].Fields) < len(header) {
			rows[i].Fields = append(rows[i].Fields, "")
		}
	}
	return header, rows, nil
}

type record struct {
	line int
	text string
}

// splitRecords splits on newlines that are not inside a quoted field.
// A quote opens a quoted field only at the start of a token (after optional
// blanks); elsewhere it is an ordinary character, as in 27" monitor.
// CRLF endings are accepted.
func splitRecords(s string) ([]record, error) {
	var (
		out        []record
		b          strings.Builder
		inQuotes   bool
		fieldStart = true
		line       = 1
		startLine  = 1
		quoteLine  int
	)

	flush := func() {
		out = append(out, record{line: startLine, text: strings.TrimSuffix(b.String(), "\r")})
		b.Reset()
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		if r == '\n' {
			line++
		}

		switch {
		case inQuotes:
			b.WriteRune(r)
			if r != '"' {
				continue
			}
			if i+1 < len(runes) && runes[i+1] == '"' {
				b.WriteRune('"')
				i++
				continue
			}
			inQuotes = false

		case r == '\n':
			flush()
			startLine = line
			fieldStart = true

		case r == '"' && fieldStart:
			inQuotes = true
			quoteLine = line
			fieldStart = false
			b.WriteRune(r)

		default:
			switch r {
			case ',':
				fieldStart = true
			case ' ', '\t', '\r':
			default:
				fieldStart = false
			}
			b.WriteRune(r)
		}
	}
	if inQuotes {
		return nil, fmt.Errorf("%w: unterminated quoted field starting on line %d", ErrInvalidCSV, quoteLine)
	}
	flush()
	return out, nil
}

// splitFields tokenizes one record. A token is a double-quoted run, in which
// commas are literal and "" is an escaped quote, or a maximal run of
// non-comma characters. Tokens are trimmed and lose their enclosing quotes.
func splitFields(rec string) []string {
	var (
		fields []string
		b      strings.Builder
	)
	runes := []rune(rec)

	for i := 0; i <= len(runes); {
		// skip leading whitespace of the token
		for i < len(runes) && (runes[i] == ' ' || runes[i] == '\t') {
			i++
		}

		b.Reset()
		if i < len(runes) && runes[i] == '"' {
			i++
			for i < len(runes) {
				if runes[i] == '"' {
					if i+1 < len(runes) && runes[i+1] == '"' {
						b.WriteRune('"')
						i += 2
						continue
					}
					i++
					break
				}
				b.WriteRune(runes[i])
				i++
			}
			// anything between the closing quote and the next comma is kept
			for i < len(runes) && runes[i] != ',' {
				b.WriteRune(runes[i])
				i++
			}
			fields = append(fields, strings.TrimSpace(b.String()))
		} else {
			for i < len(runes) && runes[i] != ',' {
				b.WriteRune(runes[i])
				i++
			}
			fields = append(fields, strings.TrimSpace(b.String()))
		}
		i++ // skip the comma, or step past the end
	}
	return fields
}

// Encode writes the header unquoted followed by one line per row with every
// value double-quoted and embedded quotes doubled. Lines are joined with \n.
func Encode(header []string, rows [][]string) string {
	var b strings.Builder
	b.WriteString(strings.Join(header, ","))
	for _, row := range rows {
		b.WriteByte('\n')
		for i, v := range row {
			if i > 0 {
				b.WriteByte(',')
			}
			b.WriteByte('"')
			b.WriteString(strings.ReplaceAll(v, `"`, `""`))
			b.WriteByte('"')
		}
	}
	return b.String()
}
