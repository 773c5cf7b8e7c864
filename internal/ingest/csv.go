// Package ingest turns uploaded files (CSV, PDF) into extraction rows.
package ingest

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/siftlabs/sift/internal/types"
)

// Column headers recognized as the text payload, in priority order.
var textColumnNames = []string{"text", "content", "description", "body", "notes", "comment", "message"}

// Column headers recognized as the row identifier.
var idColumnNames = []string{"id", "row_id", "rowid", "record_id", "key"}

// ParseCSV reads a CSV upload into rows. The header row is required;
// the text column is found by name (text, content, description, ...)
// and falls back to the widest column when no name matches. Rows with
// an empty text cell are skipped.
func ParseCSV(r io.Reader) ([]types.Row, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}

	// Strip a UTF-8 BOM; spreadsheet exports often carry one.
	data = bytes.TrimPrefix(data, []byte{0xEF, 0xBB, 0xBF})
	if !utf8.Valid(data) {
		// Legacy spreadsheet exports are usually latin-1/cp1252; every
		// latin-1 byte maps to the same Unicode codepoint.
		data = decodeLatin1(data)
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = -1 // tolerate ragged rows
	reader.LazyQuotes = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parsing csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("empty csv")
	}

	header := records[0]
	body := records[1:]

	textCol := findColumn(header, textColumnNames)
	if textCol < 0 {
		textCol = widestColumn(header, body)
	}
	if textCol < 0 {
		return nil, fmt.Errorf("no usable text column found")
	}
	idCol := findColumn(header, idColumnNames)

	rows := make([]types.Row, 0, len(body))
	for i, record := range body {
		if textCol >= len(record) {
			continue
		}
		text := strings.TrimSpace(record[textCol])
		if text == "" {
			continue
		}

		id := ""
		if idCol >= 0 && idCol < len(record) {
			id = strings.TrimSpace(record[idCol])
		}
		if id == "" {
			id = fmt.Sprintf("row-%d", i+1)
		}

		rows = append(rows, types.Row{ID: id, Text: text})
	}

	if len(rows) == 0 {
		return nil, fmt.Errorf("csv contains no rows with text")
	}
	return rows, nil
}

// findColumn returns the index of the first header matching any of the
// candidate names, or -1.
func findColumn(header []string, names []string) int {
	for _, name := range names {
		for i, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				return i
			}
		}
	}
	return -1
}

// widestColumn picks the column with the largest average cell length.
// A header-only heuristic fails on unnamed exports; content does not.
func widestColumn(header []string, body [][]string) int {
	if len(header) == 0 {
		return -1
	}
	best, bestTotal := -1, 0
	for col := range header {
		total := 0
		for _, record := range body {
			if col < len(record) {
				total += len(record[col])
			}
		}
		if total > bestTotal {
			best, bestTotal = col, total
		}
	}
	if bestTotal == 0 {
		return -1
	}
	return best
}

// decodeLatin1 reinterprets bytes as latin-1 codepoints.
func decodeLatin1(data []byte) []byte {
	runes := make([]rune, len(data))
	for i, b := range data {
		runes[i] = rune(b)
	}
	return []byte(string(runes))
}
