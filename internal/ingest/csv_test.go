package ingest

import (
	"bytes"
	"strings"
	"testing"
)

func TestParseCSV(t *testing.T) {
	t.Run("named columns", func(t *testing.T) {
		csv := "id,text\nr1,The fox lives in the forest.\nr2,It hunts at night.\n"
		rows, err := ParseCSV(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("ParseCSV() error = %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("got %d rows, want 2", len(rows))
		}
		if rows[0].ID != "r1" || rows[0].Text != "The fox lives in the forest." {
			t.Errorf("row 0 = %+v", rows[0])
		}
		if rows[1].ID != "r2" {
			t.Errorf("row 1 ID = %q, want r2", rows[1].ID)
		}
	})

	t.Run("text column found case-insensitively", func(t *testing.T) {
		csv := "ID,Description\n7,A long description of the record.\n"
		rows, err := ParseCSV(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("ParseCSV() error = %v", err)
		}
		if rows[0].ID != "7" {
			t.Errorf("ID = %q, want 7", rows[0].ID)
		}
		if rows[0].Text != "A long description of the record." {
			t.Errorf("Text = %q", rows[0].Text)
		}
	})

	t.Run("falls back to widest column", func(t *testing.T) {
		csv := "code,blurb\nA1,This is clearly the text-bearing column of the export.\nB2,Another long free-text cell follows here.\n"
		rows, err := ParseCSV(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("ParseCSV() error = %v", err)
		}
		if !strings.Contains(rows[0].Text, "text-bearing column") {
			t.Errorf("Text = %q, widest column not chosen", rows[0].Text)
		}
	})

	t.Run("generates ids when no id column", func(t *testing.T) {
		csv := "text\nfirst row text here\nsecond row text here\n"
		rows, err := ParseCSV(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("ParseCSV() error = %v", err)
		}
		if rows[0].ID != "row-1" || rows[1].ID != "row-2" {
			t.Errorf("generated ids = %q, %q", rows[0].ID, rows[1].ID)
		}
	})

	t.Run("strips BOM", func(t *testing.T) {
		csv := "\xEF\xBB\xBFid,text\nr1,hello world\n"
		rows, err := ParseCSV(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("ParseCSV() error = %v", err)
		}
		if rows[0].ID != "r1" {
			t.Errorf("BOM not stripped, ID = %q", rows[0].ID)
		}
	})

	t.Run("decodes latin-1 exports", func(t *testing.T) {
		// "café" with a latin-1 encoded é (0xE9), not valid UTF-8.
		csv := append([]byte("id,text\nr1,caf"), 0xE9, '\n')
		rows, err := ParseCSV(bytes.NewReader(csv))
		if err != nil {
			t.Fatalf("ParseCSV() error = %v", err)
		}
		if rows[0].Text != "café" {
			t.Errorf("Text = %q, want café", rows[0].Text)
		}
	})

	t.Run("skips empty text cells", func(t *testing.T) {
		csv := "id,text\nr1,kept\nr2,\nr3,   \nr4,also kept\n"
		rows, err := ParseCSV(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("ParseCSV() error = %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("got %d rows, want 2", len(rows))
		}
		if rows[1].ID != "r4" {
			t.Errorf("row 1 ID = %q, want r4", rows[1].ID)
		}
	})

	t.Run("tolerates ragged rows", func(t *testing.T) {
		csv := "id,text,extra\nr1,short row\nr2,full row,with extra\n"
		rows, err := ParseCSV(strings.NewReader(csv))
		if err != nil {
			t.Fatalf("ParseCSV() error = %v", err)
		}
		if len(rows) != 2 {
			t.Fatalf("got %d rows, want 2", len(rows))
		}
	})

	t.Run("empty input", func(t *testing.T) {
		if _, err := ParseCSV(strings.NewReader("")); err == nil {
			t.Error("expected error for empty input")
		}
	})

	t.Run("header only", func(t *testing.T) {
		if _, err := ParseCSV(strings.NewReader("id,text\n")); err == nil {
			t.Error("expected error when no data rows have text")
		}
	})
}

func TestContentText(t *testing.T) {
	t.Run("literal strings", func(t *testing.T) {
		stream := []byte(`BT /F1 12 Tf 72 712 Td (Hello) Tj (world.) Tj ET`)
		got := contentText(stream)
		if got != "Hello world." {
			t.Errorf("contentText() = %q, want %q", got, "Hello world.")
		}
	})

	t.Run("escapes and nested parens", func(t *testing.T) {
		stream := []byte(`BT (A \(nested\) phrase) Tj (line\nbreak) Tj ET`)
		got := contentText(stream)
		if !strings.Contains(got, "A (nested) phrase") {
			t.Errorf("contentText() = %q, escapes not decoded", got)
		}
	})

	t.Run("TJ arrays", func(t *testing.T) {
		stream := []byte(`BT [(Spa)-20(ced)] TJ ET`)
		got := contentText(stream)
		if !strings.Contains(got, "Spa") || !strings.Contains(got, "ced") {
			t.Errorf("contentText() = %q, TJ strings missing", got)
		}
	})

	t.Run("skips hex strings and comments", func(t *testing.T) {
		stream := []byte("BT <001B002C> Tj % a comment (not text)\n(real text) Tj ET")
		got := contentText(stream)
		if got != "real text" {
			t.Errorf("contentText() = %q, want %q", got, "real text")
		}
	})
}
