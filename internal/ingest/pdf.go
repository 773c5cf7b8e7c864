package ingest

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	"github.com/siftlabs/sift/internal/types"
)

// ParsePDF extracts the text of a PDF into a single row. The row id is
// the file's base name; pages are concatenated with blank lines so
// paragraph-based sentence fallbacks still work.
func ParsePDF(path string) ([]types.Row, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening pdf: %w", err)
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.Cmd = model.EXTRACTCONTENT
	ctx, err := api.ReadValidateAndOptimize(f, conf)
	if err != nil {
		return nil, fmt.Errorf("reading pdf: %w", err)
	}

	var pages []string
	for pageNr := 1; pageNr <= ctx.PageCount; pageNr++ {
		content, err := pdfcpu.ExtractPageContent(ctx, pageNr)
		if err != nil {
			return nil, fmt.Errorf("extracting page %d: %w", pageNr, err)
		}
		if content == nil {
			continue
		}
		raw, err := io.ReadAll(content)
		if err != nil {
			return nil, fmt.Errorf("reading page %d content: %w", pageNr, err)
		}
		if text := contentText(raw); text != "" {
			pages = append(pages, text)
		}
	}

	text := strings.TrimSpace(strings.Join(pages, "\n\n"))
	if text == "" {
		return nil, fmt.Errorf("no text found in %s", filepath.Base(path))
	}

	id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return []types.Row{{ID: id, Text: text}}, nil
}

// contentText pulls the literal strings out of a PDF content stream.
// Only text shown via Tj/TJ/'/" operators matters; positioning and
// graphics operators are skipped.
func contentText(data []byte) string {
	var sb strings.Builder
	i := 0
	for i < len(data) {
		switch data[i] {
		case '(':
			str, next := readLiteralString(data, i)
			if str != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(str)
			}
			i = next
		case '<':
			// Hex strings carry encoded glyph ids we cannot map without
			// the font's CMap; skip them.
			i = skipHexString(data, i)
		case '%':
			for i < len(data) && data[i] != '\n' {
				i++
			}
		default:
			i++
		}
	}
	return strings.TrimSpace(sb.String())
}

// readLiteralString parses a PDF literal string starting at the '(' at
// data[start]. Returns the decoded string and the index after the
// closing ')'.
func readLiteralString(data []byte, start int) (string, int) {
	var sb strings.Builder
	depth := 0
	i := start
	for i < len(data) {
		c := data[i]
		switch c {
		case '\\':
			if i+1 >= len(data) {
				return sb.String(), i + 1
			}
			i++
			switch data[i] {
			case 'n':
				sb.WriteByte('\n')
			case 'r':
				sb.WriteByte('\r')
			case 't':
				sb.WriteByte('\t')
			case 'b', 'f':
				// ignore
			case '(', ')', '\\':
				sb.WriteByte(data[i])
			case '\n':
				// line continuation
			default:
				if data[i] >= '0' && data[i] <= '7' {
					code := 0
					for n := 0; n < 3 && i < len(data) && data[i] >= '0' && data[i] <= '7'; n++ {
						code = code*8 + int(data[i]-'0')
						i++
					}
					i--
					if code >= 32 && code < 127 {
						sb.WriteByte(byte(code))
					}
				}
			}
			i++
		case '(':
			depth++
			if depth > 1 {
				sb.WriteByte(c)
			}
			i++
		case ')':
			depth--
			if depth == 0 {
				return sb.String(), i + 1
			}
			sb.WriteByte(c)
			i++
		default:
			sb.WriteByte(c)
			i++
		}
	}
	return sb.String(), i
}

// skipHexString advances past a <...> hex string or <<...>> dictionary.
func skipHexString(data []byte, start int) int {
	i := start + 1
	if i < len(data) && data[i] == '<' {
		// dictionary: scan to matching >>
		depth := 1
		i++
		for i+1 < len(data) && depth > 0 {
			if data[i] == '<' && data[i+1] == '<' {
				depth++
				i += 2
				continue
			}
			if data[i] == '>' && data[i+1] == '>' {
				depth--
				i += 2
				continue
			}
			i++
		}
		return i
	}
	for i < len(data) && data[i] != '>' {
		i++
	}
	return i + 1
}
