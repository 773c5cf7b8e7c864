// Package textseg splits raw text into sentences with character spans.
// The spans anchor citation evidence: prompts number the sentences and
// parsed responses cite them back by 1-based id.
package textseg

import (
	"strings"
	"unicode"

	"github.com/siftlabs/sift/internal/types"
)

// longSentenceThreshold is the length at which a single-sentence result
// is treated as a symptom of malformed source text (typically PDF
// extraction with missing punctuation) and the structural fallback
// kicks in.
const longSentenceThreshold = 1200

// abbreviations that must not end a sentence. Compared lowercase,
// without the trailing period.
var abbreviations = map[string]bool{
	// titles
	"dr": true, "mr": true, "mrs": true, "ms": true, "prof": true,
	"rev": true, "gen": true, "sen": true, "rep": true, "st": true,
	"sr": true, "jr": true, "hon": true,
	// latin and citation
	"al": true, "etc": true, "e.g": true, "i.e": true, "cf": true,
	"vs": true, "viz": true, "ca": true, "approx": true,
	// references
	"fig": true, "figs": true, "eq": true, "eqs": true, "no": true,
	"nos": true, "vol": true, "vols": true, "pp": true, "p": true,
	"ch": true, "sec": true, "ed": true, "eds": true,
	// months
	"jan": true, "feb": true, "mar": true, "apr": true, "jun": true,
	"jul": true, "aug": true, "sep": true, "sept": true, "oct": true,
	"nov": true, "dec": true,
	// units
	"in": true, "ft": true, "mi": true, "est": true,
}

// Segment splits text into sentences and maps each to a character span
// of the original text. Empty or whitespace-only input yields empty
// slices. The postcondition text[s.Start:s.End] == sentences[i] holds
// for every sentence on every branch.
func Segment(text string) ([]string, []types.Span) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	sentences := splitSentences(text)

	// A single overlong "sentence" means boundary detection found
	// nothing to work with; fall back to document structure.
	if len(sentences) == 1 && len(sentences[0]) > longSentenceThreshold {
		if parts := splitParagraphs(sentences[0]); len(parts) > 1 {
			sentences = parts
		} else if parts := splitNewlineCapital(sentences[0]); len(parts) > 1 {
			sentences = parts
		}
	}

	return computeOffsets(text, sentences)
}

// Apply returns row with sentence data populated. Rows that already
// carry sentences are returned unchanged - ingestion may pre-segment.
func Apply(row types.Row) types.Row {
	if row.Segmented() {
		return row
	}
	row.Sentences, row.Offsets = Segment(row.Text)
	return row
}

// splitSentences performs abbreviation-aware boundary detection.
func splitSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		if c != '.' && c != '!' && c != '?' {
			continue
		}

		// Consume a run of terminators plus closing quotes/brackets.
		end := i
		for end+1 < len(runes) && isTrailing(runes[end+1]) {
			end++
		}

		if !boundaryAfter(runes, end) {
			i = end
			continue
		}
		if c == '.' && !periodEndsSentence(runes, start, i) {
			i = end
			continue
		}

		if s := strings.TrimSpace(string(runes[start : end+1])); s != "" {
			sentences = append(sentences, s)
		}
		i = end
		start = end + 1
	}

	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

// isTrailing reports whether r may follow a terminator inside the same
// sentence (closing quotes and brackets, repeated terminators).
func isTrailing(r rune) bool {
	switch r {
	case '.', '!', '?', '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// boundaryAfter reports whether position end (a terminator or trailing
// rune) is followed by whitespace and a plausible sentence opener.
func boundaryAfter(runes []rune, end int) bool {
	j := end + 1
	if j >= len(runes) {
		return true
	}
	if !unicode.IsSpace(runes[j]) {
		return false
	}
	for j < len(runes) && unicode.IsSpace(runes[j]) {
		j++
	}
	if j >= len(runes) {
		return true
	}
	r := runes[j]
	return unicode.IsUpper(r) || unicode.IsDigit(r) || r == '"' || r == '\'' || r == '(' || r == '[' || r == '“' || r == '‘'
}

// periodEndsSentence rejects periods that belong to abbreviations,
// single-letter initials, or decimal numbers.
func periodEndsSentence(runes []rune, start, dot int) bool {
	// Decimal number: digit on both sides.
	if dot > 0 && dot+1 < len(runes) &&
		unicode.IsDigit(runes[dot-1]) && unicode.IsDigit(runes[dot+1]) {
		return false
	}

	// Word immediately before the period.
	w := dot
	for w > start && !unicode.IsSpace(runes[w-1]) {
		w--
	}
	word := strings.Trim(string(runes[w:dot]), "\"'()[]“‘")
	if word == "" {
		return true
	}

	// Single-letter initial (J. R. Tolkien).
	if len([]rune(word)) == 1 && unicode.IsUpper([]rune(word)[0]) {
		return false
	}

	return !abbreviations[strings.ToLower(word)]
}

// splitParagraphs splits on blank-line paragraph breaks.
func splitParagraphs(text string) []string {
	var parts []string
	for _, p := range strings.Split(text, "\n\n") {
		if s := strings.TrimSpace(p); s != "" {
			parts = append(parts, s)
		}
	}
	return parts
}

// splitNewlineCapital splits at newlines followed by a capital letter,
// the last structural signal available in run-on extracted text.
func splitNewlineCapital(text string) []string {
	runes := []rune(text)
	var parts []string
	start := 0
	for i := 0; i < len(runes); i++ {
		if runes[i] != '\n' {
			continue
		}
		j := i + 1
		for j < len(runes) && (runes[j] == ' ' || runes[j] == '\t') {
			j++
		}
		if j < len(runes) && unicode.IsUpper(runes[j]) {
			if s := strings.TrimSpace(string(runes[start:i])); s != "" {
				parts = append(parts, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		parts = append(parts, s)
	}
	return parts
}

// computeOffsets locates each sentence in the original text by
// sequential substring search starting after the previous match, so
// repeated identical sentences map to distinct, non-overlapping spans.
// A sentence that cannot be located is dropped together with its span,
// keeping the two slices aligned; sentences are in-order substrings of
// text by construction, so this is not expected to trigger.
func computeOffsets(text string, sentences []string) ([]string, []types.Span) {
	kept := make([]string, 0, len(sentences))
	offsets := make([]types.Span, 0, len(sentences))
	searchFrom := 0
	for _, s := range sentences {
		idx := strings.Index(text[searchFrom:], s)
		if idx < 0 {
			continue
		}
		start := searchFrom + idx
		end := start + len(s)
		kept = append(kept, s)
		offsets = append(offsets, types.Span{Start: start, End: end})
		searchFrom = end
	}
	return kept, offsets
}
