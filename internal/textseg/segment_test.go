package textseg

import (
	"strings"
	"testing"

	"github.com/siftlabs/sift/internal/types"
)

func TestSegment_TwoSentences(t *testing.T) {
	text := "The fox is swift. It lives in forests."
	sentences, offsets := Segment(text)

	if len(sentences) != 2 {
		t.Fatalf("len(sentences) = %d, want 2 (%q)", len(sentences), sentences)
	}
	if sentences[0] != "The fox is swift." {
		t.Errorf("sentences[0] = %q", sentences[0])
	}
	if sentences[1] != "It lives in forests." {
		t.Errorf("sentences[1] = %q", sentences[1])
	}
	if offsets[0].Start != 0 || offsets[0].End != 17 {
		t.Errorf("offsets[0] = %+v, want {0 17}", offsets[0])
	}
	if offsets[1].Start != 18 || offsets[1].End != 38 {
		t.Errorf("offsets[1] = %+v, want {18 38}", offsets[1])
	}
	for i := range sentences {
		if got := text[offsets[i].Start:offsets[i].End]; got != sentences[i] {
			t.Errorf("span %d round-trip = %q, want %q", i, got, sentences[i])
		}
	}
}

func TestSegment_EmptyInput(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t \n"} {
		sentences, offsets := Segment(text)
		if len(sentences) != 0 || len(offsets) != 0 {
			t.Errorf("Segment(%q) = %v, %v, want empty", text, sentences, offsets)
		}
	}
}

func TestSegment_Abbreviations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{"title", "Dr. Smith examined the sample. The result was clear.", 2},
		{"et al", "Jones et al. found the same. Replication held.", 2},
		{"decimal", "The mean was 3.14 across trials. Variance was low.", 2},
		{"initials", "J. R. Tolkien wrote it. It was long.", 2},
		{"month", "Sampling began on Jan. 5 and ran weekly. It ended in March.", 2},
		{"e.g.", "Some taxa, e.g. beetles, were excluded. Others remained.", 2},
		{"no false join", "It rained. The river rose. The bridge held.", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sentences, offsets := Segment(tt.text)
			if len(sentences) != tt.want {
				t.Fatalf("got %d sentences %q, want %d", len(sentences), sentences, tt.want)
			}
			for i := range sentences {
				if got := tt.text[offsets[i].Start:offsets[i].End]; got != sentences[i] {
					t.Errorf("span %d round-trip = %q, want %q", i, got, sentences[i])
				}
			}
		})
	}
}

func TestSegment_RepeatedSentencesDistinctSpans(t *testing.T) {
	text := "It held. It held. It held."
	sentences, offsets := Segment(text)
	if len(sentences) != 3 {
		t.Fatalf("got %d sentences, want 3", len(sentences))
	}
	seen := map[int]bool{}
	prevEnd := 0
	for i, sp := range offsets {
		if seen[sp.Start] {
			t.Errorf("duplicate span start %d", sp.Start)
		}
		seen[sp.Start] = true
		if sp.Start < prevEnd {
			t.Errorf("span %d overlaps previous (start %d < prev end %d)", i, sp.Start, prevEnd)
		}
		prevEnd = sp.End
		if got := text[sp.Start:sp.End]; got != sentences[i] {
			t.Errorf("span %d round-trip = %q", i, got)
		}
	}
}

func TestSegment_ParagraphFallback(t *testing.T) {
	// No terminators at all - a long PDF-style run-on with paragraph
	// breaks as the only structure.
	para := strings.Repeat("word ", 200)
	text := strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para) + "\n\n" + strings.TrimSpace(para)

	sentences, offsets := Segment(text)
	if len(sentences) != 3 {
		t.Fatalf("got %d segments, want 3 paragraphs", len(sentences))
	}
	for i := range sentences {
		if got := text[offsets[i].Start:offsets[i].End]; got != sentences[i] {
			t.Errorf("span %d round-trip failed", i)
		}
	}
}

func TestSegment_NewlineCapitalFallback(t *testing.T) {
	line := strings.Repeat("lowercase text without punctuation ", 40)
	text := strings.TrimSpace(line) + "\nNext heading starts here " + strings.TrimSpace(line) + "\nAnother heading follows"

	sentences, offsets := Segment(text)
	if len(sentences) < 2 {
		t.Fatalf("got %d segments, want newline-capital split", len(sentences))
	}
	for i := range sentences {
		if got := text[offsets[i].Start:offsets[i].End]; got != sentences[i] {
			t.Errorf("span %d round-trip failed", i)
		}
	}
}

func TestSegment_OrderPreserved(t *testing.T) {
	text := "First point. Second point. Third point."
	sentences, _ := Segment(text)
	want := []string{"First point.", "Second point.", "Third point."}
	if len(sentences) != len(want) {
		t.Fatalf("got %d sentences, want %d", len(sentences), len(want))
	}
	for i := range want {
		if sentences[i] != want[i] {
			t.Errorf("sentences[%d] = %q, want %q", i, sentences[i], want[i])
		}
	}
}

func TestApply_PreSegmentedUnchanged(t *testing.T) {
	row := types.Row{
		ID:        "r1",
		Text:      "One. Two.",
		Sentences: []string{"pre-existing"},
		Offsets:   []types.Span{{Start: 0, End: 12}},
	}
	got := Apply(row)
	if len(got.Sentences) != 1 || got.Sentences[0] != "pre-existing" {
		t.Errorf("Apply re-segmented a pre-segmented row: %v", got.Sentences)
	}

	fresh := Apply(types.Row{ID: "r2", Text: "One. Two went by."})
	if len(fresh.Sentences) != 2 {
		t.Errorf("Apply did not segment: %v", fresh.Sentences)
	}
}
