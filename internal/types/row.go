package types

// Span is a half-open [Start, End) character range into a row's text.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Row is one unit of input text to extract categories from.
// Rows are created at ingestion and immutable for the life of a job.
//
// When Sentences is populated, len(Sentences) == len(Offsets) and
// Text[Offsets[i].Start:Offsets[i].End] == Sentences[i].
type Row struct {
	ID        string   `json:"id"`
	Text      string   `json:"text"`
	Sentences []string `json:"sentences,omitempty"`
	Offsets   []Span   `json:"sentence_offsets,omitempty"`
}

// Segmented reports whether the row carries sentence data.
func (r Row) Segmented() bool {
	return len(r.Sentences) > 0 && len(r.Sentences) == len(r.Offsets)
}

// Sentence returns the sentence with the given 1-based id, or "" and
// false when the id is out of range.
func (r Row) Sentence(id int) (string, bool) {
	if id < 1 || id > len(r.Sentences) {
		return "", false
	}
	return r.Sentences[id-1], true
}
