package types

// ValidationStatus tracks the user-review state of one extraction.
type ValidationStatus string

const (
	ValidationPending   ValidationStatus = "pending"
	ValidationConfirmed ValidationStatus = "confirmed"
	ValidationRejected  ValidationStatus = "rejected"
	ValidationCorrected ValidationStatus = "corrected"
)

// Evidence is one cited sentence supporting an extracted value.
// SentenceID is 1-based into the row's sentence list.
type Evidence struct {
	SentenceID   int    `json:"sentence_id"`
	SentenceText string `json:"sentence_text"`
	Rationale    string `json:"rationale,omitempty"`
}

// CandidateEvidence is a sentence proposed as possibly relevant when no
// value was confidently extracted.
type CandidateEvidence struct {
	SentenceID     int     `json:"sentence_id"`
	SentenceText   string  `json:"sentence_text"`
	RelevanceScore float64 `json:"relevance_score"`
	Reason         string  `json:"reason,omitempty"`
}

// CategoryExtraction is the per-(row, category) extraction outcome.
// Exactly one of the two evidence forms is populated: a resolved
// extraction (Value != nil) carries SupportingEvidence; a candidate-only
// extraction (Value == nil) carries CandidateEvidence.
type CategoryExtraction struct {
	Value              *string             `json:"value"`
	Confidence         float64             `json:"confidence"`
	SupportingEvidence []Evidence          `json:"supporting_evidence,omitempty"`
	CandidateEvidence  []CandidateEvidence `json:"candidate_evidence,omitempty"`
	ValidationStatus   ValidationStatus    `json:"validation_status"`
	UserValidated      []int               `json:"user_validated_sentences,omitempty"`
}

// Resolved reports whether a value was extracted.
func (e CategoryExtraction) Resolved() bool {
	return e.Value != nil
}

// RowResult is the per-row outcome of a job run, appended exactly once
// per row and immutable after creation. Errors holds row-scoped
// provider, parse and validation errors; these are advisory and never
// abort the job.
type RowResult struct {
	RowID     string                        `json:"row_id"`
	Extracted map[string]CategoryExtraction `json:"extracted_data"`
	Errors    []string                      `json:"errors,omitempty"`
}
