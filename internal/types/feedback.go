package types

import "time"

// Feedback is a user-supplied correction or confirmation of a prior
// extraction. Recent confirmed/corrected feedback for a category biases
// the prompt for future jobs extracting that category.
type Feedback struct {
	JobID            string           `json:"job_id"`
	RowID            string           `json:"row_id"`
	Category         string           `json:"category"`
	ValidationStatus ValidationStatus `json:"validation_status"`
	Sentences        []int            `json:"user_validated_sentences,omitempty"`
	ManualValue      *string          `json:"manual_value,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// Accepted reports whether this feedback represents an answer the user
// signed off on (and is therefore useful as a prompt refinement).
func (f Feedback) Accepted() bool {
	return f.ValidationStatus == ValidationConfirmed || f.ValidationStatus == ValidationCorrected
}
