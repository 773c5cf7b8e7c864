package types

import "strings"

// TextPlaceholder is the token category prompts may embed to reference
// the category name inside their instruction text.
const TextPlaceholder = "[CATEGORY_NAME]"

// Category is a single named field to extract from each row.
// Categories are owned by the caller and immutable once a job starts.
type Category struct {
	// Name identifies the category (e.g. "habitat", "species").
	Name string `json:"name"`

	// Prompt is the extraction instruction for this category. It may
	// contain the [CATEGORY_NAME] placeholder, which is substituted
	// with Name when the prompt is rendered.
	Prompt string `json:"prompt"`

	// ExpectedValues optionally constrains the extracted value. A
	// non-empty set makes any other non-null value a validation error
	// (advisory - the extraction is still stored).
	ExpectedValues []string `json:"expected_values,omitempty"`
}

// Instructions returns the prompt text with the placeholder resolved.
func (c Category) Instructions() string {
	return strings.ReplaceAll(c.Prompt, TextPlaceholder, c.Name)
}

// Allows reports whether value is permitted by ExpectedValues.
// An empty set allows everything.
func (c Category) Allows(value string) bool {
	if len(c.ExpectedValues) == 0 {
		return true
	}
	for _, v := range c.ExpectedValues {
		if v == value {
			return true
		}
	}
	return false
}
