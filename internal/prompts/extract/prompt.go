// Package extract builds the category-extraction prompt: a numbered
// sentence reference block, one instruction block per category, and a
// learning block carrying recent accepted feedback.
package extract

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/siftlabs/sift/internal/types"
)

//go:embed system.tmpl
var systemPrompt string

//go:embed user.tmpl
var userPromptTmpl string

var userTemplate = template.Must(template.New("user").Parse(userPromptTmpl))

const (
	// MaxCandidates bounds the candidate sentences requested per
	// unmatched category.
	MaxCandidates = 3

	// MaxFeedbackPerCategory bounds the learning block.
	MaxFeedbackPerCategory = 5
)

// SystemPrompt returns the extraction system prompt.
func SystemPrompt() string {
	return strings.TrimSpace(systemPrompt)
}

// categoryView is the per-category template payload.
type categoryView struct {
	Index          int
	Name           string
	Instructions   string
	ExpectedValues []string
}

// ExpectedValuesJSON renders the allowed set plus the explicit "NA"
// escape, matching the shape the validator accepts.
func (v categoryView) ExpectedValuesJSON() string {
	vals := make([]string, 0, len(v.ExpectedValues)+1)
	for _, ev := range v.ExpectedValues {
		vals = append(vals, fmt.Sprintf("%q", ev))
	}
	vals = append(vals, `"NA"`)
	return strings.Join(vals, ", ")
}

// feedbackView is one learning-block line.
type feedbackView struct {
	Category string
	Summary  string
}

// Build renders the full user prompt for one row. It is pure: identical
// inputs produce identical prompt text, and no I/O is performed.
func Build(row types.Row, categories []types.Category, feedback []types.Feedback) string {
	data := struct {
		Categories     []categoryView
		MaxCandidates  int
		OutputExample  string
		Feedback       []feedbackView
		EnumeratedText string
	}{
		MaxCandidates:  MaxCandidates,
		OutputExample:  outputExample(categories),
		Feedback:       learningBlock(categories, feedback),
		EnumeratedText: EnumerateSentences(row.Sentences),
	}
	for i, cat := range categories {
		data.Categories = append(data.Categories, categoryView{
			Index:          i + 1,
			Name:           cat.Name,
			Instructions:   cat.Instructions(),
			ExpectedValues: cat.ExpectedValues,
		})
	}

	var buf bytes.Buffer
	if err := userTemplate.Execute(&buf, data); err != nil {
		// The template is embedded and the data is plain values; an
		// execution failure is a programming error.
		return userPromptTmpl
	}
	return buf.String()
}

// EnumerateSentences renders the numbered reference block consumed by
// the prompt and by citation validation.
func EnumerateSentences(sentences []string) string {
	var b strings.Builder
	for i, s := range sentences {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "[%d] %s", i+1, s)
	}
	return b.String()
}

// outputExample builds the JSON response skeleton shown to the model.
func outputExample(categories []types.Category) string {
	type candidate struct {
		SentenceID int     `json:"sentence_id"`
		Relevance  float64 `json:"relevance"`
		Reason     string  `json:"reason"`
	}
	type shape struct {
		Value         string      `json:"value"`
		Confidence    float64     `json:"confidence"`
		SupportingIDs []int       `json:"supporting_sentence_ids"`
		Rationale     string      `json:"rationale"`
		Candidates    []candidate `json:"candidate_sentences,omitempty"`
	}

	example := make(map[string]shape, len(categories))
	for _, cat := range categories {
		val := "extracted " + cat.Name + " or null"
		if len(cat.ExpectedValues) > 0 {
			val = "one of the expected values, or null"
		}
		example[cat.Name] = shape{
			Value:         val,
			Confidence:    0.0,
			SupportingIDs: []int{1, 2},
			Rationale:     "explanation citing sentence numbers",
		}
	}

	out, err := json.MarshalIndent(example, "", "  ")
	if err != nil {
		return "{}"
	}
	return string(out)
}

// learningBlock selects the most recent accepted feedback entries per
// requested category, newest first, bounded per category.
func learningBlock(categories []types.Category, feedback []types.Feedback) []feedbackView {
	wanted := make(map[string]bool, len(categories))
	for _, cat := range categories {
		wanted[cat.Name] = true
	}

	sorted := make([]types.Feedback, 0, len(feedback))
	for _, fb := range feedback {
		if fb.Accepted() && wanted[fb.Category] {
			sorted = append(sorted, fb)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreatedAt.After(sorted[j].CreatedAt)
	})

	perCategory := make(map[string]int)
	var views []feedbackView
	for _, fb := range sorted {
		if perCategory[fb.Category] >= MaxFeedbackPerCategory {
			continue
		}
		perCategory[fb.Category]++
		views = append(views, feedbackView{Category: fb.Category, Summary: summarize(fb)})
	}
	return views
}

func summarize(fb types.Feedback) string {
	var parts []string
	switch {
	case fb.ValidationStatus == types.ValidationCorrected && fb.ManualValue != nil:
		parts = append(parts, fmt.Sprintf("reviewer corrected the value to %q", *fb.ManualValue))
	case fb.ManualValue != nil:
		parts = append(parts, fmt.Sprintf("reviewer accepted the value %q", *fb.ManualValue))
	default:
		parts = append(parts, "reviewer confirmed the extracted value")
	}
	if len(fb.Sentences) > 0 {
		ids := make([]string, len(fb.Sentences))
		for i, id := range fb.Sentences {
			ids[i] = fmt.Sprintf("%d", id)
		}
		parts = append(parts, "supported by sentences "+strings.Join(ids, ", "))
	}
	if fb.Notes != "" {
		parts = append(parts, "note: "+fb.Notes)
	}
	return strings.Join(parts, "; ")
}
