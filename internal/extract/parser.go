// Package extract parses provider output into structured per-category
// extractions and validates citation evidence against the source row.
package extract

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/siftlabs/sift/internal/types"
)

// rawExtraction is the per-category JSON shape the prompt requests.
type rawExtraction struct {
	Value         any            `json:"value"`
	Confidence    *float64       `json:"confidence"`
	SupportingIDs []int          `json:"supporting_sentence_ids"`
	Rationale     string         `json:"rationale"`
	Candidates    []rawCandidate `json:"candidate_sentences"`
}

type rawCandidate struct {
	SentenceID int     `json:"sentence_id"`
	Relevance  float64 `json:"relevance"`
	Reason     string  `json:"reason"`
}

// Parse decodes raw provider output for one row. It returns the
// per-category extractions, advisory validation errors (out-of-range
// citations, shape violations), and a parse error when the payload is
// not recoverable JSON. On a parse error the extraction map is empty;
// the caller records the row as failed rather than dropping it.
// Output is deterministic given identical raw text and row.
func Parse(raw string, row types.Row, categories []types.Category) (map[string]types.CategoryExtraction, []string, error) {
	doc, err := decodeLenient(raw)
	if err != nil {
		return map[string]types.CategoryExtraction{}, nil, fmt.Errorf("invalid JSON in model response for row %s: %w", row.ID, err)
	}

	var validationErrs []string
	out := make(map[string]types.CategoryExtraction, len(categories))

	for _, cat := range categories {
		payload, ok := doc[cat.Name]
		if !ok {
			validationErrs = append(validationErrs, fmt.Sprintf("%s: missing from model response", cat.Name))
			out[cat.Name] = types.CategoryExtraction{ValidationStatus: types.ValidationPending}
			continue
		}
		ext, errs := parseCategory(cat.Name, payload, row)
		validationErrs = append(validationErrs, errs...)
		out[cat.Name] = ext
	}

	return out, validationErrs, nil
}

// decodeLenient attempts a direct decode, then a single substring
// repair (first '{' to last '}') after stripping markdown fences.
func decodeLenient(raw string) (map[string]json.RawMessage, error) {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	var doc map[string]json.RawMessage
	if err := json.Unmarshal([]byte(cleaned), &doc); err == nil {
		return doc, nil
	}

	start := strings.Index(cleaned, "{")
	end := strings.LastIndex(cleaned, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object found")
	}
	if err := json.Unmarshal([]byte(cleaned[start:end+1]), &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// parseCategory interprets one category payload. The canonical shape is
// an object with value/confidence/citations; a bare scalar (the simple
// legacy output style) degrades to a value with no evidence.
func parseCategory(name string, payload json.RawMessage, row types.Row) (types.CategoryExtraction, []string) {
	ext := types.CategoryExtraction{ValidationStatus: types.ValidationPending}
	var errs []string

	var rawExt rawExtraction
	if err := json.Unmarshal(payload, &rawExt); err != nil {
		// Not an object: accept a bare scalar value.
		ext.Value = scalarValue(payload)
		return ext, errs
	}

	ext.Value = normalizeValue(rawExt.Value)
	if rawExt.Confidence != nil {
		ext.Confidence = clamp01(*rawExt.Confidence)
	}

	if ext.Value != nil {
		for _, id := range rawExt.SupportingIDs {
			text, ok := row.Sentence(id)
			if !ok {
				errs = append(errs, fmt.Sprintf("%s: supporting sentence id %d out of range [1, %d]", name, id, len(row.Sentences)))
				continue
			}
			ext.SupportingEvidence = append(ext.SupportingEvidence, types.Evidence{
				SentenceID:   id,
				SentenceText: text,
				Rationale:    rawExt.Rationale,
			})
		}
		return ext, errs
	}

	for _, cand := range rawExt.Candidates {
		text, ok := row.Sentence(cand.SentenceID)
		if !ok {
			errs = append(errs, fmt.Sprintf("%s: candidate sentence id %d out of range [1, %d]", name, cand.SentenceID, len(row.Sentences)))
			continue
		}
		ext.CandidateEvidence = append(ext.CandidateEvidence, types.CandidateEvidence{
			SentenceID:     cand.SentenceID,
			SentenceText:   text,
			RelevanceScore: clamp01(cand.Relevance),
			Reason:         cand.Reason,
		})
	}
	return ext, errs
}

// scalarValue interprets a non-object payload as a bare value.
func scalarValue(payload json.RawMessage) *string {
	var v any
	if err := json.Unmarshal(payload, &v); err != nil {
		return nil
	}
	return normalizeValue(v)
}

// normalizeValue converts a decoded JSON value to the extraction value.
// null, "" and the prompt's "NA" escape all mean "not found".
func normalizeValue(v any) *string {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if s == "" || strings.EqualFold(s, "NA") || strings.EqualFold(s, "null") {
			return nil
		}
		return &s
	case float64:
		s := strconv.FormatFloat(t, 'f', -1, 64)
		return &s
	case bool:
		s := strconv.FormatBool(t)
		return &s
	default:
		// Arrays/objects in the value slot are model noise.
		return nil
	}
}

func clamp01(f float64) float64 {
	if f < 0 {
		return 0
	}
	if f > 1 {
		return 1
	}
	return f
}
