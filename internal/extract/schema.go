package extract

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/siftlabs/sift/internal/types"
)

// Schema is a compiled, advisory response-shape schema for one
// category set.
type Schema struct {
	compiled *jsonschema.Schema
}

// ResponseSchema compiles a JSON Schema describing the response shape
// the prompt requests for the given categories. The schema is advisory:
// violations become row-level validation errors, never rejections.
func ResponseSchema(categories []types.Category) (*Schema, error) {
	doc := buildSchemaDoc(categories)
	raw, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("marshal response schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("response.json", strings.NewReader(string(raw))); err != nil {
		return nil, fmt.Errorf("add response schema: %w", err)
	}
	compiled, err := compiler.Compile("response.json")
	if err != nil {
		return nil, fmt.Errorf("compile response schema: %w", err)
	}
	return &Schema{compiled: compiled}, nil
}

// ValidateShape checks a decoded response document against the schema
// and flattens any violation into advisory error strings.
func ValidateShape(schema *Schema, raw string) []string {
	if schema == nil || schema.compiled == nil {
		return nil
	}
	doc, err := decodeLenient(raw)
	if err != nil {
		return nil // parse errors are reported by Parse, not here
	}

	// Re-decode to plain values for schema validation.
	var v map[string]any
	b, err := json.Marshal(doc)
	if err != nil {
		return nil
	}
	if err := json.Unmarshal(b, &v); err != nil {
		return nil
	}

	if err := schema.compiled.Validate(v); err != nil {
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			return flattenViolations(ve)
		}
		return []string{"response shape: " + err.Error()}
	}
	return nil
}

func flattenViolations(ve *jsonschema.ValidationError) []string {
	leaves := ve.BasicOutput().Errors
	var errs []string
	for _, l := range leaves {
		if l.Error == "" || strings.HasPrefix(l.Error, "doesn't validate with") {
			continue
		}
		loc := l.InstanceLocation
		if loc == "" {
			loc = "/"
		}
		errs = append(errs, fmt.Sprintf("response shape %s: %s", loc, l.Error))
	}
	return errs
}

// buildSchemaDoc assembles a draft 2020-12 subset schema as generic
// maps, one property per category.
func buildSchemaDoc(categories []types.Category) map[string]any {
	props := make(map[string]any, len(categories))
	var required []string

	for _, cat := range categories {
		valueProp := map[string]any{
			"type": []string{"string", "number", "boolean", "null"},
		}
		if len(cat.ExpectedValues) > 0 {
			enum := make([]any, 0, len(cat.ExpectedValues)+2)
			for _, v := range cat.ExpectedValues {
				enum = append(enum, v)
			}
			// "NA" and null are the prompt's not-found escapes.
			enum = append(enum, "NA", nil)
			valueProp = map[string]any{"enum": enum}
		}

		props[cat.Name] = map[string]any{
			"type":     "object",
			"required": []string{"value"},
			"properties": map[string]any{
				"value":      valueProp,
				"confidence": map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
				"supporting_sentence_ids": map[string]any{
					"type":  "array",
					"items": map[string]any{"type": "integer", "minimum": 1},
				},
				"rationale": map[string]any{"type": "string"},
				"candidate_sentences": map[string]any{
					"type": "array",
					"items": map[string]any{
						"type":     "object",
						"required": []string{"sentence_id"},
						"properties": map[string]any{
							"sentence_id": map[string]any{"type": "integer", "minimum": 1},
							"relevance":   map[string]any{"type": "number", "minimum": 0.0, "maximum": 1.0},
							"reason":      map[string]any{"type": "string"},
						},
					},
				},
			},
		}
		required = append(required, cat.Name)
	}

	return map[string]any{
		"type":       "object",
		"required":   required,
		"properties": props,
	}
}
