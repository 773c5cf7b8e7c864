package extract

import (
	"strings"
	"testing"

	"github.com/siftlabs/sift/internal/types"
)

func testRow() types.Row {
	return types.Row{
		ID:        "r1",
		Text:      "The fox is swift. It lives in forests.",
		Sentences: []string{"The fox is swift.", "It lives in forests."},
		Offsets:   []types.Span{{Start: 0, End: 17}, {Start: 18, End: 38}},
	}
}

func testCategories() []types.Category {
	return []types.Category{
		{Name: "animal", Prompt: "Extract the animal."},
		{Name: "habitat", Prompt: "Extract the habitat.", ExpectedValues: []string{"forest", "desert"}},
	}
}

func TestParse_WellFormedRoundTrip(t *testing.T) {
	raw := `{
		"animal": {"value": "fox", "confidence": 0.95, "supporting_sentence_ids": [1], "rationale": "sentence 1 names the fox"},
		"habitat": {"value": "forest", "confidence": 0.8, "supporting_sentence_ids": [2], "rationale": "sentence 2"}
	}`

	extractions, errs, err := Parse(raw, testRow(), testCategories())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if len(errs) != 0 {
		t.Fatalf("validation errors = %v, want none", errs)
	}

	animal := extractions["animal"]
	if animal.Value == nil || *animal.Value != "fox" {
		t.Fatalf("animal value = %v, want fox", animal.Value)
	}
	if animal.Confidence != 0.95 {
		t.Errorf("animal confidence = %v", animal.Confidence)
	}
	if len(animal.SupportingEvidence) != 1 {
		t.Fatalf("animal evidence count = %d", len(animal.SupportingEvidence))
	}
	ev := animal.SupportingEvidence[0]
	if ev.SentenceID != 1 || ev.SentenceText != "The fox is swift." {
		t.Errorf("evidence = %+v, sentence text must match the row's sentence at that id", ev)
	}
	if animal.ValidationStatus != types.ValidationPending {
		t.Errorf("validation status = %q, want pending", animal.ValidationStatus)
	}
}

func TestParse_NotJSON(t *testing.T) {
	extractions, _, err := Parse("not json", testRow(), testCategories())
	if err == nil {
		t.Fatal("Parse() should fail for non-JSON input")
	}
	if len(extractions) != 0 {
		t.Errorf("extractions = %v, want empty map", extractions)
	}
}

func TestParse_SubstringRepair(t *testing.T) {
	raw := "Sure, here is the extraction:\n```json\n" +
		`{"animal": {"value": "fox", "confidence": 0.9, "supporting_sentence_ids": [1], "rationale": "r"}, "habitat": {"value": null, "confidence": 0}}` +
		"\n```\nLet me know if you need anything else."

	extractions, _, err := Parse(raw, testRow(), testCategories())
	if err != nil {
		t.Fatalf("Parse() error = %v, repair should have recovered the object", err)
	}
	if ext := extractions["animal"]; ext.Value == nil || *ext.Value != "fox" {
		t.Errorf("animal = %+v after repair", ext)
	}
}

func TestParse_OutOfRangeCitation(t *testing.T) {
	raw := `{
		"animal": {"value": "fox", "confidence": 0.9, "supporting_sentence_ids": [1, 7], "rationale": "r"},
		"habitat": {"value": null, "confidence": 0}
	}`

	extractions, errs, err := Parse(raw, testRow(), testCategories())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	var found bool
	for _, e := range errs {
		if strings.Contains(e, "7") && strings.Contains(e, "out of range") {
			found = true
		}
	}
	if !found {
		t.Errorf("errs = %v, want an out-of-range error for id 7", errs)
	}

	// The in-range citation survives; the bad one is dropped loudly.
	if got := len(extractions["animal"].SupportingEvidence); got != 1 {
		t.Errorf("evidence count = %d, want 1", got)
	}
}

func TestParse_NullValueCollectsCandidates(t *testing.T) {
	raw := `{
		"animal": {"value": null, "confidence": 0, "candidate_sentences": [
			{"sentence_id": 2, "relevance": 0.4, "reason": "mentions forests"},
			{"sentence_id": 9, "relevance": 0.2, "reason": "bad id"}
		]},
		"habitat": {"value": "forest", "confidence": 1, "supporting_sentence_ids": [2], "rationale": "r"}
	}`

	extractions, errs, err := Parse(raw, testRow(), testCategories())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	animal := extractions["animal"]
	if animal.Resolved() {
		t.Fatal("animal should be candidate-only")
	}
	if len(animal.SupportingEvidence) != 0 {
		t.Error("candidate-only extraction must not carry supporting evidence")
	}
	if len(animal.CandidateEvidence) != 1 {
		t.Fatalf("candidate count = %d, want 1 (invalid id dropped)", len(animal.CandidateEvidence))
	}
	if animal.CandidateEvidence[0].SentenceText != "It lives in forests." {
		t.Errorf("candidate text = %q", animal.CandidateEvidence[0].SentenceText)
	}
	var found bool
	for _, e := range errs {
		if strings.Contains(e, "9") && strings.Contains(e, "out of range") {
			found = true
		}
	}
	if !found {
		t.Errorf("errs = %v, want out-of-range error for candidate id 9", errs)
	}
}

func TestParse_BareScalarValue(t *testing.T) {
	// Simple-style model output degrades to a value with no evidence.
	raw := `{"animal": "fox", "habitat": "NA"}`

	extractions, _, err := Parse(raw, testRow(), testCategories())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if ext := extractions["animal"]; ext.Value == nil || *ext.Value != "fox" {
		t.Errorf("animal = %+v", ext)
	}
	if ext := extractions["habitat"]; ext.Value != nil {
		t.Errorf(`habitat "NA" should normalize to null, got %v`, *ext.Value)
	}
}

func TestParse_MissingCategory(t *testing.T) {
	raw := `{"animal": {"value": "fox", "confidence": 1, "supporting_sentence_ids": [1], "rationale": "r"}}`

	extractions, errs, err := Parse(raw, testRow(), testCategories())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if _, ok := extractions["habitat"]; !ok {
		t.Fatal("missing category must still get a placeholder extraction")
	}
	var found bool
	for _, e := range errs {
		if strings.Contains(e, "habitat") && strings.Contains(e, "missing") {
			found = true
		}
	}
	if !found {
		t.Errorf("errs = %v, want a missing-category error", errs)
	}
}

func TestParse_ConfidenceClamped(t *testing.T) {
	raw := `{
		"animal": {"value": "fox", "confidence": 3.5, "supporting_sentence_ids": [1], "rationale": "r"},
		"habitat": {"value": "forest", "confidence": -2, "supporting_sentence_ids": [2], "rationale": "r"}
	}`
	extractions, _, err := Parse(raw, testRow(), testCategories())
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if c := extractions["animal"].Confidence; c != 1 {
		t.Errorf("confidence = %v, want clamped to 1", c)
	}
	if c := extractions["habitat"].Confidence; c != 0 {
		t.Errorf("confidence = %v, want clamped to 0", c)
	}
}

func TestParse_Deterministic(t *testing.T) {
	raw := `{"animal": {"value": "fox", "confidence": 0.5, "supporting_sentence_ids": [1, 9], "rationale": "r"}, "habitat": null}`
	row, cats := testRow(), testCategories()

	a1, e1, _ := Parse(raw, row, cats)
	a2, e2, _ := Parse(raw, row, cats)
	if len(e1) != len(e2) {
		t.Errorf("error lists differ between identical parses: %v vs %v", e1, e2)
	}
	if *a1["animal"].Value != *a2["animal"].Value {
		t.Error("values differ between identical parses")
	}
}

func TestValidateExpectedValues(t *testing.T) {
	val := "C"
	extractions := map[string]types.CategoryExtraction{
		"habitat": {Value: &val, Confidence: 0.9},
	}
	cats := []types.Category{
		{Name: "habitat", Prompt: "p", ExpectedValues: []string{"A", "B"}},
	}

	errs := ValidateExpectedValues(extractions, cats)
	if len(errs) != 1 {
		t.Fatalf("errs = %v, want exactly one", errs)
	}
	if !strings.Contains(errs[0], `"C"`) || !strings.Contains(errs[0], "A, B") {
		t.Errorf("error %q must mention the bad value and the allowed set", errs[0])
	}

	// The extraction itself is untouched - errors are advisory.
	if *extractions["habitat"].Value != "C" {
		t.Error("extraction value must be retained")
	}
}

func TestValidateExpectedValues_NullAndAllowedPass(t *testing.T) {
	a := "A"
	extractions := map[string]types.CategoryExtraction{
		"habitat": {Value: &a},
		"animal":  {Value: nil},
	}
	cats := []types.Category{
		{Name: "habitat", ExpectedValues: []string{"A", "B"}},
		{Name: "animal", ExpectedValues: []string{"fox"}},
	}
	if errs := ValidateExpectedValues(extractions, cats); len(errs) != 0 {
		t.Errorf("errs = %v, want none (allowed value and null both pass)", errs)
	}
}

func TestResponseSchema_Advisory(t *testing.T) {
	schema, err := ResponseSchema(testCategories())
	if err != nil {
		t.Fatalf("ResponseSchema() error = %v", err)
	}

	good := `{
		"animal": {"value": "fox", "confidence": 0.9, "supporting_sentence_ids": [1], "rationale": "r"},
		"habitat": {"value": "forest", "confidence": 0.9, "supporting_sentence_ids": [2], "rationale": "r"}
	}`
	if errs := ValidateShape(schema, good); len(errs) != 0 {
		t.Errorf("ValidateShape(good) = %v, want none", errs)
	}

	bad := `{
		"animal": {"value": "fox", "confidence": 7, "supporting_sentence_ids": [1], "rationale": "r"},
		"habitat": {"value": "swamp", "confidence": 0.9, "supporting_sentence_ids": [2], "rationale": "r"}
	}`
	errs := ValidateShape(schema, bad)
	if len(errs) == 0 {
		t.Error("ValidateShape(bad) should flag confidence range and enum violations")
	}
}
