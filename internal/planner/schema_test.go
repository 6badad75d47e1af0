package planner

import (
	"strings"
	"testing"
)

const validPlanDoc = `{
  "text": "Here is how to tie a uni knot.",
  "needs_fresh_facts": false,
  "image_queries": ["uni knot"],
  "tool_calls": ["search"],
  "lesson_plan": [
    {
      "kind": "howto",
      "title": "Uni Knot",
      "theme": "river",
      "summary": "A reliable terminal knot",
      "steps": [
        {"title": "Thread the line", "body": "Pass tag end twice."}
      ]
    }
  ]
}`

func TestValidatePlanDocumentAccepts(t *testing.T) {
	if err := ValidatePlanDocument([]byte(validPlanDoc)); err != nil {
		t.Fatalf("expected valid document, got %v", err)
	}
}

func TestValidatePlanDocumentRejectsMissingRequired(t *testing.T) {
	doc := `{
	  "text": "hi",
	  "needs_fresh_facts": false,
	  "image_queries": [],
	  "lesson_plan": []
	}`
	if err := ValidatePlanDocument([]byte(doc)); err == nil {
		t.Fatal("expected error for missing tool_calls")
	}
}

func TestValidatePlanDocumentRejectsStepExtraProperty(t *testing.T) {
	doc := strings.Replace(validPlanDoc,
		`{"title": "Thread the line", "body": "Pass tag end twice."}`,
		`{"title": "Thread the line", "body": "Pass tag end twice.", "image_query": "knot"}`, 1)
	if err := ValidatePlanDocument([]byte(doc)); err == nil {
		t.Fatal("expected error for extra step property")
	}
}

func TestValidatePlanDocumentRejectsUnknownToolKind(t *testing.T) {
	doc := strings.Replace(validPlanDoc, `"tool_calls": ["search"]`, `"tool_calls": ["astrology"]`, 1)
	if err := ValidatePlanDocument([]byte(doc)); err == nil {
		t.Fatal("expected error for unknown tool kind")
	}
}

func TestValidatePlanDocumentRejectsBadTheme(t *testing.T) {
	doc := strings.Replace(validPlanDoc, `"theme": "river"`, `"theme": "neon"`, 1)
	if err := ValidatePlanDocument([]byte(doc)); err == nil {
		t.Fatal("expected error for invalid theme")
	}
}

func TestValidatePlanDocumentRejectsNonJSON(t *testing.T) {
	if err := ValidatePlanDocument([]byte("not json at all")); err == nil {
		t.Fatal("expected error for non-JSON input")
	}
}
