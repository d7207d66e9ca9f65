package pipeline

import (
	"strings"
	"testing"

	"github.com/medscribe/medscribe/retrieval"
	"github.com/medscribe/medscribe/template"
)

func TestParseStructured(t *testing.T) {
	sections, ok := parseStructured(`{"Subjective": "pain", "Plan": "rest"}`)
	if !ok {
		t.Fatal("Expected a JSON object of sections to parse as structured")
	}
	if sections["Subjective"] != "pain" || sections["Plan"] != "rest" {
		t.Errorf("Expected parsed sections, got %v", sections)
	}

	if _, ok := parseStructured("Plain freeform note text"); ok {
		t.Error("Expected freeform text not to parse as structured")
	}
	if _, ok := parseStructured(`{"Subjective": "pain",`); ok {
		t.Error("Expected truncated JSON not to parse as structured")
	}
	if _, ok := parseStructured(`{"nested": {"deep": true}}`); ok {
		t.Error("Expected non-string section values not to parse as structured")
	}
	if _, ok := parseStructured("{}"); ok {
		t.Error("Expected an empty object not to parse as structured")
	}
}

func TestRenderStructured_ContractOrder(t *testing.T) {
	contract := template.OutputContract{RequiredSections: []string{"Subjective", "Objective", "Plan"}}
	sections := map[string]string{
		"Plan":       "Review in two weeks.",
		"Subjective": "Knee pain.",
		"Objective":  "Mild effusion.",
		"Safety Net": "Return if worse.",
	}

	rendered := renderStructured(sections, contract)

	subjective := strings.Index(rendered, "## Subjective")
	objective := strings.Index(rendered, "## Objective")
	plan := strings.Index(rendered, "## Plan")
	extra := strings.Index(rendered, "## Safety Net")
	if subjective == -1 || objective == -1 || plan == -1 || extra == -1 {
		t.Fatalf("Expected all sections rendered, got %q", rendered)
	}
	if !(subjective < objective && objective < plan && plan < extra) {
		t.Errorf("Expected contract order with extras last, got %q", rendered)
	}
}

func TestRenderStructured_CaseInsensitiveSectionMatch(t *testing.T) {
	contract := template.OutputContract{RequiredSections: []string{"Subjective"}}
	rendered := renderStructured(map[string]string{"subjective": "pain"}, contract)

	if !strings.Contains(rendered, "## Subjective") {
		t.Errorf("Expected contract-cased header, got %q", rendered)
	}
	if strings.Count(rendered, "pain") != 1 {
		t.Errorf("Expected section rendered exactly once, got %q", rendered)
	}
}

func TestValidateCompliance_HeaderVariants(t *testing.T) {
	contract := template.OutputContract{RequiredSections: []string{"Subjective", "Objective", "Plan"}}
	document := "## Subjective\npain\n\n**Objective:**\nmild effusion\n\nplan\nrest"

	issues := validateCompliance(document, contract)
	if len(issues) != 0 {
		t.Errorf("Expected markdown, bold and bare headers all to count, got %v", issues)
	}
}

func TestValidateCompliance_ReportsMissingSections(t *testing.T) {
	contract := template.OutputContract{RequiredSections: []string{"Subjective", "Objective"}}

	issues := validateCompliance("## Subjective\npain", contract)
	if len(issues) != 1 {
		t.Fatalf("Expected 1 issue, got %v", issues)
	}
	if !strings.Contains(issues[0], "Objective") {
		t.Errorf("Expected the issue to name the missing section, got %q", issues[0])
	}

	if issues := validateCompliance("anything", template.OutputContract{}); issues != nil {
		t.Errorf("Expected no issues without a contract, got %v", issues)
	}
}

func TestBuildCitations_TruncatesExcerpt(t *testing.T) {
	long := strings.Repeat("a", citationExcerptLength+50)
	citations := buildCitations([]retrieval.Chunk{
		{Text: long, Source: "guideline-1", SimilarityScore: 0.88},
	})
	if len(citations) != 1 {
		t.Fatalf("Expected 1 citation, got %d", len(citations))
	}
	if len(citations[0].Excerpt) != citationExcerptLength {
		t.Errorf("Expected excerpt capped at %d chars, got %d", citationExcerptLength, len(citations[0].Excerpt))
	}
	if citations[0].RelevanceScore != 0.88 {
		t.Errorf("Expected the similarity score carried over, got %f", citations[0].RelevanceScore)
	}
}

func TestApplyMacros(t *testing.T) {
	got := applyMacros("Note for {{CLINIC_NAME}} by {{CLINIC_NAME}}", map[string]string{"CLINIC_NAME": "Riverside Surgery"})
	if got != "Note for Riverside Surgery by Riverside Surgery" {
		t.Errorf("Expected every occurrence substituted, got %q", got)
	}
	if got := applyMacros("No tokens here", nil); got != "No tokens here" {
		t.Errorf("Expected text unchanged without macros, got %q", got)
	}
}
