package pii

import (
	"context"
	"testing"
)

func TestRuleDetector_GetName(t *testing.T) {
	detector := NewRuleDetector(DefaultRules())
	if detector.GetName() != "rule_detector" {
		t.Errorf("Expected name 'rule_detector', got '%s'", detector.GetName())
	}
}

func TestRuleDetector_Detect_NoMatches(t *testing.T) {
	detector := NewRuleDetector(DefaultRules())
	input := DetectorInput{Text: "lower back pain for 3 days"}

	output, err := detector.Detect(context.Background(), input)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if len(output.Entities) != 0 {
		t.Errorf("Expected 0 entities, got %d", len(output.Entities))
	}

	if output.Text != input.Text {
		t.Errorf("Expected text to remain unchanged, got '%s'", output.Text)
	}
}

func TestRuleDetector_Detect_NationalID(t *testing.T) {
	detector := NewRuleDetector(DefaultRules())
	input := DetectorInput{Text: "NHS number is 943 476 5919."}

	output, err := detector.Detect(context.Background(), input)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if len(output.Entities) != 1 {
		t.Fatalf("Expected 1 entity, got %d", len(output.Entities))
	}

	entity := output.Entities[0]
	if entity.Value != "943 476 5919" {
		t.Errorf("Expected entity value '943 476 5919', got '%s'", entity.Value)
	}
	if entity.Type != TypeNationalID {
		t.Errorf("Expected type nationalId, got '%s'", entity.Type)
	}
	if entity.StartPos != 14 {
		t.Errorf("Expected start position 14, got %d", entity.StartPos)
	}
	if entity.EndPos != 26 {
		t.Errorf("Expected end position 26, got %d", entity.EndPos)
	}
	if entity.Confidence != 0.9 {
		t.Errorf("Expected confidence 0.9, got %f", entity.Confidence)
	}
}

func TestRuleDetector_Detect_PersonNameCapturesGroup(t *testing.T) {
	detector := NewRuleDetector(DefaultRules())
	input := DetectorInput{Text: "Seen by Dr Evans. Patient John Smith presented today."}

	output, err := detector.Detect(context.Background(), input)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	var names []string
	for _, entity := range output.Entities {
		if entity.Type != TypePersonName {
			t.Errorf("Expected only personName entities, got '%s'", entity.Type)
		}
		names = append(names, entity.Value)
	}

	if len(names) != 2 {
		t.Fatalf("Expected 2 person names, got %d: %v", len(names), names)
	}
	if names[0] != "Evans" {
		t.Errorf("Expected first name 'Evans' without honorific, got '%s'", names[0])
	}
	if names[1] != "John Smith" {
		t.Errorf("Expected second name 'John Smith' without lead-in, got '%s'", names[1])
	}
}

func TestRuleDetector_Detect_MultipleTypes(t *testing.T) {
	detector := NewRuleDetector(DefaultRules())
	input := DetectorInput{Text: "Contact john@example.com, postcode SW1A 1AA, DOB 12/03/1984"}

	output, err := detector.Detect(context.Background(), input)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	types := make(map[EntityType]bool)
	for _, entity := range output.Entities {
		types[entity.Type] = true
	}

	expected := []EntityType{TypeEmail, TypePostcode, TypeDateOfBirth}
	for _, want := range expected {
		if !types[want] {
			t.Errorf("Expected to find type '%s' in detected entities", want)
		}
	}
}

func TestRuleDetector_Detect_Idempotent(t *testing.T) {
	detector := NewRuleDetector(DefaultRules())
	input := DetectorInput{Text: "Patient Jane Doe, 07700 900123, jane@example.org"}

	first, err := detector.Detect(context.Background(), input)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}
	second, err := detector.Detect(context.Background(), input)
	if err != nil {
		t.Errorf("Expected no error, got %v", err)
	}

	if len(first.Entities) != len(second.Entities) {
		t.Fatalf("Expected identical entity counts, got %d and %d", len(first.Entities), len(second.Entities))
	}
	for i := range first.Entities {
		if first.Entities[i] != second.Entities[i] {
			t.Errorf("Entity %d differs between runs: %+v vs %+v", i, first.Entities[i], second.Entities[i])
		}
	}
}
