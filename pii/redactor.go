package pii

import (
	"context"
	"log"
	"sort"
	"strings"

	detectors "github.com/medscribe/medscribe/pii/detectors"
)

const (
	// MinConfidence is the floor below which rescored entities are dropped.
	MinConfidence = 0.3
	// HighRiskConfidence is the gate threshold for blocking entity types.
	HighRiskConfidence = 0.8

	checksumBoost   = 0.05
	checksumPenalty = 0.05
	maxConfidence   = 0.99
)

// DetectionResult is the outcome of one detection pass over a text.
type DetectionResult struct {
	Detected     bool
	Entities     []detectors.Entity
	RedactedText string
}

// placeholders maps entity types to their redaction tokens.
var placeholders = map[detectors.EntityType]string{
	detectors.TypeNationalID:  "[NATIONAL_ID]",
	detectors.TypePostcode:    "[POSTCODE]",
	detectors.TypePhone:       "[PHONE]",
	detectors.TypeEmail:       "[EMAIL]",
	detectors.TypePersonName:  "[PATIENT_NAME]",
	detectors.TypeAddress:     "[ADDRESS]",
	detectors.TypeDateOfBirth: "[DATE_OF_BIRTH]",
}

const placeholderDefault = "[REDACTED]"

// Service runs PII detection and redaction over request text
type Service struct {
	detector detectors.Detector
}

// NewService creates a new redaction service backed by the given detector
func NewService(detector detectors.Detector) *Service {
	return &Service{detector: detector}
}

// Detect runs the detector over text, deduplicates overlapping spans,
// rescores national identifiers with the check-digit validator and produces
// the redacted text. It performs no I/O with the default rule detector and is
// deterministic for a given input.
func (s *Service) Detect(ctx context.Context, text string) (DetectionResult, error) {
	output, err := s.detector.Detect(ctx, detectors.DetectorInput{Text: text})
	if err != nil {
		return DetectionResult{}, err
	}

	entities := dedupeOverlaps(output.Entities)
	entities = rescore(entities)

	// Drop entities the rescoring pushed below the floor
	kept := entities[:0]
	for _, entity := range entities {
		if entity.Confidence >= MinConfidence {
			kept = append(kept, entity)
		}
	}
	entities = kept

	return DetectionResult{
		Detected:     len(entities) > 0,
		Entities:     entities,
		RedactedText: redact(text, entities),
	}, nil
}

// IsHighRisk reports whether any entity mandates blocking rather than silent
// redaction: identity-revealing types above the high-risk confidence gate.
func IsHighRisk(entities []detectors.Entity) bool {
	for _, entity := range entities {
		switch entity.Type {
		case detectors.TypeNationalID, detectors.TypePersonName, detectors.TypeAddress, detectors.TypeDateOfBirth:
			if entity.Confidence > HighRiskConfidence {
				return true
			}
		}
	}
	return false
}

// dedupeOverlaps keeps the highest-confidence entity for each overlapping
// span and returns the survivors in ascending start order.
func dedupeOverlaps(entities []detectors.Entity) []detectors.Entity {
	if len(entities) == 0 {
		return nil
	}

	ranked := make([]detectors.Entity, len(entities))
	copy(ranked, entities)
	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Confidence != ranked[j].Confidence {
			return ranked[i].Confidence > ranked[j].Confidence
		}
		return ranked[i].StartPos < ranked[j].StartPos
	})

	var kept []detectors.Entity
	for _, candidate := range ranked {
		overlaps := false
		for _, winner := range kept {
			if candidate.StartPos < winner.EndPos && winner.StartPos < candidate.EndPos {
				overlaps = true
				break
			}
		}
		if !overlaps {
			kept = append(kept, candidate)
		}
	}

	sort.Slice(kept, func(i, j int) bool { return kept[i].StartPos < kept[j].StartPos })
	return kept
}

// rescore adjusts national-identifier confidence using the check-digit
// validator: a passing checksum raises confidence, a failing one lowers it.
func rescore(entities []detectors.Entity) []detectors.Entity {
	for i, entity := range entities {
		if entity.Type != detectors.TypeNationalID {
			continue
		}
		if ValidNationalID(entity.Value) {
			entities[i].Confidence = entity.Confidence + checksumBoost
			if entities[i].Confidence > maxConfidence {
				entities[i].Confidence = maxConfidence
			}
		} else {
			entities[i].Confidence = entity.Confidence - checksumPenalty
		}
	}
	return entities
}

// redact replaces each entity span with its type placeholder. Entities must be
// non-overlapping and in ascending start order; replacement works on byte
// offsets so no cumulative correction errors accrue.
func redact(text string, entities []detectors.Entity) string {
	if len(entities) == 0 {
		return text
	}

	var b strings.Builder
	cursor := 0
	for _, entity := range entities {
		if entity.StartPos < cursor || entity.EndPos > len(text) {
			log.Printf("[PII] Skipping entity with out-of-range span [%d:%d]", entity.StartPos, entity.EndPos)
			continue
		}
		b.WriteString(text[cursor:entity.StartPos])
		placeholder, ok := placeholders[entity.Type]
		if !ok {
			placeholder = placeholderDefault
		}
		b.WriteString(placeholder)
		cursor = entity.EndPos
	}
	b.WriteString(text[cursor:])
	return b.String()
}
