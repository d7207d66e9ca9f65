package pii

import "regexp"

// Rule is a single pattern-based detection rule. Group selects the submatch
// reported as the entity (0 means the whole match), which lets a rule anchor on
// surrounding context (honorifics, field labels) without capturing it.
type Rule struct {
	Type       EntityType
	Pattern    *regexp.Regexp
	Confidence float64
	Group      int
}

// DefaultRules returns the built-in clinical rule set. Base confidences sit in
// the 0.7-0.95 band; the redaction service rescores national identifiers with a
// check-digit pass afterwards.
func DefaultRules() []Rule {
	return []Rule{
		{
			Type:       TypeNationalID,
			Pattern:    regexp.MustCompile(`\b\d{3}[ -]?\d{3}[ -]?\d{4}\b`),
			Confidence: 0.9,
		},
		{
			Type:       TypePostcode,
			Pattern:    regexp.MustCompile(`\b[A-Z]{1,2}[0-9][A-Z0-9]?\s?[0-9][A-Z]{2}\b`),
			Confidence: 0.85,
		},
		{
			Type:       TypePhone,
			Pattern:    regexp.MustCompile(`(?:\+44\s?\d{4}|\(?0\d{4}\)?)\s?\d{3}\s?\d{3}\b|(?:\+44\s?\d{3}|\(?0\d{3}\)?)\s?\d{3}\s?\d{4}\b`),
			Confidence: 0.8,
		},
		{
			Type:       TypeEmail,
			Pattern:    regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
			Confidence: 0.95,
		},
		{
			Type:       TypeDateOfBirth,
			Pattern:    regexp.MustCompile(`\b(?:0?[1-9]|[12][0-9]|3[01])[/-](?:0?[1-9]|1[0-2])[/-](?:19|20)\d{2}\b`),
			Confidence: 0.75,
		},
		{
			Type:       TypeDateOfBirth,
			Pattern:    regexp.MustCompile(`\b(?:19|20)\d{2}-(?:0[1-9]|1[0-2])-(?:0[1-9]|[12][0-9]|3[01])\b`),
			Confidence: 0.75,
		},
		{
			// Honorific or clinical lead-in followed by a capitalized name.
			Type:       TypePersonName,
			Pattern:    regexp.MustCompile(`\b(?:Mr|Mrs|Ms|Miss|Dr|Prof|Patient|Pt)\.?\s+([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`),
			Confidence: 0.85,
			Group:      1,
		},
		{
			Type:       TypeAddress,
			Pattern:    regexp.MustCompile(`\b\d{1,4}\s+[A-Z][a-z]+(?:\s+[A-Z][a-z]+)?\s+(?:Street|St|Road|Rd|Avenue|Ave|Lane|Close|Drive|Way|Court|Place|Crescent)\b`),
			Confidence: 0.85,
		},
	}
}
