package pii

import "context"

// RuleDetector implements Detector using an ordered list of pattern rules
type RuleDetector struct {
	rules []Rule
}

func NewRuleDetector(rules []Rule) *RuleDetector {
	return &RuleDetector{
		rules: rules,
	}
}

// GetName returns the name of this detector
func (r *RuleDetector) GetName() string {
	return DetectorNameRule
}

// Detect processes the input and returns detected entities
func (r *RuleDetector) Detect(ctx context.Context, input DetectorInput) (DetectorOutput, error) {
	var entities []Entity

	// loop through all rules and collect matches
	for _, rule := range r.rules {
		matches := rule.Pattern.FindAllStringSubmatchIndex(input.Text, -1)
		for _, match := range matches {
			startPos := match[2*rule.Group]
			endPos := match[2*rule.Group+1]
			if startPos < 0 || endPos < 0 {
				continue
			}
			entity := Entity{
				Value:      input.Text[startPos:endPos],
				Type:       rule.Type,
				StartPos:   startPos,
				EndPos:     endPos,
				Confidence: rule.Confidence,
			}
			entities = append(entities, entity)
		}
	}

	return DetectorOutput{
		Text:     input.Text,
		Entities: entities,
	}, nil
}

// Close implements the Detector interface
func (r *RuleDetector) Close() error {
	// Rule detector doesn't need cleanup
	return nil
}
