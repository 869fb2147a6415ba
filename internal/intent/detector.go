// Package intent decides whether a chat turn requests a ticket action
// or is informational. Detection is two-stage: a model-based detector
// runs first, and when it has no strong signal a deterministic keyword
// detector gets a chance to override it.
package intent

import (
	"context"

	"github.com/spec-kit/support-desk/internal/domain"
)

// defaultThreshold is the confidence below which the model result is
// considered weak and the rule stage runs.
const defaultThreshold = 0.7

// Detector chains the model-based and rule-based stages. Stages never
// fail; weak or unusable signals surface as a chat intent.
type Detector struct {
	model     *ModelDetector
	rules     *RuleDetector
	threshold float64
}

// NewDetector builds the two-stage detector.
func NewDetector(model *ModelDetector, rules *RuleDetector) *Detector {
	return &Detector{model: model, rules: rules, threshold: defaultThreshold}
}

// Detect runs the model stage, then lets the rule stage override a weak
// model result when the rules are confident. A weak model result that
// the rules cannot beat stands as-is and the turn is handled as chat by
// the caller's confidence gate.
func (d *Detector) Detect(ctx context.Context, message, ticketContext string, tickets []domain.Ticket) domain.Intent {
	result := d.model.Detect(ctx, message, ticketContext)
	if result.Confidence >= d.threshold {
		return result
	}

	ruleResult := d.rules.Detect(message, tickets)
	if ruleResult.Confidence > d.threshold {
		return ruleResult
	}
	return result
}
