package hooks

import (
	"context"
	"fmt"
)

// ruleEngine implements the rule evaluation engine.
type ruleEngine struct {
	rules []Rule
}

// NewRuleEngine creates a new rule engine with the given rules.
func NewRuleEngine(rules ...Rule) *ruleEngine {
	return &ruleEngine{
		rules: rules,
	}
}

// Evaluate evaluates the rules in order against the event.
// Returns the first blocking or final result, or an allowed result if no rule decides.
func (e *ruleEngine) Evaluate(ctx context.Context, event *Event) (*RuleResult, error) {
	if event == nil {
		return nil, fmt.Errorf("event cannot be nil")
	}

	for _, rule := range e.rules {
		result, err := rule.Evaluate(ctx, event)
		if err != nil {
			return nil, fmt.Errorf("rule %s failed: %w", rule.Name(), err)
		}

		if !result.Allowed || result.Final {
			return result, nil
		}
	}

	return NewAllowedResult(), nil
}
