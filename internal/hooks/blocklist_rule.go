package hooks

import (
	"context"

	"github.com/cognaterra/better-drinking-bird/internal/safety"
)

// blocklistRule applies user-configured patterns to the serialized tool input.
type blocklistRule struct {
	blocklist *safety.Blocklist
}

// NewBlocklistRule creates a rule over a compiled blocklist.
func NewBlocklistRule(blocklist *safety.Blocklist) Rule {
	return &blocklistRule{blocklist: blocklist}
}

// Name returns the unique identifier for this rule.
func (r *blocklistRule) Name() string {
	return "user-blocklist"
}

// Description returns a human-readable description of what this rule does.
func (r *blocklistRule) Description() string {
	return "Blocks tool input matching user blocklist patterns"
}

// Evaluate matches the tool input JSON against entries scoped to the tool.
func (r *blocklistRule) Evaluate(_ context.Context, event *Event) (*RuleResult, error) {
	if r.blocklist == nil || r.blocklist.Len() == 0 {
		return NewAllowedResult(), nil
	}

	if blocked, reason := r.blocklist.Check(event.ToolName, event.SerializedInput()); blocked {
		return NewBlockedResult(r.Name(), reason), nil
	}
	return NewAllowedResult(), nil
}
