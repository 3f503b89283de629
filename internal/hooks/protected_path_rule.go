package hooks

import (
	"context"

	"github.com/cognaterra/better-drinking-bird/internal/safety"
)

// protectedPathRule blocks any tool that references hook scripts or CI definitions.
type protectedPathRule struct {
	paths *safety.ProtectedPaths
}

// NewProtectedPathRule creates a rule over the built-in globs plus extra.
func NewProtectedPathRule(extra ...string) Rule {
	return &protectedPathRule{paths: safety.NewProtectedPaths(ShellTool, extra...)}
}

// Name returns the unique identifier for this rule.
func (r *protectedPathRule) Name() string {
	return "protected-paths"
}

// Description returns a human-readable description of what this rule does.
func (r *protectedPathRule) Description() string {
	return "Blocks every tool that touches commit hooks or CI configuration"
}

// Evaluate scans every string field of the tool input.
func (r *protectedPathRule) Evaluate(_ context.Context, event *Event) (*RuleResult, error) {
	path, ok := r.paths.Match(event.ToolName, event.Fields())
	if !ok {
		return NewAllowedResult(), nil
	}

	result := NewBlockedResult(r.Name(), safety.ProtectedReason)
	result.Reason = "Protected path: " + path
	return result, nil
}
