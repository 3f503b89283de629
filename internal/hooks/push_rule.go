package hooks

import (
	"context"
	"strings"

	"github.com/cognaterra/better-drinking-bird/internal/safety"
)

// gitPushRule blocks git push commands to main/master branches.
type gitPushRule struct {
	guard   *safety.PushGuard
	enabled bool
}

// NewGitPushRule creates a new rule that blocks pushes to main/master branches.
// It follows the branch_switching category toggle.
func NewGitPushRule(branches safety.BranchResolver, categories map[string]bool) Rule {
	return &gitPushRule{
		guard:   safety.NewPushGuard(branches),
		enabled: categoryEnabled(categories, safety.CategoryBranchSwitching),
	}
}

// Name returns the unique identifier for this rule.
func (r *gitPushRule) Name() string {
	return "git-push"
}

// Description returns a human-readable description of what this rule does.
func (r *gitPushRule) Description() string {
	return "Blocks git push commands to main/master branches"
}

// Evaluate checks if the Bash command is a git push to main/master.
func (r *gitPushRule) Evaluate(_ context.Context, event *Event) (*RuleResult, error) {
	if !r.enabled {
		return NewAllowedResult(), nil
	}

	command, ok := event.Command()
	if !ok {
		return NewAllowedResult(), nil
	}

	if blocked, reason := r.guard.Check(strings.TrimSpace(command), event.Cwd); blocked {
		return NewBlockedResult(r.Name(), reason), nil
	}
	return NewAllowedResult(), nil
}

// categoryEnabled treats a nil map as every category enabled.
func categoryEnabled(categories map[string]bool, category safety.Category) bool {
	if categories == nil {
		return true
	}
	return categories[string(category)]
}
