package hooks

import (
	"context"

	"github.com/cognaterra/better-drinking-bird/internal/safety"
)

// catalogRule checks shell commands against the fixed safety catalog.
type catalogRule struct {
	catalog    *safety.Catalog
	categories map[string]bool
}

// NewCatalogRule creates a rule over catalog limited to the enabled categories.
func NewCatalogRule(catalog *safety.Catalog, categories map[string]bool) Rule {
	return &catalogRule{catalog: catalog, categories: categories}
}

// Name returns the unique identifier for this rule.
func (r *catalogRule) Name() string {
	return "safety-catalog"
}

// Description returns a human-readable description of what this rule does.
func (r *catalogRule) Description() string {
	return "Blocks shell commands matching enabled safety catalog categories"
}

// Evaluate classifies the shell command.
func (r *catalogRule) Evaluate(_ context.Context, event *Event) (*RuleResult, error) {
	command, ok := event.Command()
	if !ok {
		return NewAllowedResult(), nil
	}

	if blocked, reason := r.catalog.Classify(command, r.categories); blocked {
		return NewBlockedResult(r.Name(), reason), nil
	}
	return NewAllowedResult(), nil
}
