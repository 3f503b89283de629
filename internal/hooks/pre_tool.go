package hooks

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cognaterra/better-drinking-bird/internal/config"
	"github.com/cognaterra/better-drinking-bird/internal/llm"
	"github.com/cognaterra/better-drinking-bird/internal/safety"
)

// PreToolPipeline screens a tool call before it runs. Rules run in order and
// the first block wins: protected paths, user blocklist, pushes to protected
// branches, the safety catalog, then arbitration.
type PreToolPipeline struct {
	engine *ruleEngine
	logger logrus.FieldLogger
}

// NewPreToolPipeline builds the rule chain. Blocklist entries that do not
// compile are logged and skipped. A nil client sends arbitrated commands to
// the configured fallback policy.
func NewPreToolPipeline(
	cfg config.PreToolConfig,
	blocklist []config.BlocklistEntry,
	client llm.Client,
	branches safety.BranchResolver,
	logger logrus.FieldLogger,
) *PreToolPipeline {
	entries := make([]safety.BlocklistEntry, len(blocklist))
	for i, entry := range blocklist {
		entries[i] = safety.BlocklistEntry{
			Pattern: entry.Pattern,
			Reason:  entry.Reason,
			Tools:   entry.Tools,
		}
	}
	bl, err := safety.NewBlocklist(entries)
	if err != nil {
		logger.WithError(err).Warn("some blocklist entries were skipped")
	}

	fallback := safety.FallbackBlock
	if cfg.LLMFallback == string(safety.FallbackAllow) {
		fallback = safety.FallbackAllow
	}

	rules := []Rule{
		NewProtectedPathRule(cfg.ProtectedPaths...),
		NewBlocklistRule(bl),
		NewGitPushRule(branches, cfg.Categories),
		NewCatalogRule(safety.NewCatalog(), cfg.Categories),
		NewArbitrationRule(safety.NewCommandClassifier(client, logger), fallback, logger),
	}

	return &PreToolPipeline{
		engine: NewRuleEngine(rules...),
		logger: logger,
	}
}

// Handle evaluates the rule chain for event.
func (p *PreToolPipeline) Handle(ctx context.Context, event *Event) (Decision, error) {
	result, err := p.engine.Evaluate(ctx, event)
	if err != nil {
		return Decision{}, err
	}

	if !result.Allowed {
		p.logger.WithFields(logrus.Fields{
			"rule": result.RuleName,
			"tool": event.ToolName,
		}).Infof("tool use blocked: %s", result.Reason)
		return result.Decision(), nil
	}

	if event.ToolName != ShellTool {
		return Allow("Not a Bash command"), nil
	}
	return result.Decision(), nil
}
