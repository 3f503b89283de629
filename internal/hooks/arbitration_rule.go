package hooks

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/cognaterra/better-drinking-bird/internal/safety"
	"github.com/cognaterra/better-drinking-bird/internal/transcript"
)

// arbitrationRule resolves commands whose intent needs judgment. Its verdict is final.
type arbitrationRule struct {
	classifier *safety.CommandClassifier
	fallback   safety.FallbackPolicy
	logger     logrus.FieldLogger
}

// NewArbitrationRule creates a rule that sends ambiguous commands to classifier.
func NewArbitrationRule(classifier *safety.CommandClassifier, fallback safety.FallbackPolicy, logger logrus.FieldLogger) Rule {
	return &arbitrationRule{
		classifier: classifier,
		fallback:   fallback,
		logger:     logger,
	}
}

// Name returns the unique identifier for this rule.
func (r *arbitrationRule) Name() string {
	return "command-arbitration"
}

// Description returns a human-readable description of what this rule does.
func (r *arbitrationRule) Description() string {
	return "Arbitrates history digging, encoded payloads, remote scripts and broad deletion"
}

// Evaluate classifies the command when it needs arbitration.
func (r *arbitrationRule) Evaluate(ctx context.Context, event *Event) (*RuleResult, error) {
	command, ok := event.Command()
	if !ok || !safety.NeedsArbitration(command) {
		return NewAllowedResult(), nil
	}

	verdict := r.classifier.Classify(ctx, command, r.recentContext(event.TranscriptPath), r.fallback)
	r.logger.WithFields(logrus.Fields{
		"category": verdict.Category,
		"blocked":  verdict.Blocked,
	}).Info("command arbitrated")

	if !verdict.Blocked {
		return NewFinalAllowedResult(r.Name(), verdict.Reason), nil
	}
	return &RuleResult{
		Allowed:  false,
		Message:  verdict.Message,
		Reason:   verdict.Reason,
		RuleName: r.Name(),
	}, nil
}

func (r *arbitrationRule) recentContext(path string) string {
	if path == "" {
		return ""
	}
	t, err := transcript.Load(path)
	if err != nil {
		r.logger.WithError(err).Debug("transcript unavailable for arbitration")
		return ""
	}
	return t.RecentContext()
}
