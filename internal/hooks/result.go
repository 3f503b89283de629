package hooks

// Kind is the outcome of a supervised event.
type Kind string

const (
	KindAllow Kind = "allow"
	KindBlock Kind = "block"
	KindKill  Kind = "kill"
)

// Decision is what the supervisor tells the agent.
// Build it through Allow, AllowWithContext, Block or Kill.
type Decision struct {
	Kind Kind
	// Reason explains the decision in logs.
	Reason string
	// Message is shown to the agent when blocking.
	Message string
	// AdditionalContext is injected into the agent's context on allow.
	AdditionalContext string
}

// Allow lets the agent continue.
func Allow(reason string) Decision {
	return Decision{Kind: KindAllow, Reason: reason}
}

// AllowWithContext lets the agent continue and injects context.
func AllowWithContext(reason, context string) Decision {
	return Decision{Kind: KindAllow, Reason: reason, AdditionalContext: context}
}

// Block stops the agent's action and shows it message. An empty reason
// defaults to the message.
func Block(message, reason string) Decision {
	if reason == "" {
		reason = message
	}
	return Decision{Kind: KindBlock, Reason: reason, Message: message}
}

// Kill terminates the agent.
func Kill(reason string) Decision {
	return Decision{Kind: KindKill, Reason: reason}
}

// RuleResult represents the result of evaluating a rule.
type RuleResult struct {
	// Allowed indicates whether the tool usage should be allowed.
	Allowed bool

	// Message is shown to the agent when blocked.
	Message string

	// Reason is the logged explanation; it defaults to Message.
	Reason string

	// RuleName identifies which rule produced this result.
	RuleName string

	// Final stops evaluation of later rules even when allowed.
	Final bool
}

// NewAllowedResult creates a result that allows the tool usage.
func NewAllowedResult() *RuleResult {
	return &RuleResult{Allowed: true}
}

// NewFinalAllowedResult creates an allowing result that ends rule evaluation.
func NewFinalAllowedResult(ruleName, reason string) *RuleResult {
	return &RuleResult{
		Allowed:  true,
		Reason:   reason,
		RuleName: ruleName,
		Final:    true,
	}
}

// NewBlockedResult creates a result that blocks the tool usage.
func NewBlockedResult(ruleName, message string) *RuleResult {
	return &RuleResult{
		Allowed:  false,
		Message:  message,
		Reason:   message,
		RuleName: ruleName,
	}
}

// Decision converts the result into the decision returned to the agent.
func (r *RuleResult) Decision() Decision {
	if r.Allowed {
		if r.Reason == "" {
			return Allow("Command allowed")
		}
		return Allow(r.Reason)
	}
	return Block(r.Message, r.Reason)
}
