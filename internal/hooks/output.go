package hooks

import (
	"encoding/json"
	"fmt"
	"io"
)

type hookSpecificOutput struct {
	HookEventName     string `json:"hookEventName"`
	AdditionalContext string `json:"additionalContext"`
}

// Output is the JSON document the agent reads from stdout.
type Output struct {
	Decision           string              `json:"decision,omitempty"`
	Reason             string              `json:"reason,omitempty"`
	HookSpecificOutput *hookSpecificOutput `json:"hookSpecificOutput,omitempty"`
}

// NewOutput renders decision for eventName. A nil result means nothing is
// written: plain allows and kills carry no output.
func NewOutput(eventName string, decision Decision) *Output {
	switch decision.Kind {
	case KindBlock:
		reason := decision.Message
		if reason == "" {
			reason = decision.Reason
		}
		return &Output{Decision: string(KindBlock), Reason: reason}
	case KindAllow:
		if decision.AdditionalContext == "" {
			return nil
		}
		return &Output{
			HookSpecificOutput: &hookSpecificOutput{
				HookEventName:     eventName,
				AdditionalContext: decision.AdditionalContext,
			},
		}
	default:
		return nil
	}
}

// WriteDecision writes the agent-facing JSON for decision to w.
func WriteDecision(w io.Writer, eventName string, decision Decision) error {
	out := NewOutput(eventName, decision)
	if out == nil {
		return nil
	}

	data, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("failed to encode decision: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("failed to write decision: %w", err)
	}
	return nil
}
