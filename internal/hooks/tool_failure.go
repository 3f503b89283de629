package hooks

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/tidwall/gjson"

	"github.com/cognaterra/better-drinking-bird/internal/config"
	"github.com/cognaterra/better-drinking-bird/internal/llm"
)

const (
	maxErrorPrompt = 2000
	defaultHint    = "Check command syntax and try again!"
	noLLMHint      = "[HINT (low)]: " + defaultHint + " (Note: Configure LLM in ~/.bdb/config.yaml for smarter hints)"
)

// Confidence tiers in increasing order.
const (
	ConfidenceLow    = "low"
	ConfidenceMedium = "medium"
	ConfidenceHigh   = "high"
)

var confidenceRank = map[string]int{
	ConfidenceLow:    0,
	ConfidenceMedium: 1,
	ConfidenceHigh:   2,
}

// errorKeys are probed in order on an object tool response.
var errorKeys = []string{"error", "stderr", "message", "output"}

type recoveryHint struct {
	Advice     string `json:"advice" jsonschema_description:"One specific hint plus brief encouragement, 1-2 sentences"`
	Confidence string `json:"confidence" jsonschema:"enum=high,enum=medium,enum=low"`
}

var recoveryHintSchema = llm.SchemaFor[recoveryHint]("recovery_hint", "Report a recovery hint for the failed tool call")

// ToolFailurePipeline offers a recovery hint after a failed tool call.
type ToolFailurePipeline struct {
	threshold int
	client    llm.Client
	logger    logrus.FieldLogger
}

// NewToolFailurePipeline creates a ToolFailurePipeline. An unknown threshold
// is treated as medium.
func NewToolFailurePipeline(cfg config.ToolFailureConfig, client llm.Client, logger logrus.FieldLogger) *ToolFailurePipeline {
	threshold, ok := confidenceRank[strings.ToLower(cfg.ConfidenceThreshold)]
	if !ok {
		threshold = confidenceRank[ConfidenceMedium]
	}
	return &ToolFailurePipeline{
		threshold: threshold,
		client:    client,
		logger:    logger,
	}
}

// Handle asks for a hint when the failure carries an error message.
func (p *ToolFailurePipeline) Handle(ctx context.Context, event *Event) (Decision, error) {
	errorText := extractError(event)
	if strings.TrimSpace(errorText) == "" {
		return Allow("No error output"), nil
	}

	if p.client == nil {
		return AllowWithContext("No LLM configured", noLLMHint), nil
	}

	resp, err := p.client.Call(ctx, toolFailureSystemPrompt, buildToolFailurePrompt(event, errorText), recoveryHintSchema)
	if err != nil {
		p.logger.WithError(err).Warn("recovery hint failed")
		return Allow("Hint unavailable"), nil
	}
	hint, err := llm.Decode[recoveryHint](resp)
	if err != nil {
		p.logger.WithError(err).Warn("recovery hint unreadable")
		return Allow("Hint unavailable"), nil
	}

	confidence := strings.ToLower(hint.Confidence)
	rank, ok := confidenceRank[confidence]
	if !ok {
		confidence, rank = ConfidenceLow, confidenceRank[ConfidenceLow]
	}
	if rank < p.threshold {
		p.logger.WithField("confidence", confidence).Debug("hint below confidence threshold")
		return Allow("Confidence below threshold"), nil
	}

	advice := strings.TrimSpace(hint.Advice)
	if advice == "" {
		advice = defaultHint
	}
	return AllowWithContext("Recovery hint", fmt.Sprintf("[HINT (%s)]: %s", confidence, advice)), nil
}

// extractError returns the failure text: the response itself when it is a
// string, else the first of error, stderr, message and output, else the raw
// response. A top-level error field is used when there is no response.
func extractError(event *Event) string {
	if len(event.ToolResponse) == 0 {
		return event.Error
	}

	resp := gjson.ParseBytes(event.ToolResponse)
	switch {
	case resp.Type == gjson.String:
		return resp.String()
	case resp.IsObject():
		for _, key := range errorKeys {
			if value := resp.Get(key); value.Exists() {
				if value.Type == gjson.String {
					return value.String()
				}
				return value.Raw
			}
		}
		return resp.Raw
	case resp.Type == gjson.Null:
		return event.Error
	default:
		return resp.Raw
	}
}

func buildToolFailurePrompt(event *Event, errorText string) string {
	toolName := event.ToolName
	if toolName == "" {
		toolName = "Unknown"
	}
	command, ok := event.GetStringArg("command")
	if !ok {
		command = event.SerializedInput()
	}
	runes := []rune(errorText)
	if len(runes) > maxErrorPrompt {
		errorText = string(runes[:maxErrorPrompt])
	}
	return fmt.Sprintf("Tool: %s\nCommand/Input: %s\n\nError Output:\n%s", toolName, command, errorText)
}

const toolFailureSystemPrompt = `You are a coach for an AI coding agent that just hit an error.

Errors are information, not failures. Give a nudge in the right direction and keep momentum going.

Give ONE specific, actionable hint based on the error message, in 1-2 sentences.
- Clear error (missing flag, typo, wrong syntax): point to the exact fix.
- Ambiguous error (unknown command, unclear message): suggest checking --help or the docs.
- Missing dependency or setup issue: say what needs to be installed or configured.
End with brief encouragement such as "Try again!" or "Keep going!".

Confidence:
- high: you are certain about the fix.
- medium: you have a reasonable guess.
- low: you are suggesting exploration.`
