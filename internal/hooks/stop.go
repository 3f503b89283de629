package hooks

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cognaterra/better-drinking-bird/internal/config"
	"github.com/cognaterra/better-drinking-bird/internal/llm"
	"github.com/cognaterra/better-drinking-bird/internal/transcript"
)

const (
	keepGoingMessage = "Great work! Keep going."
	stickToPlanNudge = "Stick to the plan. Do it right. The reward at the end is worth it."
	noIntentMessage  = "[No user message found]"
)

// Session types reported by the stop review.
const (
	SessionInteractive = "interactive"
	SessionAutonomous  = "autonomous"
)

type stopReview struct {
	SessionType string `json:"session_type" jsonschema:"enum=interactive,enum=autonomous" jsonschema_description:"Whether a user is present and steering, or the agent works from a plan"`
	Decision    string `json:"decision" jsonschema:"enum=allow,enum=block,enum=kill"`
	Reason      string `json:"reason" jsonschema_description:"One sentence explaining the judgment"`
	Message     string `json:"message" jsonschema_description:"Directive to the agent, specific and actionable"`
}

var stopReviewSchema = llm.SchemaFor[stopReview]("stop_decision", "Report whether the agent may stop")

// StopPipeline decides whether the agent may stop working.
type StopPipeline struct {
	cfg    config.StopConfig
	client llm.Client
	killer ProcessKiller
	logger logrus.FieldLogger
}

// NewStopPipeline creates a StopPipeline. A nil client means every stop that
// passes the signature checks is blocked with a generic nudge. A nil killer
// kills the parent process.
func NewStopPipeline(cfg config.StopConfig, client llm.Client, killer ProcessKiller, logger logrus.FieldLogger) *StopPipeline {
	if killer == nil {
		killer = NewParentKiller()
	}
	return &StopPipeline{
		cfg:    cfg,
		client: client,
		killer: killer,
		logger: logger,
	}
}

// Handle reviews the transcript of a stopping agent.
func (p *StopPipeline) Handle(ctx context.Context, event *Event) (Decision, error) {
	t := p.loadTranscript(event.TranscriptPath)
	if t.IsEmpty() {
		return Block(keepGoingMessage, "empty transcript"), nil
	}

	lastAssistant, ok := t.LastAssistantText()
	if !ok {
		return Block(keepGoingMessage, "no completion evidence"), nil
	}

	mentions := t.UserMentions()

	if blocked := matchSignature(p.cfg, lastAssistant); blocked != "" {
		p.logger.Infof("stop blocked by signature: %s", blocked)
		message := stickToPlanNudge + "\n\nBlocked: " + blocked
		return Block(withReferences(message, existingMentions(mentions, event.Cwd)), blocked), nil
	}

	files := readReferencedFiles(mentions, event.Cwd)
	fileMentions := make([]string, len(files))
	for i, f := range files {
		fileMentions[i] = f.mention
	}
	hasDocs := len(documentMentions(fileMentions)) > 0

	if p.client == nil {
		p.logger.Debug("no LLM configured for stop review")
		return Block(withReferences(keepGoingMessage, fileMentions), "no LLM configured"), nil
	}

	prompt := buildStopPrompt(t, lastAssistant, files, hasDocs)
	resp, err := p.client.Call(ctx, stopSystemPrompt, prompt, stopReviewSchema)
	if err != nil {
		p.logger.WithError(err).Warn("stop review failed, blocking")
		return Block(withReferences(keepGoingMessage, fileMentions), "stop review failed: "+err.Error()), nil
	}
	review, err := llm.Decode[stopReview](resp)
	if err != nil {
		p.logger.WithError(err).Warn("stop review unreadable, blocking")
		return Block(withReferences(keepGoingMessage, fileMentions), "stop review unreadable: "+err.Error()), nil
	}

	p.logger.WithFields(logrus.Fields{
		"session_type": review.SessionType,
		"decision":     review.Decision,
		"has_docs":     hasDocs,
	}).Infof("stop reviewed: %s", review.Reason)

	switch review.Decision {
	case string(KindKill):
		if err := p.killer.KillParent(); err != nil {
			p.logger.WithError(err).Error("failed to kill agent")
		}
		reason := review.Reason
		if reason == "" {
			reason = "Agent terminated"
		}
		return Kill(reason), nil
	case string(KindAllow):
		return Allow(review.Reason), nil
	default:
		message := strings.TrimSpace(review.Message)
		if message == "" {
			message = keepGoingMessage
		}
		return Block(withReferences(message, fileMentions), review.Reason), nil
	}
}

func (p *StopPipeline) loadTranscript(path string) *transcript.Transcript {
	if path == "" {
		return nil
	}
	t, err := transcript.Load(path)
	if err != nil {
		p.logger.WithError(err).Warn("transcript unreadable")
		return nil
	}
	if t.Skipped > 0 {
		p.logger.WithField("skipped", t.Skipped).Debug("skipped malformed transcript lines")
	}
	return t
}

func buildStopPrompt(t *transcript.Transcript, lastAssistant string, files []referencedFile, hasDocs bool) string {
	var parts []string

	parts = append(parts, "=== SESSION ===")
	if hasDocs {
		parts = append(parts, "Referenced documentation: yes")
	} else {
		parts = append(parts, "Referenced documentation: no")
	}

	firstUser := strings.TrimSpace(t.FirstUserText())
	if firstUser == "" {
		firstUser = noIntentMessage
	}
	parts = append(parts, "\n=== ORIGINAL INTENT ===", firstUser)

	if len(files) > 0 {
		parts = append(parts, "\n=== REFERENCED FILES ===")
		for _, f := range files {
			parts = append(parts, "\n--- @"+f.mention+" ---", truncateContent(f.content))
		}
	}

	lastUser := strings.TrimSpace(t.LastUserText())
	lastAssistant = strings.TrimSpace(lastAssistant)
	showUser := lastUser != "" && lastUser != firstUser

	if showUser || lastAssistant != "" {
		parts = append(parts, "\n=== RECENT EXCHANGE ===")
	}
	if showUser {
		parts = append(parts, "User: "+lastUser)
	}
	if lastAssistant != "" {
		parts = append(parts, "Assistant: "+lastAssistant)
	}

	return strings.Join(parts, "\n")
}

const stopSystemPrompt = `You are a supervisor for an AI coding agent. Your job is to KEEP THE AGENT WORKING.

## First, classify the session
- autonomous: the user referenced plan or spec documents (see the SESSION section) and expects the agent to work through them without supervision. YOU are the user now.
- interactive: no plan documents; the user is likely present and steering the work.

## ALLOW only when
1. The task is genuinely complete: all code written, tests pass, and the agent says so with evidence.
2. The question is genuinely unanswerable: it needs something only a human can provide (a secret, a physical action, a legal or ethical call). "I couldn't find docs" is solvable.
3. The question needs a real user preference or requirement that cannot be inferred from the context. In an interactive session, a real question that the conversation has not already answered may go to the user.

If you CAN answer from the context provided, BLOCK and answer.

## BLOCK (the default)
- Permission seeking, scope reduction, deferral, excuses or a premature hand-off: "You do it. That's your job." plus the concrete next step.
- Stuck on an error or unclear approach: unblock them with the relevant doc section or the next concrete step.
- Progress made but stopped early: "Great work! Keep going. Next: <step from the plan>".
- Recalcitrance after correction: the user explained what is wrong and the agent asks what to do. The correction contains the answer.
- Nothing obviously wrong but stopping anyway: "Great work! Keep going."
In autonomous sessions give specific guidance from the plan. In interactive sessions keep the message short.

## KILL
- Looping on the same failed action three or more times.
- Hallucinating things that do not exist.
- Completely off-task.

Respond with session_type, decision, a one-sentence reason, and a message for the agent.`
