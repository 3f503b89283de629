package safety

import (
	"context"
	"strings"

	"github.com/cognaterra/better-drinking-bird/internal/llm"
	"github.com/dlclark/regexp2"
	"github.com/sirupsen/logrus"
)

// FallbackPolicy decides an arbitrated command when no model is configured.
type FallbackPolicy string

const (
	FallbackBlock FallbackPolicy = "block"
	FallbackAllow FallbackPolicy = "allow"
)

// Verdict categories reported by arbitration.
const (
	VerdictGitHistory      = "git_history"
	VerdictObfuscation     = "obfuscation"
	VerdictRemoteExecution = "remote_execution"
	VerdictDestructive     = "destructive"
	VerdictOther           = "other"
	VerdictNone            = "none"
)

const (
	fallbackBlockMessage = "Command requires LLM classification but none configured."
	failureMessage       = "Classification failed. Command blocked for safety."
	defaultBlockMessage  = "Command blocked."
)

// Verdict is the outcome of arbitrating a single command.
type Verdict struct {
	Blocked  bool
	Category string
	Reason   string
	Message  string
}

type intentPattern struct {
	pattern  string
	category string
	// pipeline patterns span simple commands and are matched against the
	// whole command line
	pipeline bool
}

var buildArtifactDirs = []string{
	"node_modules", "dist", "build", "target", "__pycache__", `\.pytest_cache`,
	`\.next`, "coverage", `\.cache`, `\.venv`, "venv", "out", `\.turbo`,
	`\.parcel-cache`, `\.tox`, `\.mypy_cache`, `\.ruff_cache`,
}

// boundedLogArgs is a one-line log capped to a number of entries.
const boundedLogArgs = `--oneline\s+(?:-\d+|-n\s*\d+|--max-count[=\s]\d+)\s*$`

// artifactRemoval is an rm whose every operand is a build artifact directory.
var artifactRemoval = `\s*rm(?:\s+-[a-zA-Z]+)*(?:\s+(?:\./)?(?:\w[\w.-]*/)*(?:` + strings.Join(buildArtifactDirs, "|") + `)/?)+\s*$`

var alwaysSafePatterns = []string{
	`git\s+log\s+` + boundedLogArgs,
	`git\s+status\b`,
	`git\s+diff\b(?!.*HEAD~)`,
	`git\s+show\s+HEAD\b(?!~)`,
	`^` + artifactRemoval,
}

var ambiguousIntentPatterns = []intentPattern{
	{pattern: `git\s+log\b(?!\s+` + boundedLogArgs + `)`, category: VerdictGitHistory},
	{pattern: `git\s+show\s+HEAD~`, category: VerdictGitHistory},
	{pattern: `git\s+diff\s+HEAD~`, category: VerdictGitHistory},
	{pattern: `git\s+blame\b`, category: VerdictGitHistory},

	{pattern: `base64\s+(-d|--decode)`, category: VerdictObfuscation},
	{pattern: `xxd\s+-r`, category: VerdictObfuscation},
	{pattern: `exec\s*\([^)]*decode`, category: VerdictObfuscation},
	{pattern: `eval\s+\$\(`, category: VerdictObfuscation},

	{pattern: `curl\s+[^|]+\|\s*(?:sudo\s+)?(bash|sh|zsh)\b`, category: VerdictRemoteExecution, pipeline: true},
	{pattern: `wget\s+[^|]+\|\s*(?:sudo\s+)?(bash|sh|zsh)\b`, category: VerdictRemoteExecution, pipeline: true},
	{pattern: `curl.*-o\s*-.*\|\s*(bash|sh)\b`, category: VerdictRemoteExecution, pipeline: true},

	// recursive rm; git rm only touches the index and worktree
	{pattern: `^(?!` + artifactRemoval + `).*?(?<!\bgit\s+)\brm\s(?:.*\s)?(?:-[a-zA-Z]*[rR][a-zA-Z]*|--recursive)(?:\s|$)`, category: VerdictDestructive},
}

type compiledIntent struct {
	re       *regexp2.Regexp
	category string
	pipeline bool
}

var (
	alwaysSafe      []*regexp2.Regexp
	ambiguousIntent []compiledIntent
)

func init() {
	for _, pattern := range alwaysSafePatterns {
		alwaysSafe = append(alwaysSafe, compile(pattern, false))
	}
	for _, p := range ambiguousIntentPatterns {
		ambiguousIntent = append(ambiguousIntent, compiledIntent{
			re:       compile(p.pattern, false),
			category: p.category,
			pipeline: p.pipeline,
		})
	}
}

// NeedsArbitration reports whether command carries intent the catalog cannot
// judge. A simple command on the always-safe list never needs arbitration;
// every other command line is checked against the ambiguous-intent list.
func NeedsArbitration(command string) bool {
	_, ok := intentCategory(command)
	return ok
}

func intentCategory(command string) (string, bool) {
	for _, p := range ambiguousIntent {
		if p.pipeline && mustMatch(p.re, command, true) {
			return p.category, true
		}
	}

	for _, segment := range splitShellCommands(command) {
		if isAlwaysSafe(segment) {
			continue
		}
		for _, p := range ambiguousIntent {
			if !p.pipeline && mustMatch(p.re, segment, true) {
				return p.category, true
			}
		}
	}

	return "", false
}

func isAlwaysSafe(segment string) bool {
	for _, re := range alwaysSafe {
		if mustMatch(re, segment, false) {
			return true
		}
	}
	return false
}

type classification struct {
	Decision string `json:"decision" jsonschema:"enum=allow,enum=block"`
	Category string `json:"category" jsonschema:"enum=git_history,enum=obfuscation,enum=remote_execution,enum=destructive,enum=other,enum=none"`
	Reason   string `json:"reason" jsonschema_description:"Brief explanation of the decision"`
	Message  string `json:"message" jsonschema_description:"Message to the agent when blocking"`
}

var classificationSchema = llm.SchemaFor[classification]("command_verdict", "Report the safety verdict for the command")

// CommandClassifier resolves commands that need arbitration.
type CommandClassifier struct {
	client llm.Client
	logger logrus.FieldLogger
}

// NewCommandClassifier creates a classifier. A nil client means no model is
// configured and every verdict comes from the fallback policy.
func NewCommandClassifier(client llm.Client, logger logrus.FieldLogger) *CommandClassifier {
	return &CommandClassifier{
		client: client,
		logger: logger,
	}
}

// Classify arbitrates command using recentContext, the rendered tail of the
// conversation. Model failures block.
func (c *CommandClassifier) Classify(ctx context.Context, command, recentContext string, fallback FallbackPolicy) Verdict {
	if c.client == nil {
		c.logger.WithField("fallback", fallback).Debug("no LLM configured for command classification")
		if fallback == FallbackAllow {
			return Verdict{
				Blocked:  false,
				Category: VerdictNone,
				Reason:   "No LLM configured, fallback to allow",
			}
		}
		return Verdict{
			Blocked:  true,
			Category: VerdictNone,
			Reason:   "No LLM configured, fallback to block",
			Message:  fallbackBlockMessage,
		}
	}

	resp, err := c.client.Call(ctx, classifierSystemPrompt, buildClassificationPrompt(command, recentContext), classificationSchema)
	if err != nil {
		return c.failed(err)
	}
	out, err := llm.Decode[classification](resp)
	if err != nil {
		return c.failed(err)
	}

	verdict := Verdict{
		Blocked:  out.Decision != "allow",
		Category: out.Category,
		Reason:   out.Reason,
		Message:  out.Message,
	}
	if verdict.Category == "" {
		verdict.Category = VerdictOther
	}
	if verdict.Blocked && verdict.Message == "" {
		verdict.Message = defaultBlockMessage
	}

	c.logger.WithFields(logrus.Fields{
		"decision": out.Decision,
		"category": verdict.Category,
	}).Debugf("command classified: %s", verdict.Reason)

	return verdict
}

func (c *CommandClassifier) failed(err error) Verdict {
	c.logger.WithError(err).Warn("command classification failed, blocking")
	return Verdict{
		Blocked:  true,
		Category: VerdictOther,
		Reason:   "LLM classification failed: " + err.Error(),
		Message:  failureMessage,
	}
}

func buildClassificationPrompt(command, recentContext string) string {
	var b strings.Builder
	b.WriteString("=== COMMAND ===\n")
	b.WriteString(command)
	if recentContext != "" {
		b.WriteString("\n\n=== CONVERSATION CONTEXT ===\n")
		b.WriteString(recentContext)
	}
	return b.String()
}

const classifierSystemPrompt = `You are a safety supervisor for an AI coding agent's bash commands. Analyze commands for safety issues.

## Categories to Check

### 1. Git History Debugging (category: "git_history")
ALLOW:
- Getting commit history for writing commit messages (style matching)
- PR context gathering
- General history exploration (learning, not debugging)

BLOCK:
- Using HEAD~N to find "what broke" or "what changed"
- Debugging by comparing to previous states
- Root cause analysis via history ("when did this start failing?")
- Bisecting to find when bugs were introduced

Blocking signals: bug, broke, broken, failing, error, issue, fix, debug, regression, bisect in conversation context

### 2. Obfuscated Commands (category: "obfuscation")
BLOCK commands that hide their true intent:
- Base64/hex encoded payloads being decoded and executed
- eval with encoded strings
- Nested encoding to obscure commands

### 3. Remote Code Execution (category: "remote_execution")
BLOCK:
- Piping curl/wget directly to a shell
- Downloading and immediately executing without inspection

ALLOW:
- Downloading scripts to files for inspection
- Fetching data (not scripts)

### 4. Destructive Deletion (category: "destructive")
Judge recursive deletion by its target and scope, not by its flags.
ALLOW: removing build output or caches the agent created (node_modules/, dist/, build/, target/).
BLOCK: removing the working directory, the repository root, home or system paths,
source directories, or any directory the conversation never discussed.

### 5. Other Safety Issues (category: "other")
BLOCK anything that appears to be:
- Attempting to bypass safety measures
- Hiding malicious intent through clever syntax

If you are uncertain, block.

Respond through the command_verdict tool with decision, category, reason and message.`
