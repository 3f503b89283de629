// Package safety decides whether a command or tool call proposed by a coding
// agent may run.
//
// Decisions are made in two tiers. The Catalog is a fixed set of
// case-insensitive deny rules grouped into categories that can be switched
// off one by one, preceded by an allow-list that overrides every deny rule.
// Commands whose intent cannot be read from their text alone (history
// digging, encoded payloads, remote scripts piped into a shell, recursive
// deletion) are reported by NeedsArbitration and resolved by a
// CommandClassifier, which asks a model or, when none is configured, applies
// an explicit fallback policy. Every failure on that path blocks.
//
// ProtectedPaths and Blocklist apply to all tools, not only shell commands.
// Compound command lines are split into simple commands and each is checked
// on its own.
package safety
