package safety

import (
	"errors"
	"fmt"

	"github.com/dlclark/regexp2"
)

// AnyTool matches every tool name in a blocklist entry.
const AnyTool = "*"

// BlocklistEntry is a user-configured pattern matched against serialized tool input.
type BlocklistEntry struct {
	Pattern string
	Reason  string
	Tools   []string
}

type blocklistRule struct {
	entry BlocklistEntry
	re    *regexp2.Regexp
}

// Blocklist holds compiled user entries.
type Blocklist struct {
	rules []blocklistRule
}

// NewBlocklist compiles entries. Entries whose pattern does not compile are
// left out and reported in the returned error; the blocklist is usable either way.
func NewBlocklist(entries []BlocklistEntry) (*Blocklist, error) {
	var errs []error
	bl := &Blocklist{}
	for _, entry := range entries {
		re, err := regexp2.Compile(entry.Pattern, regexp2.IgnoreCase)
		if err != nil {
			errs = append(errs, fmt.Errorf("invalid blocklist pattern %q: %w", entry.Pattern, err))
			continue
		}
		re.MatchTimeout = matchTimeout
		if len(entry.Tools) == 0 {
			entry.Tools = []string{AnyTool}
		}
		bl.rules = append(bl.rules, blocklistRule{entry: entry, re: re})
	}
	return bl, errors.Join(errs...)
}

// Len returns the number of usable entries.
func (b *Blocklist) Len() int {
	return len(b.rules)
}

// Check matches serializedInput, the tool input as JSON, against entries
// scoped to toolName and returns the first matching reason.
func (b *Blocklist) Check(toolName, serializedInput string) (bool, string) {
	for _, rule := range b.rules {
		if !appliesTo(rule.entry.Tools, toolName) {
			continue
		}
		if mustMatch(rule.re, serializedInput, true) {
			return true, rule.entry.Reason
		}
	}
	return false, ""
}

func appliesTo(tools []string, toolName string) bool {
	for _, tool := range tools {
		if tool == AnyTool || tool == toolName {
			return true
		}
	}
	return false
}
