package safety

import (
	"path"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ProtectedReason is the block message for a protected path.
const ProtectedReason = "Do not touch commit hooks or CI configuration. Fix the code, not the safety net."

var defaultProtectedGlobs = []string{
	"**/.git/hooks/**",
	"**/pre-commit",
	"**/.pre-commit-config.yaml",
	"**/.pre-commit-config.yml",
	"**/.husky/**",
	"**/.github/workflows/**",
	"**/.gitlab-ci.yml",
	"**/.circleci/**",
}

// hookScriptGlobs name hook scripts by file name alone. A shell argument only
// matches them when it is a path, since the bare name is also a package and
// command name ("pip install pre-commit").
var hookScriptGlobs = map[string]bool{
	"**/pre-commit": true,
}

// ProtectedPaths guards version-control hooks and CI definitions from every tool.
type ProtectedPaths struct {
	globs     []string
	shellTool string
}

// NewProtectedPaths creates a guard over the built-in globs plus extra.
// Invalid extra globs are ignored. shellTool names the tool whose "command"
// field is a shell command line.
func NewProtectedPaths(shellTool string, extra ...string) *ProtectedPaths {
	globs := append([]string{}, defaultProtectedGlobs...)
	for _, glob := range extra {
		if doublestar.ValidatePattern(glob) {
			globs = append(globs, glob)
		}
	}
	return &ProtectedPaths{globs: globs, shellTool: shellTool}
}

// Match returns the first protected path referenced by the tool input fields.
func (p *ProtectedPaths) Match(toolName string, fields map[string]any) (string, bool) {
	keys := make([]string, 0, len(fields))
	for key := range fields {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var candidates []string
		fromShell := false
		if command, ok := fields[key].(string); ok && key == "command" && toolName == p.shellTool {
			candidates = commandPathCandidates(command)
			fromShell = true
		} else {
			candidates = valueStrings(fields[key])
		}

		for _, candidate := range candidates {
			if p.isProtected(candidate, fromShell) {
				return candidate, true
			}
		}
	}
	return "", false
}

func (p *ProtectedPaths) isProtected(candidate string, fromShell bool) bool {
	normalized := normalizePath(candidate)
	if normalized == "" {
		return false
	}
	bareName := !strings.ContainsAny(candidate, "/\\")
	for _, glob := range p.globs {
		if fromShell && bareName && hookScriptGlobs[glob] {
			continue
		}
		if ok, _ := doublestar.Match(glob, normalized); ok {
			return true
		}
	}
	return false
}

// commandPathCandidates returns the arguments of every simple command in a
// command line. The command word itself is skipped so running a hook tool is
// left to the catalog.
func commandPathCandidates(command string) []string {
	var candidates []string
	for _, segment := range splitShellCommands(command) {
		tokens := parseTokensStripQuotes(segment)
		for i, token := range tokens {
			if i == 0 {
				continue
			}
			candidates = append(candidates, token)
			if idx := strings.LastIndex(token, "="); idx >= 0 {
				candidates = append(candidates, token[idx+1:])
			}
		}
	}
	return candidates
}

func valueStrings(value any) []string {
	switch v := value.(type) {
	case string:
		return []string{v}
	case []any:
		var out []string
		for _, item := range v {
			out = append(out, valueStrings(item)...)
		}
		return out
	case map[string]any:
		var out []string
		for _, item := range v {
			out = append(out, valueStrings(item)...)
		}
		return out
	}
	return nil
}

func normalizePath(candidate string) string {
	s := strings.TrimSpace(candidate)
	s = strings.TrimLeft(s, "<>&|;(")
	s = strings.TrimRight(s, ";)")
	s = strings.ReplaceAll(s, "\\", "/")
	s = strings.TrimPrefix(s, "~/")
	if s == "" {
		return ""
	}
	s = path.Clean(s)
	s = strings.TrimLeft(s, "/")
	if s == "." || s == "" {
		return ""
	}
	return s
}
