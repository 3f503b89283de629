package safety

import (
	"strings"
	"time"

	"github.com/dlclark/regexp2"
)

// Category groups rules that can be enabled or disabled together.
type Category string

const (
	CategoryCIBypass         Category = "ci_bypass"
	CategoryDestructiveGit   Category = "destructive_git"
	CategoryBranchSwitching  Category = "branch_switching"
	CategoryInteractiveGit   Category = "interactive_git"
	CategoryDangerousFiles   Category = "dangerous_files"
	CategoryGitHistory       Category = "git_history"
	CategoryCredentialAccess Category = "credential_access"
)

// Categories lists every catalog category in evaluation order.
var Categories = []Category{
	CategoryCIBypass,
	CategoryDestructiveGit,
	CategoryBranchSwitching,
	CategoryInteractiveGit,
	CategoryDangerousFiles,
	CategoryGitHistory,
	CategoryCredentialAccess,
}

// Git verb aliases. Every rule that names one of these verbs is written with
// the {CHECKOUT} or {SWITCH} placeholder and expanded from these sets, so an
// alias added here is covered by both deny and allow rules.
var (
	checkoutAliases = []string{"checkout", "co"}
	switchAliases   = []string{"switch", "sw"}
)

var aliasExpander = strings.NewReplacer(
	"{CHECKOUT}", aliasGroup(checkoutAliases),
	"{SWITCH}", aliasGroup(switchAliases),
)

func aliasGroup(aliases []string) string {
	return "(?:" + strings.Join(aliases, "|") + ")"
}

// matchTimeout bounds a single regexp evaluation against pathological input.
const matchTimeout = 250 * time.Millisecond

const (
	branchSwitchReason = "ABSOLUTELY NOT. Switching branches corrupts worktrees. " +
		"Stay on your assigned branch. Use `git switch -C <name>` to create a new branch."
	mainPushReason    = "Do not push directly to main/master. Use a pull request."
	restoreTreeReason = "ABSOLUTELY NOT. Checking out all files from another ref destroys the worktree. Stay on your assigned branch."
)

// wholeTreePathspec matches, at any position after "--", a pathspec that
// selects the whole tree: ".", "./", ":/" or "*", optionally quoted.
const wholeTreePathspec = `(?:\s+\S+)*?\s+['"]?(?:\.|\./|:/|\*)['"]?(?=\s|$)`

// Rule is a single deny pattern in the catalog. Patterns match
// case-insensitively unless CaseSensitive is set.
type Rule struct {
	Pattern       string
	Reason        string
	Category      Category
	CaseSensitive bool
	re            *regexp2.Regexp
}

func (r Rule) matches(command string) bool {
	return mustMatch(r.re, command, true)
}

var ruleTable = []Rule{
	{Category: CategoryCIBypass, Pattern: `--no-verify`, Reason: "NO. Do not bypass pre-commit hooks. Fix the issue."},
	{Category: CategoryCIBypass, Pattern: `--no-gpg-sign`, Reason: "Do not skip GPG signing."},
	{Category: CategoryCIBypass, Pattern: `--skip-hooks`, Reason: "Do not skip hooks."},
	{Category: CategoryCIBypass, Pattern: `HUSKY\s*=\s*0`, Reason: "Do not disable Husky."},
	{Category: CategoryCIBypass, Pattern: `PRE_COMMIT_ALLOW_NO_CONFIG`, Reason: "Do not bypass pre-commit."},
	{Category: CategoryCIBypass, Pattern: `(?:sed|awk|perl|ed|cat\s*>|echo\s.*>|tee)\s.*pre.commit`, Reason: "Do not modify pre-commit hooks. Fix the code, not the safety net."},
	{Category: CategoryCIBypass, Pattern: `chmod\s.*pre.commit`, Reason: "Do not modify pre-commit hook permissions. Fix the code, not the safety net."},

	{Category: CategoryDestructiveGit, Pattern: `git\s+reset\s+--hard`, Reason: "NO. git reset --hard destroys work. Ask the user first."},
	{Category: CategoryDestructiveGit, Pattern: `git\s+clean\s+-f`, Reason: "NO. git clean -f deletes untracked files. Ask the user."},
	{Category: CategoryDestructiveGit, Pattern: `git\s+{CHECKOUT}\s+\.`, Reason: "NO. git checkout . discards changes. Ask the user."},
	{Category: CategoryDestructiveGit, Pattern: `git\s+restore\s+\.`, Reason: "NO. git restore . discards changes. Ask the user."},
	{Category: CategoryDestructiveGit, Pattern: `git\s+push\s+--force`, Reason: "NO. Force push is destructive. Ask the user."},
	{Category: CategoryDestructiveGit, Pattern: `git\s+push\s+-f\b`, Reason: "NO. Force push is destructive. Ask the user."},
	{Category: CategoryDestructiveGit, Pattern: `(?i:git\s+branch)\s+-D`, Reason: "NO. git branch -D force-deletes branches. Use -d instead.", CaseSensitive: true},

	// switch to an existing ref; -c, -C and --create make a new branch
	{Category: CategoryBranchSwitching, Pattern: `git\s+{SWITCH}\s+(?!-[cC]\b)(?!--create\b)\S`, Reason: branchSwitchReason},
	{Category: CategoryBranchSwitching, Pattern: `git\s+{CHECKOUT}\s+\S+\s+--` + wholeTreePathspec, Reason: restoreTreeReason},
	// checkout to any ref; restoring a file from a ref is on the allow-list
	{Category: CategoryBranchSwitching, Pattern: `git\s+{CHECKOUT}\s+(?!--)[\w\-/]`, Reason: branchSwitchReason},
	{Category: CategoryBranchSwitching, Pattern: `git\s+push\s+\S+\s+(main|master)\b`, Reason: mainPushReason},
	{Category: CategoryBranchSwitching, Pattern: `git\s+push\s+\S+\s+\S+:(main|master)\b`, Reason: mainPushReason},

	{Category: CategoryInteractiveGit, Pattern: `git\s+rebase\s+-i`, Reason: "Interactive rebase won't work in this environment."},
	{Category: CategoryInteractiveGit, Pattern: `git\s+add\s+-i`, Reason: "Interactive add won't work in this environment."},
	{Category: CategoryInteractiveGit, Pattern: `git\s+add\s+-p`, Reason: "Patch add won't work in this environment."},

	{Category: CategoryDangerousFiles, Pattern: `rm\s+-rf\s+/`, Reason: "NO. Absolutely not."},
	{Category: CategoryDangerousFiles, Pattern: `rm\s+-rf\s+~`, Reason: "NO. Do not delete home directory."},
	{Category: CategoryDangerousFiles, Pattern: `rm\s+-rf\s+\*`, Reason: "NO. Do not delete everything."},
	{Category: CategoryDangerousFiles, Pattern: `>\s*/dev/sd`, Reason: "NO. Do not write to block devices."},

	{Category: CategoryGitHistory, Pattern: `git\s+log\b(?!.*--oneline\b)`, Reason: "Don't dig through git history for bugs. Read the actual code."},
	{Category: CategoryGitHistory, Pattern: `git\s+blame\b`, Reason: "Don't use git blame. Claude wrote those commits. Read the actual code."},

	{Category: CategoryCredentialAccess, Pattern: `cat\s+.*\.env\b`, Reason: "Do not cat .env files. They contain secrets."},
	{Category: CategoryCredentialAccess, Pattern: `cat\s+.*credentials`, Reason: "Do not cat credential files."},
	{Category: CategoryCredentialAccess, Pattern: `cat\s+.*\.pem\b`, Reason: "Do not cat private keys."},
	{Category: CategoryCredentialAccess, Pattern: `cat\s+.*_rsa\b`, Reason: "Do not cat SSH keys."},
}

// allowPatterns override every deny rule for the command they match.
var allowPatterns = []string{
	`git\s+diff\b(?!.*HEAD~)`,
	`git\s+status\b`,
	`git\s+log\s+--oneline\b`,
	// file restore from a ref, unless a pathspec covers the whole tree
	`git\s+{CHECKOUT}\s+\S+\s+--(?!` + wholeTreePathspec + `)\s+\S`,
}

// Catalog is the fixed, compiled set of deny rules and allow overrides.
type Catalog struct {
	rules []Rule
	allow []*regexp2.Regexp
}

// NewCatalog compiles the built-in rule table.
func NewCatalog() *Catalog {
	rules := make([]Rule, len(ruleTable))
	for i, rule := range ruleTable {
		rule.Pattern = aliasExpander.Replace(rule.Pattern)
		rule.re = compile(rule.Pattern, rule.CaseSensitive)
		rules[i] = rule
	}

	allow := make([]*regexp2.Regexp, len(allowPatterns))
	for i, pattern := range allowPatterns {
		allow[i] = compile(aliasExpander.Replace(pattern), false)
	}

	return &Catalog{rules: rules, allow: allow}
}

// Rules returns the compiled rules in evaluation order.
func (c *Catalog) Rules() []Rule {
	out := make([]Rule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Classify reports whether command is blocked and why. Each simple command of
// a compound command line is checked on its own, so an allowed segment never
// shadows a denied one. A nil enabled map enables every category; a category
// missing from a non-nil map is disabled.
func (c *Catalog) Classify(command string, enabled map[string]bool) (bool, string) {
	for _, segment := range splitShellCommands(command) {
		if blocked, reason := c.classifySegment(segment, enabled); blocked {
			return true, reason
		}
	}
	return false, ""
}

func (c *Catalog) classifySegment(segment string, enabled map[string]bool) (bool, string) {
	for _, re := range c.allow {
		if mustMatch(re, segment, false) {
			return false, ""
		}
	}

	for _, rule := range c.rules {
		if enabled != nil && !enabled[string(rule.Category)] {
			continue
		}
		if rule.matches(segment) {
			return true, rule.Reason
		}
	}

	return false, ""
}

func compile(pattern string, caseSensitive bool) *regexp2.Regexp {
	var opts regexp2.RegexOptions = regexp2.IgnoreCase
	if caseSensitive {
		opts = regexp2.None
	}
	re := regexp2.MustCompile(pattern, opts)
	re.MatchTimeout = matchTimeout
	return re
}

// mustMatch reports a match, or onTimeout when evaluation did not finish.
func mustMatch(re *regexp2.Regexp, s string, onTimeout bool) bool {
	ok, err := re.MatchString(s)
	if err != nil {
		return onTimeout
	}
	return ok
}
