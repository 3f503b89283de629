package safety

import "strings"

// BranchResolver reports the branch checked out in a directory.
type BranchResolver interface {
	CurrentBranch(dir string) (string, error)
}

// BranchResolverFunc adapts a function to BranchResolver.
type BranchResolverFunc func(dir string) (string, error)

// CurrentBranch calls f(dir).
func (f BranchResolverFunc) CurrentBranch(dir string) (string, error) {
	return f(dir)
}

const gitCommandArgsStartIndex = 2 // Skip "git" and subcommand

var pushFlagsWithValues = []string{"--repo", "--exec", "--receive-pack", "-o", "--push-option"}

// PushGuard blocks git pushes that land on main or master, including
// implicit pushes from a checked-out protected branch.
type PushGuard struct {
	branches BranchResolver
}

// NewPushGuard creates a PushGuard. A nil resolver disables the implicit-push check.
func NewPushGuard(branches BranchResolver) *PushGuard {
	return &PushGuard{branches: branches}
}

// Check evaluates every segment of command, run from dir.
func (g *PushGuard) Check(command, dir string) (bool, string) {
	for _, segment := range splitShellCommands(command) {
		if blocked, reason := g.checkSegment(segment, dir); blocked {
			return true, reason
		}
	}
	return false, ""
}

func (g *PushGuard) checkSegment(segment, dir string) (bool, string) {
	args := parseTokensStripQuotes(segment)
	if len(args) < 2 || args[0] != "git" || args[1] != "push" {
		return false, ""
	}

	if containsAny(args, "--all", "--mirror") {
		return true, "Push --all/--mirror includes protected branches and is not allowed"
	}

	nonFlagArgs := findNonFlagArgs(args, gitCommandArgsStartIndex, pushFlagsWithValues)

	if containsAny(args, "--delete", "-d") {
		for _, arg := range nonFlagArgs {
			if isProtectedBranch(arg) {
				return true, "Deleting main/master branch is not allowed"
			}
		}
	}

	for _, arg := range nonFlagArgs {
		if isDeleteRefspec(arg) {
			if isProtectedBranch(refspecTarget(arg)) {
				return true, "Deleting main/master branch is not allowed"
			}
			continue
		}
		if strings.Contains(arg, ":") || isForceRefspec(arg) {
			if !isProtectedBranch(refspecTarget(arg)) {
				continue
			}
			if isForceRefspec(arg) {
				return true, "Force push to main/master branch is not allowed"
			}
			return true, "Direct push to main/master branch is not allowed"
		}
	}

	if len(nonFlagArgs) > 0 && isProtectedBranch(nonFlagArgs[len(nonFlagArgs)-1]) {
		return true, "Direct push to main/master branch is not allowed"
	}

	// "git push", "git push origin" and "git push origin HEAD" push the current branch.
	implicit := len(nonFlagArgs) < 2 || nonFlagArgs[len(nonFlagArgs)-1] == "HEAD"
	if implicit && g.branches != nil {
		branch, err := g.branches.CurrentBranch(dir)
		if err != nil {
			return false, ""
		}
		if isProtectedBranch(branch) {
			return true, "Direct push to main/master branch is not allowed"
		}
	}

	return false, ""
}

// isProtectedBranch checks if a branch name is main or master.
func isProtectedBranch(branch string) bool {
	branch = strings.TrimPrefix(strings.TrimSpace(branch), "refs/heads/")
	return branch == "main" || branch == "master"
}

func isDeleteRefspec(arg string) bool {
	return len(arg) > 1 && arg[0] == ':'
}

func isForceRefspec(arg string) bool {
	return strings.HasPrefix(arg, "+")
}

// refspecTarget returns the destination of [+]<src>[:<dst>].
func refspecTarget(arg string) string {
	arg = strings.TrimPrefix(arg, "+")
	if i := strings.LastIndex(arg, ":"); i >= 0 {
		arg = arg[i+1:]
	}
	return strings.TrimPrefix(arg, "refs/heads/")
}

func containsAny(args []string, flags ...string) bool {
	for _, arg := range args {
		for _, flag := range flags {
			if arg == flag {
				return true
			}
		}
	}
	return false
}

// findNonFlagArgs filters out flags and their values from an argument list.
// It returns only the non-flag arguments starting from startIndex.
// flagsWithValues is a list of flags that take a value (e.g., "--repo", "--exec").
func findNonFlagArgs(args []string, startIndex int, flagsWithValues []string) []string {
	var nonFlagArgs []string
	skipNext := false

	for i := startIndex; i < len(args); i++ {
		arg := args[i]

		if skipNext {
			skipNext = false
			continue
		}

		if strings.HasPrefix(arg, "-") {
			for _, flag := range flagsWithValues {
				if arg == flag {
					skipNext = true
					break
				}
			}
			continue
		}

		nonFlagArgs = append(nonFlagArgs, arg)
	}

	return nonFlagArgs
}
