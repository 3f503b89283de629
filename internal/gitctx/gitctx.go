// Package gitctx derives the branch and worktree an agent is working in by
// reading repository metadata directly from disk.
package gitctx

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"
)

var ErrNotInRepo = errors.New("not inside a git repository")

const headsPrefix = "ref: refs/heads/"

// Context is the git identity of a working directory. Empty fields mean unknown.
type Context struct {
	Branch       string
	WorktreePath string
}

// IsZero reports whether nothing was resolved.
func (c Context) IsZero() bool {
	return c.Branch == "" && c.WorktreePath == ""
}

// String renders the context as "Branch: x | Worktree: /p".
func (c Context) String() string {
	var parts []string
	if c.Branch != "" {
		parts = append(parts, "Branch: "+c.Branch)
	}
	if c.WorktreePath != "" {
		parts = append(parts, "Worktree: "+c.WorktreePath)
	}
	return strings.Join(parts, " | ")
}

// FindRoot walks up from dir to the first directory containing a .git entry.
func FindRoot(dir string) (string, error) {
	current, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("failed to get absolute path: %w", err)
	}
	for {
		if _, err := os.Lstat(filepath.Join(current, ".git")); err == nil {
			return current, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			return "", ErrNotInRepo
		}
		current = parent
	}
}

// Resolver resolves a Context for a working directory.
type Resolver struct {
	logger logrus.FieldLogger
}

// NewResolver creates a Resolver that logs diagnostics to logger.
func NewResolver(logger logrus.FieldLogger) *Resolver {
	return &Resolver{logger: logger}
}

// Resolve returns the git identity for cwd. transcriptText is searched for
// linked worktree names when cwd is a primary checkout; an ambiguous match
// yields an empty Context.
func (r *Resolver) Resolve(cwd, transcriptText string) (Context, error) {
	root, err := FindRoot(cwd)
	if err != nil {
		return Context{}, err
	}

	gitPath := filepath.Join(root, ".git")
	info, err := os.Stat(gitPath)
	if err != nil {
		return Context{}, fmt.Errorf("failed to stat %s: %w", gitPath, err)
	}

	if !info.IsDir() {
		return r.resolveLinked(root, gitPath), nil
	}

	if ctx, ok := r.matchWorktree(gitPath, transcriptText); ok {
		return ctx, nil
	}
	return Context{Branch: r.readBranch(filepath.Join(gitPath, "HEAD"))}, nil
}

// resolveLinked handles a linked worktree whose .git is a "gitdir: <path>" file.
func (r *Resolver) resolveLinked(root, gitFile string) Context {
	ctx := Context{WorktreePath: root}

	data, err := os.ReadFile(gitFile)
	if err != nil {
		r.logger.WithError(err).Debug("cannot read .git file")
		return ctx
	}
	line := strings.TrimSpace(string(data))
	gitdir, ok := strings.CutPrefix(line, "gitdir:")
	if !ok {
		r.logger.WithField("content", truncate(line, 80)).Debug("unexpected .git file content")
		return ctx
	}
	gitdir = strings.TrimSpace(gitdir)
	if !filepath.IsAbs(gitdir) {
		gitdir = filepath.Join(root, gitdir)
	}

	ctx.Branch = r.readBranch(filepath.Join(gitdir, "HEAD"))
	return ctx
}

type worktree struct {
	name    string
	head    string
	path    string
	mention *regexp.Regexp
}

// matchWorktree returns ok=false when there are no linked worktrees or none is
// named in the transcript, so the caller falls back to the primary HEAD.
func (r *Resolver) matchWorktree(gitDir, transcriptText string) (Context, bool) {
	candidates := r.listWorktrees(gitDir)
	if len(candidates) == 0 || transcriptText == "" {
		return Context{}, false
	}

	var matched []worktree
	for _, wt := range candidates {
		if wt.mention.MatchString(transcriptText) {
			matched = append(matched, wt)
		}
	}

	switch len(matched) {
	case 0:
		r.logger.Debug("no worktree name found in transcript")
		return Context{}, false
	case 1:
		wt := matched[0]
		r.logger.WithField("worktree", wt.name).Debug("matched worktree from transcript")
		return Context{Branch: r.readBranch(wt.head), WorktreePath: wt.path}, true
	default:
		names := make([]string, 0, len(matched))
		for _, wt := range matched {
			names = append(names, wt.name)
		}
		r.logger.WithField("worktrees", names).Debug("ambiguous worktree match")
		return Context{}, true
	}
}

func (r *Resolver) listWorktrees(gitDir string) []worktree {
	dir := filepath.Join(gitDir, "worktrees")
	entries, err := os.ReadDir(dir)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			r.logger.WithError(err).Debug("cannot read worktrees dir")
		}
		return nil
	}

	var out []worktree
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		entryDir := filepath.Join(dir, entry.Name())
		head := filepath.Join(entryDir, "HEAD")
		if _, err := os.Stat(head); err != nil {
			continue
		}
		out = append(out, worktree{
			name:    entry.Name(),
			head:    head,
			path:    r.worktreePath(entryDir),
			mention: namePattern(entry.Name()),
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].name < out[j].name })
	return out
}

// worktreePath reads <entry>/gitdir, which points at <worktree>/.git.
func (r *Resolver) worktreePath(entryDir string) string {
	data, err := os.ReadFile(filepath.Join(entryDir, "gitdir"))
	if err != nil {
		return ""
	}
	target := strings.TrimSpace(string(data))
	if target == "" {
		return ""
	}
	if !filepath.IsAbs(target) {
		target = filepath.Join(entryDir, target)
	}
	return filepath.Dir(filepath.Clean(target))
}

func (r *Resolver) readBranch(headFile string) string {
	data, err := os.ReadFile(headFile)
	if err != nil {
		r.logger.WithError(err).Debug("cannot read HEAD")
		return ""
	}
	return ParseHEAD(string(data))
}

// ParseHEAD converts the contents of a HEAD file into a branch label.
func ParseHEAD(content string) string {
	content = strings.TrimSpace(content)
	if branch, ok := strings.CutPrefix(content, headsPrefix); ok {
		return branch
	}
	if ref, ok := strings.CutPrefix(content, "ref:"); ok {
		return strings.TrimSpace(ref)
	}
	if content == "" {
		return ""
	}
	return fmt.Sprintf("(detached at %s)", truncate(content, 8))
}

// namePattern matches name as a whole path segment, so "wt-1" does not match
// inside "wt-10" or "my-wt-1". It is compiled once per listed worktree.
func namePattern(name string) *regexp.Regexp {
	return regexp.MustCompile(`(?:^|[^\w.-])` + regexp.QuoteMeta(name) + `(?:[^\w-]|$)`)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
