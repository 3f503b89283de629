package hooks

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"github.com/cognaterra/better-drinking-bird/internal/config"
	"github.com/cognaterra/better-drinking-bird/internal/gitctx"
	"github.com/cognaterra/better-drinking-bird/internal/transcript"
)

const maxRefs = 20

// defaultContextFiles are checked in cwd before any configured patterns.
var defaultContextFiles = []string{"CLAUDE.md", "AGENTS.md", "README.md"}

// PreCompactPipeline carries critical context across a compaction.
type PreCompactPipeline struct {
	cfg      config.PreCompactConfig
	resolver *gitctx.Resolver
	logger   logrus.FieldLogger
}

// NewPreCompactPipeline creates a PreCompactPipeline.
func NewPreCompactPipeline(cfg config.PreCompactConfig, logger logrus.FieldLogger) *PreCompactPipeline {
	return &PreCompactPipeline{
		cfg:      cfg,
		resolver: gitctx.NewResolver(logger),
		logger:   logger,
	}
}

// Handle builds the context reminder: git identity, context files, then user refs.
func (p *PreCompactPipeline) Handle(_ context.Context, event *Event) (Decision, error) {
	t := p.loadTranscript(event.TranscriptPath)

	var parts []string

	if p.cfg.InjectGitContext {
		if line := p.gitIdentity(event.Cwd, t); line != "" {
			parts = append(parts, line)
		}
	}

	files := p.contextFiles(event.Cwd)
	if len(files) > 0 {
		parts = append(parts, p.renderFiles(event.Cwd, files)...)
	}

	var refs []string
	if t != nil {
		refs = t.UserMentions()
	}
	if len(refs) > maxRefs {
		refs = refs[:maxRefs]
	}
	if len(refs) > 0 {
		parts = append(parts, "Refs: "+joinMentions(refs))
	}

	if len(parts) == 0 {
		return Allow("No context to preserve"), nil
	}

	p.logger.WithFields(logrus.Fields{
		"files": len(files),
		"refs":  len(refs),
	}).Info("context preserved for compaction")
	return AllowWithContext("Context preserved", strings.Join(parts, "\n")), nil
}

func (p *PreCompactPipeline) loadTranscript(path string) *transcript.Transcript {
	if path == "" {
		return nil
	}
	t, err := transcript.Load(path)
	if err != nil {
		p.logger.WithError(err).Debug("transcript unavailable for compaction")
		return nil
	}
	return t
}

func (p *PreCompactPipeline) gitIdentity(cwd string, t *transcript.Transcript) string {
	var text string
	if t != nil {
		text = t.SearchText()
	}

	ctx, err := p.resolver.Resolve(cwd, text)
	if err != nil {
		if !errors.Is(err, gitctx.ErrNotInRepo) {
			p.logger.WithError(err).Warn("failed to resolve git context")
		}
		return ""
	}
	if ctx.IsZero() {
		return ""
	}
	return ctx.String()
}

// contextFiles returns the default files present in cwd followed by regular
// files matching the configured patterns, without duplicates.
func (p *PreCompactPipeline) contextFiles(cwd string) []string {
	if cwd == "" {
		return nil
	}

	seen := make(map[string]bool)
	var files []string
	add := func(name string) {
		if seen[name] || !isRegularFile(filepath.Join(cwd, name)) {
			return
		}
		seen[name] = true
		files = append(files, name)
	}

	for _, name := range defaultContextFiles {
		add(name)
	}

	fsys := os.DirFS(cwd)
	for _, pattern := range p.cfg.ContextPatterns {
		matches, err := doublestar.Glob(fsys, pattern, doublestar.WithFilesOnly())
		if err != nil {
			p.logger.WithError(err).WithField("pattern", pattern).Warn("invalid context pattern")
			continue
		}
		for _, match := range matches {
			add(filepath.FromSlash(match))
		}
	}
	return files
}

// renderFiles lists unreadable or unquoted files by name and quotes the rest.
func (p *PreCompactPipeline) renderFiles(cwd string, files []string) []string {
	var unquoted []string
	var quoted []string

	for _, name := range files {
		if !p.cfg.QuoteContextFiles {
			unquoted = append(unquoted, name)
			continue
		}
		data, err := os.ReadFile(filepath.Join(cwd, name))
		if err != nil {
			p.logger.WithError(err).WithField("file", name).Debug("cannot quote context file")
			unquoted = append(unquoted, name)
			continue
		}
		quoted = append(quoted, "\n--- "+name+" ---\n"+truncateContent(string(data)))
	}

	var parts []string
	if len(unquoted) > 0 {
		parts = append(parts, "Context: "+strings.Join(unquoted, ", "))
	}
	return append(parts, quoted...)
}
