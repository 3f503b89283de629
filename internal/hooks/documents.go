package hooks

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	maxQuoteLength  = 10000
	truncatedMarker = "\n... [truncated]"
)

// boilerplateDocs never count as referenced documentation.
var boilerplateDocs = map[string]bool{
	"CLAUDE.md": true,
	"AGENTS.md": true,
	"README.md": true,
}

type referencedFile struct {
	mention string
	content string
}

// resolveMention returns the filesystem path for an @mention relative to cwd.
func resolveMention(mention, cwd string) string {
	if filepath.IsAbs(mention) || cwd == "" {
		return mention
	}
	return filepath.Join(cwd, mention)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// existingMentions keeps the mentions that resolve to regular files.
func existingMentions(mentions []string, cwd string) []string {
	var out []string
	for _, mention := range mentions {
		if isRegularFile(resolveMention(mention, cwd)) {
			out = append(out, mention)
		}
	}
	return out
}

// readReferencedFiles reads the mentions that resolve to readable regular files.
func readReferencedFiles(mentions []string, cwd string) []referencedFile {
	var files []referencedFile
	for _, mention := range existingMentions(mentions, cwd) {
		data, err := os.ReadFile(resolveMention(mention, cwd))
		if err != nil {
			continue
		}
		files = append(files, referencedFile{mention: mention, content: string(data)})
	}
	return files
}

func isBoilerplate(mention string) bool {
	return boilerplateDocs[filepath.Base(mention)]
}

// documentMentions drops boilerplate files from mentions.
func documentMentions(mentions []string) []string {
	var out []string
	for _, mention := range mentions {
		if !isBoilerplate(mention) {
			out = append(out, mention)
		}
	}
	return out
}

// withReferences appends "Referenced documents: @a, @b" to message.
func withReferences(message string, mentions []string) string {
	docs := documentMentions(mentions)
	if len(docs) == 0 {
		return message
	}
	return message + "\n\nReferenced documents: " + joinMentions(docs)
}

func joinMentions(mentions []string) string {
	refs := make([]string, len(mentions))
	for i, mention := range mentions {
		refs[i] = "@" + mention
	}
	return strings.Join(refs, ", ")
}

// truncateContent caps s at maxQuoteLength runes.
func truncateContent(s string) string {
	runes := []rune(s)
	if len(runes) <= maxQuoteLength {
		return s
	}
	return string(runes[:maxQuoteLength]) + truncatedMarker
}
