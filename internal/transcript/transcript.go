// Package transcript reads agent conversation transcripts (JSON Lines) and
// normalizes the wire shapes agents write into a flat list of messages.
package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"github.com/tidwall/gjson"
)

// Role identifies the speaker of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

const (
	maxLineSize = 10 * 1024 * 1024

	recentMessages   = 10
	recentSnippetLen = 500
	recentMaxChars   = 2000
)

var mentionPattern = regexp.MustCompile(`@([\w./-]+)`)

// Message is one normalized transcript entry.
type Message struct {
	Role Role
	Text string
	// ToolUses holds the raw JSON input of every tool call in the entry.
	ToolUses []string
}

// Transcript is the ordered list of messages recovered from a transcript file.
type Transcript struct {
	Messages []Message
	// Skipped counts lines that were not valid JSON.
	Skipped int
}

// Load reads and parses the transcript at path.
func Load(path string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	return Parse(f)
}

// Parse reads a JSONL transcript. Malformed lines and entries of unknown
// shape are skipped; only read failures are returned as errors.
func Parse(r io.Reader) (*Transcript, error) {
	t := &Transcript{}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 1024*1024)
	scanner.Buffer(buf, maxLineSize)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !gjson.Valid(line) {
			t.Skipped++
			continue
		}

		msg, ok := normalize(gjson.Parse(line))
		if !ok {
			continue
		}
		t.Messages = append(t.Messages, msg)
	}
	if err := scanner.Err(); err != nil {
		return t, fmt.Errorf("failed to read transcript: %w", err)
	}

	return t, nil
}

// IsEmpty reports whether no messages were recovered.
func (t *Transcript) IsEmpty() bool {
	return t == nil || len(t.Messages) == 0
}

// UserTexts returns the non-empty text of every user message in order.
func (t *Transcript) UserTexts() []string {
	if t == nil {
		return nil
	}
	var texts []string
	for _, m := range t.Messages {
		if m.Role == RoleUser && strings.TrimSpace(m.Text) != "" {
			texts = append(texts, m.Text)
		}
	}
	return texts
}

// FirstUserText returns the first non-empty user message, or "".
func (t *Transcript) FirstUserText() string {
	texts := t.UserTexts()
	if len(texts) == 0 {
		return ""
	}
	return texts[0]
}

// LastUserText returns the latest non-empty user message, or "".
func (t *Transcript) LastUserText() string {
	texts := t.UserTexts()
	if len(texts) == 0 {
		return ""
	}
	return texts[len(texts)-1]
}

// LastAssistantText returns the text of the latest assistant message. ok is
// false when there is no assistant message or the latest one carries only
// tool calls.
func (t *Transcript) LastAssistantText() (string, bool) {
	if t == nil {
		return "", false
	}
	for i := len(t.Messages) - 1; i >= 0; i-- {
		m := t.Messages[i]
		if m.Role != RoleAssistant {
			continue
		}
		if strings.TrimSpace(m.Text) == "" {
			return "", false
		}
		return m.Text, true
	}
	return "", false
}

// UserMentions returns every @path referenced in user messages,
// deduplicated in first-seen order.
func (t *Transcript) UserMentions() []string {
	var mentions []string
	seen := map[string]bool{}
	for _, text := range t.UserTexts() {
		for _, m := range Mentions(text) {
			if seen[m] {
				continue
			}
			seen[m] = true
			mentions = append(mentions, m)
		}
	}
	return mentions
}

// RecentContext renders the last few messages as "role: text" lines, oldest
// first, each truncated to 500 characters and 2000 characters in total.
func (t *Transcript) RecentContext() string {
	if t.IsEmpty() {
		return ""
	}

	start := max(len(t.Messages)-recentMessages, 0)
	window := t.Messages[start:]

	var parts []string
	total := 0
	for i := len(window) - 1; i >= 0; i-- {
		m := window[i]
		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		snippet := fmt.Sprintf("%s: %s", m.Role, truncate(m.Text, recentSnippetLen))
		size := len([]rune(snippet))
		if total+size > recentMaxChars {
			break
		}
		parts = append(parts, snippet)
		total += size
	}

	for i, j := 0, len(parts)-1; i < j; i, j = i+1, j-1 {
		parts[i], parts[j] = parts[j], parts[i]
	}
	return strings.Join(parts, "\n")
}

// SearchText joins all message text and tool-use inputs into one document.
func (t *Transcript) SearchText() string {
	if t == nil {
		return ""
	}
	var sb strings.Builder
	for _, m := range t.Messages {
		sb.WriteString(m.Text)
		sb.WriteByte('\n')
		for _, use := range m.ToolUses {
			sb.WriteString(use)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// Mentions extracts @path references from text in order of appearance.
func Mentions(text string) []string {
	matches := mentionPattern.FindAllStringSubmatch(text, -1)
	out := make([]string, 0, len(matches))
	for _, m := range matches {
		out = append(out, m[1])
	}
	return out
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
