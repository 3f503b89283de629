package transcript

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTranscript(t *testing.T, lines ...string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "transcript.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func TestParse_Variants(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []Message
	}{
		{
			name: "type tagged string content",
			line: `{"type":"user","message":{"role":"user","content":"fix the bug"}}`,
			want: []Message{{Role: RoleUser, Text: "fix the bug"}},
		},
		{
			name: "type tagged block content",
			line: `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":"one"},"two",{"type":"thinking","thinking":"x"}]}}`,
			want: []Message{{Role: RoleAssistant, Text: "one\ntwo"}},
		},
		{
			name: "type tagged tool use",
			line: `{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Bash","input":{"command":"ls wt-1"}}]}}`,
			want: []Message{{Role: RoleAssistant, ToolUses: []string{`{"command":"ls wt-1"}`}}},
		},
		{
			name: "type tagged message string",
			line: `{"type":"assistant","message":"done"}`,
			want: []Message{{Role: RoleAssistant, Text: "done"}},
		},
		{
			name: "type tagged single block",
			line: `{"type":"assistant","message":{"content":{"type":"text","text":"single"}}}`,
			want: []Message{{Role: RoleAssistant, Text: "single"}},
		},
		{
			name: "role tagged",
			line: `{"role":"assistant","content":[{"type":"text","text":"hello"}]}`,
			want: []Message{{Role: RoleAssistant, Text: "hello"}},
		},
		{
			name: "legacy human string",
			line: `{"type":"human","message":"legacy task"}`,
			want: []Message{{Role: RoleUser, Text: "legacy task"}},
		},
		{
			name: "legacy human object",
			line: `{"type":"human","message":{"content":"legacy object"}}`,
			want: []Message{{Role: RoleUser, Text: "legacy object"}},
		},
		{
			name: "unknown shape skipped",
			line: `{"type":"summary","summary":"x"}`,
			want: nil,
		},
		{
			name: "system role skipped",
			line: `{"role":"system","content":"x"}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(strings.NewReader(tt.line))
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Messages)
		})
	}
}

func TestParse_SkipsMalformedLines(t *testing.T) {
	input := strings.Join([]string{
		`{"type":"user","message":{"content":"first"}}`,
		`{not json`,
		``,
		`   `,
		`{"type":"assistant","message":{"content":"second"}}`,
	}, "\n")

	got, err := Parse(strings.NewReader(input))
	require.NoError(t, err)
	assert.Equal(t, 1, got.Skipped)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "first", got.Messages[0].Text)
	assert.Equal(t, "second", got.Messages[1].Text)
}

func TestLoad(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "missing.jsonl"))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to open transcript")
	})

	t.Run("reads file", func(t *testing.T) {
		path := writeTranscript(t,
			`{"type":"user","message":{"content":"task @docs/plan.md"}}`,
			`{"type":"assistant","message":{"content":[{"type":"text","text":"working"}]}}`,
		)
		got, err := Load(path)
		require.NoError(t, err)
		assert.Len(t, got.Messages, 2)
	})
}

func TestTranscript_Accessors(t *testing.T) {
	tr := &Transcript{Messages: []Message{
		{Role: RoleUser, Text: "build feature @docs/plan.md"},
		{Role: RoleAssistant, Text: "starting"},
		{Role: RoleUser, Text: ""},
		{Role: RoleUser, Text: "also see @docs/plan.md and @src/api.go"},
		{Role: RoleAssistant, ToolUses: []string{`{"command":"go test"}`}},
		{Role: RoleAssistant, Text: "all done"},
	}}

	assert.Equal(t, "build feature @docs/plan.md", tr.FirstUserText())
	assert.Equal(t, "also see @docs/plan.md and @src/api.go", tr.LastUserText())
	assert.Len(t, tr.UserTexts(), 2)

	text, ok := tr.LastAssistantText()
	assert.True(t, ok)
	assert.Equal(t, "all done", text)

	assert.Equal(t, []string{"docs/plan.md", "src/api.go"}, tr.UserMentions())
	assert.Contains(t, tr.SearchText(), `{"command":"go test"}`)
	assert.False(t, tr.IsEmpty())
}

func TestTranscript_Empty(t *testing.T) {
	var tr *Transcript
	assert.True(t, tr.IsEmpty())
	assert.Empty(t, tr.FirstUserText())
	assert.Empty(t, tr.LastUserText())
	_, ok := tr.LastAssistantText()
	assert.False(t, ok)
	assert.Empty(t, tr.RecentContext())
	assert.Empty(t, tr.SearchText())

	onlyUser := &Transcript{Messages: []Message{{Role: RoleUser, Text: "hi"}}}
	_, ok = onlyUser.LastAssistantText()
	assert.False(t, ok)

	trailingToolCall := &Transcript{Messages: []Message{
		{Role: RoleAssistant, Text: "All done, every test passes."},
		{Role: RoleUser, Text: "there is still a failing test"},
		{Role: RoleAssistant, ToolUses: []string{`{"command":"go test ./..."}`}},
	}}
	_, ok = trailingToolCall.LastAssistantText()
	assert.False(t, ok)
}

func TestTranscript_RecentContext(t *testing.T) {
	t.Run("chronological order", func(t *testing.T) {
		tr := &Transcript{Messages: []Message{
			{Role: RoleUser, Text: "write a commit message"},
			{Role: RoleAssistant, Text: "checking history"},
		}}
		assert.Equal(t, "user: write a commit message\nassistant: checking history", tr.RecentContext())
	})

	t.Run("only last ten messages", func(t *testing.T) {
		tr := &Transcript{}
		for i := 0; i < 15; i++ {
			tr.Messages = append(tr.Messages, Message{Role: RoleUser, Text: string(rune('a' + i))})
		}
		lines := strings.Split(tr.RecentContext(), "\n")
		require.Len(t, lines, 10)
		assert.Equal(t, "user: f", lines[0])
		assert.Equal(t, "user: o", lines[9])
	})

	t.Run("snippet truncated", func(t *testing.T) {
		tr := &Transcript{Messages: []Message{{Role: RoleAssistant, Text: strings.Repeat("x", 800)}}}
		assert.Equal(t, "assistant: "+strings.Repeat("x", 500), tr.RecentContext())
	})

	t.Run("total capped keeping newest", func(t *testing.T) {
		tr := &Transcript{}
		for i := 0; i < 6; i++ {
			tr.Messages = append(tr.Messages, Message{Role: RoleUser, Text: strings.Repeat(string(rune('a'+i)), 500)})
		}
		lines := strings.Split(tr.RecentContext(), "\n")
		require.Len(t, lines, 3)
		assert.True(t, strings.HasPrefix(lines[0], "user: d"))
		assert.True(t, strings.HasPrefix(lines[2], "user: f"))
	})
}

func TestMentions(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "none", text: "no refs here", want: []string{}},
		{name: "single", text: "read @docs/plan.md", want: []string{"docs/plan.md"}},
		{name: "several with duplicates", text: "@a.md then @b/c.go then @a.md", want: []string{"a.md", "b/c.go", "a.md"}},
		{name: "stops at punctuation", text: "see (@notes.txt), thanks", want: []string{"notes.txt"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Mentions(tt.text))
		})
	}
}
