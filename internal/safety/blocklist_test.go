package safety

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBlocklist_Check(t *testing.T) {
	bl, err := NewBlocklist([]BlocklistEntry{
		{Pattern: `secret`, Reason: "No secrets"},
		{Pattern: `\.env`, Reason: "No env files", Tools: []string{"Read"}},
		{Pattern: `DROP\s+TABLE`, Reason: "No dropping tables", Tools: []string{"Bash", "Write"}},
	})
	require.NoError(t, err)
	assert.Equal(t, 3, bl.Len())

	tests := []struct {
		name        string
		toolName    string
		input       string
		wantBlocked bool
		wantReason  string
	}{
		{name: "wildcard entry any tool", toolName: "Write", input: `{"file_path":"secret.txt"}`, wantBlocked: true, wantReason: "No secrets"},
		{name: "case insensitive", toolName: "Bash", input: `{"command":"cat SECRET"}`, wantBlocked: true, wantReason: "No secrets"},
		{name: "scoped entry matching tool", toolName: "Read", input: `{"file_path":".env"}`, wantBlocked: true, wantReason: "No env files"},
		{name: "scoped entry other tool", toolName: "Bash", input: `{"command":"ls .env"}`, wantBlocked: false},
		{name: "multi tool scope", toolName: "Bash", input: `{"command":"psql -c 'drop table users'"}`, wantBlocked: true, wantReason: "No dropping tables"},
		{name: "no match", toolName: "Read", input: `{"file_path":"main.go"}`, wantBlocked: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			blocked, reason := bl.Check(tt.toolName, tt.input)
			assert.Equal(t, tt.wantBlocked, blocked)
			assert.Equal(t, tt.wantReason, reason)
		})
	}
}

func TestNewBlocklist_InvalidPattern(t *testing.T) {
	bl, err := NewBlocklist([]BlocklistEntry{
		{Pattern: `(unclosed`, Reason: "bad"},
		{Pattern: `ok`, Reason: "good"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "(unclosed")
	require.NotNil(t, bl)
	assert.Equal(t, 1, bl.Len())

	blocked, reason := bl.Check("Read", `{"x":"ok"}`)
	assert.True(t, blocked)
	assert.Equal(t, "good", reason)
}

func TestNewBlocklist_Empty(t *testing.T) {
	bl, err := NewBlocklist(nil)
	require.NoError(t, err)

	blocked, reason := bl.Check("Bash", `{"command":"anything"}`)
	assert.False(t, blocked)
	assert.Empty(t, reason)
}
