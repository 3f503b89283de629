package hooks

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEvent(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    *Event
		wantErr bool
	}{
		{
			name:  "pre tool use",
			input: `{"hook_event_name": "PreToolUse", "tool_name": "Bash", "tool_input": {"command": "ls -la"}, "cwd": "/repo", "session_id": "s1"}`,
			want:  &Event{HookEventName: EventPreToolUse, ToolName: "Bash", Cwd: "/repo", SessionID: "s1"},
		},
		{
			name:  "stop ignores stop_hook_active",
			input: `{"hook_event_name": "Stop", "transcript_path": "/t.jsonl", "stop_hook_active": true}`,
			want:  &Event{HookEventName: EventStop, TranscriptPath: "/t.jsonl"},
		},
		{
			name:  "null tool_input",
			input: `{"hook_event_name": "PreToolUse", "tool_name": "Read", "tool_input": null}`,
			want:  &Event{HookEventName: EventPreToolUse, ToolName: "Read"},
		},
		{
			name:    "missing hook_event_name",
			input:   `{"tool_name": "Bash"}`,
			wantErr: true,
		},
		{
			name:    "invalid JSON",
			input:   `{invalid json}`,
			wantErr: true,
		},
		{
			name:    "tool_input not an object",
			input:   `{"hook_event_name": "PreToolUse", "tool_input": "not an object"}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseEvent(strings.NewReader(tt.input))

			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want.HookEventName, got.HookEventName)
			assert.Equal(t, tt.want.ToolName, got.ToolName)
			assert.Equal(t, tt.want.Cwd, got.Cwd)
			assert.Equal(t, tt.want.SessionID, got.SessionID)
			assert.Equal(t, tt.want.TranscriptPath, got.TranscriptPath)
		})
	}
}

func TestEvent_GetStringArg(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		argName   string
		wantValue string
		wantOk    bool
	}{
		{
			name:      "existing string argument",
			input:     `{"hook_event_name": "PreToolUse", "tool_name": "Bash", "tool_input": {"command": "ls -la"}}`,
			argName:   "command",
			wantValue: "ls -la",
			wantOk:    true,
		},
		{
			name:    "non-existent argument",
			input:   `{"hook_event_name": "PreToolUse", "tool_name": "Bash", "tool_input": {"command": "ls -la"}}`,
			argName: "nonexistent",
		},
		{
			name:    "non-string argument",
			input:   `{"hook_event_name": "PreToolUse", "tool_name": "Test", "tool_input": {"count": 123}}`,
			argName: "count",
		},
		{
			name:    "no tool_input",
			input:   `{"hook_event_name": "PreToolUse", "tool_name": "Test"}`,
			argName: "command",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			event, err := ParseEvent(strings.NewReader(tt.input))
			require.NoError(t, err)

			gotValue, gotOk := event.GetStringArg(tt.argName)
			assert.Equal(t, tt.wantValue, gotValue)
			assert.Equal(t, tt.wantOk, gotOk)
		})
	}
}

func TestEvent_Command(t *testing.T) {
	bash, err := ParseEvent(strings.NewReader(`{"hook_event_name": "PreToolUse", "tool_name": "Bash", "tool_input": {"command": "git status"}}`))
	require.NoError(t, err)
	command, ok := bash.Command()
	assert.True(t, ok)
	assert.Equal(t, "git status", command)

	other, err := ParseEvent(strings.NewReader(`{"hook_event_name": "PreToolUse", "tool_name": "Task", "tool_input": {"command": "git status"}}`))
	require.NoError(t, err)
	_, ok = other.Command()
	assert.False(t, ok)
}

func TestEvent_SerializedInput(t *testing.T) {
	assert.Equal(t, "{}", (&Event{}).SerializedInput())
	assert.Equal(t, `{"a":1}`, (&Event{ToolInput: []byte(`{"a":1}`)}).SerializedInput())
}
