package hooks

import (
	"encoding/json"
	"fmt"
	"io"
)

// Hook event names sent by the agent.
const (
	EventStop               = "Stop"
	EventPreToolUse         = "PreToolUse"
	EventPostToolUseFailure = "PostToolUseFailure"
	EventPreCompact         = "PreCompact"
)

// ShellTool is the tool whose "command" field is a shell command line.
const ShellTool = "Bash"

// Event represents one hook invocation from the agent.
type Event struct {
	HookEventName  string          `json:"hook_event_name"`
	SessionID      string          `json:"session_id"`
	TranscriptPath string          `json:"transcript_path"`
	Cwd            string          `json:"cwd"`
	ToolName       string          `json:"tool_name"`
	ToolInput      json.RawMessage `json:"tool_input"`
	ToolResponse   json.RawMessage `json:"tool_response"`
	// Error is the failure text some agents send beside tool_response.
	Error  string `json:"error"`
	parsed map[string]any
}

// ParseEvent reads and parses one hook event from a reader.
func ParseEvent(reader io.Reader) (*Event, error) {
	var event Event
	if err := json.NewDecoder(reader).Decode(&event); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}

	if event.HookEventName == "" {
		return nil, fmt.Errorf("hook_event_name is required")
	}

	if len(event.ToolInput) > 0 {
		var parsed map[string]any
		if err := json.Unmarshal(event.ToolInput, &parsed); err != nil {
			return nil, fmt.Errorf("failed to parse tool_input: %w", err)
		}
		event.parsed = parsed
	}

	return &event, nil
}

// Fields returns the decoded tool input, or nil when there is none.
func (e *Event) Fields() map[string]any {
	return e.parsed
}

// GetStringArg retrieves a string argument from the tool input.
// Returns the value and true if found, empty string and false if not found.
func (e *Event) GetStringArg(name string) (string, bool) {
	if e.parsed == nil {
		return "", false
	}

	value, ok := e.parsed[name]
	if !ok {
		return "", false
	}

	strValue, ok := value.(string)
	if !ok {
		return "", false
	}

	return strValue, true
}

// Command returns the shell command of a ShellTool event.
func (e *Event) Command() (string, bool) {
	if e.ToolName != ShellTool {
		return "", false
	}
	return e.GetStringArg("command")
}

// SerializedInput returns the tool input as JSON text.
func (e *Event) SerializedInput() string {
	if len(e.ToolInput) == 0 {
		return "{}"
	}
	return string(e.ToolInput)
}
