package hooks

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func testLogger() logrus.FieldLogger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func userLine(text string) string {
	return `{"type":"user","message":{"role":"user","content":` + quote(text) + `}}`
}

func assistantLine(text string) string {
	return `{"type":"assistant","message":{"role":"assistant","content":[{"type":"text","text":` + quote(text) + `}]}}`
}

func toolUseLine(input string) string {
	return `{"type":"assistant","message":{"role":"assistant","content":[{"type":"tool_use","name":"Bash","input":` + input + `}]}}`
}

func quote(s string) string {
	data, _ := json.Marshal(s)
	return string(data)
}

func writeTranscript(t *testing.T, dir string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, "transcript.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o600))
	return path
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
}

func bashEvent(t *testing.T, command, cwd string) *Event {
	t.Helper()
	return toolEvent(t, EventPreToolUse, "Bash", map[string]any{"command": command}, cwd)
}

func toolEvent(t *testing.T, eventName, toolName string, input map[string]any, cwd string) *Event {
	t.Helper()
	payload := map[string]any{
		"hook_event_name": eventName,
		"tool_name":       toolName,
		"tool_input":      input,
		"cwd":             cwd,
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)
	event, err := ParseEvent(strings.NewReader(string(data)))
	require.NoError(t, err)
	return event
}
