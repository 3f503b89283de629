package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMessagesServer(t *testing.T, status int, body string, captured *map[string]any) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if captured != nil {
			data, err := io.ReadAll(r.Body)
			require.NoError(t, err)
			require.NoError(t, json.Unmarshal(data, captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestAnthropicClient_Call(t *testing.T) {
	schema := SchemaFor[testVerdict]("verdict", "")

	t.Run("returns tool input as content", func(t *testing.T) {
		var request map[string]any
		server := newMessagesServer(t, http.StatusOK, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"stop_reason": "tool_use",
			"content": [
				{"type": "tool_use", "id": "toolu_1", "name": "verdict", "input": {"decision": "allow", "reason": "ok"}}
			],
			"usage": {"input_tokens": 12, "output_tokens": 7}
		}`, &request)

		client := NewAnthropicClient(AnthropicConfig{
			APIKey:  "test-key",
			BaseURL: server.URL + "/",
			Model:   "claude-test",
		})

		resp, err := client.Call(context.Background(), "system", "user", schema)
		require.NoError(t, err)
		assert.Equal(t, "claude-test", resp.Model)
		assert.Equal(t, int64(12), resp.Usage.InputTokens)
		assert.Equal(t, int64(7), resp.Usage.OutputTokens)

		got, err := Decode[testVerdict](resp)
		require.NoError(t, err)
		assert.Equal(t, "allow", got.Decision)

		toolChoice, ok := request["tool_choice"].(map[string]any)
		require.True(t, ok)
		assert.Equal(t, "tool", toolChoice["type"])
		assert.Equal(t, "verdict", toolChoice["name"])
	})

	t.Run("missing tool output", func(t *testing.T) {
		server := newMessagesServer(t, http.StatusOK, `{
			"id": "msg_1",
			"type": "message",
			"role": "assistant",
			"model": "claude-test",
			"stop_reason": "end_turn",
			"content": [{"type": "text", "text": "hello"}],
			"usage": {"input_tokens": 1, "output_tokens": 1}
		}`, nil)

		client := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL + "/"})

		_, err := client.Call(context.Background(), "system", "user", schema)
		assert.ErrorIs(t, err, ErrNoStructuredOutput)
	})

	t.Run("server error is returned without retry", func(t *testing.T) {
		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"boom"}}`))
		}))
		t.Cleanup(server.Close)

		client := NewAnthropicClient(AnthropicConfig{APIKey: "test-key", BaseURL: server.URL + "/"})

		_, err := client.Call(context.Background(), "system", "user", schema)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "anthropic messages call failed")
		assert.Equal(t, 1, calls)
	})
}
