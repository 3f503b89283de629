package telemetry

import (
	"context"
	"time"

	"github.com/cognaterra/better-drinking-bird/internal/llm"
)

type instrumentedClient struct {
	next     llm.Client
	recorder Recorder
	stage    string
	now      func() time.Time
}

// InstrumentClient wraps client so every call is recorded under stage.
// A nil client stays nil so callers can still detect "no LLM configured".
func InstrumentClient(client llm.Client, recorder Recorder, stage string) llm.Client {
	if client == nil {
		return nil
	}
	return &instrumentedClient{
		next:     client,
		recorder: recorder,
		stage:    stage,
		now:      time.Now,
	}
}

func (c *instrumentedClient) Call(ctx context.Context, systemPrompt, userPrompt string, schema llm.Schema) (*llm.Response, error) {
	start := c.now()
	resp, err := c.next.Call(ctx, systemPrompt, userPrompt, schema)

	call := LLMCall{
		Stage:    c.stage,
		Duration: c.now().Sub(start),
		Err:      err,
	}
	if resp != nil {
		call.Model = resp.Model
		if resp.Usage != nil {
			call.InputTokens = resp.Usage.InputTokens
			call.OutputTokens = resp.Usage.OutputTokens
		}
	}
	c.recorder.RecordLLMCall(ctx, call)

	return resp, err
}
