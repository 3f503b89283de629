// Package llm provides the structured-output model client used for arbitration.
package llm

//go:generate mockgen -source=client.go -destination=mock_client.go -package=llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
)

var (
	// ErrNoStructuredOutput is returned when the model response carries no
	// output matching the requested schema.
	ErrNoStructuredOutput = errors.New("structured output not found in response")
	// ErrEmptyResponse is returned when a response has no content to decode.
	ErrEmptyResponse = errors.New("empty model response")
)

// Client performs a single schema-constrained model call.
// A nil Client means no model is configured.
type Client interface {
	// Call sends the prompts and returns the JSON object produced for schema.
	Call(ctx context.Context, systemPrompt, userPrompt string, schema Schema) (*Response, error)
}

// Usage reports token accounting for one call.
type Usage struct {
	InputTokens  int64
	OutputTokens int64
}

// Response is the decoded result of a model call.
type Response struct {
	// Content is the JSON object matching the requested schema.
	Content json.RawMessage
	Model   string
	Usage   *Usage
}

// Decode unmarshals the response content into T.
func Decode[T any](resp *Response) (*T, error) {
	if resp == nil || len(resp.Content) == 0 {
		return nil, ErrEmptyResponse
	}

	var out T
	if err := json.Unmarshal(resp.Content, &out); err != nil {
		return nil, fmt.Errorf("failed to decode model output: %w", err)
	}
	return &out, nil
}
