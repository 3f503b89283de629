package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"
)

const (
	defaultModel     = "claude-haiku-4-5"
	defaultMaxTokens = 1024
	defaultTimeout   = 30 * time.Second
)

// AnthropicConfig configures the Anthropic Messages API client.
type AnthropicConfig struct {
	APIKey    string
	BaseURL   string
	Model     string
	MaxTokens int64
	Timeout   time.Duration
}

type anthropicClient struct {
	client    anthropic.Client
	model     anthropic.Model
	maxTokens int64
	timeout   time.Duration
}

// NewAnthropicClient creates a Client backed by the Anthropic Messages API.
// Calls are never retried; a failed call is reported to the caller as is.
func NewAnthropicClient(cfg AnthropicConfig) Client {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}

	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &anthropicClient{
		client:    anthropic.NewClient(opts...),
		model:     anthropic.Model(model),
		maxTokens: maxTokens,
		timeout:   timeout,
	}
}

// Call forces the model to answer through a hidden tool whose input schema is
// the requested output schema, then returns that tool input.
func (c *anthropicClient) Call(ctx context.Context, systemPrompt, userPrompt string, schema Schema) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    []anthropic.TextBlockParam{{Text: systemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	injectOutputTool(&params, schema)

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic messages call failed: %w", err)
	}

	content, err := extractStructuredOutput(msg, schema.Name)
	if err != nil {
		return nil, err
	}

	return &Response{
		Content: content,
		Model:   string(msg.Model),
		Usage: &Usage{
			InputTokens:  msg.Usage.InputTokens,
			OutputTokens: msg.Usage.OutputTokens,
		},
	}, nil
}

func injectOutputTool(params *anthropic.MessageNewParams, schema Schema) {
	description := schema.Description
	if description == "" {
		description = "Return structured output matching the schema"
	}

	params.Tools = append(params.Tools, anthropic.ToolUnionParam{
		OfTool: &anthropic.ToolParam{
			Name:        schema.Name,
			Description: param.NewOpt(description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema.Properties,
				Required:   schema.Required,
			},
		},
	})
	params.ToolChoice = anthropic.ToolChoiceParamOfTool(schema.Name)
}

func extractStructuredOutput(msg *anthropic.Message, toolName string) (json.RawMessage, error) {
	for _, block := range msg.Content {
		if block.Type != "tool_use" || block.Name != toolName {
			continue
		}
		return json.RawMessage(block.Input), nil
	}
	return nil, fmt.Errorf("%w: tool %q", ErrNoStructuredOutput, toolName)
}
