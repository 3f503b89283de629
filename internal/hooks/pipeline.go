package hooks

import "context"

// Pipeline decides one kind of hook event.
type Pipeline interface {
	Handle(ctx context.Context, event *Event) (Decision, error)
}

// PipelineFunc adapts a function to Pipeline.
type PipelineFunc func(ctx context.Context, event *Event) (Decision, error)

// Handle calls f(ctx, event).
func (f PipelineFunc) Handle(ctx context.Context, event *Event) (Decision, error) {
	return f(ctx, event)
}
