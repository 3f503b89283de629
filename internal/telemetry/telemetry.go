// Package telemetry exports decision and LLM-call metrics over OTLP.
package telemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/cognaterra/better-drinking-bird/internal/config"
)

const (
	serviceName    = "better-drinking-bird"
	serviceVersion = "0.1.0"
)

// Recorder receives supervisor measurements.
type Recorder interface {
	// RecordDecision counts one pipeline outcome.
	RecordDecision(ctx context.Context, event, decision string)
	// RecordLLMCall counts one model call with its token usage and latency.
	RecordLLMCall(ctx context.Context, call LLMCall)
	// Close flushes pending metrics.
	Close(ctx context.Context) error
}

// LLMCall describes one completed model call.
type LLMCall struct {
	Stage        string
	Model        string
	Duration     time.Duration
	InputTokens  int64
	OutputTokens int64
	Err          error
}

// NoOpRecorder drops every measurement.
type NoOpRecorder struct{}

// NewNoOpRecorder creates a recorder for when telemetry is disabled.
func NewNoOpRecorder() *NoOpRecorder {
	return &NoOpRecorder{}
}

func (NoOpRecorder) RecordDecision(context.Context, string, string) {}

func (NoOpRecorder) RecordLLMCall(context.Context, LLMCall) {}

func (NoOpRecorder) Close(context.Context) error { return nil }

// MeterRecorder records into OpenTelemetry instruments.
type MeterRecorder struct {
	provider     *sdkmetric.MeterProvider
	decisions    metric.Int64Counter
	llmCalls     metric.Int64Counter
	llmTokens    metric.Int64Counter
	llmDurations metric.Float64Histogram
}

// New returns a no-op recorder when telemetry is disabled, otherwise an
// OTLP/gRPC exporting recorder.
func New(ctx context.Context, cfg config.TelemetryConfig) (Recorder, error) {
	if !cfg.Enabled || cfg.Endpoint == "" {
		return NewNoOpRecorder(), nil
	}

	opts := []otlpmetricgrpc.Option{
		otlpmetricgrpc.WithEndpoint(cfg.Endpoint),
	}
	if cfg.Insecure {
		opts = append(opts, otlpmetricgrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())))
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	exp, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(serviceVersion),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("creating resource: %w", err)
	}

	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exp)),
		sdkmetric.WithResource(res),
	)
	return NewMeterRecorder(provider)
}

// NewMeterRecorder creates the instruments on provider.
func NewMeterRecorder(provider *sdkmetric.MeterProvider) (*MeterRecorder, error) {
	meter := provider.Meter(serviceName)

	decisions, err := meter.Int64Counter(
		"bdb_decisions_total",
		metric.WithDescription("Supervisor decisions by event and outcome"),
		metric.WithUnit("{decision}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating decisions counter: %w", err)
	}

	llmCalls, err := meter.Int64Counter(
		"bdb_llm_calls_total",
		metric.WithDescription("Model calls by stage and result"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm calls counter: %w", err)
	}

	llmTokens, err := meter.Int64Counter(
		"bdb_llm_tokens_total",
		metric.WithDescription("Tokens consumed by model calls"),
		metric.WithUnit("{token}"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm tokens counter: %w", err)
	}

	llmDurations, err := meter.Float64Histogram(
		"bdb_llm_call_duration_seconds",
		metric.WithDescription("Model call latency"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, fmt.Errorf("creating llm duration histogram: %w", err)
	}

	return &MeterRecorder{
		provider:     provider,
		decisions:    decisions,
		llmCalls:     llmCalls,
		llmTokens:    llmTokens,
		llmDurations: llmDurations,
	}, nil
}

// RecordDecision counts one pipeline outcome.
func (r *MeterRecorder) RecordDecision(ctx context.Context, event, decision string) {
	r.decisions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("event", event),
		attribute.String("decision", decision),
	))
}

// RecordLLMCall counts one model call.
func (r *MeterRecorder) RecordLLMCall(ctx context.Context, call LLMCall) {
	result := "ok"
	if call.Err != nil {
		result = "error"
	}
	base := []attribute.KeyValue{
		attribute.String("stage", call.Stage),
		attribute.String("model", call.Model),
	}

	r.llmCalls.Add(ctx, 1, metric.WithAttributes(append(base, attribute.String("result", result))...))
	r.llmDurations.Record(ctx, call.Duration.Seconds(), metric.WithAttributes(base...))
	if call.InputTokens > 0 {
		r.llmTokens.Add(ctx, call.InputTokens, metric.WithAttributes(append(base, attribute.String("direction", "input"))...))
	}
	if call.OutputTokens > 0 {
		r.llmTokens.Add(ctx, call.OutputTokens, metric.WithAttributes(append(base, attribute.String("direction", "output"))...))
	}
}

// Close shuts down the provider and flushes any pending metrics.
func (r *MeterRecorder) Close(ctx context.Context) error {
	return r.provider.Shutdown(ctx)
}
