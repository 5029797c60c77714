// Package observability provides OpenTelemetry tracing for sage.
package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

const (
	// TracerName is the name used for the sage tracer.
	TracerName = "github.com/codesage/sage"
)

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "sage")
	ServiceName string

	// ServiceVersion is the version of the service
	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317")
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "sage",
		ServiceVersion: "0.1.0",
		Environment:    "development",
		SampleRate:     1.0,
	}
}

// TracerProvider wraps the OpenTelemetry tracer provider.
type TracerProvider struct {
	provider *sdktrace.TracerProvider
	tracer   trace.Tracer
}

// InitTracing initializes OpenTelemetry tracing.
// Returns a no-op tracer if OTLPEndpoint is empty.
func InitTracing(ctx context.Context, cfg *TracingConfig) (*TracerProvider, error) {
	if cfg == nil {
		cfg = DefaultTracingConfig()
	}

	// If no endpoint, return no-op tracer
	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	// Create OTLP exporter
	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(), // Use TLS in production
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

	// Create resource with service info
	res, err := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.DeploymentEnvironment(cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create resource: %w", err)
	}

	// Create sampler
	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	// Create trace provider
	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	// Set global provider and propagator
	otel.SetTracerProvider(provider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	return &TracerProvider{
		provider: provider,
		tracer:   provider.Tracer(TracerName),
	}, nil
}

// Shutdown gracefully shuts down the tracer provider.
func (tp *TracerProvider) Shutdown(ctx context.Context) error {
	if tp.provider != nil {
		return tp.provider.Shutdown(ctx)
	}
	return nil
}

// Tracer returns the underlying tracer.
func (tp *TracerProvider) Tracer() trace.Tracer {
	return tp.tracer
}

// Span kinds for sage operations.
const (
	SpanKindEmbed   = "embed"
	SpanKindChat    = "chat"
	SpanKindRank    = "rank"
	SpanKindSelect  = "select"
	SpanKindRebuild = "rebuild"
	SpanKindAnalyze = "analyze"
)

func start(ctx context.Context, name, kind string, spanKind trace.SpanKind, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, attribute.String("sage.span.kind", kind))
	return otel.Tracer(TracerName).Start(ctx, name,
		trace.WithSpanKind(spanKind),
		trace.WithAttributes(attrs...),
	)
}

// StartEmbedSpan starts a span for an embedding request.
func StartEmbedSpan(ctx context.Context, provider, purpose string, chars int) (context.Context, trace.Span) {
	return start(ctx, "llm.embed", SpanKindEmbed, trace.SpanKindClient,
		attribute.String("llm.provider", provider),
		attribute.String("embed.purpose", purpose),
		attribute.Int("embed.chars", chars),
	)
}

// StartChatSpan starts a span for a chat completion.
func StartChatSpan(ctx context.Context, provider, purpose string) (context.Context, trace.Span) {
	return start(ctx, "llm.chat", SpanKindChat, trace.SpanKindClient,
		attribute.String("llm.provider", provider),
		attribute.String("chat.purpose", purpose),
	)
}

// RecordChatUsage records token usage of a completion on a span.
func RecordChatUsage(span trace.Span, model string, inputTokens, outputTokens int) {
	span.SetAttributes(
		attribute.String("llm.model", model),
		attribute.Int("llm.input_tokens", inputTokens),
		attribute.Int("llm.output_tokens", outputTokens),
		attribute.Int("llm.total_tokens", inputTokens+outputTokens),
	)
}

// StartRankSpan starts a span for ranking one folder's store.
func StartRankSpan(ctx context.Context, folder string, storeSize int) (context.Context, trace.Span) {
	return start(ctx, "retrieval.rank", SpanKindRank, trace.SpanKindInternal,
		attribute.String("rank.folder", folder),
		attribute.Int("rank.store_size", storeSize),
	)
}

// RecordRankResult records how many files ranking kept.
func RecordRankResult(span trace.Span, kept, essential int) {
	span.SetAttributes(
		attribute.Int("rank.kept", kept),
		attribute.Int("rank.essential", essential),
	)
}

// StartSelectSpan starts a span for budget selection.
func StartSelectSpan(ctx context.Context, candidates, maxTokens, reserved int) (context.Context, trace.Span) {
	return start(ctx, "retrieval.select", SpanKindSelect, trace.SpanKindInternal,
		attribute.Int("select.candidates", candidates),
		attribute.Int("select.max_tokens", maxTokens),
		attribute.Int("select.reserved_tokens", reserved),
	)
}

// RecordSelection records the outcome of budget selection.
func RecordSelection(span trace.Span, selected, skipped, totalTokens int) {
	span.SetAttributes(
		attribute.Int("select.selected", selected),
		attribute.Int("select.skipped", skipped),
		attribute.Int("select.total_tokens", totalTokens),
	)
}

// StartRebuildSpan starts a span for rebuilding a folder's store.
func StartRebuildSpan(ctx context.Context, folder string, fileCount int) (context.Context, trace.Span) {
	return start(ctx, "index.rebuild", SpanKindRebuild, trace.SpanKindInternal,
		attribute.String("rebuild.folder", folder),
		attribute.Int("rebuild.file_count", fileCount),
	)
}

// RecordRebuildResult records rebuild counts on a span. Any failed file
// marks the span as an error.
func RecordRebuildResult(span trace.Span, written, reused, embedded, failed int) {
	span.SetAttributes(
		attribute.Int("rebuild.written", written),
		attribute.Int("rebuild.reused", reused),
		attribute.Int("rebuild.embedded", embedded),
		attribute.Int("rebuild.failed", failed),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d files failed", failed))
	}
}

// StartAnalyzeSpan starts a span for change analysis against base.
func StartAnalyzeSpan(ctx context.Context, folder, base string, fileCount int) (context.Context, trace.Span) {
	return start(ctx, "assistant.analyze", SpanKindAnalyze, trace.SpanKindInternal,
		attribute.String("analyze.folder", folder),
		attribute.String("analyze.base", base),
		attribute.Int("analyze.file_count", fileCount),
	)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
