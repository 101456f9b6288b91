// Package observability provides OpenTelemetry tracing and in-process
// metrics for the processing pipeline.
package observability

import (
	"context"
	"fmt"
	"strings"

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
	// TracerName is the instrumentation name of the pipeline tracer.
	TracerName = "github.com/batfish/batfish-sub054"
)

// TracingConfig configures the OpenTelemetry tracing.
type TracingConfig struct {
	// ServiceName is the name of the service (default: "batfish")
	ServiceName string

	ServiceVersion string

	// Environment is the deployment environment (dev, staging, prod)
	Environment string

	// OTLPEndpoint is the OTLP gRPC endpoint (e.g., "localhost:4317").
	// If empty, tracing is disabled.
	OTLPEndpoint string

	// SampleRate is the trace sampling rate (0.0 to 1.0, default: 1.0)
	SampleRate float64
}

// DefaultTracingConfig returns a default tracing configuration.
func DefaultTracingConfig() *TracingConfig {
	return &TracingConfig{
		ServiceName:    "batfish",
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

	if cfg.OTLPEndpoint == "" {
		return &TracerProvider{
			tracer: otel.Tracer(TracerName),
		}, nil
	}

	exporter, err := otlptracegrpc.New(ctx,
		otlptracegrpc.WithEndpoint(cfg.OTLPEndpoint),
		otlptracegrpc.WithInsecure(),
	)
	if err != nil {
		return nil, fmt.Errorf("create OTLP exporter: %w", err)
	}

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

	var sampler sdktrace.Sampler
	if cfg.SampleRate >= 1.0 {
		sampler = sdktrace.AlwaysSample()
	} else if cfg.SampleRate <= 0 {
		sampler = sdktrace.NeverSample()
	} else {
		sampler = sdktrace.TraceIDRatioBased(cfg.SampleRate)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

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

// Shutdown flushes and stops the tracer provider.
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

// Span kinds.
const (
	SpanKindBatch    = "batch"
	SpanKindJob      = "job"
	SpanKindPipeline = "pipeline"
	SpanKindStage    = "stage"
)

// StartPipelineSpan starts the root span of a snapshot run.
func StartPipelineSpan(ctx context.Context, snapshotDir string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "pipeline.process",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("batfish.span.kind", SpanKindPipeline),
			attribute.String("snapshot.dir", snapshotDir),
		),
	)
}

// StartStageSpan starts a span for one stage of a run, e.g. "parse" or
// "convert".
func StartStageSpan(ctx context.Context, stage string, jobCount int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "pipeline."+strings.ReplaceAll(stage, " ", "_"),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("batfish.span.kind", SpanKindStage),
			attribute.String("stage.name", stage),
			attribute.Int("stage.job_count", jobCount),
		),
	)
}

// RecordStageResult records how many jobs of a stage failed.
func RecordStageResult(span trace.Span, failed int, err error) {
	span.SetAttributes(attribute.Int("stage.failed", failed))
	RecordError(span, err)
}

// RecordRunResult annotates the pipeline span with the run's outcome.
func RecordRunResult(span trace.Span, files, nodes int, err error) {
	span.SetAttributes(
		attribute.Int("run.files", files),
		attribute.Int("run.nodes", nodes),
	)
	RecordError(span, err)
}

// StartBatchSpan starts a span covering one executor batch.
func StartBatchSpan(ctx context.Context, jobCount, workers int) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "executor.batch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("batfish.span.kind", SpanKindBatch),
			attribute.Int("batch.job_count", jobCount),
			attribute.Int("batch.workers", workers),
		),
	)
}

// RecordBatchResult records the outcome of a batch on its span.
func RecordBatchResult(span trace.Span, finished, failed int) {
	span.SetAttributes(
		attribute.Int("batch.finished", finished),
		attribute.Int("batch.failed", failed),
	)
	if failed > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d jobs failed", failed))
	}
}

// StartJobSpan starts a span for one job.
func StartJobSpan(ctx context.Context, key string) (context.Context, trace.Span) {
	tracer := otel.Tracer(TracerName)
	return tracer.Start(ctx, "executor.job",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("batfish.span.kind", SpanKindJob),
			attribute.String("job.key", key),
		),
	)
}

// RecordJobResult records a job's failure, if any, on its span.
func RecordJobResult(span trace.Span, err error) {
	span.SetAttributes(attribute.Bool("job.failed", err != nil))
	RecordError(span, err)
}

// RecordError records an error on a span.
func RecordError(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}
