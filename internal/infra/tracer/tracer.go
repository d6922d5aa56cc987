package tracer

import (
	"context"
	"fmt"
	"io"
	"os"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"ragchat/internal/domain"
	"ragchat/internal/infra/config"
)

const tracerName = "ragchat"

// Span attribute keys recorded by the backend client.
const (
	KeyErrorCode      = attribute.Key("error.code")
	KeyChatHasSession = attribute.Key("chat.has_session")
	KeyChatFrames     = attribute.Key("chat.frames")
	KeyChatResults    = attribute.Key("chat.results")
	KeyDocFilename    = attribute.Key("document.filename")
	KeyDocBytes       = attribute.Key("document.bytes")
	KeyDocCount       = attribute.Key("document.count")
	KeyTaskID         = attribute.Key("task.id")
	KeyTaskStatus     = attribute.Key("task.status")
)

// Setup installs the global TracerProvider and returns its shutdown function.
// Disabled tracing and the noop exporter both install a noop provider.
func Setup(ctx context.Context, cfg config.TracerConfig) (func(context.Context) error, error) {
	exporter, err := newExporter(cfg, os.Stderr)
	if err != nil {
		return nil, err
	}
	if exporter == nil {
		otel.SetTracerProvider(noop.NewTracerProvider())
		return func(context.Context) error { return nil }, nil
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
	)
	otel.SetTracerProvider(tp)
	return tp.Shutdown, nil
}

// newExporter returns nil when no spans should be exported. Spans go to w
// so they never mix with chat output on stdout.
func newExporter(cfg config.TracerConfig, w io.Writer) (sdktrace.SpanExporter, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	switch cfg.Exporter {
	case "noop", "":
		return nil, nil
	case "stdout":
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w), stdouttrace.WithPrettyPrint())
		if err != nil {
			return nil, fmt.Errorf("create stdout exporter: %w", err)
		}
		return exp, nil
	default:
		return nil, fmt.Errorf("unsupported exporter: %s", cfg.Exporter)
	}
}

// StartSpan starts a named span on the ragchat tracer.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, opts...)
}

// Finish sets the final status of a backend call span. A failed call records
// err and its domain error code; a successful one is marked OK. The caller
// still ends the span.
func Finish(span trace.Span, err error, attrs ...attribute.KeyValue) {
	span.SetAttributes(attrs...)
	if err == nil {
		span.SetStatus(codes.Ok, "")
		return
	}
	span.RecordError(err)
	span.SetAttributes(KeyErrorCode.String(string(domain.ErrorCodeOf(err))))
	span.SetStatus(codes.Error, err.Error())
}
