package tracer

import (
	"bytes"
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace/noop"

	"ragchat/internal/domain"
	"ragchat/internal/infra/config"
)

// recordSpans installs a provider that keeps ended spans in memory.
func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	prev := otel.GetTracerProvider()
	sr := tracetest.NewSpanRecorder()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })
	return sr
}

func attrMap(kvs []attribute.KeyValue) map[attribute.Key]attribute.Value {
	m := make(map[attribute.Key]attribute.Value, len(kvs))
	for _, kv := range kvs {
		m[kv.Key] = kv.Value
	}
	return m
}

func TestSetupInstallsNoopProvider(t *testing.T) {
	for _, cfg := range []config.TracerConfig{
		{Enabled: false, Exporter: "stdout"},
		{Enabled: true, Exporter: "noop"},
		{Enabled: true, Exporter: ""},
	} {
		shutdown, err := Setup(context.Background(), cfg)
		require.NoError(t, err)
		assert.NoError(t, shutdown(context.Background()))

		_, ok := otel.GetTracerProvider().(noop.TracerProvider)
		assert.True(t, ok, "config %+v", cfg)
	}
}

func TestSetupStdout(t *testing.T) {
	shutdown, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "stdout"})
	require.NoError(t, err)
	t.Cleanup(func() { otel.SetTracerProvider(noop.NewTracerProvider()) })

	_, span := StartSpan(context.Background(), "backend.health")
	span.End()
	assert.NoError(t, shutdown(context.Background()))
}

func TestSetupUnsupportedExporter(t *testing.T) {
	_, err := Setup(context.Background(), config.TracerConfig{Enabled: true, Exporter: "jaeger"})
	assert.ErrorContains(t, err, "unsupported exporter: jaeger")
}

func TestStdoutExporterWritesToGivenWriter(t *testing.T) {
	var buf bytes.Buffer
	exp, err := newExporter(config.TracerConfig{Enabled: true, Exporter: "stdout"}, &buf)
	require.NoError(t, err)

	tp := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exp))
	_, span := tp.Tracer(tracerName).Start(context.Background(), "backend.list_documents")
	span.End()
	require.NoError(t, tp.Shutdown(context.Background()))

	assert.Contains(t, buf.String(), "backend.list_documents")
}

func TestFinishSuccess(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartSpan(context.Background(), "backend.task_status")
	Finish(span, nil, KeyTaskStatus.String("succeeded"))
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Ok, ended[0].Status().Code)
	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, "succeeded", attrs[KeyTaskStatus].AsString())
	assert.NotContains(t, attrs, KeyErrorCode)
	assert.Empty(t, ended[0].Events())
}

func TestFinishRecordsErrorCode(t *testing.T) {
	sr := recordSpans(t)

	_, span := StartSpan(context.Background(), "backend.chat_stream")
	err := fmt.Errorf("%w: HTTP 502", domain.ErrServer)
	Finish(span, err, KeyChatResults.Int(3))
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, codes.Error, ended[0].Status().Code)
	assert.Equal(t, err.Error(), ended[0].Status().Description)

	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, string(domain.CodeServer), attrs[KeyErrorCode].AsString())
	assert.Equal(t, int64(3), attrs[KeyChatResults].AsInt64())

	require.Len(t, ended[0].Events(), 1)
	assert.Equal(t, "exception", ended[0].Events()[0].Name)
}

func TestFinishOnNoopSpan(t *testing.T) {
	_, span := noop.NewTracerProvider().Tracer(tracerName).Start(context.Background(), "backend.health")
	assert.NotPanics(t, func() {
		Finish(span, domain.ErrTransport)
		span.End()
	})
}
