package tracing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
)

func TestInit_None(t *testing.T) {
	shutdown, err := Init(context.Background(), Config{Exporter: "none"}, TracerName)
	require.NoError(t, err)

	_, span := StartSpan(context.Background(), "lava.submit")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestInit_Stdout(t *testing.T) {
	var buf bytes.Buffer
	shutdown, err := Init(context.Background(), Config{Exporter: "stdout", Output: &buf}, TracerName)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = Init(context.Background(), Config{}, TracerName)
	})

	_, span := StartSpan(context.Background(), "lava.wait", attribute.String("lava.job_id", "1234"))
	assert.True(t, span.SpanContext().IsValid())
	span.End()

	require.NoError(t, shutdown(context.Background()))
	assert.Contains(t, buf.String(), "lava.wait")
	assert.Contains(t, buf.String(), "1234")
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{Exporter: "zipkin"}, TracerName)
	assert.Error(t, err)
}
