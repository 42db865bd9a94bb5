package tracing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	require.NoError(t, InitWithExporter("actflow", "test", exporter))

	ctx, parent := StartSpan(context.Background(), "actflow.run", "INTERNAL")
	parent.WithAttributes(map[string]string{"workflow": "approval"})
	_, child := StartSpan(ctx, "actflow.persist", "CLIENT")
	EndSpan(child, errors.New("store unavailable"))
	EndSpan(parent, nil)

	spans := exporter.GetSpans()
	require.Len(t, spans, 2)
	assert.Equal(t, "actflow.persist", spans[0].Name)
	assert.Equal(t, codes.Error, spans[0].Status.Code)
	assert.Equal(t, spans[1].SpanContext.SpanID(), spans[0].Parent.SpanID())
	assert.Equal(t, codes.Ok, spans[1].Status.Code)

	found, ok := SpanFromContext(ctx)
	assert.True(t, ok)
	assert.NotNil(t, found)
}
