package obs

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

func TestInitTracerWithoutEndpointIsNoop(t *testing.T) {
	shutdown, err := InitTracer(context.Background(), "", "cliora-api", "test")
	require.NoError(t, err)
	assert.NoError(t, shutdown(context.Background()))
	assert.IsType(t, propagation.TraceContext{}, otel.GetTextMapPropagator())
}

func TestInitTracerWithEndpoint(t *testing.T) {
	// the gRPC client connects lazily, so nothing needs to listen here
	shutdown, err := InitTracer(context.Background(), "127.0.0.1:4317", "cliora-api", "test")
	require.NoError(t, err)
	_, span := otel.Tracer("test").Start(context.Background(), "op")
	span.End()
	assert.True(t, span.SpanContext().IsValid())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_ = shutdown(ctx)
}
