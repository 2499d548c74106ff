package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInitDisabledIsNoOp(t *testing.T) {
	ctx := context.Background()

	provider, err := Init(ctx, Config{Enabled: false})
	require.NoError(t, err)
	require.NotNil(t, provider.Tracer)
	require.NotNil(t, provider.Meter)
	require.NotNil(t, provider.Metrics)

	require.NoError(t, provider.Shutdown(ctx))
}

func TestInitUnknownExporterFails(t *testing.T) {
	ctx := context.Background()

	_, err := Init(ctx, Config{Enabled: true, Exporter: "carrier-pigeon"})
	require.Error(t, err)
}

func TestStartSpanDoesNotPanicOnNoopTracer(t *testing.T) {
	ctx := context.Background()

	provider, err := Init(ctx, Config{Enabled: false})
	require.NoError(t, err)

	_, span := StartSpan(ctx, provider.Tracer, "message/send")
	defer span.End()
}
