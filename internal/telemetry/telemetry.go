// Package telemetry wires OpenTelemetry tracing and metrics through the
// engine, grounded on zkoranges-go-claw's internal/otel package: a
// Provider holding a Tracer/Meter pair, a no-op default when disabled, and
// a fixed instrument set created once at startup. Ambient observability
// (§1's Non-goals exclude features, not this) — a span around every
// JSON-RPC dispatch plus a dispatched-calls counter incremented by the
// Request Handler. The queue-depth, overflow and active-task instruments
// are created here but nothing in the engine records to them.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const (
	TracerName = "a2a-engine"
	MeterName  = "a2a-engine"
)

// Standard attribute keys attached to engine spans.
var (
	AttrMethod    = attribute.Key("a2a.rpc.method")
	AttrTaskID    = attribute.Key("a2a.task.id")
	AttrContextID = attribute.Key("a2a.context.id")
)

// Config controls exporter selection. Exporter is one of "otlp-http",
// "stdout", or "none" (the default, which also applies when Enabled is
// false).
type Config struct {
	Enabled  bool
	Exporter string
	Endpoint string
}

// Provider bundles a Tracer, a Meter, and the pre-created Metrics
// instrument set, plus a Shutdown hook that flushes the underlying SDK.
type Provider struct {
	Tracer   trace.Tracer
	Meter    metric.Meter
	Metrics  *Metrics
	shutdown func(context.Context) error
}

// Metrics holds the engine's fixed instrument set (§6's "queue
// depth/overflow count/active tasks" gauge+counter pair).
type Metrics struct {
	QueueDepth      metric.Int64UpDownCounter
	OverflowCount   metric.Int64Counter
	ActiveTasks     metric.Int64UpDownCounter
	DispatchedCalls metric.Int64Counter
}

// Init builds a Provider from cfg. A disabled or "none" config returns a
// fully functional no-op provider — zero overhead, same call surface.
func Init(ctx context.Context, cfg Config) (*Provider, error) {
	if !cfg.Enabled || cfg.Exporter == "none" || cfg.Exporter == "" {
		tracer := nooptrace.NewTracerProvider().Tracer(TracerName)
		meter := noop.NewMeterProvider().Meter(MeterName)

		metrics, err := NewMetrics(meter)
		if err != nil {
			return nil, fmt.Errorf("telemetry: build no-op metrics: %w", err)
		}

		return &Provider{
			Tracer:   tracer,
			Meter:    meter,
			Metrics:  metrics,
			shutdown: func(context.Context) error { return nil },
		}, nil
	}

	exporter, err := createExporter(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("telemetry: create exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exporter))
	mp := sdkmetric.NewMeterProvider()

	tracer := tp.Tracer(TracerName)
	meter := mp.Meter(MeterName)

	metrics, err := NewMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("telemetry: build metrics: %w", err)
	}

	return &Provider{
		Tracer:  tracer,
		Meter:   meter,
		Metrics: metrics,
		shutdown: func(ctx context.Context) error {
			if err := tp.Shutdown(ctx); err != nil {
				return err
			}
			return mp.Shutdown(ctx)
		},
	}, nil
}

func (p *Provider) Shutdown(ctx context.Context) error {
	if p.shutdown == nil {
		return nil
	}
	return p.shutdown(ctx)
}

func createExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	switch cfg.Exporter {
	case "otlp-http":
		endpoint := cfg.Endpoint
		if endpoint == "" {
			endpoint = "localhost:4318"
		}
		return otlptracehttp.New(ctx,
			otlptracehttp.WithEndpoint(endpoint),
			otlptracehttp.WithInsecure(),
		)
	case "stdout":
		return stdouttrace.New(stdouttrace.WithPrettyPrint())
	default:
		return nil, fmt.Errorf("unknown exporter: %s (supported: otlp-http, stdout, none)", cfg.Exporter)
	}
}

// NewMetrics creates the engine's instrument set from meter.
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	m := &Metrics{}
	var err error

	m.QueueDepth, err = meter.Int64UpDownCounter("a2a.eventqueue.depth",
		metric.WithDescription("Events currently buffered per Event Queue"),
	)
	if err != nil {
		return nil, err
	}

	m.OverflowCount, err = meter.Int64Counter("a2a.eventqueue.overflow",
		metric.WithDescription("Events dropped because a queue's buffer was full"),
	)
	if err != nil {
		return nil, err
	}

	m.ActiveTasks, err = meter.Int64UpDownCounter("a2a.tasks.active",
		metric.WithDescription("Tasks currently in a non-terminal state"),
	)
	if err != nil {
		return nil, err
	}

	m.DispatchedCalls, err = meter.Int64Counter("a2a.rpc.dispatched",
		metric.WithDescription("JSON-RPC calls dispatched by method"),
	)
	if err != nil {
		return nil, err
	}

	return m, nil
}

// StartSpan starts a server-kind span for one JSON-RPC method dispatch.
func StartSpan(ctx context.Context, tracer trace.Tracer, method string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	attrs = append(attrs, AttrMethod.String(method))
	return tracer.Start(ctx, "a2a.rpc/"+method,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindServer),
	)
}
