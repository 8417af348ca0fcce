package observability

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/contrib/bridges/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/log/global"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Options struct {
	ServiceName string
	LogLevel    string
	// OTLP/HTTP collector, e.g. http://otel-collector:4318. Empty keeps
	// tracing and log export local (no exporter).
	Endpoint string
}

// Telemetry bundles the process logger and tracer with the exporters
// that must be flushed on shutdown.
type Telemetry struct {
	Logger *zap.Logger
	Tracer trace.Tracer

	shutdownFuncs []func(context.Context) error
}

func Setup(ctx context.Context, opts Options) (*Telemetry, error) {
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	t := &Telemetry{}
	if opts.Endpoint == "" {
		t.Logger = NewLogger(opts.ServiceName, opts.LogLevel)
		t.Tracer = otel.Tracer(opts.ServiceName)
		return t, nil
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(semconv.ServiceName(opts.ServiceName)),
		resource.WithTelemetrySDK(),
		resource.WithHost(),
	)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}

	traceExp, err := otlptracehttp.New(ctx, otlptracehttp.WithEndpointURL(opts.Endpoint))
	if err != nil {
		return nil, fmt.Errorf("otlp trace exporter: %w", err)
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(traceExp),
		sdktrace.WithResource(res),
	)
	otel.SetTracerProvider(tp)
	t.shutdownFuncs = append(t.shutdownFuncs, tp.Shutdown)

	logExp, err := otlploghttp.New(ctx, otlploghttp.WithEndpointURL(opts.Endpoint))
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, fmt.Errorf("otlp log exporter: %w", err)
	}
	lp := sdklog.NewLoggerProvider(
		sdklog.WithProcessor(sdklog.NewBatchProcessor(logExp)),
		sdklog.WithResource(res),
	)
	global.SetLoggerProvider(lp)
	t.shutdownFuncs = append(t.shutdownFuncs, lp.Shutdown)

	bridge := otelzap.NewCore(opts.ServiceName, otelzap.WithLoggerProvider(lp))
	t.Logger = NewLogger(opts.ServiceName, opts.LogLevel, bridge)
	t.Tracer = tp.Tracer(opts.ServiceName)
	return t, nil
}

// Shutdown flushes exporters in reverse setup order and syncs the logger.
func (t *Telemetry) Shutdown(ctx context.Context) error {
	var err error
	for i := len(t.shutdownFuncs) - 1; i >= 0; i-- {
		err = errors.Join(err, t.shutdownFuncs[i](ctx))
	}
	t.shutdownFuncs = nil
	_ = t.Logger.Sync()
	return err
}
