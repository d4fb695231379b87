// Package otel wires the OpenTelemetry SDK and the process logger for
// alicia-edge.
package otel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlplog/otlploghttp"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.27.0"
	"go.opentelemetry.io/otel/trace"
)

type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	// DeviceID is stamped on every exported span and log record
	DeviceID     string
	OTLPEndpoint string // collector base URL, e.g. https://collector.local:4318
	// StdoutTraces prints spans to stderr when no OTLP endpoint is set
	StdoutTraces bool
	LogLevel     slog.Level
}

// InitResult holds the logger and shutdown function from Init.
type InitResult struct {
	Logger   *slog.Logger
	Shutdown func(context.Context) error
}

// Init installs the global tracer provider and propagator and returns the
// process logger. Logs always go to stderr; with an OTLP endpoint they are
// also exported, together with traces. Without one, traces are printed to
// stderr when StdoutTraces is set and dropped otherwise.
func Init(cfg Config) (*InitResult, error) {
	ctx := context.Background()
	console := NewPrettyHandler(os.Stderr, cfg.LogLevel)
	result := &InitResult{
		Logger:   slog.New(console),
		Shutdown: func(context.Context) error { return nil },
	}

	if cfg.OTLPEndpoint == "" && !cfg.StdoutTraces {
		return result, nil
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, err
	}

	exporter, err := newSpanExporter(ctx, cfg)
	if err != nil {
		return nil, err
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(2*time.Second)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	result.Shutdown = tp.Shutdown

	if cfg.OTLPEndpoint == "" {
		return result, nil
	}

	lp, err := newLoggerProvider(ctx, cfg, res)
	if err != nil {
		_ = tp.Shutdown(ctx)
		return nil, err
	}
	exported := otelslog.NewHandler(cfg.ServiceName, otelslog.WithLoggerProvider(lp))
	result.Logger = slog.New(NewTeeHandler(console, exported))
	result.Shutdown = func(ctx context.Context) error {
		// logs first so records emitted while spans flush are not lost
		return errors.Join(lp.Shutdown(ctx), tp.Shutdown(ctx))
	}
	return result, nil
}

func newResource(ctx context.Context, cfg Config) (*resource.Resource, error) {
	attrs := []resource.Option{
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.DeploymentEnvironmentName(cfg.Environment),
		),
		resource.WithHost(),
		resource.WithProcess(),
	}
	if cfg.ServiceVersion != "" {
		attrs = append(attrs, resource.WithAttributes(semconv.ServiceVersion(cfg.ServiceVersion)))
	}
	if cfg.DeviceID != "" {
		attrs = append(attrs, resource.WithAttributes(DeviceID(cfg.DeviceID)))
	}
	res, err := resource.New(ctx, attrs...)
	if err != nil {
		return nil, fmt.Errorf("otel resource: %w", err)
	}
	return res, nil
}

func newSpanExporter(ctx context.Context, cfg Config) (sdktrace.SpanExporter, error) {
	var (
		exporter sdktrace.SpanExporter
		err      error
	)
	if cfg.OTLPEndpoint != "" {
		exporter, err = otlptracehttp.New(ctx,
			otlptracehttp.WithEndpointURL(cfg.OTLPEndpoint),
			otlptracehttp.WithURLPath("/v1/traces"),
		)
	} else {
		exporter, err = stdouttrace.New(stdouttrace.WithWriter(os.Stderr))
	}
	if err != nil {
		return nil, fmt.Errorf("otel span exporter: %w", err)
	}
	return exporter, nil
}

func newLoggerProvider(ctx context.Context, cfg Config, res *resource.Resource) (*sdklog.LoggerProvider, error) {
	exporter, err := otlploghttp.New(ctx,
		otlploghttp.WithEndpointURL(cfg.OTLPEndpoint),
		otlploghttp.WithURLPath("/v1/logs"),
	)
	if err != nil {
		return nil, fmt.Errorf("otel log exporter: %w", err)
	}
	return sdklog.NewLoggerProvider(
		sdklog.WithResource(res),
		sdklog.WithProcessor(sdklog.NewBatchProcessor(exporter)),
	), nil
}

// Tracer returns a tracer for the given instrumentation name.
func Tracer(name string) trace.Tracer {
	return otel.GetTracerProvider().Tracer(name)
}

// TraceContext carries the W3C identifiers of a span on outbound messages.
type TraceContext struct {
	TraceID string `json:"trace_id,omitempty"`
	SpanID  string `json:"span_id,omitempty"`
}

// InjectToTraceContext returns the identifiers of the span in ctx, or the
// zero value when ctx carries no valid span.
func InjectToTraceContext(ctx context.Context) TraceContext {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return TraceContext{}
	}
	return TraceContext{TraceID: sc.TraceID().String(), SpanID: sc.SpanID().String()}
}
