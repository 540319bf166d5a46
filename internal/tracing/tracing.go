package tracing

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/filevault/filevault/internal/logger"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
)

// ShutdownFunc flushes and stops the tracer provider.
type ShutdownFunc func(context.Context) error

// Init installs the global tracer provider exporting to an OTLP/HTTP
// collector at endpoint, either a URL such as http://collector:4318 or a bare
// host:port. An empty endpoint leaves the no-op provider in place.
func Init(ctx context.Context, serviceName, version, endpoint string) (ShutdownFunc, error) {
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		),
	)

	if endpoint == "" {
		logger.Log.Info("tracing disabled, no OTLP endpoint configured")
		return func(context.Context) error { return nil }, nil
	}

	opts, err := exporterOptions(endpoint)
	if err != nil {
		return nil, err
	}
	exporter, err := otlptracehttp.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(
		ctx,
		resource.WithAttributes(
			semconv.ServiceName(serviceName),
			semconv.ServiceVersion(version),
		),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sdktrace.ParentBased(sdktrace.AlwaysSample())),
	)
	otel.SetTracerProvider(tp)

	logger.Log.Info("tracer initialized", "endpoint", endpoint, "service", serviceName)
	return tp.Shutdown, nil
}

type collector struct {
	host     string
	path     string
	insecure bool
}

// parseEndpoint accepts the OTEL_EXPORTER_OTLP_ENDPOINT forms. A bare
// host:port is plain HTTP on the default path.
func parseEndpoint(endpoint string) (collector, error) {
	if !strings.Contains(endpoint, "://") {
		return collector{host: endpoint, insecure: true}, nil
	}

	u, err := url.Parse(endpoint)
	if err != nil {
		return collector{}, fmt.Errorf("invalid OTLP endpoint %q: %w", endpoint, err)
	}
	if u.Host == "" {
		return collector{}, fmt.Errorf("invalid OTLP endpoint %q: missing host", endpoint)
	}

	c := collector{host: u.Host}
	switch u.Scheme {
	case "http":
		c.insecure = true
	case "https":
	default:
		return collector{}, fmt.Errorf("invalid OTLP endpoint %q: unsupported scheme %q", endpoint, u.Scheme)
	}
	// The base endpoint variable names the collector root; traces go under it.
	if p := strings.TrimSuffix(u.Path, "/"); p != "" {
		c.path = p + "/v1/traces"
	}
	return c, nil
}

func exporterOptions(endpoint string) ([]otlptracehttp.Option, error) {
	c, err := parseEndpoint(endpoint)
	if err != nil {
		return nil, err
	}
	opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(c.host)}
	if c.path != "" {
		opts = append(opts, otlptracehttp.WithURLPath(c.path))
	}
	if c.insecure {
		opts = append(opts, otlptracehttp.WithInsecure())
	}
	return opts, nil
}
