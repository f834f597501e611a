// Package observability provides OpenTelemetry tracing and metrics for
// facade tool calls.
package observability

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.21.0"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// ExporterType specifies the trace exporter.
type ExporterType string

const (
	// ExporterOTLP exports to an OTLP gRPC endpoint.
	ExporterOTLP ExporterType = "otlp"

	// ExporterStdout exports pretty-printed spans to stdout.
	ExporterStdout ExporterType = "stdout"

	// ExporterNoop disables export.
	ExporterNoop ExporterType = "noop"
)

// Config configures the observability provider.
type Config struct {
	// ServiceName is the service name announced in telemetry.
	ServiceName string

	// ServiceVersion is the service version.
	ServiceVersion string

	// Environment is the deployment environment.
	Environment string

	// Exporter selects the trace exporter.
	Exporter ExporterType

	// Endpoint is the OTLP endpoint (e.g. "localhost:4317").
	Endpoint string

	// Insecure disables TLS for the exporter connection.
	Insecure bool

	// SampleRate is the trace sampling rate (0.0-1.0).
	SampleRate float64

	// BatchTimeout is the span batch export timeout.
	BatchTimeout time.Duration

	// MetricsEnabled wires an SDK meter provider. Collection happens
	// through a manual reader; Reader exposes it for scraping.
	MetricsEnabled bool
}

// DefaultConfig returns a development-friendly configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    "opsforge",
		ServiceVersion: "dev",
		Environment:    "development",
		Exporter:       ExporterNoop,
		SampleRate:     1.0,
		BatchTimeout:   5 * time.Second,
	}
}

// Option configures the provider.
type Option func(*Config)

// WithServiceName sets the service name.
func WithServiceName(name string) Option {
	return func(c *Config) {
		c.ServiceName = name
	}
}

// WithServiceVersion sets the service version.
func WithServiceVersion(version string) Option {
	return func(c *Config) {
		c.ServiceVersion = version
	}
}

// WithEnvironment sets the deployment environment.
func WithEnvironment(env string) Option {
	return func(c *Config) {
		c.Environment = env
	}
}

// WithStdoutTracing exports spans to stdout.
func WithStdoutTracing() Option {
	return func(c *Config) {
		c.Exporter = ExporterStdout
	}
}

// WithOTLP exports spans to an OTLP gRPC endpoint.
func WithOTLP(endpoint string) Option {
	return func(c *Config) {
		c.Exporter = ExporterOTLP
		c.Endpoint = endpoint
	}
}

// WithInsecure disables TLS on the exporter connection.
func WithInsecure() Option {
	return func(c *Config) {
		c.Insecure = true
	}
}

// WithSampleRate sets the trace sampling rate.
func WithSampleRate(rate float64) Option {
	return func(c *Config) {
		c.SampleRate = rate
	}
}

// WithMetrics enables the SDK meter provider.
func WithMetrics() Option {
	return func(c *Config) {
		c.MetricsEnabled = true
	}
}

// Provider owns the tracer and meter providers and their shutdown.
type Provider struct {
	config         Config
	tracerProvider *sdktrace.TracerProvider
	meterProvider  *sdkmetric.MeterProvider
	reader         *sdkmetric.ManualReader
	shutdownFuncs  []func(context.Context) error
}

// New creates an observability provider.
func New(opts ...Option) (*Provider, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	p := &Provider{config: cfg}

	if cfg.Exporter != ExporterNoop {
		if err := p.setupTracing(); err != nil {
			return nil, err
		}
	}
	if cfg.MetricsEnabled {
		p.setupMetrics()
	}

	return p, nil
}

// setupTracing initializes the tracer provider and sets it globally.
func (p *Provider) setupTracing() error {
	ctx := context.Background()

	// No merge with resource.Default() to avoid schema URL conflicts.
	res := resource.NewWithAttributes(
		semconv.SchemaURL,
		semconv.ServiceName(p.config.ServiceName),
		semconv.ServiceVersion(p.config.ServiceVersion),
		semconv.DeploymentEnvironment(p.config.Environment),
	)

	var exporter sdktrace.SpanExporter
	switch p.config.Exporter {
	case ExporterOTLP:
		opts := []otlptracegrpc.Option{
			otlptracegrpc.WithEndpoint(p.config.Endpoint),
		}
		if p.config.Insecure {
			opts = append(opts,
				otlptracegrpc.WithDialOption(grpc.WithTransportCredentials(insecure.NewCredentials())),
				otlptracegrpc.WithInsecure())
		}
		exp, err := otlptracegrpc.New(ctx, opts...)
		if err != nil {
			return err
		}
		exporter = exp

	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		if err != nil {
			return err
		}
		exporter = exp

	default:
		return errors.New("unknown trace exporter type")
	}

	var sampler sdktrace.Sampler
	switch {
	case p.config.SampleRate >= 1.0:
		sampler = sdktrace.AlwaysSample()
	case p.config.SampleRate <= 0.0:
		sampler = sdktrace.NeverSample()
	default:
		sampler = sdktrace.TraceIDRatioBased(p.config.SampleRate)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter, sdktrace.WithBatchTimeout(p.config.BatchTimeout)),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler),
	)

	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	p.tracerProvider = tp
	p.shutdownFuncs = append(p.shutdownFuncs, tp.Shutdown)
	return nil
}

// setupMetrics initializes the meter provider with a manual reader.
func (p *Provider) setupMetrics() {
	p.reader = sdkmetric.NewManualReader()
	p.meterProvider = sdkmetric.NewMeterProvider(sdkmetric.WithReader(p.reader))
	otel.SetMeterProvider(p.meterProvider)
	p.shutdownFuncs = append(p.shutdownFuncs, p.meterProvider.Shutdown)
}

// Tracer returns a named tracer. Without tracing setup this is the global
// (no-op) tracer, so callers never branch.
func (p *Provider) Tracer() trace.Tracer {
	return otel.Tracer(p.config.ServiceName)
}

// Meter returns a named meter.
func (p *Provider) Meter() metric.Meter {
	if p.meterProvider != nil {
		return p.meterProvider.Meter(p.config.ServiceName)
	}
	return otel.Meter(p.config.ServiceName)
}

// Reader returns the manual metric reader for collection, or nil when
// metrics are disabled.
func (p *Provider) Reader() *sdkmetric.ManualReader {
	return p.reader
}

// Shutdown flushes and stops the providers.
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdownFuncs {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
