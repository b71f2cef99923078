// Package apm sets up OpenTelemetry tracing exporters.
package apm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/exporters/zipkin"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"

	"github.com/fd1az/nightfall-sdk/internal/logger"
)

type Provider string

const (
	ZipkinProvider   Provider = "zipkin"
	OTLPGRPCProvider Provider = "otlp-grpc"
	OTLPHTTPProvider Provider = "otlp-http"
	ConsoleProvider  Provider = "console"
	EmptyProvider    Provider = "empty"
)

type TraceProvider interface {
	Stop() error
}

type traceProvider struct {
	tp *sdktrace.TracerProvider
}

type TracerOptions struct {
	exporter           sdktrace.SpanExporter
	tracerProviderName string
	serviceName        string
	useEmpty           bool
	err                error
}

type TracerOption func(*TracerOptions)

// WithProvider selects the exporter. Unknown providers fall back to the
// empty provider with a warning.
func WithProvider(provider Provider, endpoint string, headers map[string]string, log logger.LoggerInterface) TracerOption {
	switch provider {
	case ZipkinProvider:
		return useZipkin(endpoint)
	case OTLPGRPCProvider:
		return useOTLPGRPC(endpoint, headers)
	case OTLPHTTPProvider:
		return useOTLPHTTP(endpoint, headers)
	case ConsoleProvider:
		return useConsole()
	case EmptyProvider, "":
		return useEmpty()
	}

	log.Warn(context.Background(), "trace provider not found, using empty provider", "provider", provider)

	return useEmpty()
}

// WithServiceName sets the service.name resource attribute.
func WithServiceName(name string) TracerOption {
	return func(option *TracerOptions) {
		option.serviceName = name
	}
}

func useEmpty() TracerOption {
	return func(option *TracerOptions) {
		option.useEmpty = true
		option.tracerProviderName = string(EmptyProvider)
	}
}

func useConsole() TracerOption {
	return func(option *TracerOptions) {
		exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
		option.exporter, option.err = exp, err
		option.tracerProviderName = string(ConsoleProvider)
	}
}

func useZipkin(endpoint string) TracerOption {
	return func(option *TracerOptions) {
		exp, err := zipkin.New(endpoint)
		option.exporter, option.err = exp, err
		option.tracerProviderName = string(ZipkinProvider)
	}
}

func useOTLPGRPC(endpoint string, headers map[string]string) TracerOption {
	return func(option *TracerOptions) {
		exp, err := otlptracegrpc.New(
			context.Background(),
			otlptracegrpc.WithEndpointURL(endpoint),
			otlptracegrpc.WithHeaders(headers),
		)
		option.exporter, option.err = exp, err
		option.tracerProviderName = string(OTLPGRPCProvider)
	}
}

func useOTLPHTTP(endpoint string, headers map[string]string) TracerOption {
	return func(option *TracerOptions) {
		exp, err := otlptracehttp.New(
			context.Background(),
			otlptracehttp.WithEndpointURL(endpoint),
			otlptracehttp.WithHeaders(headers),
		)
		option.exporter, option.err = exp, err
		option.tracerProviderName = string(OTLPHTTPProvider)
	}
}

// ParseHeaders reads "k1=v1,k2=v2" as used by OTEL_EXPORTER_OTLP_HEADERS.
func ParseHeaders(raw string) (map[string]string, error) {
	headers := make(map[string]string)
	if strings.TrimSpace(raw) == "" {
		return headers, nil
	}

	for _, pair := range strings.Split(raw, ",") {
		kv := strings.SplitN(strings.TrimSpace(pair), "=", 2)
		if len(kv) != 2 || kv[0] == "" {
			return nil, fmt.Errorf("invalid header %q, expected key=value", pair)
		}
		headers[kv[0]] = kv[1]
	}
	return headers, nil
}

// NewTraceProvider installs the global tracer provider and propagator.
func NewTraceProvider(log logger.LoggerInterface, options ...TracerOption) (TraceProvider, error) {
	opts := &TracerOptions{}

	for _, opt := range options {
		opt(opts)
	}

	if opts.err != nil {
		return nil, fmt.Errorf("create %s exporter: %w", opts.tracerProviderName, opts.err)
	}

	if opts.useEmpty || opts.exporter == nil {
		return NewEmptyTraceProvider(), nil
	}

	rsrc, _ := resource.Merge(
		resource.Default(),
		resource.NewWithAttributes(
			semconv.SchemaURL,
			semconv.ServiceNameKey.String(opts.serviceName),
			attribute.String("otel.provider", opts.tracerProviderName),
		))

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSampler(sdktrace.AlwaysSample()),
		sdktrace.WithBatcher(opts.exporter),
		sdktrace.WithResource(rsrc),
	)

	// Set global trace provider
	otel.SetTracerProvider(tp)

	// Set trace propagator
	otel.SetTextMapPropagator(
		propagation.NewCompositeTextMapPropagator(
			propagation.TraceContext{},
			propagation.Baggage{},
		))

	log.Info(context.Background(), "tracing initialized", "provider", opts.tracerProviderName)

	return &traceProvider{
		tp,
	}, nil
}

func (o *traceProvider) Stop() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*5) //nolint:gomnd
	defer cancel()

	if err := o.tp.Shutdown(ctx); err != nil {
		return err
	}

	return nil
}

type emptyTraceProvider struct{}

// NewEmptyTraceProvider leaves the global no-op tracer in place.
func NewEmptyTraceProvider() TraceProvider {
	return emptyTraceProvider{}
}

func (emptyTraceProvider) Stop() error {
	return nil
}
