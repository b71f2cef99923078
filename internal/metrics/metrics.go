// Package metrics sets up the OpenTelemetry meter provider and the
// Prometheus scrape handler.
package metrics

import (
	"context"
	"fmt"
	"net/http"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	metric2 "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
)

type MetricProvider interface {
	Meter(name string, options ...metric.MeterOption) metric.Meter
	Shutdown(ctx context.Context) error
}

func getReaders(ctx context.Context, cfg Config) ([]metric2.Reader, error) {
	var readers []metric2.Reader

	for _, provider := range cfg.Provider {
		switch provider.Provider {
		case PrometheusProvider:
			var opts []prometheus.Option
			if provider.Registry != nil {
				opts = append(opts, prometheus.WithRegisterer(provider.Registry))
			}

			promExporter, err := prometheus.New(opts...)
			if err != nil {
				return nil, fmt.Errorf("prometheus exporter: %w", err)
			}

			readers = append(readers, promExporter)
		case OtelCollector:
			cfg := []otlpmetricgrpc.Option{
				otlpmetricgrpc.WithEndpointURL(provider.Endpoint),
				otlpmetricgrpc.WithHeaders(provider.Headers),
			}

			if provider.Insecure {
				cfg = append(cfg, otlpmetricgrpc.WithInsecure())
			}

			exp, err := otlpmetricgrpc.New(ctx, cfg...)
			if err != nil {
				return nil, fmt.Errorf("otlp metric exporter: %w", err)
			}

			readers = append(readers, metric2.NewPeriodicReader(exp))
		default:
			return nil, fmt.Errorf("unknown metric provider %q", provider.Provider)
		}
	}

	return readers, nil
}

// NewMetricProvider builds a meter provider with one reader per configured
// provider and installs it globally.
func NewMetricProvider(options ...OptionFn) (MetricProvider, error) {
	ctx := context.Background()

	var cfg Config

	for _, opt := range options {
		cfg = opt(cfg)
	}

	readers, err := getReaders(ctx, cfg)
	if err != nil {
		return nil, err
	}

	var metricsOps []metric2.Option

	for _, reader := range readers {
		metricsOps = append(metricsOps, metric2.WithReader(reader))
	}

	metricsOps = append(metricsOps, metric2.WithResource(
		resource.NewSchemaless(semconv.ServiceNameKey.String(cfg.ServiceName)),
	))

	meterProvider := metric2.NewMeterProvider(metricsOps...)

	otel.SetMeterProvider(meterProvider)

	return meterProvider, nil
}

// Handler serves the Prometheus exposition format for reg, or for the
// default gatherer when reg is nil.
func Handler(reg *prom.Registry) http.Handler {
	if reg == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}
