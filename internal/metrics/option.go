package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

type Provider string

const (
	PrometheusProvider Provider = "prometheus"
	OtelCollector      Provider = "customOtelCollector"
	InsecureOtel                = false
	SecureOtel                  = true
)

func NewOtelCollectorConfig(url string, headers map[string]string, insecure bool) ProviderCfg {
	provider := ProviderCfg{
		Provider: OtelCollector,
		Endpoint: url,
		Headers:  headers,
		Insecure: insecure,
	}

	return provider
}

// NewPrometheusConfig exposes metrics on reg. A nil reg uses the default
// registerer.
func NewPrometheusConfig(reg *prom.Registry) ProviderCfg {
	return ProviderCfg{
		Provider: PrometheusProvider,
		Registry: reg,
	}
}

type Config struct {
	ServiceName string
	Provider    []ProviderCfg
}

type ProviderCfg struct {
	Provider Provider
	Endpoint string
	Headers  map[string]string
	Insecure bool
	Registry *prom.Registry
}

type OptionFn func(config Config) Config

func WithProviderConfig(provider ProviderCfg) OptionFn {
	return func(config Config) Config {
		config.Provider = append(config.Provider, provider)

		return config
	}
}

func WithServiceName(serviceName string) OptionFn {
	return func(config Config) Config {
		config.ServiceName = serviceName

		return config
	}
}
