package httpclient

import (
	"context"
	"maps"
	"net"
	"net/http"
	"net/http/httptrace"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/httptrace/otelhttptrace"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	defaultDialKeepAlive         = 10 * time.Second
	defaultRequestTimeout        = 10 * time.Second
	defaultMaxConnsPerHost       = 5
	defaultIdleConnTimeout       = 2 * time.Minute
	defaultExpectContinueTimeout = 100 * time.Millisecond

	instrumentationName  = "instrumented_http_client"
	metricRequestCounter = "http_client_requests_total"
)

// Client creates requests that share one transport, base URL, error
// decorator and rate limiter.
type Client interface {
	NewRequest() Request
	NewRequestWithOptions(opts ...RequestOption) Request
}

// InstrumentedClient wraps http.Client with OTEL tracing and a request counter.
type InstrumentedClient struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	providerName   string
	tracer         trace.Tracer
	baseURL        string
	defaultHeaders map[string]string
	logRequest     bool
	logResponse    bool
	errorHandler   ResponseErrorHandler
	errorDecorator ErrorDecorator
	limiter        Waiter
}

// NewInstrumentedClient creates a new instrumented HTTP client.
func NewInstrumentedClient(opts ...ClientOption) (Client, error) {
	options := NewClientOptions(opts...)

	timeout := defaultRequestTimeout
	if options.requestTimeout != nil {
		timeout = *options.requestTimeout
	}

	transport := &http.Transport{
		DialContext:           (&net.Dialer{KeepAlive: defaultDialKeepAlive}).DialContext,
		MaxConnsPerHost:       defaultMaxConnsPerHost,
		IdleConnTimeout:       defaultIdleConnTimeout,
		ExpectContinueTimeout: defaultExpectContinueTimeout,
	}

	httpClient := &http.Client{
		Timeout: timeout,
		Transport: otelhttp.NewTransport(transport,
			otelhttp.WithClientTrace(func(ctx context.Context) *httptrace.ClientTrace {
				return otelhttptrace.NewClientTrace(ctx)
			}),
		),
	}

	providerName := options.providerName
	if providerName == "" {
		providerName = "default"
	}

	meter := otel.Meter(instrumentationName,
		metric.WithInstrumentationAttributes(attribute.String("provider", providerName)))
	requestCounter, err := meter.Int64Counter(
		metricRequestCounter,
		metric.WithDescription("Total number of HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	tracer := options.tracer
	if tracer == nil {
		tracer = otel.Tracer(instrumentationName)
	}

	return &InstrumentedClient{
		client:         httpClient,
		requestCounter: requestCounter,
		providerName:   providerName,
		tracer:         tracer,
		baseURL:        options.baseURL,
		defaultHeaders: options.headers,
		logRequest:     options.logRequest,
		logResponse:    options.logResponse,
		errorHandler:   options.errorHandler,
		errorDecorator: options.errorDecorator,
		limiter:        options.limiter,
	}, nil
}

func (c *InstrumentedClient) NewRequest() Request {
	return c.NewRequestWithOptions()
}

// NewRequestWithOptions creates a request; a per-request error handler
// replaces the client default.
func (c *InstrumentedClient) NewRequestWithOptions(opts ...RequestOption) Request {
	reqOpts := NewRequestOptions(opts...)

	errorHandler := reqOpts.responseErrorHandler
	if errorHandler == nil {
		errorHandler = c.errorHandler
	}

	headers := make(map[string]string, len(c.defaultHeaders)+2)
	maps.Copy(headers, c.defaultHeaders)

	return &requestBuilder{
		client:         c.client,
		requestCounter: c.requestCounter,
		providerName:   c.providerName,
		tracer:         c.tracer,
		baseURL:        c.baseURL,
		headers:        headers,
		errorHandler:   errorHandler,
		labels:         reqOpts.labels,
		logRequest:     c.logRequest,
		logResponse:    c.logResponse,
		errorDecorator: c.errorDecorator,
		limiter:        c.limiter,
	}
}
