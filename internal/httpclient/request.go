package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	neturl "net/url"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Request builds and executes one JSON request.
type Request interface {
	Get(ctx context.Context, url string) (*Response, error)
	Post(ctx context.Context, url string) (*Response, error)

	SetBody(body any) Request
	SetHeader(key, value string) Request
	SetQueryParam(key, value string) Request
	SetResult(result any) Request
}

// Response keeps the raw body next to the decoded result.
type Response struct {
	*http.Response
	body   []byte
	result any
}

// Body returns the response body as bytes.
func (r *Response) Body() []byte {
	return r.body
}

// IsError reports a status of 400 or above.
func (r *Response) IsError() bool {
	return r.StatusCode >= 400
}

// Result returns the decoded result, nil when the body was not decoded.
func (r *Response) Result() any {
	return r.result
}

type requestBuilder struct {
	client         *http.Client
	requestCounter metric.Int64Counter
	providerName   string
	tracer         trace.Tracer
	baseURL        string
	headers        map[string]string
	query          neturl.Values
	body           any
	result         any
	errorHandler   ResponseErrorHandler
	labels         []*Label
	logRequest     bool
	logResponse    bool
	errorDecorator ErrorDecorator
	limiter        Waiter
}

func (r *requestBuilder) Get(ctx context.Context, url string) (*Response, error) {
	return r.execute(ctx, http.MethodGet, url)
}

func (r *requestBuilder) Post(ctx context.Context, url string) (*Response, error) {
	return r.execute(ctx, http.MethodPost, url)
}

// SetBody sets a value to be sent as JSON.
func (r *requestBuilder) SetBody(body any) Request {
	r.body = body
	return r
}

func (r *requestBuilder) SetHeader(key, value string) Request {
	r.headers[key] = value
	return r
}

func (r *requestBuilder) SetQueryParam(key, value string) Request {
	if r.query == nil {
		r.query = neturl.Values{}
	}
	r.query.Set(key, value)
	return r
}

// SetResult sets the value a successful JSON body is decoded into.
func (r *requestBuilder) SetResult(result any) Request {
	r.result = result
	return r
}

// execute runs the request and passes any error through the client decorator.
func (r *requestBuilder) execute(ctx context.Context, method, url string) (*Response, error) {
	resp, err := r.do(ctx, method, url)
	if err != nil && r.errorDecorator != nil {
		err = r.errorDecorator(err, resp)
	}
	return resp, err
}

func (r *requestBuilder) do(ctx context.Context, method, url string) (*Response, error) {
	if r.limiter != nil {
		if err := r.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	ctx, span := r.tracer.Start(ctx, "http.request",
		trace.WithAttributes(
			attribute.String("http.method", method),
			attribute.String("http.url", url),
			attribute.String("provider", r.providerName),
		),
	)
	defer span.End()

	req, err := r.build(ctx, span, method, url)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "build request")
		return nil, err
	}

	resp, err := r.client.Do(req)
	if err != nil {
		r.recordError(ctx, span, err)
		return nil, err
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "read body")
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if r.logResponse {
		span.AddEvent("response.body", trace.WithAttributes(
			attribute.String("http.response_body", string(body)),
		))
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	response := &Response{Response: resp, body: body}

	// Only successful bodies are decoded; error bodies go to the handler.
	if r.result != nil && len(body) > 0 && !response.IsError() {
		if err := json.Unmarshal(body, r.result); err != nil {
			span.RecordError(err)
		} else {
			response.result = r.result
		}
	}

	if r.errorHandler != nil {
		if handlerErr := r.errorHandler(resp.StatusCode, body); handlerErr != nil {
			r.recordMetrics(ctx, false)
			span.SetStatus(codes.Error, handlerErr.Error())
			return response, handlerErr
		}
	}

	r.recordMetrics(ctx, !response.IsError())
	return response, nil
}

// build resolves the URL against the base and encodes the JSON body.
func (r *requestBuilder) build(ctx context.Context, span trace.Span, method, url string) (*http.Request, error) {
	fullURL := url
	if r.baseURL != "" && !strings.HasPrefix(url, "http") {
		fullURL = strings.TrimSuffix(r.baseURL, "/") + "/" + strings.TrimPrefix(url, "/")
	}
	if len(r.query) > 0 {
		sep := "?"
		if strings.Contains(fullURL, "?") {
			sep = "&"
		}
		fullURL += sep + r.query.Encode()
	}

	var bodyReader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		if r.logRequest {
			span.AddEvent("request.body", trace.WithAttributes(
				attribute.String("http.request_body", string(payload)),
			))
		}
		bodyReader = bytes.NewReader(payload)
		if _, ok := r.headers["Content-Type"]; !ok {
			r.headers["Content-Type"] = "application/json"
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	for k, v := range r.headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (r *requestBuilder) recordError(ctx context.Context, span trace.Span, err error) {
	span.RecordError(err)

	var netErr net.Error
	if errors.Is(err, context.Canceled) {
		span.SetAttributes(attribute.Bool("context.cancelled", true))
	}
	if errors.As(err, &netErr) && netErr.Timeout() {
		span.SetAttributes(attribute.Bool("request.timeout", true))
	}

	span.SetStatus(codes.Error, err.Error())
	r.recordMetrics(ctx, false)
}

func (r *requestBuilder) recordMetrics(ctx context.Context, success bool) {
	attrs := []attribute.KeyValue{
		attribute.String("provider", r.providerName),
		attribute.Bool("success", success),
	}
	for _, label := range r.labels {
		attrs = append(attrs, attribute.String(label.Key, label.Value))
	}

	r.requestCounter.Add(ctx, 1, metric.WithAttributes(attrs...))
}
