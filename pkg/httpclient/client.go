// Package httpclient provides the JSON HTTP client used to reach the
// marketplace service, with resilience policies that respect the
// idempotency of each verb.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"agrimarket/pkg/telemetry"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/failsafe-go/failsafe-go/retrypolicy"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"
)

// APIError represents a non-success response from the service
type APIError struct {
	StatusCode int
	Body       []byte
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: status=%d body=%s", e.StatusCode, string(e.Body))
}

// Client wraps http.Client with a shared circuit breaker and, for reads
// only, a retry policy. Mutating requests (POST/PATCH/DELETE) are issued
// exactly once: a timeout of unknown outcome must not be replayed, the
// caller resynchronizes with an explicit fetch instead.
type Client struct {
	client  *http.Client
	baseURL string
	limiter *rate.Limiter

	readPipeline   failsafe.Executor[*http.Response]
	mutatePipeline failsafe.Executor[*http.Response]

	// OTel
	tracer      trace.Tracer
	reqCounter  metric.Int64Counter
	errCounter  metric.Int64Counter
	latencyHist metric.Float64Histogram
}

// NewClient creates a new HTTP client. rps bounds the request rate to
// the service; zero disables the limiter.
func NewClient(baseURL string, timeout time.Duration, rps float64) *Client {
	retryPolicy := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			// Retry on transport errors or 5xx / 429 responses
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests
		}).
		WithBackoff(100*time.Millisecond, 2*time.Second).
		WithMaxRetries(3).
		Build()

	breaker := circuitbreaker.NewBuilder[*http.Response]().
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp.StatusCode >= 500
		}).
		WithFailureThresholdRatio(5, 10).
		WithDelay(10 * time.Second).
		Build()

	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}

	tracer := telemetry.GetTracer("marketplace-http")
	meter := telemetry.GetMeter("marketplace-http")

	reqCounter, _ := meter.Int64Counter("http_requests_total",
		metric.WithDescription("Total number of HTTP requests"))
	errCounter, _ := meter.Int64Counter("http_errors_total",
		metric.WithDescription("Total number of HTTP errors"))
	latencyHist, _ := meter.Float64Histogram("http_request_duration_seconds",
		metric.WithDescription("HTTP request latency in seconds"))

	return &Client{
		client:         &http.Client{Timeout: timeout},
		baseURL:        baseURL,
		limiter:        limiter,
		readPipeline:   failsafe.With[*http.Response](retryPolicy, breaker),
		mutatePipeline: failsafe.With[*http.Response](breaker),
		tracer:         tracer,
		reqCounter:     reqCounter,
		errCounter:     errCounter,
		latencyHist:    latencyHist,
	}
}

// Get sends a GET request through the retrying read pipeline
func (c *Client) Get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, params, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, c.readPipeline)
}

// Post sends a POST request with a JSON body, exactly once
func (c *Client) Post(ctx context.Context, path string, params map[string]string, body interface{}) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodPost, path, params, body)
	if err != nil {
		return nil, err
	}
	return c.do(req, c.mutatePipeline)
}

// Patch sends a PATCH request, exactly once
func (c *Client) Patch(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodPatch, path, params, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, c.mutatePipeline)
}

// Delete sends a DELETE request, exactly once
func (c *Client) Delete(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodDelete, path, params, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req, c.mutatePipeline)
}

func (c *Client) newRequest(ctx context.Context, method, path string, params map[string]string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		bodyReader = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	q := req.URL.Query()
	for k, v := range params {
		q.Add(k, v)
	}
	req.URL.RawQuery = q.Encode()

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-Id", uuid.NewString())

	return req, nil
}

func (c *Client) do(req *http.Request, pipeline failsafe.Executor[*http.Response]) ([]byte, error) {
	start := time.Now()
	ctx := req.Context()

	ctx, span := c.tracer.Start(ctx, fmt.Sprintf("%s %s", req.Method, req.URL.Path),
		trace.WithAttributes(
			attribute.String("http.method", req.Method),
			attribute.String("http.url", req.URL.String()),
		),
	)
	defer span.End()

	req = req.WithContext(ctx)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	resp, err := pipeline.GetWithExecution(func(exec failsafe.Execution[*http.Response]) (*http.Response, error) {
		return c.client.Do(req)
	})

	duration := time.Since(start).Seconds()
	c.reqCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.String("path", req.URL.Path),
	))
	c.latencyHist.Record(ctx, duration, metric.WithAttributes(
		attribute.String("method", req.Method),
		attribute.String("path", req.URL.Path),
	))

	if err != nil {
		span.RecordError(err)
		c.errCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("path", req.URL.Path),
			attribute.String("error", "transport"),
		))
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		c.errCounter.Add(ctx, 1, metric.WithAttributes(
			attribute.String("method", req.Method),
			attribute.String("path", req.URL.Path),
			attribute.Int("status", resp.StatusCode),
		))
		return nil, &APIError{StatusCode: resp.StatusCode, Body: body}
	}

	return body, nil
}
