// Package evalapi is the HTTP client for the remote evaluation
// service: generate, run, optimize, health. It performs no retries, no
// caching, and no input validation; those are caller policy. A circuit
// breaker sheds calls after repeated transport failures so a dead
// service fails fast rather than burning the full request timeout.
package evalapi

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/circuitbreaker"
	"github.com/dan-robinson-ai/judge-training-ground/internal/adapters/metrics"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain"
	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
	"github.com/dan-robinson-ai/judge-training-ground/internal/ports"
	"github.com/dan-robinson-ai/judge-training-ground/shared/httpclient"
)

// APIError is a non-2xx response from the evaluation service, carrying
// the server-provided detail message when one was present.
type APIError struct {
	StatusCode int
	Detail     string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("evaluation service returned %d: %s", e.StatusCode, e.Detail)
	}
	return fmt.Sprintf("evaluation service returned status %d", e.StatusCode)
}

func (e *APIError) Unwrap() error {
	return domain.ErrEvalRequestFailed
}

type Client struct {
	baseURL    string
	httpClient *http.Client
	tracer     trace.Tracer
	breaker    *circuitbreaker.CircuitBreaker
}

type Option func(*Client)

// WithHTTPClient overrides the default long-timeout client. Generation
// and optimization regularly take the better part of a minute.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithBreaker overrides the default circuit breaker.
func WithBreaker(cb *circuitbreaker.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: httpclient.NewLong(),
		tracer:     otel.Tracer("evalapi"),
		breaker:    circuitbreaker.New(5, 30*time.Second),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Intent string `json:"intent"`
	Count  int    `json:"count"`
	Model  string `json:"model"`
}

func (c *Client) Generate(ctx context.Context, intent string, count int, modelName string) (*ports.GenerateResult, error) {
	var result ports.GenerateResult
	err := c.post(ctx, "generate", "/api/generate", generateRequest{
		Intent: intent,
		Count:  count,
		Model:  modelName,
	}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type runRequest struct {
	SystemPrompt string             `json:"system_prompt"`
	TestCases    []*models.TestCase `json:"test_cases"`
	ModelName    string             `json:"model_name"`
}

func (c *Client) Run(ctx context.Context, systemPrompt string, testCases []*models.TestCase, modelName string) (*models.RunStats, error) {
	var stats models.RunStats
	err := c.post(ctx, "run", "/api/run", runRequest{
		SystemPrompt: systemPrompt,
		TestCases:    testCases,
		ModelName:    modelName,
	}, &stats)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

func (c *Client) Optimize(ctx context.Context, req ports.OptimizeRequest) (*ports.OptimizeResult, error) {
	var result ports.OptimizeResult
	if err := c.post(ctx, "optimize", "/api/optimize", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

type healthResponse struct {
	Status string `json:"status"`
}

func (c *Client) Health(ctx context.Context) error {
	ctx, span := c.tracer.Start(ctx, "evalapi.health")
	defer span.End()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("%w: %v", domain.ErrEvalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.apiError(resp)
	}

	var health healthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		return fmt.Errorf("decode health response: %w", err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, operation, path string, body, out any) error {
	ctx, span := c.tracer.Start(ctx, "evalapi."+operation)
	defer span.End()

	start := time.Now()
	defer func() {
		metrics.EvalRequestDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
	}()

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode %s request: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp *http.Response
	err = c.breaker.Execute(func() error {
		var doErr error
		resp, doErr = c.httpClient.Do(req)
		return doErr
	})
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, circuitbreaker.ErrCircuitOpen) {
			metrics.EvalRequestsTotal.WithLabelValues(operation, "circuit_open").Inc()
		} else {
			metrics.EvalRequestsTotal.WithLabelValues(operation, "transport_error").Inc()
		}
		return fmt.Errorf("%w: %v", domain.ErrEvalServiceUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := c.apiError(resp)
		span.RecordError(apiErr)
		metrics.EvalRequestsTotal.WithLabelValues(operation, "error").Inc()
		return apiErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.EvalRequestsTotal.WithLabelValues(operation, "decode_error").Inc()
		return fmt.Errorf("decode %s response: %w", operation, err)
	}

	metrics.EvalRequestsTotal.WithLabelValues(operation, "ok").Inc()
	return nil
}

// apiError extracts the server's {detail} message when present.
func (c *Client) apiError(resp *http.Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return apiErr
	}
	var detail struct {
		Detail string `json:"detail"`
	}
	if err := json.Unmarshal(body, &detail); err == nil && detail.Detail != "" {
		apiErr.Detail = detail.Detail
	}
	return apiErr
}
