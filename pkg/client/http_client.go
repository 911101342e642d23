package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mirrorline/futureself/pkg/circuitbreaker"
	"github.com/mirrorline/futureself/pkg/metrics"
	"github.com/mirrorline/futureself/pkg/retry"
)

// HTTPClient wraps http.Client with retry, circuit breaker, and per-service
// metrics. Default headers (auth tokens) are attached to every request.
type HTTPClient struct {
	client         *http.Client
	circuitBreaker *circuitbreaker.CircuitBreaker
	serviceName    string
	headers        map[string]string
}

// NewHTTPClient creates a new HTTP client with retry and circuit breaker.
func NewHTTPClient(serviceName string, timeout time.Duration, headers map[string]string) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		circuitBreaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		serviceName:    serviceName,
		headers:        headers,
	}
}

// Post performs a JSON POST with retry and circuit breaker.
func (c *HTTPClient) Post(ctx context.Context, url string, body interface{}) (*http.Response, error) {
	return c.do(ctx, http.MethodPost, url, body)
}

// Get performs a GET with retry and circuit breaker.
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, url, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body interface{}) (*http.Response, error) {
	start := time.Now()
	var resp *http.Response
	var err error

	err = c.circuitBreaker.Execute(ctx, func() error {
		return retry.Do(ctx, retry.DefaultConfig(), func() error {
			var reqBody *bytes.Buffer
			if body != nil {
				jsonData, marshalErr := json.Marshal(body)
				if marshalErr != nil {
					return marshalErr
				}
				reqBody = bytes.NewBuffer(jsonData)
			} else {
				reqBody = &bytes.Buffer{}
			}

			req, reqErr := http.NewRequestWithContext(ctx, method, url, reqBody)
			if reqErr != nil {
				return reqErr
			}
			if body != nil {
				req.Header.Set("Content-Type", "application/json")
			}
			for k, v := range c.headers {
				req.Header.Set(k, v)
			}

			resp, reqErr = c.client.Do(req)
			if reqErr != nil {
				return reqErr
			}

			if resp.StatusCode >= 500 {
				resp.Body.Close()
				return fmt.Errorf("server error: %d", resp.StatusCode)
			}

			return nil
		})
	})

	latency := time.Since(start)
	success := err == nil && resp != nil && resp.StatusCode < 400

	metrics.RecordServiceCall(c.serviceName, success, latency)

	state := c.circuitBreaker.GetState()
	stateStr := "closed"
	switch state {
	case circuitbreaker.StateOpen:
		stateStr = "open"
	case circuitbreaker.StateHalfOpen:
		stateStr = "half-open"
	}
	stats := c.circuitBreaker.GetStats()
	failures := int64(0)
	if f, ok := stats["failures"].(int); ok {
		failures = int64(f)
	}
	metrics.UpdateCircuitBreaker(c.serviceName, stateStr, failures)

	return resp, err
}
