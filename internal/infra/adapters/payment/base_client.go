package payment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"strconv"
	"time"

	"github.com/sony/gobreaker/v2"

	"telegram-storefront/internal/domain"
	"telegram-storefront/internal/infra/logging"
)

// RetryPolicy bounds retries of idempotent calls.
type RetryPolicy struct {
	MaxRetries int
	MinWait    time.Duration
	MaxWait    time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries: 2,
		MinWait:    300 * time.Millisecond,
		MaxWait:    5 * time.Second,
	}
}

// baseClient runs every processor call through one circuit breaker. Only GET
// requests are retried; invoice creation must never be sent twice.
type baseClient struct {
	client      *http.Client
	breaker     *gobreaker.CircuitBreaker[*http.Response]
	retryPolicy RetryPolicy
	sleepFn     func(time.Duration)
}

type baseClientOption func(*baseClient)

// WithSleepFunc replaces time.Sleep between retries. Tests use it to skip waiting.
func WithSleepFunc(fn func(time.Duration)) baseClientOption {
	return func(c *baseClient) { c.sleepFn = fn }
}

func WithRetryPolicy(p RetryPolicy) baseClientOption {
	return func(c *baseClient) { c.retryPolicy = p }
}

func newBaseClient(httpClient *http.Client, breakerName string, opts ...baseClientOption) *baseClient {
	cb := gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
		Name:        breakerName,
		MaxRequests: 1,
		Interval:    60 * time.Second,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
	})
	bc := &baseClient{
		client:      httpClient,
		breaker:     cb,
		retryPolicy: DefaultRetryPolicy(),
		sleepFn:     time.Sleep,
	}
	for _, opt := range opts {
		opt(bc)
	}
	return bc
}

// do executes req. 2xx-4xx responses (except 429) are returned as-is and the
// caller closes the body. Exhausted retries, transport errors and an open
// breaker come back as *domain.ProcessorError.
func (c *baseClient) do(op string, req *http.Request) (*http.Response, error) {
	if traceID := logging.TraceID(req.Context()); traceID != "" {
		req.Header.Set("X-Request-Id", traceID)
	}

	var bodyBytes []byte
	if req.Body != nil {
		var err error
		bodyBytes, err = io.ReadAll(req.Body)
		if err != nil {
			return nil, &domain.ProcessorError{Op: op, Message: "read request body: " + err.Error()}
		}
		_ = req.Body.Close()
	}

	maxAttempts := 1
	if req.Method == http.MethodGet {
		maxAttempts += c.retryPolicy.MaxRetries
	}

	var lastResp *http.Response
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if bodyBytes != nil {
			req.Body = io.NopCloser(bytes.NewReader(bodyBytes))
			req.ContentLength = int64(len(bodyBytes))
		}

		resp, err := c.breaker.Execute(func() (*http.Response, error) {
			r, doErr := c.client.Do(req)
			if doErr != nil {
				return nil, doErr
			}
			if r.StatusCode >= 500 || r.StatusCode == http.StatusTooManyRequests {
				return r, fmt.Errorf("upstream returned %d", r.StatusCode)
			}
			return r, nil
		})
		if err == nil {
			return resp, nil
		}

		lastErr = err
		if lastResp != nil {
			_ = lastResp.Body.Close()
		}
		lastResp = resp

		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			break
		}
		if attempt < maxAttempts-1 {
			c.sleepFn(c.computeBackoff(attempt, resp))
		}
	}

	return nil, c.mapError(op, lastResp, lastErr)
}

// computeBackoff honours Retry-After in seconds, otherwise exponential with jitter.
func (c *baseClient) computeBackoff(attempt int, resp *http.Response) time.Duration {
	if resp != nil {
		if s, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil && s > 0 {
			return min(time.Duration(s)*time.Second, c.retryPolicy.MaxWait)
		}
	}
	base := float64(c.retryPolicy.MinWait) * math.Pow(2, float64(attempt))
	base = math.Min(base, float64(c.retryPolicy.MaxWait))
	minWait := float64(c.retryPolicy.MinWait)
	if base <= minWait {
		return c.retryPolicy.MinWait
	}
	return time.Duration(minWait + rand.Float64()*(base-minWait))
}

func (c *baseClient) mapError(op string, resp *http.Response, err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return &domain.ProcessorError{Op: op, Status: http.StatusServiceUnavailable, Message: "circuit breaker open"}
	}
	if resp != nil {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &domain.ProcessorError{Op: op, Status: resp.StatusCode, Message: string(body)}
	}
	msg := "request failed"
	if err != nil {
		msg = err.Error()
	}
	return &domain.ProcessorError{Op: op, Message: msg}
}
