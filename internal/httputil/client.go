// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package httputil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/pdiddy/content-engine/pkg/types"
)

// ErrCircuitOpen is returned when the circuit breaker rejects a request
// without contacting the server.
var ErrCircuitOpen = errors.New("circuit breaker open")

// errServerStatus marks 5xx responses as breaker failures. It never
// escapes Do.
var errServerStatus = errors.New("server error status")

// Client wraps http.Client with the processing every outbound call shares:
//
//	Circuit Breaker → Rate Limiter → User-Agent → 429 Retry → HTTP
//
// The breaker and limiter are optional and disabled by zero config values.
type Client struct {
	name       string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[*http.Response]
	limiter    *rate.Limiter
	maxRetries int
	userAgent  string
	logger     *slog.Logger
}

// New creates a Client for the downstream service called name (e.g. "groq").
func New(name string, cfg types.HTTPConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	c := &Client{
		name:       name,
		httpClient: &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		userAgent:  cfg.UserAgent,
		logger:     logger,
	}

	if cfg.RequestsPerMinute > 0 {
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1)
	}

	if cfg.BreakerFailures > 0 {
		c.breaker = gobreaker.NewCircuitBreaker[*http.Response](gobreaker.Settings{
			Name:        name,
			MaxRequests: 1,
			Timeout:     cfg.BreakerTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return int(counts.ConsecutiveFailures) >= cfg.BreakerFailures
			},
			OnStateChange: func(name string, from, to gobreaker.State) {
				logger.Warn("circuit breaker state change",
					slog.String("breaker", name),
					slog.String("from", from.String()),
					slog.String("to", to.String()),
				)
			},
		})
	}

	return c
}

// WithHTTPClient replaces the underlying http.Client. Tests use it to
// route requests to an httptest server.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.httpClient = hc
	return c
}

// Name returns the downstream service identifier.
func (c *Client) Name() string { return c.name }

// Do sends req through the breaker, limiter and retry layers. The caller
// must close the response body. A 5xx response is returned with a nil
// error; it only counts as a failure for the breaker.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.userAgent != "" && req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", c.userAgent)
	}

	send := func() (*http.Response, error) {
		if c.limiter != nil {
			if err := c.limiter.Wait(ctx); err != nil {
				return nil, fmt.Errorf("%s: waiting for rate limiter: %w", c.name, err)
			}
		}
		start := time.Now()
		resp, err := DoWithRetry(ctx, c.httpClient, req, c.maxRetries, c.logger)
		if err != nil {
			c.logger.DebugContext(ctx, "outbound request failed",
				slog.String("service", c.name),
				slog.String("method", req.Method),
				slog.String("host", req.URL.Host),
				slog.Any("error", err),
			)
			return nil, err
		}
		c.logger.DebugContext(ctx, "outbound request",
			slog.String("service", c.name),
			slog.String("method", req.Method),
			slog.String("host", req.URL.Host),
			slog.Int("status", resp.StatusCode),
			slog.Duration("elapsed", time.Since(start)),
		)
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errServerStatus
		}
		return resp, nil
	}

	if c.breaker == nil {
		resp, err := send()
		if errors.Is(err, errServerStatus) {
			return resp, nil
		}
		return resp, err
	}

	var served *http.Response
	_, err := c.breaker.Execute(func() (*http.Response, error) {
		resp, err := send()
		served = resp
		return resp, err
	})
	switch {
	case errors.Is(err, errServerStatus):
		return served, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		return nil, fmt.Errorf("%s: %w", c.name, ErrCircuitOpen)
	case err != nil:
		return nil, err
	}
	return served, nil
}
