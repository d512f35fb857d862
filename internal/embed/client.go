// Curio - Retrieval Fusion and Personalized Ranking
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/curio

/*
Package embed is the HTTP client of the external embedding service.

The service exposes two endpoints:

	POST {base}/v1/embed/text    {"text": "..."}          -> {"vector": [...]}
	POST {base}/v1/embed/image   raw image bytes           -> {"vector": [...]}

Calls are rate limited with a token bucket and wrapped in a circuit breaker.
While the breaker is open every call fails fast with ErrUnavailable, which the
search engine treats as a failed channel.
*/
package embed

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/curio/internal/metrics"
	"github.com/tomtom215/curio/internal/recommend"
	"github.com/tomtom215/curio/internal/recommend/vecops"
)

var _ recommend.Embedder = (*Client)(nil)

// ErrUnavailable is returned when the service cannot answer.
var ErrUnavailable = errors.New("embedding service unavailable")

// maxResponseBytes bounds a decoded response body.
const maxResponseBytes = 4 << 20

// Config configures the client.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// RequestsPerSecond and Burst configure the token bucket. A zero rate
	// disables limiting.
	RequestsPerSecond float64
	Burst             int

	// Dimension, when set, rejects vectors of any other width.
	Dimension int

	// BreakerName labels circuit breaker metrics.
	BreakerName string
}

// Client calls the embedding service.
type Client struct {
	cfg     Config
	http    *http.Client
	limiter *rate.Limiter
	cb      *gobreaker.CircuitBreaker[[]float32]
	logger  zerolog.Logger
}

type textRequest struct {
	Text string `json:"text"`
}

type vectorResponse struct {
	Vector []float32 `json:"vector"`
	Error  string    `json:"error,omitempty"`
}

// New creates a client.
//
// Circuit breaker configuration:
// - Max 3 concurrent requests in half-open state
// - 1 minute measurement window
// - 30 second timeout before attempting recovery
// - Opens after 60% failure rate with minimum 10 requests
//
//nolint:gocritic // logger passed by value is acceptable for zerolog
func New(cfg Config, logger zerolog.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("embedding base url is required")
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 5 * time.Second
	}
	if cfg.BreakerName == "" {
		cfg.BreakerName = "embedding-api"
	}

	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}

	c := &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger.With().Str("component", "embed").Logger(),
	}

	metrics.CircuitBreakerState.WithLabelValues(cfg.BreakerName).Set(0)
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(cfg.BreakerName).Set(0)

	c.cb = gobreaker.NewCircuitBreaker[[]float32](gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: 3,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < 10 {
				return false
			}
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			if failureRatio >= 0.6 {
				c.logger.Warn().Uint32("failures", counts.TotalFailures).Float64("failure_rate", failureRatio*100).Msg("[CIRCUIT BREAKER] Opening circuit")
				return true
			}
			return false
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			c.logger.Info().Str("from", from.String()).Str("to", to.String()).Msg("[CIRCUIT BREAKER] State transition")
			metrics.CircuitBreakerState.WithLabelValues(name).Set(stateToFloat(to))
			metrics.CircuitBreakerTransitions.WithLabelValues(name, from.String(), to.String()).Inc()
			if to == gobreaker.StateClosed {
				metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
			}
		},
		// Caller cancellations say nothing about service health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c, nil
}

// Text embeds a query string.
func (c *Client) Text(ctx context.Context, text string) ([]float32, error) {
	body, err := json.Marshal(textRequest{Text: text})
	if err != nil {
		return nil, fmt.Errorf("failed to encode text request: %w", err)
	}
	return c.embed(ctx, "text", "/v1/embed/text", "application/json", body)
}

// Image embeds raw image bytes.
func (c *Client) Image(ctx context.Context, image []byte) ([]float32, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("empty image")
	}
	return c.embed(ctx, "image", "/v1/embed/image", "application/octet-stream", image)
}

// State returns the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.cb.State()
}

func (c *Client) embed(ctx context.Context, kind, path, contentType string, body []byte) ([]float32, error) {
	start := time.Now()
	vec, err := c.execute(func() ([]float32, error) {
		return c.do(ctx, path, contentType, body)
	})
	metrics.RecordEmbed(kind, time.Since(start), err)
	if err != nil {
		return nil, err
	}
	return vec, nil
}

// execute runs fn through the breaker and keeps its metrics current.
func (c *Client) execute(fn func() ([]float32, error)) ([]float32, error) {
	name := c.cfg.BreakerName
	vec, err := c.cb.Execute(fn)
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			metrics.CircuitBreakerRequests.WithLabelValues(name, "rejected").Inc()
			c.logger.Warn().Err(err).Msg("[CIRCUIT BREAKER] Request rejected")
			return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
		}
		metrics.CircuitBreakerRequests.WithLabelValues(name, "failure").Inc()
		metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(float64(c.cb.Counts().ConsecutiveFailures))
		return nil, err
	}
	metrics.CircuitBreakerRequests.WithLabelValues(name, "success").Inc()
	metrics.CircuitBreakerConsecutiveFailures.WithLabelValues(name).Set(0)
	return vec, nil
}

func (c *Client) do(ctx context.Context, path, contentType string, body []byte) ([]float32, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}

	var out vectorResponse
	if resp.StatusCode != http.StatusOK {
		_ = json.Unmarshal(raw, &out)
		msg := out.Error
		if msg == "" {
			msg = http.StatusText(resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, msg)
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if !vecops.Valid(out.Vector) {
		return nil, fmt.Errorf("%w: empty or non-finite vector", ErrUnavailable)
	}
	if c.cfg.Dimension > 0 && len(out.Vector) != c.cfg.Dimension {
		return nil, fmt.Errorf("%w: vector width %d, want %d", ErrUnavailable, len(out.Vector), c.cfg.Dimension)
	}
	return out.Vector, nil
}

// stateToFloat converts circuit breaker state to a gauge value.
func stateToFloat(state gobreaker.State) float64 {
	switch state {
	case gobreaker.StateClosed:
		return 0
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return -1
	}
}
