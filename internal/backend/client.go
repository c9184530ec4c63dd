// Package backend is the JSON-over-HTTP boundary to the storefront backend.
package backend

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

	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/toko-storefront/internal/resilience"
)

// ErrUnavailable covers transport failures, 5xx answers and an open breaker.
var ErrUnavailable = errors.New("backend: unavailable")

const maxErrorBody = 1 << 20

// StatusError is a non-2xx answer below 500. Body holds the raw response.
type StatusError struct {
	StatusCode int
	Body       []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("backend: status %d", e.StatusCode)
}

// Options configures the resilient HTTP client used for backend calls.
type Options struct {
	Timeout             time.Duration
	BreakerMinRequests  int
	BreakerFailureRatio float64
	BreakerOpenFor      time.Duration
	// ReadAttempts bounds attempts for GET requests. Writes are sent once.
	ReadAttempts int
	Logger       zerolog.Logger
}

// NewHTTPClient builds a traced client guarded by a breaker.
func NewHTTPClient(opts Options) resilience.HTTPClient {
	breaker := resilience.NewBreaker(opts.BreakerMinRequests, opts.BreakerFailureRatio, opts.BreakerOpenFor).
		WithTarget("backend").
		WithLogger(opts.Logger)
	return resilience.HTTPClient{
		Client:      &http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)},
		Breaker:     breaker,
		MaxAttempts: max(1, opts.ReadAttempts),
		BaseBackoff: 150 * time.Millisecond,
		Jitter:      0.2,
		Retryable:   resilience.SafeMethods,
		Timeout:     opts.Timeout,
	}
}

// Client issues JSON requests against BaseURL.
type Client struct {
	BaseURL string
	HTTP    resilience.HTTPClient
	Logger  zerolog.Logger
}

// NewClient constructs a backend client.
func NewClient(baseURL string, hc resilience.HTTPClient, logger zerolog.Logger) *Client {
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc, Logger: logger}
}

// Healthy reports whether the breaker currently lets requests through.
func (c *Client) Healthy() bool {
	if c == nil || c.HTTP.Breaker == nil {
		return true
	}
	return c.HTTP.Breaker.State() != resilience.Open
}

// Do sends body as JSON and decodes a 2xx answer into out when out is non-nil.
func (c *Client) Do(ctx context.Context, method, path string, body, out any) error {
	if c == nil {
		return errors.New("backend: client not configured")
	}
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("backend: encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, reader)
	if err != nil {
		return fmt.Errorf("backend: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token := Token(ctx); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		c.Logger.Error().Err(err).Str("method", method).Str("path", path).Msg("backend_unavailable")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{StatusCode: resp.StatusCode, Body: data}
	}
	if out == nil {
		return nil
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("%w: read response: %v", ErrUnavailable, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("backend: decode response: %w", err)
	}
	return nil
}

type tokenKey struct{}

// WithToken attaches the caller's bearer token to outgoing backend requests.
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

// Token returns the bearer token stored by WithToken.
func Token(ctx context.Context) string {
	token, _ := ctx.Value(tokenKey{}).(string)
	return token
}
