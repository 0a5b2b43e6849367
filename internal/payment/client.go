package payment

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/mmynk/cooper/internal/metrics"
)

// Ensure Client implements Provider
var _ Provider = (*Client)(nil)

const intentsPath = "/api/v1/payment-intents"

// ClientConfig configures the HTTP provider client.
type ClientConfig struct {
	BaseURL  string
	APIKey   string
	Currency string
	// Timeout bounds each provider call.
	Timeout time.Duration
	// BreakerFailures is the number of consecutive retryable failures that
	// opens the circuit breaker.
	BreakerFailures uint32
	// BreakerCooldown is how long the breaker stays open before probing.
	BreakerCooldown time.Duration
	Metrics         *metrics.Metrics
}

// Client is an HTTP client for the payment-intent API.
type Client struct {
	baseURL    string
	apiKey     string
	currency   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	metrics    *metrics.Metrics
}

type envelope struct {
	Data *Intent `json:"data"`
}

type createIntentRequest struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// NewClient creates a provider client. The circuit breaker counts only
// retryable failures; a 4xx answer means the provider is healthy.
func NewClient(cfg ClientConfig) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.BreakerFailures == 0 {
		cfg.BreakerFailures = 5
	}
	if cfg.BreakerCooldown <= 0 {
		cfg.BreakerCooldown = 30 * time.Second
	}

	failures := cfg.BreakerFailures
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "payment-provider",
		Timeout: cfg.BreakerCooldown,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= failures
		},
		// Only provider-side failures count. A caller that gave up says
		// nothing about the provider's health.
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || !IsRetryable(err)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			slog.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})

	return &Client{
		baseURL:  baseURL,
		apiKey:   cfg.APIKey,
		currency: cfg.Currency,
		httpClient: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		breaker: breaker,
		metrics: cfg.Metrics,
	}
}

// CreateIntent creates a payment intent for amount.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal) (*Intent, error) {
	var env envelope
	body := createIntentRequest{Amount: amount, Currency: c.currency}
	if err := c.call(ctx, "create", http.MethodPost, intentsPath, body, "", &env); err != nil {
		return nil, err
	}
	if env.Data == nil || env.Data.ID == "" {
		return nil, &Error{Op: "create", StatusCode: http.StatusOK, Err: errors.New("response missing intent id")}
	}
	return env.Data, nil
}

// GetIntent fetches the current status of an intent.
func (c *Client) GetIntent(ctx context.Context, intentID string) (*Intent, error) {
	var env envelope
	path := intentsPath + "/" + url.PathEscape(intentID)
	if err := c.call(ctx, "get", http.MethodGet, path, nil, "", &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, &Error{Op: "get", StatusCode: http.StatusOK, Err: errors.New("response missing data")}
	}
	return env.Data, nil
}

// ReleaseIntent asks the provider to release an intent's funds. Retries
// reuse the same idempotency key.
func (c *Client) ReleaseIntent(ctx context.Context, intentID string) error {
	path := intentsPath + "/" + url.PathEscape(intentID) + "/release"
	return c.call(ctx, "release", http.MethodPost, path, nil, "release-"+intentID, nil)
}

// call runs one request through the circuit breaker and records its outcome.
func (c *Client) call(ctx context.Context, op, method, path string, body any, idempotencyKey string, out any) error {
	if err := ctx.Err(); err != nil {
		return &Error{Op: op, Err: err}
	}

	_, err := c.breaker.Execute(func() (interface{}, error) {
		return nil, c.do(ctx, op, method, path, body, idempotencyKey, out)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		err = &Error{Op: op, Err: fmt.Errorf("%w: %v", ErrUnavailable, err)}
	}

	switch {
	case err == nil:
		c.metrics.ProviderRequest(op, "ok")
	case IsRetryable(err):
		c.metrics.ProviderRequest(op, "retryable")
	default:
		c.metrics.ProviderRequest(op, "error")
	}
	return err
}

func (c *Client) do(ctx context.Context, op, method, path string, body any, idempotencyKey string, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return &Error{Op: op, StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to encode request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return &Error{Op: op, StatusCode: http.StatusBadRequest, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-API-Key", c.apiKey)
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &Error{Op: op, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("unexpected response: %s", strings.TrimSpace(string(msg)))}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &Error{Op: op, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}
