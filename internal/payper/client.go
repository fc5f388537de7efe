package payper

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/holland-leasing/checkout-api/internal/obs"
	"github.com/holland-leasing/checkout-api/internal/resilience"
)

// ErrNoRedirectURL is returned when the vendor accepted the request but the
// response carried no hosted-checkout URL. Callers surface this as 502.
var ErrNoRedirectURL = errors.New("payper: response has no redirect url")

// APIError is a non-2xx vendor response. Status and Body are forwarded to the
// caller verbatim.
type APIError struct {
	Status int
	Body   json.RawMessage
}

func (e *APIError) Error() string {
	return fmt.Sprintf("payper: status %d", e.Status)
}

// Session is the usable part of a successful checkout-session response.
type Session struct {
	URL       string
	SessionID string
	Raw       json.RawMessage
}

// Client submits checkout-session requests to the vendor endpoint.
type Client struct {
	URL  string
	HTTP resilience.HTTPClient
}

// NewClient builds a vendor client with a bounded call timeout and an
// optional circuit breaker (nil leaves it off). Retries stay off: re-posting
// a checkout session could open duplicate sessions.
func NewClient(url string, timeout time.Duration, breaker *resilience.Breaker) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		URL: url,
		HTTP: resilience.HTTPClient{
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			Breaker: breaker,
			Timeout: timeout,
		},
	}
}

type sessionEnvelope struct {
	Data struct {
		URL       string `json:"url"`
		SessionID string `json:"session_id"`
	} `json:"data"`
}

// CreateSession POSTs the payload with the resolved bearer credential and
// extracts the hosted checkout URL from the response.
func (c *Client) CreateSession(ctx context.Context, bearer string, payload Payload) (*Session, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", bearer)

	start := time.Now()
	resp, err := c.HTTP.Do(ctx, req)
	if err != nil {
		observeVendorCall("transport_error", start)
		return nil, fmt.Errorf("checkout session request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		observeVendorCall("transport_error", start)
		return nil, fmt.Errorf("read checkout session response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		observeVendorCall("vendor_error", start)
		return nil, &APIError{Status: resp.StatusCode, Body: raw}
	}

	var env sessionEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Data.URL == "" {
		observeVendorCall("no_url", start)
		return nil, fmt.Errorf("%w: %s", ErrNoRedirectURL, truncate(raw, 256))
	}

	observeVendorCall("ok", start)
	return &Session{URL: env.Data.URL, SessionID: env.Data.SessionID, Raw: raw}, nil
}

func observeVendorCall(result string, start time.Time) {
	if obs.VendorCallLatency != nil {
		obs.VendorCallLatency.WithLabelValues(result).Observe(obs.DurationMillis(time.Since(start)))
	}
}

func truncate(raw []byte, max int) string {
	if len(raw) <= max {
		return string(raw)
	}
	return string(raw[:max]) + "..."
}
