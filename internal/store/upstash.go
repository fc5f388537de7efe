package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/holland-leasing/checkout-api/internal/resilience"
)

// Upstash talks to an Upstash-style Redis REST endpoint:
// GET {base}/get/{key} and POST {base}/set/{key}/{value}, bearer-authenticated,
// responding with a {"result": ...} envelope. The result is the stored string
// on a get hit, null on a miss, and the literal "OK" on a successful set.
type Upstash struct {
	BaseURL string
	Token   string
	HTTP    resilience.HTTPClient
}

// UpstashOptions tunes the REST client. Zero values fall back to a 3s
// timeout, two total attempts and a 50ms backoff base.
type UpstashOptions struct {
	Timeout      time.Duration
	RetryMax     int
	RetryBackoff time.Duration
}

// NewUpstash constructs a REST-backed store. The get and set commands are
// idempotent, so transient failures are retried up to RetryMax attempts.
func NewUpstash(baseURL, token string, opts UpstashOptions) *Upstash {
	if opts.Timeout <= 0 {
		opts.Timeout = 3 * time.Second
	}
	if opts.RetryMax < 1 {
		opts.RetryMax = 2
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 50 * time.Millisecond
	}
	return &Upstash{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		HTTP: resilience.HTTPClient{
			Client: &http.Client{
				Transport: otelhttp.NewTransport(http.DefaultTransport),
			},
			MaxAttempts: opts.RetryMax,
			BaseBackoff: opts.RetryBackoff,
			Timeout:     opts.Timeout,
		},
	}
}

type restEnvelope struct {
	Result *string `json:"result"`
}

// Get fetches and deserializes the config for a code. A missing key returns
// (nil, nil). Malformed stored JSON also reads as a miss: corrupt persisted
// state must degrade to "code unknown" rather than break the redemption path.
func (u *Upstash) Get(ctx context.Context, code string) (*CodeConfig, error) {
	endpoint := fmt.Sprintf("%s/get/%s", u.BaseURL, url.PathEscape(Key(code)))
	env, err := u.call(ctx, http.MethodGet, endpoint)
	if err != nil {
		return nil, err
	}
	if env.Result == nil || *env.Result == "" {
		return nil, nil
	}
	var cfg CodeConfig
	if err := json.Unmarshal([]byte(*env.Result), &cfg); err != nil {
		return nil, nil
	}
	return &cfg, nil
}

// Set serializes the config and writes it through the REST set command. The
// write is awaited: success is only reported once the service confirms "OK".
func (u *Upstash) Set(ctx context.Context, code string, cfg *CodeConfig) error {
	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	endpoint := fmt.Sprintf("%s/set/%s/%s", u.BaseURL, url.PathEscape(Key(code)), url.PathEscape(string(raw)))
	env, err := u.call(ctx, http.MethodPost, endpoint)
	if err != nil {
		return err
	}
	if env.Result == nil || *env.Result != "OK" {
		return errors.New("remote store rejected write")
	}
	return nil
}

func (u *Upstash) call(ctx context.Context, method, endpoint string) (*restEnvelope, error) {
	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+u.Token)

	client := u.HTTP
	if client.Client == nil {
		client.Client = http.DefaultClient
	}
	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("remote store request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read remote store response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote store status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var env restEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("decode remote store response: %w", err)
	}
	return &env, nil
}
