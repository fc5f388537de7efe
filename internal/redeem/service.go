// Package redeem resolves a short code to a live vendor checkout session and
// hands the caller the redirect target.
package redeem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/holland-leasing/checkout-api/internal/obs"
	"github.com/holland-leasing/checkout-api/internal/payper"
	"github.com/holland-leasing/checkout-api/internal/store"
	"github.com/holland-leasing/checkout-api/internal/token"
)

var (
	// ErrMissingCode means the request carried no code at all.
	ErrMissingCode = errors.New("redeem: missing code")
	// ErrCodeNotFound means the store has no configuration for the code.
	ErrCodeNotFound = errors.New("redeem: code not found")
	// ErrMissingToken means no bearer credential could be resolved.
	ErrMissingToken = errors.New("redeem: no usable token")
)

// VendorClient is the slice of the payper client the orchestrator needs.
// Tests substitute a counting stub to prove unknown codes never reach the
// vendor.
type VendorClient interface {
	CreateSession(ctx context.Context, bearer string, payload payper.Payload) (*payper.Session, error)
}

// Request carries the caller-controlled inputs of one redemption.
type Request struct {
	Code           string
	AmountOverride string
	Token          string
	BaseURL        string
}

// Outcome is a successful redemption.
type Outcome struct {
	RedirectURL string
	Session     *payper.Session
}

// Service runs the redemption sequence: load config, apply the override
// policy, resolve a credential, call the vendor, record usage telemetry.
type Service struct {
	Store          store.Store
	Vendor         VendorClient
	DefaultToken   string
	MerchantNtfURL string
	Logger         zerolog.Logger
	StoreTimeout   time.Duration
	Now            func() time.Time
}

// Redeem executes the flow for one request. The usage-count update is
// fire-and-forget: the redirect is returned regardless of whether the
// telemetry write lands.
func (s *Service) Redeem(ctx context.Context, req Request) (*Outcome, error) {
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return nil, ErrMissingCode
	}

	cfg, err := s.Store.Get(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("load code config: %w", err)
	}
	if cfg == nil {
		return nil, ErrCodeNotFound
	}

	amount := resolveAmount(cfg, req.AmountOverride)

	bearer, ok := token.Resolve(cfg.Token, req.Token, s.DefaultToken)
	if !ok {
		return nil, ErrMissingToken
	}

	payload := payper.BuildPayload(payper.PayloadParams{
		Amount:          amount,
		Product:         cfg.Product,
		Currency:        cfg.Currency,
		ReturnURL:       req.BaseURL + "/payment-return",
		FailedReturnURL: req.BaseURL + "/checkout-failed",
		MerchantNtfURL:  s.MerchantNtfURL,
	})

	session, err := s.Vendor.CreateSession(ctx, bearer, payload)
	if err != nil {
		return nil, err
	}

	go s.recordUsage(code, *cfg)

	return &Outcome{RedirectURL: session.URL, Session: session}, nil
}

// resolveAmount applies the override policy: the stored amount wins unless
// overrides are enabled and the caller supplied a positive number. Anything
// else is silently ignored, not an error.
func resolveAmount(cfg *store.CodeConfig, override string) float64 {
	amount := cfg.Amount
	trimmed := strings.TrimSpace(override)
	if !cfg.AllowAmountOverride || trimmed == "" {
		return amount
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || parsed <= 0 {
		return amount
	}
	return parsed
}

// recordUsage bumps the usage counter best-effort. Failures are logged and
// counted, never surfaced: telemetry must not break a redemption that the
// vendor already accepted. The read-modify-write is intentionally not atomic;
// concurrent redemptions may lose counts and that is accepted.
func (s *Service) recordUsage(code string, cfg store.CodeConfig) {
	timeout := s.StoreTimeout
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	cfg.Touch(now())
	if err := s.Store.Set(ctx, code, &cfg); err != nil {
		if obs.CodeUsageUpdateFailures != nil {
			obs.CodeUsageUpdateFailures.Inc()
		}
		s.Logger.Warn().Err(err).Str("code", code).Msg("usage count update failed")
	}
}
