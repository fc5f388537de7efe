package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// DefaultCheckoutURL is used when PAYPER_CHECKOUT_URL is not configured.
const DefaultCheckoutURL = "https://checkout-staging.payper.ca/api/v2/checkout-session"

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv string
	Port   string

	// Vendor (PayPer) checkout-session endpoint and default credential.
	CheckoutURL    string
	PayperToken    string
	MerchantNtfURL string
	NotifyEmail    string
	NotifyPhone    string

	// Admin protection for code registration. Empty disables the check.
	AdminAPIKey string

	// Remote code store. Either an Upstash REST endpoint or a native
	// redis:// URL. When both are absent the in-process store is used.
	UpstashURL   string
	UpstashToken string
	RedisURL     string

	// PublicBaseURL overrides scheme/host derived from the request when
	// building short URLs and return URLs.
	PublicBaseURL string

	CORSAllowedOrigins []string

	VendorTimeout time.Duration
	StoreTimeout  time.Duration

	// Vendor circuit breaker. A zero threshold leaves the breaker off.
	VendorBreakerThreshold int
	VendorBreakerCoolOff   time.Duration

	// Remote-store retry policy. The REST get/set commands are idempotent,
	// so transient failures are retried; StoreRetryMax counts total attempts.
	StoreRetryMax     int
	StoreRetryBackoff time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		CheckoutURL:        valueOrDefault(k.String("PAYPER_CHECKOUT_URL"), DefaultCheckoutURL),
		PayperToken:        strings.TrimSpace(k.String("PAYPER_TOKEN")),
		MerchantNtfURL:     strings.TrimSpace(k.String("MERCHANT_NTF_URL")),
		NotifyEmail:        strings.TrimSpace(k.String("NOTIFY_EMAIL")),
		NotifyPhone:        strings.TrimSpace(k.String("NOTIFY_PHONE")),
		AdminAPIKey:        strings.TrimSpace(k.String("ADMIN_API_KEY")),
		UpstashURL:         strings.TrimRight(strings.TrimSpace(k.String("UPSTASH_REDIS_REST_URL")), "/"),
		UpstashToken:       strings.TrimSpace(k.String("UPSTASH_REDIS_REST_TOKEN")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		PublicBaseURL:      strings.TrimRight(strings.TrimSpace(k.String("PUBLIC_BASE_URL")), "/"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		VendorTimeout:      parseDuration(k.String("VENDOR_TIMEOUT"), "10s"),
		StoreTimeout:       parseDuration(k.String("STORE_TIMEOUT"), "3s"),

		VendorBreakerThreshold: parseInt(k.String("VENDOR_BREAKER_THRESHOLD"), 0),
		VendorBreakerCoolOff:   parseDuration(k.String("VENDOR_BREAKER_COOLOFF"), "30s"),
		StoreRetryMax:          parseInt(k.String("STORE_RETRY_MAX"), 2),
		StoreRetryBackoff:      parseDuration(k.String("STORE_RETRY_BACKOFF"), "50ms"),

		RateLimitWindow:    parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:       parseInt(k.String("RATE_LIMIT_MAX"), 60),
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// HasUpstash reports whether the Upstash REST backend is fully configured.
// Both the endpoint and the credential are required; a partial configuration
// behaves as if no remote store exists.
func (c *Config) HasUpstash() bool {
	return c.UpstashURL != "" && c.UpstashToken != ""
}

// HasRedis reports whether a native Redis backend is configured.
func (c *Config) HasRedis() bool {
	return c.RedisURL != ""
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	n, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return n
}

// MustLoad behaves like Load but panics on error. Useful for tests and command entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
