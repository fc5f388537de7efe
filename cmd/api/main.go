package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"strconv"
	"strings"
	"time"

	validator "github.com/go-playground/validator/v10"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/holland-leasing/checkout-api/internal/checkout"
	"github.com/holland-leasing/checkout-api/internal/codes"
	"github.com/holland-leasing/checkout-api/internal/common"
	"github.com/holland-leasing/checkout-api/internal/config"
	"github.com/holland-leasing/checkout-api/internal/health"
	"github.com/holland-leasing/checkout-api/internal/obs"
	"github.com/holland-leasing/checkout-api/internal/payper"
	"github.com/holland-leasing/checkout-api/internal/ratelimit"
	"github.com/holland-leasing/checkout-api/internal/redeem"
	"github.com/holland-leasing/checkout-api/internal/resilience"
	"github.com/holland-leasing/checkout-api/internal/store"
)

func main() {
	cfg := config.MustLoad()

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "checkout")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)

	tracingEnabled := envBool("OBS_ENABLE_TRACING", false)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "checkout-api",
			Endpoint:      envOrDefault("OBS_OTLP_ENDPOINT", ""),
			Exporter:      envOrDefault("OBS_TRACING_EXPORTER", "otlp"),
			SamplingRatio: sampling,
			Environment:   cfg.AppEnv,
		})
		if err != nil {
			logger.Error().Err(err).Msg("initialise tracing")
			tracingEnabled = false
		} else {
			defer func() {
				ctx := context.Background()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	var redisClient *redis.Client
	if cfg.HasRedis() {
		redisOpts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Fatal().Err(err).Msg("parse redis url")
		}
		redisClient = redis.NewClient(redisOpts)
		if tracingEnabled {
			if err := redisotel.InstrumentTracing(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis tracing")
			}
		}
		if metricsEnabled {
			if err := redisotel.InstrumentMetrics(redisClient); err != nil {
				logger.Error().Err(err).Msg("instrument redis metrics")
			}
		}
		defer func() {
			if err := redisClient.Close(); err != nil {
				logger.Error().Err(err).Msg("close redis")
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			logger.Error().Err(err).Msg("ping redis, continuing degraded")
		}
		cancel()
	}

	// Code store: Upstash REST first, native Redis next, and the in-process
	// store as the always-present fallback.
	local := store.NewMemory()
	var codeStore store.Store = local
	var remote store.Store
	switch {
	case cfg.HasUpstash():
		remote = store.NewUpstash(cfg.UpstashURL, cfg.UpstashToken, store.UpstashOptions{
			Timeout:      cfg.StoreTimeout,
			RetryMax:     cfg.StoreRetryMax,
			RetryBackoff: cfg.StoreRetryBackoff,
		})
	case redisClient != nil:
		remote = store.Redis{Client: redisClient}
	}
	if remote != nil {
		codeStore = store.NewFallback(remote, local, logger)
	} else {
		logger.Warn().Msg("no remote code store configured, codes will not survive restarts")
	}

	var breaker *resilience.Breaker
	if cfg.VendorBreakerThreshold > 0 {
		breaker = resilience.NewBreaker(cfg.VendorBreakerThreshold, cfg.VendorBreakerCoolOff)
	}
	vendor := payper.NewClient(cfg.CheckoutURL, cfg.VendorTimeout, breaker)

	redeemSvc := &redeem.Service{
		Store:          codeStore,
		Vendor:         vendor,
		DefaultToken:   cfg.PayperToken,
		MerchantNtfURL: cfg.MerchantNtfURL,
		Logger:         logger,
		StoreTimeout:   cfg.StoreTimeout,
	}
	redeemHandler := &redeem.Handler{Svc: redeemSvc, PublicBaseURL: cfg.PublicBaseURL}

	checkoutHandler := &checkout.Handler{
		Vendor:         vendor,
		MerchantNtfURL: cfg.MerchantNtfURL,
		NotifyEmail:    cfg.NotifyEmail,
		NotifyPhone:    cfg.NotifyPhone,
		PublicBaseURL:  cfg.PublicBaseURL,
	}

	codesHandler := &codes.Handler{
		Store:         codeStore,
		APIKey:        cfg.AdminAPIKey,
		PublicBaseURL: cfg.PublicBaseURL,
		Validate:      validator.New(),
		Logger:        logger,
	}

	var httpMetrics *obs.HTTPMetrics
	if metricsEnabled {
		buckets := obs.ParseBucketsCSV(envOrDefault("OBS_METRICS_BUCKETS_MS", ""))
		httpMetrics = obs.NewHTTPMetrics(metricsNamespace, buckets, nil)
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	if tracingEnabled {
		r.Use(obs.TracingMiddleware)
	}
	if metricsEnabled && httpMetrics != nil {
		r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	}
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: allowedOrigins(cfg),
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Api-Key"},
		MaxAge:         300,
	}))

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	pprofEnabled := envBool("OBS_ENABLE_PPROF", false)
	if pprofEnabled {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{
		Checker:      health.StoreProber{Store: codeStore},
		StoreTimeout: envDurationMillis("HEALTH_READY_STORE_TIMEOUT_MS", 500),
	}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Group(func(public chi.Router) {
		if redisClient != nil && cfg.RateLimitMax > 0 {
			limiter := ratelimit.Middleware{
				Limiter: ratelimit.Limiter{Client: redisClient, Prefix: "rl:checkout:"},
				Window:  cfg.RateLimitWindow,
				Max:     cfg.RateLimitMax,
				Logger:  logger,
			}
			public.Use(limiter.Handler)
		}
		public.Get("/c/{code}", redeemHandler.Redeem)
		public.Get("/redeem", redeemHandler.Redeem)
		public.Get("/checkout", checkoutHandler.Checkout)
		public.Post("/checkout", checkoutHandler.Checkout)
	})

	r.Route("/api/v1", func(v chi.Router) {
		v.Post("/codes", codesHandler.Register)
		v.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Allow", http.MethodPost)
			common.JSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "use POST", nil)
		})
	})

	srv := &http.Server{
		Addr:    cfg.HTTPAddr(),
		Handler: r,
	}

	logger.Info().Str("addr", srv.Addr).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok {
		trimmed := strings.TrimSpace(val)
		if trimmed != "" {
			return trimmed
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if val, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "1", "t", "true", "yes", "on":
			return true
		case "0", "f", "false", "no", "off":
			return false
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.ParseFloat(strings.TrimSpace(val), 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if val, ok := os.LookupEnv(key); ok {
		if parsed, err := strconv.Atoi(strings.TrimSpace(val)); err == nil {
			return parsed
		}
	}
	return fallback
}

func envDurationMillis(key string, fallback int) time.Duration {
	return time.Duration(envInt(key, fallback)) * time.Millisecond
}

func newPprofMux() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", pprof.Index)
	mux.HandleFunc("/cmdline", pprof.Cmdline)
	mux.HandleFunc("/profile", pprof.Profile)
	mux.HandleFunc("/symbol", pprof.Symbol)
	mux.HandleFunc("/trace", pprof.Trace)
	mux.Handle("/allocs", pprof.Handler("allocs"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
	mux.Handle("/heap", pprof.Handler("heap"))
	return mux
}

func protectPprof(handler http.Handler, user, pass string) http.Handler {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user == "" {
		return handler
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok || subtle.ConstantTimeCompare([]byte(u), []byte(user)) != 1 || subtle.ConstantTimeCompare([]byte(p), []byte(pass)) != 1 {
			w.Header().Set("WWW-Authenticate", "Basic realm=restricted")
			http.Error(w, "unauthorised", http.StatusUnauthorized)
			return
		}
		handler.ServeHTTP(w, r)
	})
}
