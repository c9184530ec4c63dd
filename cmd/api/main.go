package main

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"

	"github.com/noah-isme/toko-storefront/internal/address"
	"github.com/noah-isme/toko-storefront/internal/auth"
	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/catalog"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/config"
	"github.com/noah-isme/toko-storefront/internal/health"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/payment"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/ratelimit"
	"github.com/noah-isme/toko-storefront/internal/resilience"
	"github.com/noah-isme/toko-storefront/internal/security"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/stock"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logFormat := envOrDefault("OBS_LOG_FORMAT", "json")
	logLevel := envOrDefault("OBS_LOG_LEVEL", "info")
	logger := obs.NewLogger(logFormat, logLevel).With().Str("env", cfg.AppEnv).Logger()

	metricsNamespace := envOrDefault("OBS_METRICS_NAMESPACE", "storefront")
	metricsEnabled := envBool("OBS_ENABLE_PROMETHEUS", true)
	obs.MustRegisterDomainMetrics(metricsNamespace, nil)
	if metricsEnabled {
		for _, c := range resilience.Collectors() {
			if err := prometheus.Register(c); err != nil {
				logger.Error().Err(err).Msg("register breaker metrics")
			}
		}
	}

	tracingEnabled := envBool("OBS_ENABLE_TRACING", true)
	if tracingEnabled {
		sampling := envFloat("OBS_TRACING_SAMPLING_RATIO", 1.0)
		shutdown, err := obs.InitTracer(context.Background(), obs.TracingConfig{
			ServiceName:   "toko-storefront",
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
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					logger.Error().Err(err).Msg("shutdown tracer")
				}
			}()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
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
	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	backendClient := backend.NewClient(cfg.BackendBaseURL, backend.NewHTTPClient(backend.Options{
		Timeout:             cfg.BackendTimeout,
		BreakerMinRequests:  cfg.BackendBreakerMinRequests,
		BreakerFailureRatio: cfg.BackendBreakerFailureRatio,
		BreakerOpenFor:      cfg.BackendBreakerOpenFor,
		ReadAttempts:        cfg.BackendReadAttempts,
		Logger:              logger,
	}), logger)

	markup, err := pricing.ParseMarkup(cfg.PriceMarkup)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse price markup")
	}
	rule := pricing.DeliveryRule{Fee: cfg.DeliveryFeeMinor, FreeThreshold: cfg.FreeShippingThresholdMinor}

	catalogService := &catalog.Service{
		Backend: backendClient,
		Cache:   cache.New(redisClient, cfg.CatalogCacheTTL),
		Logger:  logger,
	}
	addressService := &address.Service{Backend: backendClient, Logger: logger}
	orderClient := &order.Client{Backend: backendClient, Logger: logger}
	stockClient := &stock.Client{Backend: backendClient, Logger: logger}

	var (
		gateway        payment.Gateway
		sandboxHandler *payment.SandboxHandler
	)
	switch cfg.PaymentGateway {
	case "sandbox":
		gateway = &payment.Sandbox{Orders: orderClient, Host: cfg.PaymentSandboxHost, Logger: logger}
		sandboxHandler = &payment.SandboxHandler{ReturnURL: cfg.PaymentReturnURL}
	default:
		gateway = &payment.BackendGateway{
			Backend:   backendClient,
			PublicKey: cfg.PaymentPublicKey,
			ReturnURL: cfg.PaymentReturnURL,
			Logger:    logger,
		}
	}
	if !gateway.Ready() {
		logger.Warn().Str("gateway", gateway.Name()).Msg("payment gateway not ready, gateway checkout disabled")
	}

	sessionStore := session.NewStore(cache.New(redisClient, cfg.SessionStateTTL))
	sessions := checkout.NewSessions(cfg.SessionIdleTTL, stockClient, sessionStore, logger)

	sweepCtx, stopSweep := context.WithCancel(context.Background())
	defer stopSweep()
	go sessions.Registry.Run(sweepCtx, time.Minute)

	authMiddleware := auth.Middleware{
		Verifier:     auth.NewVerifier(cfg.JWTSecret, cfg.JWTIssuer, cfg.JWTAudience),
		Store:        sessionStore,
		AccessCookie: envOrDefault("AUTH_ACCESS_COOKIE", "access_token"),
		Logger:       logger,
	}

	machine := checkout.Machine{Gateway: gateway, Logger: logger}
	submitter := &checkout.Submitter{
		Orders:  orderClient,
		Gateway: gateway,
		Store:   sessionStore,
		Locker:  lock.Locker{R: redisClient},
		LockTTL: cfg.SubmitLockTTL,
		Rule:    rule,
		Logger:  logger,
	}

	cartHandler := &cart.Handler{Sessions: sessions, Items: catalogService, Currency: cfg.CurrencyCode}
	checkoutHandler := &checkout.Handler{
		Sessions:  sessions,
		Machine:   machine,
		Submitter: submitter,
		Addresses: addressService,
		Rule:      rule,
		Currency:  cfg.CurrencyCode,
	}
	catalogHandler := &catalog.Handler{Service: catalogService}
	addressHandler := &address.Handler{Service: addressService}
	orderHandler := &order.Handler{Client: orderClient}
	pricingHandler := &pricing.Handler{Markup: markup, Currency: cfg.CurrencyCode}

	idem := common.Idem{
		R:   redisClient,
		TTL: cfg.IdempotencyTTL,
		Scope: func(r *http.Request) string {
			return common.SessionID(r.Context())
		},
	}
	limiter := ratelimit.Limiter{Client: redisClient, Prefix: "ratelimit:"}
	onLimitError := func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") }
	submitLimit := ratelimit.Rule{Scope: "submit", Window: cfg.RateLimitWindow, Max: max(1, cfg.RateLimitMax/6), Limiter: limiter, OnError: onLimitError}
	cartLimit := ratelimit.Rule{Scope: "cart", Window: cfg.RateLimitWindow, Max: cfg.RateLimitMax, Limiter: limiter, OnError: onLimitError}

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
	r.Use(session.Cookie{
		Name:     cfg.SessionCookieName,
		Secure:   cfg.SessionCookieSecure,
		SameSite: cfg.SessionCookieSameSite,
		MaxAge:   cfg.SessionStateTTL,
	}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token", "Idempotency-Key"},
		ExposedHeaders:   []string{"Link", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(security.Headers{
		Enable:     envBool("SECURE_HEADERS_ENABLE", true),
		EnableHSTS: envBool("SECURE_HSTS_ENABLE", cfg.SessionCookieSecure),
		HSTSMaxAge: envInt("SECURE_HSTS_MAX_AGE", 31536000),
	}.Middleware)

	if metricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}
	if envBool("OBS_ENABLE_PPROF", false) {
		user := envOrDefault("SECURE_PPROF_BASIC_AUTH_USER", "")
		pass := envOrDefault("SECURE_PPROF_BASIC_AUTH_PASS", "")
		r.Mount("/debug/pprof", protectPprof(newPprofMux(), user, pass))
	}

	healthHandler := health.Handler{Probes: []health.Probe{
		{
			Name:    "redis",
			Timeout: envDurationMillis("HEALTH_READY_REDIS_TIMEOUT_MS", 300),
			Check:   func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
		// the breaker state only; a live call per readiness check would count against it
		{
			Name: "backend",
			Check: func(context.Context) error {
				if !backendClient.Healthy() {
					return backend.ErrUnavailable
				}
				return nil
			},
		},
	}}
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	if sandboxHandler != nil {
		r.Get("/sandbox/checkout/{preferenceID}", sandboxHandler.Checkout)
	}

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(security.BodyLimit{Max: cfg.BodyLimitBytes}.Middleware)
		v.Use(security.CSRF{Secure: cfg.SessionCookieSecure}.Middleware)
		v.Use(authMiddleware.Authenticate)

		v.Get("/catalog/items/{key}", catalogHandler.Item)
		v.Post("/pricing/manufactured", pricingHandler.Manufactured)

		v.Route("/cart", func(c chi.Router) {
			c.Use(sessions.Hold)
			c.Get("/", cartHandler.Get)
			c.Group(func(g chi.Router) {
				g.Use(cartLimit.Middleware)
				g.Delete("/", cartHandler.Clear)
				g.Post("/items", cartHandler.AddItem)
				g.Patch("/items/{lineId}", cartHandler.UpdateItem)
				g.Delete("/items/{lineId}", cartHandler.RemoveItem)
			})
		})

		v.Route("/addresses", func(a chi.Router) {
			a.Get("/localities", addressHandler.Localities)
			a.Group(func(g chi.Router) {
				g.Use(authMiddleware.RequireAuth)
				g.Get("/", addressHandler.List)
				g.Post("/", addressHandler.Create)
			})
		})

		v.With(authMiddleware.RequireAuth).Get("/orders/{orderID}", orderHandler.Get)

		v.Route("/checkout", func(c chi.Router) {
			c.Use(sessions.Hold)
			c.Post("/", checkoutHandler.Enter)
			c.Get("/", checkoutHandler.Get)
			c.Delete("/", checkoutHandler.Cancel)
			c.Put("/delivery", checkoutHandler.SelectDelivery)
			c.Put("/payment", checkoutHandler.SelectPayment)
			c.With(cartLimit.Middleware).Post("/next", checkoutHandler.Next)
			c.Post("/previous", checkoutHandler.Previous)
			c.With(submitLimit.Middleware, idem.Middleware).Post("/submit", checkoutHandler.Submit)
			c.Get("/return", checkoutHandler.Return)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		health.SetReady(false)
		logger.Info().Msg("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), envDurationMillis("SHUTDOWN_TIMEOUT_MS", 10000))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("shutdown server")
		}
	}()

	logger.Info().Str("addr", srv.Addr).Str("gateway", gateway.Name()).Msg("server starting")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Fatal().Err(err).Msg("server exited unexpectedly")
	}
	stopSweep()
	sessions.Registry.Close()
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
	mux.Handle("/heap", pprof.Handler("heap"))
	mux.Handle("/goroutine", pprof.Handler("goroutine"))
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
