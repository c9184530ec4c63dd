package config

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	RedisURL           string
	CORSAllowedOrigins []string

	BackendBaseURL             string
	BackendTimeout             time.Duration
	BackendBreakerMinRequests  int
	BackendBreakerFailureRatio float64
	BackendBreakerOpenFor      time.Duration
	BackendReadAttempts        int

	JWTSecret   string
	JWTIssuer   string
	JWTAudience string

	SessionCookieName     string
	SessionCookieSecure   bool
	SessionCookieSameSite http.SameSite
	SessionIdleTTL        time.Duration
	SessionStateTTL       time.Duration

	CurrencyCode               string
	DeliveryFeeMinor           int64
	FreeShippingThresholdMinor int64
	PriceMarkup                string

	CatalogCacheTTL time.Duration
	IdempotencyTTL  time.Duration
	SubmitLockTTL   time.Duration

	PaymentGateway     string
	PaymentPublicKey   string
	PaymentSandboxHost string
	PaymentReturnURL   string

	RateLimitWindow time.Duration
	RateLimitMax    int
	BodyLimitBytes  int64
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
		RedisURL:           k.String("REDIS_URL"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		BackendBaseURL:             strings.TrimRight(strings.TrimSpace(k.String("BACKEND_BASE_URL")), "/"),
		BackendTimeout:             parseDuration(k.String("BACKEND_TIMEOUT"), "5s"),
		BackendBreakerMinRequests:  parseInt(k.String("BACKEND_BREAKER_MIN_REQUESTS"), 5),
		BackendBreakerFailureRatio: parseFloat(k.String("BACKEND_BREAKER_FAILURE_RATIO"), 0.5),
		BackendBreakerOpenFor:      parseDuration(k.String("BACKEND_BREAKER_OPEN_FOR"), "30s"),
		BackendReadAttempts:        parseInt(k.String("BACKEND_READ_ATTEMPTS"), 2),

		JWTSecret:   k.String("JWT_SECRET"),
		JWTIssuer:   strings.TrimSpace(k.String("JWT_ISSUER")),
		JWTAudience: strings.TrimSpace(k.String("JWT_AUDIENCE")),

		SessionCookieName:     valueOrDefault(k.String("SESSION_COOKIE_NAME"), "sid"),
		SessionCookieSecure:   parseBool(k.String("SESSION_COOKIE_SECURE")),
		SessionCookieSameSite: parseSameSite(k.String("SESSION_COOKIE_SAMESITE")),
		SessionIdleTTL:        parseDuration(k.String("SESSION_IDLE_TTL"), "2h"),
		SessionStateTTL:       parseDuration(k.String("SESSION_STATE_TTL"), "24h"),

		CurrencyCode:               valueOrDefault(k.String("CURRENCY_CODE"), "ARS"),
		DeliveryFeeMinor:           int64(parseInt(k.String("DELIVERY_FEE_MINOR"), 399)),
		FreeShippingThresholdMinor: int64(parseInt(k.String("FREE_SHIPPING_THRESHOLD_MINOR"), 2500)),
		PriceMarkup:                valueOrDefault(k.String("PRICE_MARKUP"), "1.7"),

		CatalogCacheTTL: parseDuration(k.String("CATALOG_CACHE_TTL"), "60s"),
		IdempotencyTTL:  parseDuration(k.String("IDEMPOTENCY_TTL"), "10m"),
		SubmitLockTTL:   parseDuration(k.String("SUBMIT_LOCK_TTL"), "30s"),

		PaymentGateway:     strings.ToLower(valueOrDefault(k.String("PAYMENT_GATEWAY"), "backend")),
		PaymentPublicKey:   strings.TrimSpace(k.String("PAYMENT_PUBLIC_KEY")),
		PaymentSandboxHost: strings.TrimSpace(k.String("PAYMENT_SANDBOX_HOST")),
		PaymentReturnURL:   strings.TrimSpace(k.String("PAYMENT_RETURN_URL")),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    parseInt(k.String("RATE_LIMIT_MAX"), 60),
		BodyLimitBytes:  int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),
	}

	if cfg.SessionCookieSameSite == http.SameSiteDefaultMode {
		cfg.SessionCookieSameSite = http.SameSiteLaxMode
	}

	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.BackendBaseURL == "" {
		return nil, errors.New("BACKEND_BASE_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	switch cfg.PaymentGateway {
	case "backend", "sandbox":
	default:
		return nil, fmt.Errorf("PAYMENT_GATEWAY %q is not supported", cfg.PaymentGateway)
	}
	if cfg.DeliveryFeeMinor < 0 || cfg.FreeShippingThresholdMinor < 0 {
		return nil, errors.New("delivery fee and free shipping threshold must not be negative")
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
		return strings.TrimSpace(value)
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
	parsed, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseSameSite(value string) http.SameSite {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "strict":
		return http.SameSiteStrictMode
	case "none":
		return http.SameSiteNoneMode
	case "lax":
		return http.SameSiteLaxMode
	default:
		return http.SameSiteDefaultMode
	}
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
