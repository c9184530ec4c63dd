package config_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/config"
)

func baseEnv() map[string]string {
	return map[string]string{
		"REDIS_URL":        "redis://localhost:6379/0",
		"BACKEND_BASE_URL": "http://backend.local/api/",
		"JWT_SECRET":       "secret",
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.LoadForTests(baseEnv())
	require.NoError(t, err)

	require.Equal(t, "http://backend.local/api", cfg.BackendBaseURL)
	require.Equal(t, int64(399), cfg.DeliveryFeeMinor)
	require.Equal(t, int64(2500), cfg.FreeShippingThresholdMinor)
	require.Equal(t, "1.7", cfg.PriceMarkup)
	require.Equal(t, "backend", cfg.PaymentGateway)
	require.Equal(t, 5*time.Second, cfg.BackendTimeout)
	require.Equal(t, http.SameSiteLaxMode, cfg.SessionCookieSameSite)
	require.Equal(t, ":8080", cfg.HTTPAddr())
}

func TestLoadOverrides(t *testing.T) {
	env := baseEnv()
	env["DELIVERY_FEE_MINOR"] = "500"
	env["PAYMENT_GATEWAY"] = "Sandbox"
	env["SESSION_IDLE_TTL"] = "15m"
	env["CORS_ALLOWED_ORIGINS"] = "https://shop.local, https://admin.local"
	cfg, err := config.LoadForTests(env)
	require.NoError(t, err)

	require.Equal(t, int64(500), cfg.DeliveryFeeMinor)
	require.Equal(t, "sandbox", cfg.PaymentGateway)
	require.Equal(t, 15*time.Minute, cfg.SessionIdleTTL)
	require.Equal(t, []string{"https://shop.local", "https://admin.local"}, cfg.CORSAllowedOrigins)
}

func TestLoadRequiresBackend(t *testing.T) {
	env := baseEnv()
	env["BACKEND_BASE_URL"] = ""
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}

func TestLoadRejectsUnknownGateway(t *testing.T) {
	env := baseEnv()
	env["PAYMENT_GATEWAY"] = "paypal"
	_, err := config.LoadForTests(env)
	require.Error(t, err)
}
