package health_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/health"
)

type readyBody struct {
	Data struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	} `json:"data"`
}

func ready(t *testing.T, h health.Handler) (int, readyBody) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.Ready(rec, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	var body readyBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return rec.Code, body
}

func ok(context.Context) error { return nil }

func TestLive(t *testing.T) {
	rec := httptest.NewRecorder()
	health.Handler{}.Live(rec, httptest.NewRequest(http.MethodGet, "/health/live", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "ok", rec.Body.String())
}

func TestReadyAllProbesPass(t *testing.T) {
	code, body := ready(t, health.Handler{Probes: []health.Probe{
		{Name: "redis", Check: ok},
		{Name: "backend", Check: ok},
	}})
	require.Equal(t, http.StatusOK, code)
	require.Equal(t, "ready", body.Data.Status)
	require.Equal(t, map[string]string{"redis": "ok", "backend": "ok"}, body.Data.Checks)
}

func TestReadyReportsFailingProbe(t *testing.T) {
	code, body := ready(t, health.Handler{Probes: []health.Probe{
		{Name: "redis", Check: func(context.Context) error { return errors.New("redis down") }},
		{Name: "backend", Check: ok},
		{Name: "payments"},
	}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "degraded", body.Data.Status)
	require.Equal(t, "redis down", body.Data.Checks["redis"])
	require.Equal(t, "ok", body.Data.Checks["backend"])
	require.Equal(t, "not configured", body.Data.Checks["payments"])
}

func TestReadyProbeTimeout(t *testing.T) {
	slow := func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}
	code, body := ready(t, health.Handler{Probes: []health.Probe{{Name: "backend", Timeout: 10 * time.Millisecond, Check: slow}}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, context.DeadlineExceeded.Error(), body.Data.Checks["backend"])
}

func TestReadyWhileDraining(t *testing.T) {
	health.SetReady(false)
	t.Cleanup(func() { health.SetReady(true) })

	code, body := ready(t, health.Handler{Probes: []health.Probe{{Name: "redis", Check: ok}}})
	require.Equal(t, http.StatusServiceUnavailable, code)
	require.Equal(t, "draining", body.Data.Status)
}
