package health

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/noah-isme/toko-storefront/internal/common"
)

const defaultProbeTimeout = 500 * time.Millisecond

var errNotConfigured = errors.New("not configured")

// Probe checks one dependency.
type Probe struct {
	Name    string
	Timeout time.Duration
	Check   func(ctx context.Context) error
}

var draining atomic.Bool

// SetReady toggles readiness. The server turns it off as soon as shutdown
// starts so load balancers stop routing new shoppers to the instance.
func SetReady(v bool) {
	draining.Store(!v)
}

// Handler serves the liveness and readiness endpoints.
type Handler struct {
	Probes []Probe
}

// Live answers as long as the process serves HTTP.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready runs every probe concurrently and answers 503 when one fails or the
// server is draining.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	checks := h.run(r.Context())
	healthy := !draining.Load()
	for _, result := range checks {
		if result != "ok" {
			healthy = false
		}
	}
	body := map[string]any{"checks": checks}
	status := http.StatusOK
	switch {
	case draining.Load():
		body["status"] = "draining"
		status = http.StatusServiceUnavailable
	case !healthy:
		body["status"] = "degraded"
		status = http.StatusServiceUnavailable
	default:
		body["status"] = "ready"
	}
	common.Data(w, status, body)
}

func (h Handler) run(ctx context.Context) map[string]string {
	results := make(map[string]string, len(h.Probes))
	var mu sync.Mutex
	var wg sync.WaitGroup
	for _, p := range h.Probes {
		wg.Add(1)
		go func(p Probe) {
			defer wg.Done()
			outcome := "ok"
			if err := p.do(ctx); err != nil {
				outcome = err.Error()
			}
			mu.Lock()
			results[p.Name] = outcome
			mu.Unlock()
		}(p)
	}
	wg.Wait()
	return results
}

func (p Probe) do(ctx context.Context) error {
	if p.Check == nil {
		return errNotConfigured
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return p.Check(ctx)
}
