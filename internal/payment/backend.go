package payment

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
)

// DefaultPreferencePath is the backend endpoint that opens a gateway preference.
const DefaultPreferencePath = "/pagos/preferencia"

// BackendGateway asks the backend to open a preference with the gateway. The
// backend owns the gateway credentials; PublicKey only marks the client side
// as initialised.
type BackendGateway struct {
	Backend   *backend.Client
	PublicKey string
	Path      string
	ReturnURL string
	Logger    zerolog.Logger
}

// Name implements Gateway.
func (g *BackendGateway) Name() string { return "backend" }

// Ready implements Gateway.
func (g *BackendGateway) Ready() bool {
	return g != nil && g.Backend != nil && strings.TrimSpace(g.PublicKey) != ""
}

// CreatePreference implements Gateway.
func (g *BackendGateway) CreatePreference(ctx context.Context, p order.Payload) (Preference, error) {
	if !g.Ready() {
		return Preference{}, ErrNotReady
	}
	path := g.Path
	if path == "" {
		path = DefaultPreferencePath
	}
	if g.ReturnURL != "" {
		path += "?" + url.Values{"backUrl": {g.ReturnURL}}.Encode()
	}
	var out Preference
	if err := g.Backend.Do(ctx, http.MethodPost, path, p, &out); err != nil {
		obs.Inc(obs.PaymentPreferenceTotal, g.Name(), "error")
		return Preference{}, err
	}
	if err := checkInitPoint(out.InitPoint); err != nil || out.ID == "" {
		obs.Inc(obs.PaymentPreferenceTotal, g.Name(), "invalid")
		return Preference{}, fmt.Errorf("payment: malformed preference %q", out.ID)
	}
	obs.Inc(obs.PaymentPreferenceTotal, g.Name(), "ok")
	g.Logger.Info().Str("preference_id", out.ID).Msg("payment_preference_created")
	return out, nil
}

func checkInitPoint(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" {
		return fmt.Errorf("payment: init point %q is not absolute", raw)
	}
	return nil
}
