// Package stock validates cart quantities against backend inventory.
package stock

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/product"
)

// UnavailableMessage is shown when validation could not reach the backend.
const UnavailableMessage = "No se pudo validar el stock. Intente nuevamente."

// ErrUnavailable is returned when the validation round-trip failed.
var ErrUnavailable = errors.New("stock: validation unavailable")

// ShortageError carries the backend's per-item messages verbatim.
type ShortageError struct {
	Messages []string
}

func (e *ShortageError) Error() string {
	return "stock: shortage: " + strings.Join(e.Messages, "; ")
}

// Detail is one cart line as the validation endpoint expects it.
type Detail struct {
	Quantity    int    `json:"cantidad"`
	ArticleID   *int64 `json:"articuloId,omitempty"`
	PromotionID *int64 `json:"promocionId,omitempty"`
}

// DetailsFor maps cart lines to validation details.
func DetailsFor(snap cart.Snapshot) []Detail {
	out := make([]Detail, 0, len(snap.Lines))
	for _, l := range snap.Lines {
		qty := l.Quantity
		out = append(out, product.Match(l.Item,
			func(a product.Article) Detail { return Detail{Quantity: qty, ArticleID: &a.ID} },
			func(p product.Promotion) Detail { return Detail{Quantity: qty, PromotionID: &p.ID} },
		))
	}
	return out
}

// Messages converts a validation result into the user-facing list. Nil yields none.
func Messages(err error) []string {
	if err == nil {
		return nil
	}
	var shortage *ShortageError
	if errors.As(err, &shortage) {
		return append([]string(nil), shortage.Messages...)
	}
	return []string{UnavailableMessage}
}

// Validator is the single round-trip check.
type Validator interface {
	Validate(ctx context.Context, details []Detail) error
}

// Client calls the backend stock validation endpoint.
type Client struct {
	Backend *backend.Client
	Path    string
	Logger  zerolog.Logger
}

// DefaultPath is the backend validation endpoint.
const DefaultPath = "/pedidos/validar-stock"

// Validate returns nil when every detail can be fulfilled, *ShortageError for
// a structured refusal and ErrUnavailable for anything else.
func (c *Client) Validate(ctx context.Context, details []Detail) error {
	if len(details) == 0 {
		return nil
	}
	path := c.Path
	if path == "" {
		path = DefaultPath
	}
	err := c.Backend.Do(ctx, http.MethodPost, path, map[string]any{"detalles": details}, nil)
	if err == nil {
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	var se *backend.StatusError
	if errors.As(err, &se) {
		if msgs := parseMessages(se.Body); len(msgs) > 0 {
			c.Logger.Warn().Int("status", se.StatusCode).Strs("messages", msgs).Msg("stock_shortage")
			return &ShortageError{Messages: msgs}
		}
	}
	c.Logger.Error().Err(err).Msg("stock_validation_failed")
	return errors.Join(ErrUnavailable, err)
}

// parseMessages accepts {"message": "..."} or {"message": ["...", ...]}.
func parseMessages(body []byte) []string {
	var payload struct {
		Message json.RawMessage `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err != nil || len(payload.Message) == 0 {
		return nil
	}
	var single string
	if err := json.Unmarshal(payload.Message, &single); err == nil {
		if strings.TrimSpace(single) == "" {
			return nil
		}
		return []string{single}
	}
	var many []string
	if err := json.Unmarshal(payload.Message, &many); err != nil {
		return nil
	}
	out := many[:0]
	for _, m := range many {
		if strings.TrimSpace(m) != "" {
			out = append(out, m)
		}
	}
	return out
}
