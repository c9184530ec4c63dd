package order

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
)

// DefaultPath is the backend order collection.
const DefaultPath = "/pedidos"

// Created is the part of the created order the storefront needs.
type Created struct {
	ID int64 `json:"id"`
}

// Order is the confirmation view of a placed order.
type Order struct {
	ID          int64   `json:"id"`
	FechaPedido string  `json:"fechaPedido"`
	Estado      string  `json:"estado"`
	TipoEnvio   string  `json:"tipoEnvio"`
	FormaPago   string  `json:"formaPago"`
	Total       float64 `json:"total"`
}

// Client creates and reads orders on the backend.
type Client struct {
	Backend *backend.Client
	Path    string
	Logger  zerolog.Logger
}

func (c *Client) path() string {
	if c.Path != "" {
		return c.Path
	}
	return DefaultPath
}

// Create posts a validated payload and returns the created order id.
func (c *Client) Create(ctx context.Context, p Payload) (Created, error) {
	if err := p.Validate(); err != nil {
		return Created{}, err
	}
	var out Created
	if err := c.Backend.Do(ctx, http.MethodPost, c.path(), p, &out); err != nil {
		return Created{}, err
	}
	if out.ID <= 0 {
		return Created{}, fmt.Errorf("order: backend returned no id")
	}
	return out, nil
}

// Get loads an order for the confirmation view.
func (c *Client) Get(ctx context.Context, id int64) (Order, error) {
	var out Order
	if err := c.Backend.Do(ctx, http.MethodGet, fmt.Sprintf("%s/%d", c.path(), id), nil, &out); err != nil {
		return Order{}, err
	}
	return out, nil
}
