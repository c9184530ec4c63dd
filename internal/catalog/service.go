// Package catalog loads purchasable items from the backend.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/product"
)

// ErrNotFound indicates the item does not exist or is no longer sold.
var ErrNotFound = errors.New("catalog: item not found")

const dateLayout = "2006-01-02"

type categoryWire struct {
	ID           int64  `json:"id"`
	Denominacion string `json:"denominacion"`
}

type articleWire struct {
	ID           int64         `json:"id"`
	Denominacion string        `json:"denominacion"`
	PrecioVenta  float64       `json:"precioVenta"`
	Categoria    *categoryWire `json:"categoria"`
	Imagen       string        `json:"imagen"`
	FechaBaja    *string       `json:"fechaBaja"`
}

type promotionWire struct {
	ID                int64   `json:"id"`
	Denominacion      string  `json:"denominacion"`
	PrecioPromocional float64 `json:"precioPromocional"`
	FechaDesde        string  `json:"fechaDesde"`
	FechaHasta        string  `json:"fechaHasta"`
	FechaBaja         *string `json:"fechaBaja"`
	Detalles          []struct {
		Cantidad int `json:"cantidad"`
		Articulo struct {
			ID           int64  `json:"id"`
			Denominacion string `json:"denominacion"`
		} `json:"articulo"`
	} `json:"detalles"`
}

// Service resolves items through a read-through Redis cache.
type Service struct {
	Backend *backend.Client
	Cache   *cache.JSON
	Logger  zerolog.Logger
}

func cacheKey(key product.Key) string {
	return "catalog:" + key.String()
}

// Item returns the purchasable item identified by key.
func (s *Service) Item(ctx context.Context, key product.Key) (product.Item, error) {
	if s.Cache != nil {
		var cached product.Envelope
		ok, err := s.Cache.GetJSON(ctx, cacheKey(key), &cached)
		if err == nil && ok && cached.Item != nil {
			return cached.Item, nil
		}
	}
	item, err := s.fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	if s.Cache != nil {
		if err := s.Cache.SetJSON(ctx, cacheKey(key), product.Envelope{Item: item}); err != nil {
			s.Logger.Warn().Err(err).Str("key", key.String()).Msg("catalog_cache_set_failed")
		}
	}
	return item, nil
}

func (s *Service) fetch(ctx context.Context, key product.Key) (product.Item, error) {
	switch key.Kind {
	case product.KindArticle:
		var w articleWire
		if err := s.get(ctx, fmt.Sprintf("/articulos/%d", key.ID), &w); err != nil {
			return nil, err
		}
		if w.FechaBaja != nil && strings.TrimSpace(*w.FechaBaja) != "" {
			return nil, ErrNotFound
		}
		a := product.Article{
			ID:           w.ID,
			Denomination: w.Denominacion,
			SalePrice:    pricing.FromFloat(w.PrecioVenta),
			ImageURL:     w.Imagen,
		}
		if w.Categoria != nil {
			a.Category = &product.Category{ID: w.Categoria.ID, Denomination: w.Categoria.Denominacion}
		}
		return a, nil
	case product.KindPromotion:
		var w promotionWire
		if err := s.get(ctx, fmt.Sprintf("/promociones/%d", key.ID), &w); err != nil {
			return nil, err
		}
		if w.FechaBaja != nil && strings.TrimSpace(*w.FechaBaja) != "" {
			return nil, ErrNotFound
		}
		p := product.Promotion{
			ID:               w.ID,
			Denomination:     w.Denominacion,
			PromotionalPrice: pricing.FromFloat(w.PrecioPromocional),
			From:             parseDate(w.FechaDesde),
			To:               parseDate(w.FechaHasta),
		}
		for _, d := range w.Detalles {
			p.Articles = append(p.Articles, product.BundledEntry{
				ArticleID:    d.Articulo.ID,
				Denomination: d.Articulo.Denominacion,
				Quantity:     d.Cantidad,
			})
		}
		return p, nil
	default:
		return nil, fmt.Errorf("catalog: unsupported kind %q", key.Kind)
	}
}

func (s *Service) get(ctx context.Context, path string, out any) error {
	err := s.Backend.Do(ctx, http.MethodGet, path, nil, out)
	var se *backend.StatusError
	if errors.As(err, &se) && se.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	return err
}

func parseDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	if len(raw) > len(dateLayout) {
		raw = raw[:len(dateLayout)]
	}
	t, err := time.Parse(dateLayout, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}
