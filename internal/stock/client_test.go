package stock_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/backend"
	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/product"
	"github.com/noah-isme/toko-storefront/internal/stock"
)

func newStockClient(t *testing.T, h http.HandlerFunc) *stock.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	hc := backend.NewHTTPClient(backend.Options{Timeout: time.Second, BreakerMinRequests: 10, BreakerOpenFor: time.Minute})
	return &stock.Client{Backend: backend.NewClient(srv.URL, hc, zerolog.Nop()), Logger: zerolog.Nop()}
}

func TestDetailsForMapsKinds(t *testing.T) {
	s := cart.New()
	s.AddToCart(product.Article{ID: 4, SalePrice: 100}, 2)
	s.AddToCart(product.Promotion{ID: 9, PromotionalPrice: 300}, 1)

	raw, err := json.Marshal(stock.DetailsFor(s.Snapshot()))
	require.NoError(t, err)
	require.JSONEq(t, `[{"cantidad":2,"articuloId":4},{"cantidad":1,"promocionId":9}]`, string(raw))
}

func TestValidateSuccess(t *testing.T) {
	cl := newStockClient(t, func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Detalles []stock.Detail `json:"detalles"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Len(t, body.Detalles, 1)
		_, _ = w.Write([]byte(`{}`))
	})
	id := int64(1)
	require.NoError(t, cl.Validate(context.Background(), []stock.Detail{{Quantity: 1, ArticleID: &id}}))
}

func TestValidateShortageMessagesVerbatim(t *testing.T) {
	cases := map[string][]string{
		`{"message":"Stock insuficiente de Pizza (queso)"}`:     {"Stock insuficiente de Pizza (queso)"},
		`{"message":["Pizza: falta queso","Combo: falta pan"]}`: {"Pizza: falta queso", "Combo: falta pan"},
	}
	for body, want := range cases {
		cl := newStockClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(body))
		})
		id := int64(1)
		err := cl.Validate(context.Background(), []stock.Detail{{Quantity: 50, ArticleID: &id}})
		var shortage *stock.ShortageError
		require.True(t, errors.As(err, &shortage))
		require.Equal(t, want, shortage.Messages)
		require.Equal(t, want, stock.Messages(err))
	}
}

func TestValidateTransportFailureIsGeneric(t *testing.T) {
	cl := newStockClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	id := int64(1)
	err := cl.Validate(context.Background(), []stock.Detail{{Quantity: 1, ArticleID: &id}})
	require.ErrorIs(t, err, stock.ErrUnavailable)
	require.Equal(t, []string{stock.UnavailableMessage}, stock.Messages(err))
}

func TestValidateUnstructuredClientErrorIsGeneric(t *testing.T) {
	cl := newStockClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`not json`))
	})
	id := int64(1)
	err := cl.Validate(context.Background(), []stock.Detail{{Quantity: 1, ArticleID: &id}})
	require.ErrorIs(t, err, stock.ErrUnavailable)
}

func TestValidateEmptySkipsRoundTrip(t *testing.T) {
	cl := newStockClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("unexpected request")
	})
	require.NoError(t, cl.Validate(context.Background(), nil))
}
