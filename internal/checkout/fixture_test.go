package checkout_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/checkout"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/payment"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/product"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/stock"
)

type fakeStock struct {
	mu    sync.Mutex
	err   error
	calls int
}

func (f *fakeStock) Validate(_ context.Context, _ []stock.Detail) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.err
}

func (f *fakeStock) set(err error) {
	f.mu.Lock()
	f.err = err
	f.mu.Unlock()
}

type fakeOrders struct {
	calls atomic.Int32
	err   error
}

func (f *fakeOrders) Create(context.Context, order.Payload) (order.Created, error) {
	f.calls.Add(1)
	if f.err != nil {
		return order.Created{}, f.err
	}
	return order.Created{ID: 501}, nil
}

type fakeGateway struct {
	ready bool
	calls atomic.Int32
	err   error
}

func (g *fakeGateway) Name() string { return "fake" }
func (g *fakeGateway) Ready() bool  { return g.ready }
func (g *fakeGateway) CreatePreference(context.Context, order.Payload) (payment.Preference, error) {
	g.calls.Add(1)
	if g.err != nil {
		return payment.Preference{}, g.err
	}
	return payment.Preference{ID: "pref-1", InitPoint: "https://gateway.example/init/pref-1"}, nil
}

type fixture struct {
	mr        *miniredis.Miniredis
	store     *session.Store
	stock     *fakeStock
	orders    *fakeOrders
	gateway   *fakeGateway
	sessions  *checkout.Sessions
	machine   checkout.Machine
	submitter *checkout.Submitter
}

var pizza = product.Article{ID: 12, Denomination: "Pizza", SalePrice: 1000}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	f := &fixture{
		mr:      mr,
		store:   session.NewStore(cache.New(rdb, time.Hour)),
		stock:   &fakeStock{},
		orders:  &fakeOrders{},
		gateway: &fakeGateway{ready: true},
	}
	f.sessions = checkout.NewSessions(time.Hour, f.stock, f.store, zerolog.Nop())
	t.Cleanup(f.sessions.Registry.Close)
	f.machine = checkout.Machine{Gateway: f.gateway}
	f.submitter = &checkout.Submitter{
		Orders:  f.orders,
		Gateway: f.gateway,
		Store:   f.store,
		Locker:  lock.Locker{R: rdb},
		LockTTL: time.Second,
		Rule:    pricing.DefaultDeliveryRule,
		Now:     func() time.Time { return time.Date(2026, 5, 4, 12, 0, 0, 0, time.UTC) },
	}
	return f
}

func sessionCtx(id string) context.Context {
	return common.WithSessionID(context.Background(), id)
}

// confirmed returns a session at CONFIRMATION with the given payment choice.
func (f *fixture) confirmed(t *testing.T, id string, delivery order.DeliveryType, method order.PaymentMethod) *checkout.Session {
	t.Helper()
	sess, err := f.sessions.Get(sessionCtx(id))
	require.NoError(t, err)
	sess.Cart().AddToCart(pizza, 3)
	sess.Tracker().Wait()

	_, err = sess.Enter(f.machine, true)
	require.NoError(t, err)
	var addr *int64
	if delivery == order.Delivery {
		addr = ptr(4)
	}
	_, err = sess.SelectDelivery(f.machine, delivery, addr)
	require.NoError(t, err)
	_, err = sess.Next(f.machine, true)
	require.NoError(t, err)
	_, err = sess.SelectPayment(f.machine, method)
	require.NoError(t, err)
	d, err := sess.Next(f.machine, true)
	require.NoError(t, err)
	require.Equal(t, checkout.StepConfirmation, d.Step)
	return sess
}

var customer = session.Identity{ID: 7, Role: "CLIENTE", Username: "ana"}
