package session_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	redis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/toko-storefront/internal/cache"
	"github.com/noah-isme/toko-storefront/internal/session"
)

func newStore(t *testing.T) (*session.Store, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return session.NewStore(cache.New(client, time.Hour)), mr
}

func TestStoreDurableKeys(t *testing.T) {
	store, mr := newStore(t)
	ctx := context.Background()

	require.NoError(t, store.SaveIdentity(ctx, "s1", session.Identity{ID: 7, Role: "CLIENTE", Username: "ana"}))
	ident, ok, err := store.Identity(ctx, "s1")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, ident.Active())
	require.True(t, mr.Exists("sess:s1:auth"))

	on, err := store.GatewayInitiated(ctx, "s1")
	require.NoError(t, err)
	require.False(t, on)
	require.NoError(t, store.SetGatewayInitiated(ctx, "s1"))
	on, err = store.GatewayInitiated(ctx, "s1")
	require.NoError(t, err)
	require.True(t, on)
	require.NoError(t, store.ClearGatewayInitiated(ctx, "s1"))
	require.False(t, mr.Exists("sess:s1:gateway_initiated"))

	require.NoError(t, store.SavePendingOrder(ctx, "s1", map[string]int{"total": 10}))
	var pending map[string]int
	ok, err = store.LoadPendingOrder(ctx, "s1", &pending)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 10, pending["total"])
	require.NoError(t, store.ClearPendingOrder(ctx, "s1"))
	ok, err = store.LoadPendingOrder(ctx, "s1", &pending)
	require.NoError(t, err)
	require.False(t, ok)

	mr.FastForward(2 * time.Hour)
	_, ok, err = store.Identity(ctx, "s1")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestDeactivatedIdentityIsInactive(t *testing.T) {
	require.False(t, session.Identity{ID: 1, Deactivated: true}.Active())
	require.False(t, session.Identity{}.Active())
}

func TestCookieMiddlewareIssuesAndKeepsID(t *testing.T) {
	var seen string
	h := session.Cookie{Name: "sid"}.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = session.IDFrom(r.Context())
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NotEmpty(t, seen)
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	require.Equal(t, seen, cookies[0].Value)
	require.True(t, cookies[0].HttpOnly)

	first := seen
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: first})
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.Equal(t, first, seen)

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "sid", Value: "not-a-uuid"})
	h.ServeHTTP(httptest.NewRecorder(), req)
	require.NotEqual(t, "not-a-uuid", seen)
}

func TestRegistryCreatesTouchesAndSweeps(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	created := 0
	var evicted []string
	var counts []int
	reg := session.NewRegistry(time.Hour,
		func(id string) *int { created++; v := created; return &v },
		func(id string, _ *int) { evicted = append(evicted, id) },
	).WithClock(func() time.Time { return now }).OnCount(func(n int) { counts = append(counts, n) })

	a := reg.Get("a")
	require.Same(t, a, reg.Get("a"))
	reg.Get("b")
	require.Equal(t, 2, created)

	now = now.Add(45 * time.Minute)
	reg.Get("a")
	now = now.Add(30 * time.Minute)

	require.Equal(t, 1, reg.Sweep())
	require.Equal(t, []string{"b"}, evicted)
	_, ok := reg.Peek("b")
	require.False(t, ok)
	require.Equal(t, 1, reg.Len())

	reg.Delete("a")
	require.Equal(t, 0, reg.Len())
	require.Equal(t, []int{1, 2, 1, 0}, counts)
}

func TestRegistrySweepSkipsHeldSessions(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	var evicted []string
	reg := session.NewRegistry(time.Hour,
		func(string) *int { v := 1; return &v },
		func(id string, _ *int) { evicted = append(evicted, id) },
	).WithClock(func() time.Time { return now })

	held, release := reg.Acquire("slow")
	now = now.Add(2 * time.Hour)
	require.Zero(t, reg.Sweep())
	require.Same(t, held, reg.Get("slow"))

	now = now.Add(2 * time.Hour)
	release()
	release()
	now = now.Add(30 * time.Minute)
	require.Zero(t, reg.Sweep(), "release counts as activity")

	now = now.Add(time.Hour)
	require.Equal(t, 1, reg.Sweep())
	require.Equal(t, []string{"slow"}, evicted)
}
