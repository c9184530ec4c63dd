package checkout

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/stock"
)

// Session is the live state of one shopper: cart, checkout draft and the
// stock tracker that re-validates the cart after every change.
type Session struct {
	ID      string
	cart    *cart.Store
	tracker *stock.Tracker

	mu       sync.Mutex
	draft    *Draft
	restored bool
}

// NewSession wires a cart to a stock tracker.
func NewSession(id string, v stock.Validator, logger zerolog.Logger) *Session {
	s := &Session{
		ID:      id,
		cart:    cart.New(),
		tracker: stock.NewTracker(v, logger.With().Str("session_id", id).Logger()),
	}
	s.cart.OnChange(func(snap cart.Snapshot) {
		s.tracker.Trigger(stock.DetailsFor(snap))
	})
	return s
}

// Cart returns the session cart.
func (s *Session) Cart() *cart.Store { return s.cart }

// StockErrors returns the latest accepted stock validation messages.
func (s *Session) StockErrors() []string { return s.tracker.Errors() }

// Tracker exposes the stock tracker.
func (s *Session) Tracker() *stock.Tracker { return s.tracker }

// Draft returns a copy of the checkout draft.
func (s *Session) Draft() (Draft, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Draft{}, false
	}
	return s.draft.clone(), true
}

// Enter starts checkout unless a draft already exists.
func (s *Session) Enter(m Machine, authenticated bool) (Draft, error) {
	if s.cart.Snapshot().Empty() {
		return Draft{}, ErrEmptyCart
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		d := m.Enter(authenticated)
		s.draft = &d
	}
	return s.draft.clone(), nil
}

// Next advances the draft, evaluating the stock guard on every attempt.
func (s *Session) Next(m Machine, authenticated bool) (Draft, error) {
	return s.update(func(d *Draft) error {
		return m.Next(d, Guard{StockErrors: s.tracker.Errors(), Authenticated: authenticated})
	})
}

// Previous steps back and drops the draft when checkout is left.
func (s *Session) Previous(m Machine, authenticated bool) (Draft, Outcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Draft{}, "", ErrNotInCheckout
	}
	out := m.Previous(s.draft, authenticated)
	if out == ExitedToCart {
		s.draft = nil
		return Draft{}, out, nil
	}
	return s.draft.clone(), out, nil
}

// SelectDelivery records the delivery choice.
func (s *Session) SelectDelivery(m Machine, t order.DeliveryType, addressID *int64) (Draft, error) {
	return s.update(func(d *Draft) error { return m.SelectDelivery(d, t, addressID) })
}

// SelectPayment records the payment method.
func (s *Session) SelectPayment(m Machine, method order.PaymentMethod) (Draft, error) {
	return s.update(func(d *Draft) error { return m.SelectPayment(d, method) })
}

// Cancel leaves checkout.
func (s *Session) Cancel() {
	s.mu.Lock()
	s.draft = nil
	s.mu.Unlock()
}

// Close stops background stock validations.
func (s *Session) Close() { s.tracker.Close() }

// update applies fn to a scratch copy and keeps it only on success.
func (s *Session) update(fn func(*Draft) error) (Draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.draft == nil {
		return Draft{}, ErrNotInCheckout
	}
	scratch := s.draft.clone()
	if err := fn(&scratch); err != nil {
		return s.draft.clone(), err
	}
	s.draft = &scratch
	return scratch.clone(), nil
}

func (s *Session) setDraft(d *Draft) {
	s.mu.Lock()
	s.draft = d
	s.mu.Unlock()
}

// pendingOrder is the snapshot persisted before a payment redirect.
type pendingOrder struct {
	Lines             []cart.Line   `json:"lines"`
	Draft             Draft         `json:"draft"`
	Payload           order.Payload `json:"payload"`
	PreferenceID      string        `json:"preferenceId"`
	ExternalReference string        `json:"externalReference,omitempty"`
	CreatedAt         time.Time     `json:"createdAt"`
}

// Sessions resolves the live Session of a request, restoring a pending draft
// from the durable store the first time a session is seen by this process.
type Sessions struct {
	Registry *session.Registry[*Session]
	Store    *session.Store
	Logger   zerolog.Logger
}

// NewSessions builds the registry of live sessions.
func NewSessions(idle time.Duration, v stock.Validator, store *session.Store, logger zerolog.Logger) *Sessions {
	reg := session.NewRegistry(idle,
		func(id string) *Session { return NewSession(id, v, logger) },
		func(_ string, s *Session) { s.Close() },
	).OnCount(obs.SetLiveSessions)
	return &Sessions{Registry: reg, Store: store, Logger: logger}
}

// Get returns the session bound to ctx.
func (s *Sessions) Get(ctx context.Context) (*Session, error) {
	id := session.IDFrom(ctx)
	if id == "" {
		return nil, common.NewAppError("SESSION_REQUIRED", "session cookie missing", http.StatusBadRequest, nil)
	}
	sess := s.Registry.Get(id)
	s.restore(ctx, sess)
	return sess, nil
}

// Hold keeps the request's session out of idle eviction until the response is
// written, so handlers never mutate a closed session.
func (s *Sessions) Hold(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := session.IDFrom(r.Context())
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}
		_, release := s.Registry.Acquire(id)
		defer release()
		next.ServeHTTP(w, r)
	})
}

// Lookup implements cart.Sessions.
func (s *Sessions) Lookup(r *http.Request) (cart.View, error) {
	sess, err := s.Get(r.Context())
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Sessions) restore(ctx context.Context, sess *Session) {
	sess.mu.Lock()
	done := sess.restored
	sess.mu.Unlock()
	if done || s.Store == nil {
		return
	}
	var p pendingOrder
	ok, err := s.Store.LoadPendingOrder(ctx, sess.ID, &p)
	if err != nil {
		// retried on the next request
		s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("pending_order_restore_failed")
		return
	}
	sess.mu.Lock()
	defer sess.mu.Unlock()
	if sess.restored {
		return
	}
	sess.restored = true
	if !ok {
		return
	}
	if sess.draft == nil {
		d := p.Draft.clone()
		sess.draft = &d
	}
	if sess.cart.Snapshot().Empty() && len(p.Lines) > 0 {
		sess.cart.Restore(p.Lines)
	}
	s.Logger.Info().Str("session_id", sess.ID).Int("lines", len(p.Lines)).Msg("pending_order_restored")
}
