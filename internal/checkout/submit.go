package checkout

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/cart"
	"github.com/noah-isme/toko-storefront/internal/common"
	"github.com/noah-isme/toko-storefront/internal/lock"
	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/order"
	"github.com/noah-isme/toko-storefront/internal/payment"
	"github.com/noah-isme/toko-storefront/internal/pricing"
	"github.com/noah-isme/toko-storefront/internal/session"
	"github.com/noah-isme/toko-storefront/internal/stock"
)

var (
	ErrNotConfirmed     = errors.New("checkout: submission requires the confirmation step")
	ErrPaymentInFlight  = errors.New("checkout: a payment redirect is already in flight")
	ErrNothingToResume  = errors.New("checkout: no payment redirect to resume")
	ErrSubmitInProgress = errors.New("checkout: submission already in progress")
)

// StockError blocks a submission. Messages are shown verbatim.
type StockError struct {
	Messages    []string
	Unavailable bool
}

func (e *StockError) Error() string {
	return fmt.Sprintf("checkout: stock validation failed (%d messages)", len(e.Messages))
}

// OrderCreator is the direct order-creation endpoint.
type OrderCreator interface {
	Create(ctx context.Context, p order.Payload) (order.Created, error)
}

// Locker serialises submissions of one session.
type Locker interface {
	TryWithLock(ctx context.Context, key string, ttl time.Duration, fn func(context.Context) error) error
}

// Result tells the client where to go after a submission.
type Result struct {
	PaymentMethod order.PaymentMethod `json:"paymentMethod"`
	OrderID       int64               `json:"orderId,omitempty"`
	Redirect      string              `json:"redirect,omitempty"`
	RedirectURL   string              `json:"redirectUrl,omitempty"`
	PreferenceID  string              `json:"preferenceId,omitempty"`
	Summary       pricing.Summary     `json:"summary"`
}

// Submitter builds the order payload and dispatches it.
type Submitter struct {
	Orders  OrderCreator
	Gateway payment.Gateway
	Store   *session.Store
	Locker  Locker
	LockTTL time.Duration
	Rule    pricing.DeliveryRule
	Now     func() time.Time
	Logger  zerolog.Logger
}

func (s *Submitter) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// ConfirmationPath is the storefront view of a placed order.
func ConfirmationPath(ref string) string {
	return "/orden/" + ref
}

// Submit re-validates stock, assembles the payload and either creates the
// order (CASH) or opens a gateway preference (GATEWAY). On any failure the
// cart and draft are left as they were.
func (s *Submitter) Submit(ctx context.Context, sess *Session, ident session.Identity) (Result, error) {
	var res Result
	run := func(ctx context.Context) error {
		var err error
		res, err = s.submit(ctx, sess, ident)
		return err
	}
	var err error
	if s.Locker != nil {
		err = s.Locker.TryWithLock(ctx, "checkout:submit:"+sess.ID, s.LockTTL, run)
		if errors.Is(err, lock.ErrLocked) {
			obs.Inc(obs.OrderSubmissionTotal, "unknown", "locked")
			return Result{}, ErrSubmitInProgress
		}
	} else {
		err = run(ctx)
	}
	return res, err
}

func (s *Submitter) submit(ctx context.Context, sess *Session, ident session.Identity) (Result, error) {
	draft, ok := sess.Draft()
	if !ok {
		return Result{}, ErrNotInCheckout
	}
	method := string(draft.PaymentMethod)
	if draft.Step != StepConfirmation {
		return Result{}, ErrNotConfirmed
	}
	if !ident.Active() {
		return Result{}, ErrAuthRequired
	}
	if s.Store != nil {
		inFlight, err := s.Store.GatewayInitiated(ctx, sess.ID)
		if err != nil {
			return Result{}, fmt.Errorf("checkout: read gateway flag: %w", err)
		}
		if inFlight {
			obs.Inc(obs.OrderSubmissionTotal, method, "in_flight")
			return Result{}, ErrPaymentInFlight
		}
	}
	snap := sess.Cart().Snapshot()
	if snap.Empty() {
		return Result{}, ErrEmptyCart
	}

	msgs, err := sess.Tracker().Check(ctx, stock.DetailsFor(snap))
	if ctxErr := ctx.Err(); ctxErr != nil {
		return Result{}, ctxErr
	}
	if len(msgs) > 0 {
		obs.Inc(obs.OrderSubmissionTotal, method, "stock_blocked")
		s.Logger.Warn().Str("session_id", sess.ID).Strs("messages", msgs).Msg("order_blocked_by_stock")
		return Result{}, &StockError{Messages: msgs, Unavailable: errors.Is(err, stock.ErrUnavailable)}
	}

	payload, summary := order.Build(order.Draft{
		Cart:          snap,
		DeliveryType:  draft.DeliveryType,
		PaymentMethod: draft.PaymentMethod,
		CustomerID:    ident.ID,
		AddressID:     draft.AddressID,
		Rule:          s.Rule,
		Now:           s.now(),
	})
	if err := payload.Validate(); err != nil {
		obs.Inc(obs.OrderSubmissionTotal, method, "invalid")
		return Result{}, err
	}

	switch draft.PaymentMethod {
	case order.Cash:
		return s.submitCash(ctx, sess, payload, summary)
	case order.Gateway:
		return s.submitGateway(ctx, sess, draft, snap.Lines, payload, summary)
	default:
		return Result{}, ErrPaymentMethodRequired
	}
}

func (s *Submitter) submitCash(ctx context.Context, sess *Session, p order.Payload, summary pricing.Summary) (Result, error) {
	if s.Orders == nil {
		return Result{}, errors.New("checkout: order client not configured")
	}
	created, err := s.Orders.Create(ctx, p)
	if err != nil {
		obs.Inc(obs.OrderSubmissionTotal, string(order.Cash), "error")
		return Result{}, err
	}
	sess.Cart().ClearCart()
	sess.setDraft(nil)
	if s.Store != nil {
		if err := s.Store.ClearPendingOrder(ctx, sess.ID); err != nil {
			s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("pending_order_clear_failed")
		}
	}
	obs.Inc(obs.OrderSubmissionTotal, string(order.Cash), "ok")
	s.Logger.Info().
		Str("session_id", sess.ID).
		Int64("order_id", created.ID).
		Int64("total_minor", summary.Total).
		Msg("order_submitted")
	return Result{
		PaymentMethod: order.Cash,
		OrderID:       created.ID,
		Redirect:      ConfirmationPath(fmt.Sprint(created.ID)),
		Summary:       summary,
	}, nil
}

func (s *Submitter) submitGateway(ctx context.Context, sess *Session, draft Draft, lines []cart.Line, p order.Payload, summary pricing.Summary) (Result, error) {
	if s.Gateway == nil || !s.Gateway.Ready() {
		return Result{}, ErrGatewayNotReady
	}
	if s.Store == nil {
		return Result{}, errors.New("checkout: session store not configured")
	}
	pref, err := s.Gateway.CreatePreference(ctx, p)
	if err != nil {
		obs.Inc(obs.OrderSubmissionTotal, string(order.Gateway), "error")
		return Result{}, err
	}
	pending := pendingOrder{
		Lines:             lines,
		Draft:             draft,
		Payload:           p,
		PreferenceID:      pref.ID,
		ExternalReference: pref.ExternalReference,
		CreatedAt:         s.now(),
	}
	if err := s.Store.SavePendingOrder(ctx, sess.ID, pending); err != nil {
		return Result{}, common.NewAppError("INTERNAL", "unable to start payment", http.StatusInternalServerError, err)
	}
	if err := s.Store.SetGatewayInitiated(ctx, sess.ID); err != nil {
		_ = s.Store.ClearPendingOrder(ctx, sess.ID)
		return Result{}, common.NewAppError("INTERNAL", "unable to start payment", http.StatusInternalServerError, err)
	}
	obs.Inc(obs.OrderSubmissionTotal, string(order.Gateway), "redirect")
	s.Logger.Info().
		Str("session_id", sess.ID).
		Str("gateway", s.Gateway.Name()).
		Str("preference_id", pref.ID).
		Msg("payment_redirect")
	return Result{
		PaymentMethod: order.Gateway,
		RedirectURL:   pref.InitPoint,
		PreferenceID:  pref.ID,
		Summary:       summary,
	}, nil
}
