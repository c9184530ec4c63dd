package checkout

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/toko-storefront/internal/obs"
	"github.com/noah-isme/toko-storefront/internal/payment"
)

// ResumeOutcome is what the shopper sees after returning from the gateway.
type ResumeOutcome string

const (
	ResumeApproved ResumeOutcome = "APPROVED"
	ResumePending  ResumeOutcome = "PENDING"
	ResumeRejected ResumeOutcome = "REJECTED"
)

// Resumption describes the result of a gateway return.
type Resumption struct {
	Outcome  ResumeOutcome  `json:"outcome"`
	Status   payment.Status `json:"status"`
	OrderRef string         `json:"orderRef,omitempty"`
	Redirect string         `json:"redirect,omitempty"`
	Step     Step           `json:"step,omitempty"`
}

// Resume completes a gateway redirect. Only approved payments clear the cart;
// every outcome clears the gateway flag.
func (s *Submitter) Resume(ctx context.Context, sess *Session, rawStatus, externalRef string) (Resumption, error) {
	if s.Store == nil {
		return Resumption{}, ErrNothingToResume
	}
	inFlight, err := s.Store.GatewayInitiated(ctx, sess.ID)
	if err != nil {
		return Resumption{}, fmt.Errorf("checkout: read gateway flag: %w", err)
	}
	if !inFlight {
		return Resumption{}, ErrNothingToResume
	}
	var pending pendingOrder
	if _, err := s.Store.LoadPendingOrder(ctx, sess.ID, &pending); err != nil {
		s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("pending_order_load_failed")
	}

	status := payment.ParseStatus(rawStatus)
	obs.Inc(obs.PaymentResumptionTotal, string(status))
	if err := s.Store.ClearGatewayInitiated(ctx, sess.ID); err != nil {
		return Resumption{}, fmt.Errorf("checkout: clear gateway flag: %w", err)
	}

	res := Resumption{Status: status}
	switch {
	case status == payment.StatusApproved:
		ref := strings.TrimSpace(externalRef)
		if ref == "" {
			ref = pending.ExternalReference
		}
		sess.Cart().ClearCart()
		sess.setDraft(nil)
		if err := s.Store.ClearPendingOrder(ctx, sess.ID); err != nil {
			s.Logger.Warn().Err(err).Str("session_id", sess.ID).Msg("pending_order_clear_failed")
		}
		res.Outcome = ResumeApproved
		res.OrderRef = ref
		if ref != "" {
			res.Redirect = ConfirmationPath(ref)
		}
	case status.Pending():
		res.Outcome = ResumePending
		res.OrderRef = strings.TrimSpace(externalRef)
	default:
		d, ok := sess.Draft()
		if !ok {
			d = pending.Draft.clone()
		}
		d.Step = StepPayment
		d.PaymentMethod = ""
		sess.setDraft(&d)
		res.Outcome = ResumeRejected
		res.Step = StepPayment
	}
	s.Logger.Info().
		Str("session_id", sess.ID).
		Str("status", string(status)).
		Str("outcome", string(res.Outcome)).
		Str("external_reference", externalRef).
		Msg("payment_resumed")
	return res, nil
}
