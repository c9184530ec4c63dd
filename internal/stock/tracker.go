package stock

import (
	"context"
	"errors"
	"sync"

	"github.com/rs/zerolog"

	"github.com/noah-isme/toko-storefront/internal/obs"
)

// Tracker re-validates the cart whenever it changes and keeps the latest
// accepted result. Each request carries a generation; an answer whose
// generation has been superseded is discarded, and the superseded request's
// context is cancelled.
type Tracker struct {
	validator Validator
	logger    zerolog.Logger
	base      context.Context
	stop      context.CancelFunc

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	errors []string
	wg     sync.WaitGroup
}

// NewTracker creates a tracker bound to v.
func NewTracker(v Validator, logger zerolog.Logger) *Tracker {
	base, stop := context.WithCancel(context.Background())
	return &Tracker{validator: v, logger: logger, base: base, stop: stop}
}

// Trigger starts an asynchronous validation of details, superseding any in-flight one.
// An empty cart clears the errors without a round-trip.
func (t *Tracker) Trigger(details []Detail) {
	t.mu.Lock()
	gen := t.supersedeLocked()
	if len(details) == 0 {
		t.errors = nil
		t.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(t.base)
	t.cancel = cancel
	t.wg.Add(1)
	t.mu.Unlock()

	go func() {
		defer t.wg.Done()
		defer cancel()
		err := t.validator.Validate(ctx, details)
		t.accept(gen, err)
	}()
}

// Check validates synchronously and records the result. It supersedes any
// in-flight validation. The returned list is empty when the cart is fulfillable.
func (t *Tracker) Check(ctx context.Context, details []Detail) ([]string, error) {
	t.mu.Lock()
	gen := t.supersedeLocked()
	t.mu.Unlock()

	err := t.validator.Validate(ctx, details)
	if ctxErr := ctx.Err(); ctxErr != nil {
		return nil, ctxErr
	}
	return t.accept(gen, err), err
}

// Errors returns a copy of the latest accepted error list.
func (t *Tracker) Errors() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]string(nil), t.errors...)
}

// Generation returns the number of validations issued so far.
func (t *Tracker) Generation() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.gen
}

// Reset drops the current result and supersedes in-flight validations.
func (t *Tracker) Reset() {
	t.mu.Lock()
	t.supersedeLocked()
	t.errors = nil
	t.mu.Unlock()
}

// Wait blocks until background validations have finished.
func (t *Tracker) Wait() {
	t.wg.Wait()
}

// Close cancels in-flight validations and waits for them.
func (t *Tracker) Close() {
	t.stop()
	t.wg.Wait()
}

func (t *Tracker) supersedeLocked() uint64 {
	t.gen++
	if t.cancel != nil {
		t.cancel()
		t.cancel = nil
	}
	return t.gen
}

func (t *Tracker) accept(gen uint64, err error) []string {
	msgs := Messages(err)
	t.mu.Lock()
	defer t.mu.Unlock()
	if gen != t.gen {
		obs.Inc(obs.StockValidationTotal, "stale")
		t.logger.Debug().Uint64("generation", gen).Uint64("current", t.gen).Msg("stock_result_discarded")
		return msgs
	}
	if errors.Is(err, context.Canceled) {
		return msgs
	}
	t.errors = msgs
	obs.Inc(obs.StockValidationTotal, resultLabel(err))
	return msgs
}

func resultLabel(err error) string {
	var shortage *ShortageError
	switch {
	case err == nil:
		return "ok"
	case errors.As(err, &shortage):
		return "shortage"
	default:
		return "unavailable"
	}
}
