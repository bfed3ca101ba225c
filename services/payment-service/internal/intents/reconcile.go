package intents

import (
	"context"
	"time"

	"github.com/stripe/stripe-go/v79"
)

// Reconcile asks the provider about payments still waiting after olderThan and applies any
// final outcome the webhook missed. It returns how many payments changed.
func (s *Service) Reconcile(ctx context.Context, olderThan time.Duration, limit int) (int, error) {
	if s.provider == nil {
		return 0, ErrProviderNotConfigured
	}
	pending, err := s.store.PendingPayments(ctx, olderThan, limit)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, p := range pending {
		if ctx.Err() != nil {
			return changed, ctx.Err()
		}
		in, err := s.provider.GetPaymentIntent(ctx, p.PaymentIntentID)
		if err != nil {
			s.logger.Warn("payment reconcile: fetch failed", "payment_intent_id", p.PaymentIntentID, "err", err)
			continue
		}
		if in.BookingID == "" {
			in.BookingID = p.BookingID
		}

		var apply func(ctx context.Context, tx Tx) error
		switch stripe.PaymentIntentStatus(in.Status) {
		case stripe.PaymentIntentStatusSucceeded:
			apply = func(ctx context.Context, tx Tx) error { return s.applySucceeded(ctx, tx, in) }
		case stripe.PaymentIntentStatusCanceled:
			apply = func(ctx context.Context, tx Tx) error { return s.applyFailed(ctx, tx, in, PaymentCanceled) }
		default:
			continue
		}
		if err := s.store.InTx(ctx, apply); err != nil {
			s.logger.Warn("payment reconcile: apply failed", "payment_intent_id", in.ID, "booking_id", in.BookingID, "err", err)
			continue
		}
		changed++
	}
	return changed, nil
}
