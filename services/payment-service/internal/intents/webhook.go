package intents

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/stripe/stripe-go/v79"
)

type WebhookResult string

const (
	WebhookApplied   WebhookResult = "ok"
	WebhookDuplicate WebhookResult = "duplicate"
	WebhookIgnored   WebhookResult = "ignored"
)

// HandleStripeEvent records a verified Stripe event once and applies payment intent outcomes.
// Replayed events are acknowledged without side effects.
func (s *Service) HandleStripeEvent(ctx context.Context, evt stripe.Event, body []byte, requestID string) (WebhookResult, error) {
	evtType := string(evt.Type)
	occurredAt := time.Unix(evt.Created, 0).UTC()
	s.logger.Info("payment provider event received",
		"provider", "stripe",
		"provider_event_id", evt.ID,
		"event_type", evtType,
		"occurred_at", occurredAt.Format(time.RFC3339),
	)

	result := WebhookApplied
	err := s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		if err := tx.InsertProviderEvent(ctx, ProviderEvent{
			Provider:        "stripe",
			ProviderEventID: evt.ID,
			EventType:       evtType,
			Payload:         body,
		}); err != nil {
			return err
		}

		meta := map[string]any{
			"provider":          "stripe",
			"provider_event_id": evt.ID,
			"event_type":        evtType,
			"occurred_at":       occurredAt.Format(time.RFC3339),
		}
		if requestID != "" {
			meta["request_id"] = requestID
		}

		var in Intent
		switch evtType {
		case "payment_intent.succeeded", "payment_intent.payment_failed", "payment_intent.canceled":
			var pi stripe.PaymentIntent
			if err := json.Unmarshal(evt.Data.Raw, &pi); err != nil {
				s.logger.Error("stripe: invalid payment intent payload", "err", err)
				result = WebhookIgnored
				return tx.InsertAuditEvent(ctx, AuditEvent{EventType: "payment.provider.stripe.webhook", ActorType: "provider", Metadata: meta})
			}
			in = intentFromStripe(&pi)
			meta["payment_intent_id"] = in.ID
		default:
			result = WebhookIgnored
			return tx.InsertAuditEvent(ctx, AuditEvent{EventType: "payment.provider.stripe.webhook", ActorType: "provider", Metadata: meta})
		}

		if err := tx.InsertAuditEvent(ctx, AuditEvent{
			EventType: "payment.provider.stripe.webhook",
			ActorType: "provider",
			BookingID: in.BookingID,
			Metadata:  meta,
		}); err != nil {
			return err
		}

		var err error
		switch evtType {
		case "payment_intent.succeeded":
			err = s.applySucceeded(ctx, tx, in)
		case "payment_intent.payment_failed":
			err = s.applyFailed(ctx, tx, in, PaymentFailed)
		case "payment_intent.canceled":
			err = s.applyFailed(ctx, tx, in, PaymentCanceled)
		}
		if errors.Is(err, ErrPaymentNotFound) || errors.Is(err, ErrBookingNotFound) {
			s.logger.Warn("stripe: payment intent has no booking", "payment_intent_id", in.ID)
			result = WebhookIgnored
			return nil
		}
		return err
	})
	if errors.Is(err, ErrDuplicateProviderEvent) {
		s.logger.Info("payment provider event duplicate ignored", "provider", "stripe", "provider_event_id", evt.ID, "event_type", evtType)
		return WebhookDuplicate, nil
	}
	if err != nil {
		return "", err
	}
	return result, nil
}

func intentFromStripe(pi *stripe.PaymentIntent) Intent {
	in := Intent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		AmountCents:  pi.Amount,
		Currency:     string(pi.Currency),
		BookingID:    pi.Metadata["booking_id"],
	}
	if pi.LastPaymentError != nil {
		in.FailureMsg = pi.LastPaymentError.Msg
	}
	return in
}
