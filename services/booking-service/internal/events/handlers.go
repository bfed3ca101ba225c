package events

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/segmentio/kafka-go"
)

// Evictor drops a user's cached booking state.
type Evictor interface {
	Evict(userID string)
}

// PaymentSucceededHandler drops the paying user's cached history so the next read sees the
// paid status. The status itself is written by the payment service.
func PaymentSucceededHandler(logger *slog.Logger, caches ...Evictor) func(ctx context.Context, msg kafka.Message) error {
	return func(ctx context.Context, msg kafka.Message) error {
		var data PaymentSucceeded
		env, err := outbox.Decode(msg.Value, &data)
		if err != nil {
			return fmt.Errorf("decode %s: %w", TypePaymentSucceeded, err)
		}
		if data.BookingID == "" {
			return fmt.Errorf("%s %s: missing booking_id", TypePaymentSucceeded, env.EventID)
		}
		if data.UserID != "" {
			for _, c := range caches {
				c.Evict(data.UserID)
			}
		}
		logger.Info("payment succeeded",
			"event_id", env.EventID,
			"booking_id", data.BookingID,
			"payment_intent_id", data.PaymentIntentID,
			"amount_cents", data.AmountCents,
		)
		return nil
	}
}
