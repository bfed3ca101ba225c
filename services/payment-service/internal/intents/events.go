package intents

import "github.com/peeyushmeher/cleanswift/libs/outbox"

const (
	aggregatePayment = "payment"

	TypeIntentCreated = "payment.intent.created.v1"
	TypeSucceeded     = "payment.intent.succeeded.v1"
	TypeFailed        = "payment.intent.failed.v1"
)

type IntentCreated struct {
	BookingID       string `json:"booking_id"`
	UserID          string `json:"user_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
}

// Succeeded is consumed by the booking service to drop cached history.
type Succeeded struct {
	BookingID       string `json:"booking_id"`
	UserID          string `json:"user_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
}

type Failed struct {
	BookingID       string `json:"booking_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	Reason          string `json:"reason,omitempty"`
}

func newIntentCreated(b Booking, in Intent) (outbox.Event, error) {
	return outbox.NewEvent(aggregatePayment, in.ID, TypeIntentCreated, IntentCreated{
		BookingID:       b.ID,
		UserID:          b.UserID,
		PaymentIntentID: in.ID,
		AmountCents:     in.AmountCents,
		Currency:        in.Currency,
	})
}

func newSucceeded(b Booking, in Intent) (outbox.Event, error) {
	return outbox.NewEvent(aggregatePayment, in.ID, TypeSucceeded, Succeeded{
		BookingID:       b.ID,
		UserID:          b.UserID,
		PaymentIntentID: in.ID,
		AmountCents:     in.AmountCents,
		Currency:        in.Currency,
	})
}

func newFailed(bookingID string, in Intent) (outbox.Event, error) {
	return outbox.NewEvent(aggregatePayment, in.ID, TypeFailed, Failed{
		BookingID:       bookingID,
		PaymentIntentID: in.ID,
		Reason:          in.FailureMsg,
	})
}
