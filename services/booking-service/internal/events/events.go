// Package events defines the Kafka events the booking service produces and consumes.
package events

import (
	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
)

const (
	aggregateBooking = "booking"

	TypeStatusChanged    = "booking.status.changed.v1"
	TypeDetailerAssigned = "booking.detailer.assigned.v1"
	// TypePaymentSucceeded is produced by the payment service.
	TypePaymentSucceeded = "payment.intent.succeeded.v1"
)

type StatusChanged struct {
	BookingID string              `json:"booking_id"`
	From      model.BookingStatus `json:"from"`
	To        model.BookingStatus `json:"to"`
	ActorID   string              `json:"actor_id"`
}

type DetailerAssigned struct {
	BookingID  string `json:"booking_id"`
	DetailerID string `json:"detailer_id"`
	ActorID    string `json:"actor_id"`
}

type PaymentSucceeded struct {
	BookingID       string `json:"booking_id"`
	UserID          string `json:"user_id"`
	PaymentIntentID string `json:"payment_intent_id"`
	AmountCents     int64  `json:"amount_cents"`
	Currency        string `json:"currency"`
}

func NewStatusChanged(bookingID string, from, to model.BookingStatus, actorID string) (outbox.Event, error) {
	return outbox.NewEvent(aggregateBooking, bookingID, TypeStatusChanged, StatusChanged{
		BookingID: bookingID,
		From:      from,
		To:        to,
		ActorID:   actorID,
	})
}

func NewDetailerAssigned(bookingID, detailerID, actorID string) (outbox.Event, error) {
	return outbox.NewEvent(aggregateBooking, bookingID, TypeDetailerAssigned, DetailerAssigned{
		BookingID:  bookingID,
		DetailerID: detailerID,
		ActorID:    actorID,
	})
}
