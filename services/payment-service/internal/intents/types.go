// Package intents creates Stripe payment intents for bookings and applies the provider's
// outcome back onto the booking.
package intents

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/outbox"
)

// Booking statuses this service reads or writes.
const (
	StatusPending         = "pending"
	StatusRequiresPayment = "requires_payment"
	StatusPaid            = "paid"
)

// Payment row statuses.
const (
	PaymentRequiresPayment = "requires_payment"
	PaymentSucceeded       = "succeeded"
	PaymentFailed          = "failed"
	PaymentCanceled        = "canceled"
)

var (
	ErrBookingNotFound        = errors.New("booking not found")
	ErrPaymentNotFound        = errors.New("payment not found")
	ErrDuplicateProviderEvent = errors.New("duplicate provider event")
	ErrProviderNotConfigured  = errors.New("payment provider not configured")
)

type Booking struct {
	ID          string
	UserID      string
	Status      string
	TotalAmount float64
}

type Payment struct {
	BookingID       string
	PaymentIntentID string
	AmountCents     int64
	Currency        string
	Status          string
	UpdatedAt       time.Time
}

type ProviderEvent struct {
	Provider        string
	ProviderEventID string
	EventType       string
	Payload         []byte
}

type AuditEvent struct {
	EventType string
	ActorType string
	ActorID   string
	BookingID string
	Metadata  map[string]any
}

// Tx is the set of writes that must commit together.
type Tx interface {
	BookingForUpdate(ctx context.Context, bookingID string) (Booking, error)
	UpdateBookingStatus(ctx context.Context, bookingID, status string) error
	UpsertPayment(ctx context.Context, p Payment) error
	PaymentByIntent(ctx context.Context, intentID string) (Payment, error)
	SetPaymentStatus(ctx context.Context, intentID, status string) error
	InsertProviderEvent(ctx context.Context, evt ProviderEvent) error
	InsertAuditEvent(ctx context.Context, evt AuditEvent) error
	InsertOutbox(ctx context.Context, evt outbox.Event) error
}

type Store interface {
	Booking(ctx context.Context, bookingID string) (Booking, error)
	PendingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]Payment, error)
	InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Intent is the provider's view of one payment intent.
type Intent struct {
	ID           string
	ClientSecret string
	Status       string
	AmountCents  int64
	Currency     string
	BookingID    string
	FailureMsg   string
}

type CreateParams struct {
	BookingID      string
	UserID         string
	AmountCents    int64
	Currency       string
	IdempotencyKey string
}

type Provider interface {
	CreatePaymentIntent(ctx context.Context, p CreateParams) (Intent, error)
	GetPaymentIntent(ctx context.Context, id string) (Intent, error)
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}
