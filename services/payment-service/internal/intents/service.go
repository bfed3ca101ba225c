package intents

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
)

type Service struct {
	store    Store
	provider Provider
	currency string
	logger   *slog.Logger
}

func NewService(store Store, provider Provider, currency string, logger *slog.Logger) *Service {
	currency = strings.ToLower(strings.TrimSpace(currency))
	if currency == "" {
		currency = "cad"
	}
	return &Service{store: store, provider: provider, currency: currency, logger: logger}
}

type CreateResult struct {
	ClientSecret    string `json:"client_secret"`
	PaymentIntentID string `json:"payment_intent_id"`
}

// CreateIntent charges the stored booking total after checking the client's amount against it
// to within one cent. The booking moves to requires_payment in the same transaction that
// records the intent.
func (s *Service) CreateIntent(ctx context.Context, userID, bookingID string, amount float64) (CreateResult, error) {
	if amount <= 0 {
		return CreateResult{}, apperr.Validation("amount must be greater than 0")
	}

	b, err := s.store.Booking(ctx, bookingID)
	if errors.Is(err, ErrBookingNotFound) || (err == nil && b.UserID != userID) {
		return CreateResult{}, apperr.NotFound("booking not found")
	}
	if err != nil {
		return CreateResult{}, fmt.Errorf("load booking: %w", err)
	}
	cents := toCents(b.TotalAmount)
	if d := toCents(amount) - cents; d > 1 || d < -1 {
		return CreateResult{}, apperr.Validation("amount mismatch")
	}
	if b.Status != StatusPending && b.Status != StatusRequiresPayment {
		return CreateResult{}, apperr.Validation("booking is not awaiting payment")
	}
	if s.provider == nil {
		return CreateResult{}, ErrProviderNotConfigured
	}

	in, err := s.provider.CreatePaymentIntent(ctx, CreateParams{
		BookingID:      b.ID,
		UserID:         b.UserID,
		AmountCents:    cents,
		Currency:       s.currency,
		IdempotencyKey: fmt.Sprintf("booking:%s:%d", b.ID, cents),
	})
	if err != nil {
		s.logger.Error("payment intent create failed", "booking_id", b.ID, "err", err)
		return CreateResult{}, fmt.Errorf("create payment intent: %w", err)
	}

	err = s.store.InTx(ctx, func(ctx context.Context, tx Tx) error {
		locked, err := tx.BookingForUpdate(ctx, b.ID)
		if err != nil {
			return err
		}
		if locked.Status == StatusPending {
			if err := tx.UpdateBookingStatus(ctx, b.ID, StatusRequiresPayment); err != nil {
				return err
			}
		}
		if err := tx.UpsertPayment(ctx, Payment{
			BookingID:       b.ID,
			PaymentIntentID: in.ID,
			AmountCents:     in.AmountCents,
			Currency:        in.Currency,
			Status:          PaymentRequiresPayment,
		}); err != nil {
			return err
		}
		if err := tx.InsertAuditEvent(ctx, AuditEvent{
			EventType: "payment.intent.created",
			ActorType: "customer",
			ActorID:   userID,
			BookingID: b.ID,
			Metadata:  map[string]any{"payment_intent_id": in.ID, "amount_cents": in.AmountCents},
		}); err != nil {
			return err
		}
		evt, err := newIntentCreated(b, in)
		if err != nil {
			return err
		}
		return tx.InsertOutbox(ctx, evt)
	})
	if err != nil {
		return CreateResult{}, fmt.Errorf("record payment intent: %w", err)
	}

	s.logger.Info("payment intent created", "booking_id", b.ID, "payment_intent_id", in.ID, "amount_cents", in.AmountCents)
	return CreateResult{ClientSecret: in.ClientSecret, PaymentIntentID: in.ID}, nil
}

// applySucceeded marks the payment and, when the booking still awaits payment, the booking as
// paid. Replays leave the booking untouched.
func (s *Service) applySucceeded(ctx context.Context, tx Tx, in Intent) error {
	bookingID, err := s.bookingFor(ctx, tx, in)
	if err != nil {
		return err
	}
	b, err := tx.BookingForUpdate(ctx, bookingID)
	if err != nil {
		return err
	}
	if err := tx.SetPaymentStatus(ctx, in.ID, PaymentSucceeded); err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return err
	}
	switch b.Status {
	case StatusPending, StatusRequiresPayment:
		if err := tx.UpdateBookingStatus(ctx, b.ID, StatusPaid); err != nil {
			return err
		}
	default:
		s.logger.Warn("payment succeeded for booking not awaiting payment", "booking_id", b.ID, "status", b.Status, "payment_intent_id", in.ID)
		return nil
	}
	evt, err := newSucceeded(b, in)
	if err != nil {
		return err
	}
	if err := tx.InsertOutbox(ctx, evt); err != nil {
		return err
	}
	s.logger.Info("booking paid", "booking_id", b.ID, "payment_intent_id", in.ID)
	return nil
}

func (s *Service) applyFailed(ctx context.Context, tx Tx, in Intent, status string) error {
	bookingID, err := s.bookingFor(ctx, tx, in)
	if err != nil {
		return err
	}
	if err := tx.SetPaymentStatus(ctx, in.ID, status); err != nil && !errors.Is(err, ErrPaymentNotFound) {
		return err
	}
	s.logger.Warn("payment did not succeed", "booking_id", bookingID, "payment_intent_id", in.ID, "status", status, "reason", in.FailureMsg)
	evt, err := newFailed(bookingID, in)
	if err != nil {
		return err
	}
	return tx.InsertOutbox(ctx, evt)
}

func (s *Service) bookingFor(ctx context.Context, tx Tx, in Intent) (string, error) {
	if in.BookingID != "" {
		return in.BookingID, nil
	}
	p, err := tx.PaymentByIntent(ctx, in.ID)
	if err != nil {
		return "", err
	}
	return p.BookingID, nil
}
