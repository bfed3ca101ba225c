// Package storage persists payment intents, provider events and audit rows, and moves bookings
// through update_booking_status with the service role.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/peeyushmeher/cleanswift/libs/db"
	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/peeyushmeher/cleanswift/services/payment-service/internal/intents"
)

var (
	_ intents.Store = (*Repository)(nil)
	_ intents.Tx    = (*txStore)(nil)
)

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, ob *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: ob}
}

// InTx runs fn in one transaction and commits only when fn returns nil.
func (r *Repository) InTx(ctx context.Context, fn func(ctx context.Context, tx intents.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, &txStore{tx: tx, outbox: r.outbox}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (r *Repository) Booking(ctx context.Context, bookingID string) (intents.Booking, error) {
	return scanBooking(r.pool.QueryRow(ctx, `
		SELECT id::text, user_id::text, status, total_amount::float8
		FROM bookings
		WHERE id = $1
	`, bookingID))
}

func (r *Repository) PendingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]intents.Payment, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT booking_id::text, payment_intent_id, amount_cents, currency, status, updated_at
		FROM booking_payments
		WHERE status = $1 AND updated_at < now() - make_interval(secs => $2)
		ORDER BY updated_at
		LIMIT $3
	`, intents.PaymentRequiresPayment, olderThan.Seconds(), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []intents.Payment
	for rows.Next() {
		var p intents.Payment
		if err := rows.Scan(&p.BookingID, &p.PaymentIntentID, &p.AmountCents, &p.Currency, &p.Status, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type txStore struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (s *txStore) BookingForUpdate(ctx context.Context, bookingID string) (intents.Booking, error) {
	return scanBooking(s.tx.QueryRow(ctx, `
		SELECT id::text, user_id::text, status, total_amount::float8
		FROM bookings
		WHERE id = $1
		FOR UPDATE
	`, bookingID))
}

func (s *txStore) UpdateBookingStatus(ctx context.Context, bookingID, status string) error {
	_, err := s.tx.Exec(ctx, `SELECT update_booking_status($1, $2)`, bookingID, status)
	return err
}

func (s *txStore) UpsertPayment(ctx context.Context, p intents.Payment) error {
	_, err := s.tx.Exec(ctx, `
		INSERT INTO booking_payments (booking_id, payment_intent_id, amount_cents, currency, status)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (payment_intent_id)
		DO UPDATE SET amount_cents = EXCLUDED.amount_cents,
		              currency = EXCLUDED.currency,
		              status = EXCLUDED.status,
		              updated_at = now()
	`, p.BookingID, p.PaymentIntentID, p.AmountCents, p.Currency, p.Status)
	return err
}

func (s *txStore) PaymentByIntent(ctx context.Context, intentID string) (intents.Payment, error) {
	var p intents.Payment
	err := s.tx.QueryRow(ctx, `
		SELECT booking_id::text, payment_intent_id, amount_cents, currency, status, updated_at
		FROM booking_payments
		WHERE payment_intent_id = $1
	`, intentID).Scan(&p.BookingID, &p.PaymentIntentID, &p.AmountCents, &p.Currency, &p.Status, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return intents.Payment{}, intents.ErrPaymentNotFound
	}
	return p, err
}

func (s *txStore) SetPaymentStatus(ctx context.Context, intentID, status string) error {
	tag, err := s.tx.Exec(ctx, `
		UPDATE booking_payments SET status = $2, updated_at = now()
		WHERE payment_intent_id = $1
	`, intentID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return intents.ErrPaymentNotFound
	}
	return nil
}

func (s *txStore) InsertProviderEvent(ctx context.Context, evt intents.ProviderEvent) error {
	var payload any
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		return err
	}
	tag, err := s.tx.Exec(ctx, `
		INSERT INTO payment_provider_events (provider, provider_event_id, event_type, payload)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (provider, provider_event_id) DO NOTHING
	`, evt.Provider, evt.ProviderEventID, evt.EventType, payload)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return intents.ErrDuplicateProviderEvent
	}
	return nil
}

func (s *txStore) InsertAuditEvent(ctx context.Context, evt intents.AuditEvent) error {
	meta := evt.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	_, err := s.tx.Exec(ctx, `
		INSERT INTO payment_audit_events (event_type, actor_type, actor_id, booking_id, metadata)
		VALUES ($1, $2, $3, $4, $5)
	`, evt.EventType, defaultIfEmpty(evt.ActorType, "system"), nullIfEmpty(evt.ActorID), nullIfEmpty(evt.BookingID), meta)
	return err
}

func (s *txStore) InsertOutbox(ctx context.Context, evt outbox.Event) error {
	return s.outbox.Insert(ctx, s.tx, evt)
}

func scanBooking(row pgx.Row) (intents.Booking, error) {
	var b intents.Booking
	err := row.Scan(&b.ID, &b.UserID, &b.Status, &b.TotalAmount)
	if errors.Is(err, pgx.ErrNoRows) {
		return intents.Booking{}, intents.ErrBookingNotFound
	}
	return b, err
}

func nullIfEmpty(s string) any {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return s
}

func defaultIfEmpty(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}
