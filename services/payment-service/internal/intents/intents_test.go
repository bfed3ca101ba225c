package intents

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/stripe/stripe-go/v79"
)

var quiet = slog.New(slog.NewTextHandler(io.Discard, nil))

// memStore keeps committed state and applies a transaction only when fn succeeds.
type memStore struct {
	mu       sync.Mutex
	bookings map[string]Booking
	payments map[string]Payment
	events   map[string]bool
	audits   []AuditEvent
	outbox   []outbox.Event
}

func newMemStore(bookings ...Booking) *memStore {
	s := &memStore{
		bookings: map[string]Booking{},
		payments: map[string]Payment{},
		events:   map[string]bool{},
	}
	for _, b := range bookings {
		s.bookings[b.ID] = b
	}
	return s
}

func (s *memStore) Booking(ctx context.Context, id string) (Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	return b, nil
}

func (s *memStore) PendingPayments(ctx context.Context, olderThan time.Duration, limit int) ([]Payment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Payment
	for _, p := range s.payments {
		if p.Status == PaymentRequiresPayment {
			out = append(out, p)
		}
	}
	return out, nil
}

func (s *memStore) InTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	tx := &memTx{
		bookings: copyMap(s.bookings),
		payments: copyMap(s.payments),
		events:   copyMap(s.events),
	}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	s.bookings, s.payments, s.events = tx.bookings, tx.payments, tx.events
	s.audits = append(s.audits, tx.audits...)
	s.outbox = append(s.outbox, tx.outbox...)
	return nil
}

func copyMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

type memTx struct {
	bookings map[string]Booking
	payments map[string]Payment
	events   map[string]bool
	audits   []AuditEvent
	outbox   []outbox.Event
}

func (t *memTx) BookingForUpdate(ctx context.Context, id string) (Booking, error) {
	b, ok := t.bookings[id]
	if !ok {
		return Booking{}, ErrBookingNotFound
	}
	return b, nil
}

func (t *memTx) UpdateBookingStatus(ctx context.Context, id, status string) error {
	b := t.bookings[id]
	b.Status = status
	t.bookings[id] = b
	return nil
}

func (t *memTx) UpsertPayment(ctx context.Context, p Payment) error {
	t.payments[p.PaymentIntentID] = p
	return nil
}

func (t *memTx) PaymentByIntent(ctx context.Context, id string) (Payment, error) {
	p, ok := t.payments[id]
	if !ok {
		return Payment{}, ErrPaymentNotFound
	}
	return p, nil
}

func (t *memTx) SetPaymentStatus(ctx context.Context, id, status string) error {
	p, ok := t.payments[id]
	if !ok {
		return ErrPaymentNotFound
	}
	p.Status = status
	t.payments[id] = p
	return nil
}

func (t *memTx) InsertProviderEvent(ctx context.Context, evt ProviderEvent) error {
	if t.events[evt.ProviderEventID] {
		return ErrDuplicateProviderEvent
	}
	t.events[evt.ProviderEventID] = true
	return nil
}

func (t *memTx) InsertAuditEvent(ctx context.Context, evt AuditEvent) error {
	t.audits = append(t.audits, evt)
	return nil
}

func (t *memTx) InsertOutbox(ctx context.Context, evt outbox.Event) error {
	t.outbox = append(t.outbox, evt)
	return nil
}

type fakeProvider struct {
	created []CreateParams
	status  string
	err     error
}

func (p *fakeProvider) CreatePaymentIntent(ctx context.Context, cp CreateParams) (Intent, error) {
	if p.err != nil {
		return Intent{}, p.err
	}
	p.created = append(p.created, cp)
	return Intent{
		ID:           "pi_123",
		ClientSecret: "pi_123_secret",
		Status:       "requires_payment_method",
		AmountCents:  cp.AmountCents,
		Currency:     cp.Currency,
		BookingID:    cp.BookingID,
	}, nil
}

func (p *fakeProvider) GetPaymentIntent(ctx context.Context, id string) (Intent, error) {
	if p.err != nil {
		return Intent{}, p.err
	}
	return Intent{ID: id, Status: p.status, AmountCents: 8475, Currency: "cad"}, nil
}

func pendingBooking() Booking {
	return Booking{ID: "b1", UserID: "u1", Status: StatusPending, TotalAmount: 84.75}
}

func TestCreateIntentValidation(t *testing.T) {
	ctx := context.Background()
	svc := NewService(newMemStore(pendingBooking()), &fakeProvider{}, "cad", quiet)

	cases := []struct {
		user   string
		amount float64
		kind   apperr.Kind
		msg    string
	}{
		{"u1", 0, apperr.KindValidationFailed, "amount must be greater than 0"},
		{"u1", -5, apperr.KindValidationFailed, "amount must be greater than 0"},
		{"u2", 84.75, apperr.KindNotFound, "booking not found"},
		{"u1", 84.70, apperr.KindValidationFailed, "amount mismatch"},
	}
	for _, tc := range cases {
		_, err := svc.CreateIntent(ctx, tc.user, "b1", tc.amount)
		if apperr.KindOf(err) != tc.kind || err.Error() != tc.msg {
			t.Fatalf("user=%s amount=%v: got %v (%s)", tc.user, tc.amount, err, apperr.KindOf(err))
		}
	}
	if _, err := svc.CreateIntent(ctx, "u1", "missing", 10); apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestCreateIntentWithinOneCent(t *testing.T) {
	store := newMemStore(pendingBooking())
	provider := &fakeProvider{}
	svc := NewService(store, provider, "", quiet)

	res, err := svc.CreateIntent(context.Background(), "u1", "b1", 84.76)
	if err != nil {
		t.Fatalf("CreateIntent: %v", err)
	}
	if res.ClientSecret != "pi_123_secret" || res.PaymentIntentID != "pi_123" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if len(provider.created) != 1 {
		t.Fatalf("expected one provider call, got %d", len(provider.created))
	}
	cp := provider.created[0]
	if cp.AmountCents != 8475 || cp.Currency != "cad" || cp.IdempotencyKey != "booking:b1:8475" {
		t.Fatalf("unexpected params: %+v", cp)
	}
	if store.bookings["b1"].Status != StatusRequiresPayment {
		t.Fatalf("expected requires_payment, got %s", store.bookings["b1"].Status)
	}
	if store.payments["pi_123"].Status != PaymentRequiresPayment {
		t.Fatal("expected payment row")
	}
	if len(store.outbox) != 1 || store.outbox[0].EventType != TypeIntentCreated {
		t.Fatalf("unexpected outbox: %+v", store.outbox)
	}
}

func TestCreateIntentProviderFailureLeavesBooking(t *testing.T) {
	store := newMemStore(pendingBooking())
	svc := NewService(store, &fakeProvider{err: errors.New("connection refused")}, "cad", quiet)

	_, err := svc.CreateIntent(context.Background(), "u1", "b1", 84.75)
	if err == nil || apperr.HTTPStatus(err) != 500 {
		t.Fatalf("expected 500-class error, got %v", err)
	}
	if store.bookings["b1"].Status != StatusPending || len(store.outbox) != 0 {
		t.Fatal("provider failure must not touch the booking")
	}

	noProvider := NewService(store, nil, "cad", quiet)
	if _, err := noProvider.CreateIntent(context.Background(), "u1", "b1", 84.75); !errors.Is(err, ErrProviderNotConfigured) {
		t.Fatalf("expected not configured, got %v", err)
	}
}

func TestCreateIntentRejectsPaidBooking(t *testing.T) {
	b := pendingBooking()
	b.Status = StatusPaid
	svc := NewService(newMemStore(b), &fakeProvider{}, "cad", quiet)
	if _, err := svc.CreateIntent(context.Background(), "u1", "b1", 84.75); apperr.KindOf(err) != apperr.KindValidationFailed {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func stripeEvent(t *testing.T, id, typ string, pi map[string]any) (stripe.Event, []byte) {
	t.Helper()
	raw, err := json.Marshal(pi)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	evt := stripe.Event{ID: id, Type: stripe.EventType(typ), Created: time.Now().Unix()}
	evt.Data = &stripe.EventData{Raw: raw}
	body, _ := json.Marshal(map[string]any{"id": id, "type": typ, "data": map[string]any{"object": pi}})
	return evt, body
}

func TestWebhookSucceededMarksPaidOnce(t *testing.T) {
	b := pendingBooking()
	b.Status = StatusRequiresPayment
	store := newMemStore(b)
	store.payments["pi_123"] = Payment{BookingID: "b1", PaymentIntentID: "pi_123", AmountCents: 8475, Currency: "cad", Status: PaymentRequiresPayment}
	svc := NewService(store, &fakeProvider{}, "cad", quiet)

	evt, body := stripeEvent(t, "evt_1", "payment_intent.succeeded", map[string]any{
		"id": "pi_123", "object": "payment_intent", "amount": 8475, "currency": "cad", "status": "succeeded",
		"metadata": map[string]string{"booking_id": "b1"},
	})
	res, err := svc.HandleStripeEvent(context.Background(), evt, body, "req-1")
	if err != nil || res != WebhookApplied {
		t.Fatalf("unexpected result %q err=%v", res, err)
	}
	if store.bookings["b1"].Status != StatusPaid || store.payments["pi_123"].Status != PaymentSucceeded {
		t.Fatalf("expected paid booking, got %+v", store.bookings["b1"])
	}
	if len(store.outbox) != 1 || store.outbox[0].EventType != TypeSucceeded {
		t.Fatalf("unexpected outbox: %+v", store.outbox)
	}
	var got Succeeded
	if _, err := outbox.Decode(store.outbox[0].Payload, &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got.UserID != "u1" || got.AmountCents != 8475 {
		t.Fatalf("unexpected payload: %+v", got)
	}

	res, err = svc.HandleStripeEvent(context.Background(), evt, body, "req-2")
	if err != nil || res != WebhookDuplicate {
		t.Fatalf("expected duplicate, got %q err=%v", res, err)
	}
	if len(store.outbox) != 1 || len(store.audits) != 1 {
		t.Fatal("replay must not write anything")
	}
}

func TestWebhookFailedKeepsBookingStatus(t *testing.T) {
	b := pendingBooking()
	b.Status = StatusRequiresPayment
	store := newMemStore(b)
	store.payments["pi_9"] = Payment{BookingID: "b1", PaymentIntentID: "pi_9", Status: PaymentRequiresPayment}
	svc := NewService(store, &fakeProvider{}, "cad", quiet)

	evt, body := stripeEvent(t, "evt_2", "payment_intent.payment_failed", map[string]any{
		"id": "pi_9", "object": "payment_intent", "status": "requires_payment_method",
		"last_payment_error": map[string]any{"message": "card declined"},
	})
	if _, err := svc.HandleStripeEvent(context.Background(), evt, body, ""); err != nil {
		t.Fatalf("HandleStripeEvent: %v", err)
	}
	if store.bookings["b1"].Status != StatusRequiresPayment {
		t.Fatal("failed payment must not move the booking")
	}
	if store.payments["pi_9"].Status != PaymentFailed {
		t.Fatalf("expected failed payment, got %s", store.payments["pi_9"].Status)
	}
	if len(store.audits) != 1 {
		t.Fatalf("expected one audit row, got %d", len(store.audits))
	}
}

func TestWebhookIgnoresOtherTypes(t *testing.T) {
	store := newMemStore()
	svc := NewService(store, &fakeProvider{}, "cad", quiet)
	evt, body := stripeEvent(t, "evt_3", "charge.refunded", map[string]any{"id": "ch_1"})
	res, err := svc.HandleStripeEvent(context.Background(), evt, body, "")
	if err != nil || res != WebhookIgnored {
		t.Fatalf("expected ignored, got %q err=%v", res, err)
	}
	if !store.events["evt_3"] {
		t.Fatal("ignored events are still recorded for replay protection")
	}
}

func TestReconcileSettlesSucceeded(t *testing.T) {
	b := pendingBooking()
	b.Status = StatusRequiresPayment
	store := newMemStore(b)
	store.payments["pi_5"] = Payment{BookingID: "b1", PaymentIntentID: "pi_5", Status: PaymentRequiresPayment}
	svc := NewService(store, &fakeProvider{status: "succeeded"}, "cad", quiet)

	n, err := svc.Reconcile(context.Background(), time.Minute, 10)
	if err != nil || n != 1 {
		t.Fatalf("expected one settled payment, got %d err=%v", n, err)
	}
	if store.bookings["b1"].Status != StatusPaid {
		t.Fatalf("expected paid, got %s", store.bookings["b1"].Status)
	}

	n, err = svc.Reconcile(context.Background(), time.Minute, 10)
	if err != nil || n != 0 {
		t.Fatalf("second pass should be a no-op, got %d err=%v", n, err)
	}
}
