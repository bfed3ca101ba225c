package events

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/model"
	"github.com/segmentio/kafka-go"
)

type evictions []string

func (e *evictions) Evict(userID string) { *e = append(*e, userID) }

func TestStatusChangedPayload(t *testing.T) {
	evt, err := NewStatusChanged("b1", model.StatusPaid, model.StatusOffered, "p1")
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	var data StatusChanged
	if _, err := outbox.Decode(evt.Payload, &data); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if data.From != model.StatusPaid || data.To != model.StatusOffered || evt.AggregateID != "b1" {
		t.Fatalf("unexpected payload: %+v", data)
	}
}

func TestPaymentSucceededHandlerEvicts(t *testing.T) {
	evt, err := outbox.NewEvent("booking", "b1", TypePaymentSucceeded, PaymentSucceeded{BookingID: "b1", UserID: "u1", AmountCents: 12429})
	if err != nil {
		t.Fatalf("new event: %v", err)
	}
	var ev evictions
	h := PaymentSucceededHandler(slog.New(slog.NewTextHandler(io.Discard, nil)), &ev)

	if err := h(context.Background(), kafka.Message{Value: evt.Payload}); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(ev) != 1 || ev[0] != "u1" {
		t.Fatalf("expected eviction of u1, got %v", ev)
	}

	if err := h(context.Background(), kafka.Message{Value: []byte(`not json`)}); err == nil {
		t.Fatal("expected decode error")
	}
}
