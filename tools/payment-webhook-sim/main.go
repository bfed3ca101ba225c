// Command payment-webhook-sim posts a signed Stripe payment_intent event to the payment service
// so the booking flow can be driven locally without Stripe.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peeyushmeher/cleanswift/libs/config"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/webhook"
)

func main() {
	var (
		baseURL   = flag.String("base-url", config.String("BASE_URL", "http://localhost:8084"), "payment service base url")
		evtType   = flag.String("type", config.String("STRIPE_EVENT_TYPE", "payment_intent.succeeded"), "stripe event type")
		bookingID = flag.String("booking-id", config.String("BOOKING_ID", ""), "booking_id metadata")
		intentID  = flag.String("intent-id", config.String("PAYMENT_INTENT_ID", ""), "payment intent id")
		amount    = flag.Int64("amount-cents", 0, "amount in cents")
		currency  = flag.String("currency", config.String("PAYMENT_CURRENCY", "cad"), "currency")
		secret    = flag.String("secret", config.String("STRIPE_WEBHOOK_SECRET", ""), "stripe webhook signing secret (whsec_...)")
	)
	flag.Parse()

	if strings.TrimSpace(*secret) == "" {
		fatal("STRIPE_WEBHOOK_SECRET is required")
	}
	if _, err := uuid.Parse(strings.TrimSpace(*bookingID)); err != nil {
		fatal("BOOKING_ID must be a uuid")
	}
	if strings.TrimSpace(*intentID) == "" {
		fatal("PAYMENT_INTENT_ID is required")
	}

	now := time.Now().UTC()
	payload, err := buildEventJSON("evt_test_"+uuid.NewString(), *evtType, now, *bookingID, *intentID, *amount, *currency)
	if err != nil {
		fatal(err.Error())
	}

	signed := webhook.GenerateTestSignedPayload(&webhook.UnsignedPayload{
		Payload:   payload,
		Secret:    *secret,
		Timestamp: now,
		Scheme:    "v1",
	})

	req, err := http.NewRequest(http.MethodPost, strings.TrimRight(*baseURL, "/")+"/api/v1/payments/webhooks/stripe", bytes.NewReader(payload))
	if err != nil {
		fatal(err.Error())
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Stripe-Signature", signed.Header)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		fatal(err.Error())
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	fmt.Printf("status=%d body=%s\n", resp.StatusCode, strings.TrimSpace(string(body)))
}

func buildEventJSON(eventID, eventType string, t time.Time, bookingID, intentID string, amountCents int64, currency string) ([]byte, error) {
	intent := map[string]any{
		"id":       intentID,
		"object":   "payment_intent",
		"amount":   amountCents,
		"currency": currency,
		"metadata": map[string]any{"booking_id": bookingID},
	}
	switch eventType {
	case "payment_intent.succeeded":
		intent["status"] = "succeeded"
	case "payment_intent.payment_failed":
		intent["status"] = "requires_payment_method"
		intent["last_payment_error"] = map[string]any{"message": "Your card was declined."}
	case "payment_intent.canceled":
		intent["status"] = "canceled"
	default:
		return nil, fmt.Errorf("unsupported event type: %s", eventType)
	}
	return json.Marshal(map[string]any{
		"id":          eventID,
		"object":      "event",
		"created":     t.Unix(),
		"type":        eventType,
		"api_version": stripe.APIVersion,
		"data":        map[string]any{"object": intent},
	})
}

func fatal(msg string) {
	fmt.Fprintln(os.Stderr, msg)
	os.Exit(2)
}
