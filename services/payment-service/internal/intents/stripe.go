package intents

import (
	"context"
	"strings"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/client"
)

// StripeProvider talks to Stripe with a per-instance API client instead of the global key.
type StripeProvider struct {
	api *client.API
}

// NewStripeProvider returns nil when no secret key is configured.
func NewStripeProvider(secretKey string) *StripeProvider {
	secretKey = strings.TrimSpace(secretKey)
	if secretKey == "" {
		return nil
	}
	return &StripeProvider{api: client.New(secretKey, nil)}
}

func (p *StripeProvider) CreatePaymentIntent(ctx context.Context, cp CreateParams) (Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(cp.AmountCents),
		Currency: stripe.String(cp.Currency),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.Context = ctx
	params.AddMetadata("booking_id", cp.BookingID)
	params.AddMetadata("user_id", cp.UserID)
	if cp.IdempotencyKey != "" {
		params.IdempotencyKey = stripe.String(cp.IdempotencyKey)
	}
	pi, err := p.api.PaymentIntents.New(params)
	if err != nil {
		return Intent{}, err
	}
	return intentFromStripe(pi), nil
}

func (p *StripeProvider) GetPaymentIntent(ctx context.Context, id string) (Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := p.api.PaymentIntents.Get(id, params)
	if err != nil {
		return Intent{}, err
	}
	return intentFromStripe(pi), nil
}
