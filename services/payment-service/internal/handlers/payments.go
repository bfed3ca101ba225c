package handlers

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/peeyushmeher/cleanswift/libs/apperr"
	"github.com/peeyushmeher/cleanswift/libs/auth"
	"github.com/peeyushmeher/cleanswift/libs/httpx"
	"github.com/peeyushmeher/cleanswift/services/payment-service/internal/intents"
	"github.com/stripe/stripe-go/v79/webhook"
)

type Handler struct {
	svc                    *intents.Service
	logger                 *slog.Logger
	stripeWebhookSecret    string
	stripeWebhookTolerance time.Duration
}

type Config struct {
	StripeWebhookSecret    string
	StripeWebhookTolerance time.Duration
}

func New(svc *intents.Service, logger *slog.Logger, cfg Config) *Handler {
	tol := cfg.StripeWebhookTolerance
	if tol <= 0 {
		tol = 300 * time.Second
	}
	return &Handler{
		svc:                    svc,
		logger:                 logger,
		stripeWebhookSecret:    strings.TrimSpace(cfg.StripeWebhookSecret),
		stripeWebhookTolerance: tol,
	}
}

type intentRequest struct {
	BookingID string  `json:"booking_id"`
	Amount    float64 `json:"amount"`
}

// CreateIntent expects an authenticated customer.
func (h *Handler) CreateIntent(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		httpx.WriteError(w, apperr.SessionExpired(nil))
		return
	}

	var req intentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if _, err := uuid.Parse(strings.TrimSpace(req.BookingID)); err != nil {
		http.Error(w, "invalid booking_id", http.StatusBadRequest)
		return
	}

	res, err := h.svc.CreateIntent(r.Context(), p.UserID, strings.TrimSpace(req.BookingID), req.Amount)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindUnknown {
			h.logger.Error("payment intent failed", "request_id", httpx.RequestIDFromContext(r.Context()), "booking_id", req.BookingID, "err", err)
			httpx.WriteJSON(w, http.StatusInternalServerError, map[string]string{
				"error":   "payment_failed",
				"message": "payment provider unavailable",
			})
			return
		}
		httpx.WriteError(w, err)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, res)
}

// StripeWebhook has no JWT auth; the signature is the auth.
func (h *Handler) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if h.stripeWebhookSecret == "" {
		http.Error(w, "stripe webhook not configured", http.StatusServiceUnavailable)
		return
	}
	sigHeader := r.Header.Get("Stripe-Signature")
	if strings.TrimSpace(sigHeader) == "" {
		http.Error(w, "missing Stripe-Signature header", http.StatusBadRequest)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		http.Error(w, "failed to read request body", http.StatusBadRequest)
		return
	}
	evt, err := webhook.ConstructEventWithOptions(body, sigHeader, h.stripeWebhookSecret, webhook.ConstructEventOptions{
		Tolerance:                h.stripeWebhookTolerance,
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		http.Error(w, "invalid signature", http.StatusBadRequest)
		return
	}

	result, err := h.svc.HandleStripeEvent(r.Context(), evt, body, httpx.RequestIDFromContext(r.Context()))
	if err != nil {
		h.logger.Error("stripe webhook apply failed", "provider_event_id", evt.ID, "err", err)
		http.Error(w, "failed to apply provider event", http.StatusInternalServerError)
		return
	}
	httpx.WriteJSON(w, http.StatusOK, map[string]any{"status": string(result)})
}
