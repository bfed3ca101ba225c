package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"

	"github.com/peeyushmeher/cleanswift/libs/auth"
	"github.com/peeyushmeher/cleanswift/libs/grpcx"
	"github.com/peeyushmeher/cleanswift/libs/httpx"
	"github.com/peeyushmeher/cleanswift/libs/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

type upstreams struct {
	Booking *url.URL
	Payment *url.URL
}

// registerRoutes rejects bad tokens at the edge and forwards the Authorization header unchanged,
// since the services open backend sessions with the caller's own claims.
func registerRoutes(mux *http.ServeMux, up upstreams, verifier *auth.Verifier) {
	otelTransport := otelhttp.NewTransport(http.DefaultTransport)
	bookingProxy := httputil.NewSingleHostReverseProxy(up.Booking)
	paymentProxy := httputil.NewSingleHostReverseProxy(up.Payment)
	bookingProxy.Transport = otelTransport
	paymentProxy.Transport = otelTransport

	requireUser := func(h http.Handler) http.Handler {
		return httpx.Chain(h, auth.RequireUser(verifier), httpx.WithPrincipalLog)
	}

	for _, prefix := range []string{
		"/api/v1/bookings",
		"/api/v1/favorites",
		"/api/v1/catalog",
		"/api/v1/cars",
		"/api/v1/detailers",
		"/api/v1/dashboard",
	} {
		registerProxy(mux, prefix, requireUser(bookingProxy))
	}
	registerProxy(mux, "/api/v1/payments/intent", requireUser(paymentProxy))
	// Stripe reaches the webhook without a JWT; signature verification is the auth.
	registerProxy(mux, "/api/v1/payments/webhooks/stripe", paymentProxy)
}

func registerProxy(mux *http.ServeMux, prefix string, handler http.Handler) {
	if !strings.HasSuffix(prefix, "/") {
		mux.Handle(prefix, handler)
		mux.Handle(prefix+"/", handler)
		return
	}
	mux.Handle(prefix, handler)
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		panic(err)
	}
	return u
}

// upstreamHealth reports an upstream ready only while its gRPC health service says SERVING.
func upstreamHealth(name, addr, service string) runtime.ReadyCheck {
	return runtime.ReadyCheck{
		Name: name,
		Check: func(ctx context.Context) error {
			ok, err := grpcx.CheckHealth(ctx, addr, service)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("%s not serving", service)
			}
			return nil
		},
	}
}
