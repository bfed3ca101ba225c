package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/auth"
	"github.com/peeyushmeher/cleanswift/libs/config"
	"github.com/peeyushmeher/cleanswift/libs/db"
	"github.com/peeyushmeher/cleanswift/libs/grpcx"
	"github.com/peeyushmeher/cleanswift/libs/httpx"
	"github.com/peeyushmeher/cleanswift/libs/kafkax"
	otelx "github.com/peeyushmeher/cleanswift/libs/otel"
	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/peeyushmeher/cleanswift/libs/runtime"
	"github.com/peeyushmeher/cleanswift/services/payment-service/internal/handlers"
	"github.com/peeyushmeher/cleanswift/services/payment-service/internal/intents"
	"github.com/peeyushmeher/cleanswift/services/payment-service/internal/reconcile"
	"github.com/peeyushmeher/cleanswift/services/payment-service/internal/storage"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "payment-service")
	port, err := config.Port("PORT", "8084")
	if err != nil {
		panic(err)
	}
	verifier, err := auth.VerifierFromEnv()
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL)
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository()
	repo := storage.NewRepository(pool, outboxRepo)

	var provider intents.Provider
	if sp := intents.NewStripeProvider(config.String("STRIPE_SECRET_KEY", "")); sp != nil {
		provider = sp
	} else {
		logger.Warn("stripe disabled: STRIPE_SECRET_KEY missing")
	}
	svc := intents.NewService(repo, provider, config.String("PAYMENT_CURRENCY", "cad"), logger)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.PositiveInt("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	// Settle payments whose webhook was missed.
	if provider != nil && config.Bool("PAYMENT_RECONCILE_ENABLED", false) {
		locker := reconcile.NewAdvisoryLocker(pool, int64(config.PositiveInt("PAYMENT_RECONCILE_LOCK_KEY", int(reconcile.DefaultLockKey))))
		runner := reconcile.NewRunner(locker, svc, logger, reconcile.Config{
			Interval:  config.Seconds("PAYMENT_RECONCILE_INTERVAL_SECONDS", 5*time.Minute),
			OlderThan: config.Seconds("PAYMENT_RECONCILE_AFTER_SECONDS", 10*time.Minute),
			BatchSize: config.PositiveInt("PAYMENT_RECONCILE_BATCH_SIZE", 50),
		})
		go runner.Run(ctx)
	}

	if addr := strings.TrimSpace(config.String("GRPC_ADDR", ":9084")); addr != "" {
		if _, err := grpcx.Serve(ctx, logger, addr, service); err != nil {
			logger.Error("grpc health server failed", "err", err)
		}
	}

	h := handlers.New(svc, logger, handlers.Config{
		StripeWebhookSecret:    config.String("STRIPE_WEBHOOK_SECRET", ""),
		StripeWebhookTolerance: config.Seconds("STRIPE_WEBHOOK_TOLERANCE_SECONDS", 300*time.Second),
	})

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/v1/payments/intent", httpx.Chain(http.HandlerFunc(h.CreateIntent),
		auth.RequireUser(verifier),
		httpx.WithPrincipalLog,
		httpx.WithRateLimit(
			httpx.NewMemoryLimiter(config.PositiveInt("RATE_LIMIT_PER_MINUTE", 30), time.Minute),
			httpx.RateLimitOptions{Prefix: "rl:payment", Logger: logger},
		),
		httpx.WithBodyLimit(64<<10),
	))
	mux.HandleFunc("/api/v1/payments/webhooks/stripe", h.StripeWebhook)

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	handler = otelhttp.NewHandler(handler, "payment")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	_ = runtime.ServeHTTP(ctx, logger, srv, config.Seconds("SHUTDOWN_GRACE_SECONDS", 10*time.Second))
}
