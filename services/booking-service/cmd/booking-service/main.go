package main

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/auth"
	"github.com/peeyushmeher/cleanswift/libs/cachex"
	"github.com/peeyushmeher/cleanswift/libs/config"
	"github.com/peeyushmeher/cleanswift/libs/db"
	"github.com/peeyushmeher/cleanswift/libs/grpcx"
	"github.com/peeyushmeher/cleanswift/libs/httpx"
	"github.com/peeyushmeher/cleanswift/libs/kafkax"
	otelx "github.com/peeyushmeher/cleanswift/libs/otel"
	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"github.com/peeyushmeher/cleanswift/libs/runtime"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/catalog"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/consumer"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/dashboard"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/events"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/favorites"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/handlers"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/inbox"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/readmodel"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/realtime"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/rebook"
	"github.com/peeyushmeher/cleanswift/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
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
	pool, err := db.OpenWithConfig(ctx, dbURL, db.PoolConfig{
		MaxConns: int32(config.PositiveInt("DB_MAX_CONNS", 10)),
		MinConns: 1,
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	brokers := config.String("KAFKA_BROKERS", "")
	outboxRepo := outbox.NewRepository()
	backend := storage.NewBackend(pool, outboxRepo, logger)

	publisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   brokers,
		PollEvery: config.Seconds("OUTBOX_POLL_SECONDS", 2*time.Second),
		BatchSize: config.PositiveInt("OUTBOX_BATCH_SIZE", 50),
	})
	go publisher.Run(ctx)

	var (
		rdb    *redis.Client
		shared catalog.SnapshotStore
	)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.PositiveInt("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		shared = catalog.NewRedisStore(rdb, config.Seconds("CATALOG_TTL_SECONDS", 10*time.Minute))
	}

	userLimits := cachex.Limits{
		Size: config.PositiveInt("USER_CACHE_SIZE", cachex.DefaultSize),
		Idle: config.Seconds("USER_CACHE_IDLE_SECONDS", cachex.DefaultIdleTTL),
	}
	histories := readmodel.NewHistories(readmodel.NewFetcher(backend, logger), userLimits)
	favs := favorites.NewManagers(backend, logger, userLimits)
	drafts := rebook.NewControllers(userLimits)
	catalogCache := catalog.NewCache(backend, shared, logger)

	listener := realtime.NewListener(realtime.PoolDialer(pool), logger)
	for _, channel := range config.List("CATALOG_CHANNELS", "services_changes,service_addons_changes") {
		listener.Subscribe(channel, catalogCache.Invalidate)
	}
	go listener.Run(ctx)

	if topic := strings.TrimSpace(config.String("KAFKA_CONSUME_TOPIC", events.TypePaymentSucceeded)); topic != "" && brokers != "" {
		paymentConsumer := consumer.New(logger, inbox.NewRepository(pool), consumer.Config{
			Brokers: brokers,
			GroupID: config.String("KAFKA_GROUP_ID", service),
			Topic:   topic,
		}, events.PaymentSucceededHandler(logger, histories, favs, drafts))
		go paymentConsumer.Run(ctx)
	}

	if addr := strings.TrimSpace(config.String("GRPC_ADDR", ":9083")); addr != "" {
		if _, err := grpcx.Serve(ctx, logger, addr, service); err != nil {
			logger.Error("grpc health server failed", "err", err)
		}
	}


	limit := config.PositiveInt("RATE_LIMIT_PER_MINUTE", 120)
	var limiter httpx.Limiter = httpx.NewMemoryLimiter(limit, time.Minute)
	if rdb != nil {
		limiter = httpx.NewRedisLimiter(rdb, limit, time.Minute)
	}
	rateLimit := httpx.WithRateLimit(limiter, httpx.RateLimitOptions{
		Prefix:   config.String("RATE_LIMIT_PREFIX", "rl:booking"),
		FailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
		Logger:   logger,
	})

	api := http.NewServeMux()
	handlers.Register(api,
		handlers.NewCustomerHandler(histories, favs, drafts, catalogCache, backend, logger),
		handlers.NewDashboardHandler(dashboard.NewService(backend, logger), logger),
	)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	if rdb != nil {
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
	}
	mux := runtime.NewBaseMuxWithReady(checks...)
	mux.Handle("/api/", httpx.Chain(api,
		auth.RequireUser(verifier),
		httpx.WithPrincipalLog,
		rateLimit,
		httpx.WithBodyLimit(int64(config.PositiveInt("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)),
	))

	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	_ = runtime.ServeHTTP(ctx, logger, srv, config.Seconds("SHUTDOWN_GRACE_SECONDS", 10*time.Second))
}
