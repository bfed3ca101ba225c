package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/auth"
	"github.com/peeyushmeher/cleanswift/libs/config"
	"github.com/peeyushmeher/cleanswift/libs/httpx"
	otelx "github.com/peeyushmeher/cleanswift/libs/otel"
	"github.com/peeyushmeher/cleanswift/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "gateway-service")
	port, err := config.Port("PORT", "8080")
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

	mux := runtime.NewBaseMuxWithReady(
		upstreamHealth("booking", config.String("BOOKING_GRPC_ADDR", "booking-service:9083"), "booking-service"),
		upstreamHealth("payment", config.String("PAYMENT_GRPC_ADDR", "payment-service:9084"), "payment-service"),
	)
	registerRoutes(mux, upstreams{
		Booking: mustParseURL(config.String("BOOKING_URL", "http://booking-service:8083")),
		Payment: mustParseURL(config.String("PAYMENT_URL", "http://payment-service:8084")),
	}, verifier)

	limitPerMinute := config.PositiveInt("RATE_LIMIT_PER_MINUTE", 60)
	var limiter httpx.Limiter = httpx.NewMemoryLimiter(limitPerMinute, time.Minute)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.PositiveInt("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()
		limiter = httpx.NewRedisLimiter(rdb, limitPerMinute, time.Minute)
	}
	logger.Info("rate limiting enabled", "per_minute", limitPerMinute, "limiter", fmt.Sprintf("%T", limiter))

	handler := httpx.Chain(mux,
		httpx.WithCORS(httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,PUT,DELETE,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Authorization,Content-Type,X-Request-Id"),
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Seconds("CORS_MAX_AGE_SECONDS", 10*time.Minute),
		}),
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithRecover(logger),
		httpx.WithBodyLimit(int64(config.PositiveInt("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Seconds("REQUEST_TIMEOUT_SECONDS", 10*time.Second)),
		httpx.WithRateLimit(limiter, httpx.RateLimitOptions{
			Prefix:   config.String("RATE_LIMIT_PREFIX", "rl:gateway"),
			FailOpen: config.Bool("RATE_LIMIT_FAIL_OPEN", true),
			Logger:   logger,
		}),
	)
	handler = otelhttp.NewHandler(handler, "gateway")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	_ = runtime.ServeHTTP(ctx, logger, srv, config.Seconds("SHUTDOWN_GRACE_SECONDS", 10*time.Second))
}
