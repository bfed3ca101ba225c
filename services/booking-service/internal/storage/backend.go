// Package storage reads and writes the booking backend over pgx. Caller-scoped work runs in a
// transaction under the backend's row-level security as the verified caller.
package storage

import (
	"context"
	"errors"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/peeyushmeher/cleanswift/libs/auth"
	"github.com/peeyushmeher/cleanswift/libs/db"
	"github.com/peeyushmeher/cleanswift/libs/outbox"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var errNoSession = errors.New("no authenticated session")

type Backend struct {
	pool   *db.Pool
	outbox *outbox.Repository
	logger *slog.Logger
	tracer trace.Tracer
}

func NewBackend(pool *db.Pool, ob *outbox.Repository, logger *slog.Logger) *Backend {
	return &Backend{
		pool:   pool,
		outbox: ob,
		logger: logger,
		tracer: otel.Tracer("booking-service/storage"),
	}
}

// inSession runs fn in an RLS-scoped transaction for the caller found in ctx and commits it.
func (b *Backend) inSession(ctx context.Context, op string, fn func(ctx context.Context, tx pgx.Tx) error) error {
	ctx, span := b.tracer.Start(ctx, "storage."+op, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
	))
	defer span.End()

	err := b.runSession(ctx, fn)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
	}
	return classify(err)
}

func (b *Backend) runSession(ctx context.Context, fn func(ctx context.Context, tx pgx.Tx) error) error {
	p, ok := auth.PrincipalFromContext(ctx)
	if !ok {
		return errNoSession
	}
	tx, err := b.pool.BeginAs(ctx, p.RawClaims)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// inService runs fn on the pool with the service's own role, for data that is not caller scoped.
func (b *Backend) inService(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	ctx, span := b.tracer.Start(ctx, "storage."+op, trace.WithAttributes(
		attribute.String("db.system", "postgresql"),
		attribute.String("db.operation", op),
	))
	defer span.End()

	err := fn(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, op)
	}
	return classify(err)
}

func (b *Backend) writeEvents(ctx context.Context, tx pgx.Tx, events []outbox.Event) error {
	for _, evt := range events {
		if err := b.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}
	return nil
}
