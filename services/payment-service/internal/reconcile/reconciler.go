// Package reconcile periodically settles payments whose webhook never arrived.
package reconcile

import (
	"context"
	"log/slog"
	"time"
)

type Reconciler interface {
	Reconcile(ctx context.Context, olderThan time.Duration, limit int) (int, error)
}

// Locker hands out the exclusive reconcile lease. ok is false when another instance holds it.
type Locker interface {
	TryLock(ctx context.Context) (lease Lease, ok bool, err error)
}

// Lease is a held lock. Check fails once the lock can no longer be trusted to be held.
type Lease interface {
	Check(ctx context.Context) error
	Release()
}

type Config struct {
	Interval  time.Duration
	OlderThan time.Duration
	BatchSize int
	// RetryAfter is the wait after a failed lock attempt, ContendedAfter the wait while
	// another instance holds the lock.
	RetryAfter     time.Duration
	ContendedAfter time.Duration
}

// Runner reconciles only while it holds the lease, and goes back to acquiring it when it is lost.
type Runner struct {
	locker Locker
	rec    Reconciler
	logger *slog.Logger
	cfg    Config
}

func NewRunner(locker Locker, rec Reconciler, logger *slog.Logger, cfg Config) *Runner {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Minute
	}
	if cfg.OlderThan <= 0 {
		cfg.OlderThan = 10 * time.Minute
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.RetryAfter <= 0 {
		cfg.RetryAfter = 5 * time.Second
	}
	if cfg.ContendedAfter <= 0 {
		cfg.ContendedAfter = 30 * time.Second
	}
	return &Runner{locker: locker, rec: rec, logger: logger, cfg: cfg}
}

func (r *Runner) Run(ctx context.Context) {
	for {
		lease, err := r.acquire(ctx)
		if err != nil {
			return
		}
		r.logger.Info("payment reconcile: lock acquired")
		r.hold(ctx, lease)
		lease.Release()
		if ctx.Err() != nil {
			return
		}
	}
}

// hold reconciles on every tick until ctx ends or the lease check fails.
func (r *Runner) hold(ctx context.Context, lease Lease) {
	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.once(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := lease.Check(ctx); err != nil {
				if ctx.Err() == nil {
					r.logger.Warn("payment reconcile: lock lost, reacquiring", "err", err)
				}
				return
			}
			r.once(ctx)
		}
	}
}

func (r *Runner) once(ctx context.Context) {
	n, err := r.rec.Reconcile(ctx, r.cfg.OlderThan, r.cfg.BatchSize)
	if err != nil {
		r.logger.Error("payment reconcile failed", "err", err)
		return
	}
	if n > 0 {
		r.logger.Info("payment reconcile settled payments", "count", n)
	}
}

// acquire blocks until the lease is held or ctx ends.
func (r *Runner) acquire(ctx context.Context) (Lease, error) {
	for {
		lease, ok, err := r.locker.TryLock(ctx)
		switch {
		case ctx.Err() != nil:
			if lease != nil {
				lease.Release()
			}
			return nil, ctx.Err()
		case err != nil:
			r.logger.Error("payment reconcile: lock attempt failed", "err", err)
			if !sleep(ctx, r.cfg.RetryAfter) {
				return nil, ctx.Err()
			}
		case ok:
			return lease, nil
		default:
			r.logger.Info("payment reconcile: lock held by another instance")
			if !sleep(ctx, r.cfg.ContendedAfter) {
				return nil, ctx.Err()
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
