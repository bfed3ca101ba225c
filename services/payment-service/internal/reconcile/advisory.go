package reconcile

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peeyushmeher/cleanswift/libs/db"
)

const DefaultLockKey int64 = 4242101

var errLockNotHeld = errors.New("advisory lock no longer held")

// AdvisoryLocker takes a Postgres session advisory lock on a dedicated pooled connection, since
// the lock belongs to the session that took it.
type AdvisoryLocker struct {
	pool *db.Pool
	key  int64
}

func NewAdvisoryLocker(pool *db.Pool, key int64) *AdvisoryLocker {
	if key == 0 {
		key = DefaultLockKey
	}
	return &AdvisoryLocker{pool: pool, key: key}
}

func (l *AdvisoryLocker) TryLock(ctx context.Context) (Lease, bool, error) {
	conn, err := l.pool.Acquire(ctx)
	if err != nil {
		return nil, false, err
	}
	var locked bool
	if err := conn.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, l.key).Scan(&locked); err != nil {
		conn.Release()
		return nil, false, err
	}
	if !locked {
		conn.Release()
		return nil, false, nil
	}
	return &advisoryLease{conn: conn, key: l.key}, true, nil
}

type advisoryLease struct {
	conn *pgxpool.Conn
	key  int64
	lost bool
}

// Check confirms the session is alive and still owns the lock.
func (a *advisoryLease) Check(ctx context.Context) error {
	var held bool
	err := a.conn.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_locks
			WHERE locktype = 'advisory' AND objsubid = 1 AND granted AND pid = pg_backend_pid()
			  AND ((classid::bigint << 32) | objid::bigint) = $1
		)
	`, a.key).Scan(&held)
	if err != nil {
		a.lost = true
		return err
	}
	if !held {
		a.lost = true
		return errLockNotHeld
	}
	return nil
}

// Release unlocks and returns the connection. A session that failed its check is closed so the
// pool never hands it out again.
func (a *advisoryLease) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if a.lost {
		_ = a.conn.Conn().Close(ctx)
	} else {
		_, _ = a.conn.Exec(ctx, `SELECT pg_advisory_unlock($1)`, a.key)
	}
	a.conn.Release()
}
