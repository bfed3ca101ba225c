// Package realtime delivers table change notifications sent with pg_notify.
package realtime

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/peeyushmeher/cleanswift/libs/db"
)

// Conn is one dedicated connection that can LISTEN.
type Conn interface {
	Listen(ctx context.Context, channel string) error
	// Wait blocks until a notification arrives and returns its channel.
	Wait(ctx context.Context) (string, error)
	Close()
}

type Dialer func(ctx context.Context) (Conn, error)

// Callback receives the channel that changed. Payloads are ignored: any notification means
// "something changed, refetch".
type Callback func(ctx context.Context, channel string)

type Listener struct {
	dial   Dialer
	logger *slog.Logger

	mu        sync.Mutex
	callbacks map[string][]Callback

	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(dial Dialer, logger *slog.Logger) *Listener {
	return &Listener{
		dial:       dial,
		logger:     logger,
		callbacks:  make(map[string][]Callback),
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// PoolDialer acquires a pooled connection and holds it for the life of the subscription.
func PoolDialer(pool *db.Pool) Dialer {
	return func(ctx context.Context) (Conn, error) {
		c, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return &poolConn{conn: c}, nil
	}
}

// Subscribe must be called before Run.
func (l *Listener) Subscribe(channel string, cb Callback) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.callbacks[channel] = append(l.callbacks[channel], cb)
}

// Run listens until ctx is done, reconnecting with exponential backoff.
func (l *Listener) Run(ctx context.Context) {
	backoff := l.minBackoff
	for {
		connected, err := l.session(ctx)
		if ctx.Err() != nil {
			return
		}
		if connected {
			backoff = l.minBackoff
		}
		l.logger.Warn("realtime connection lost", "err", err, "retry_in", backoff.String())

		select {
		case <-ctx.Done():
			return
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > l.maxBackoff {
			backoff = l.maxBackoff
		}
	}
}

// session returns whether it got as far as listening.
func (l *Listener) session(ctx context.Context) (bool, error) {
	conn, err := l.dial(ctx)
	if err != nil {
		return false, err
	}
	defer conn.Close()

	channels := l.channels()
	for _, ch := range channels {
		if err := conn.Listen(ctx, ch); err != nil {
			return false, err
		}
	}
	l.logger.Info("realtime listening", "channels", channels)

	// Changes made while disconnected were missed; treat reconnect as a change on every channel.
	for _, ch := range channels {
		l.dispatch(ctx, ch)
	}

	for {
		ch, err := conn.Wait(ctx)
		if err != nil {
			return true, err
		}
		l.dispatch(ctx, ch)
	}
}

func (l *Listener) channels() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, 0, len(l.callbacks))
	for ch := range l.callbacks {
		out = append(out, ch)
	}
	return out
}

func (l *Listener) dispatch(ctx context.Context, channel string) {
	l.mu.Lock()
	cbs := append([]Callback(nil), l.callbacks[channel]...)
	l.mu.Unlock()
	for _, cb := range cbs {
		cb(ctx, channel)
	}
}

type poolConn struct {
	conn *pgxpool.Conn
}

func (c *poolConn) Listen(ctx context.Context, channel string) error {
	_, err := c.conn.Exec(ctx, "LISTEN "+pgx.Identifier{channel}.Sanitize())
	return err
}

func (c *poolConn) Wait(ctx context.Context) (string, error) {
	n, err := c.conn.Conn().WaitForNotification(ctx)
	if err != nil {
		return "", err
	}
	return n.Channel, nil
}

// Close drops the connection instead of returning it; it still has LISTENs registered.
func (c *poolConn) Close() {
	_ = c.conn.Hijack().Close(context.Background())
}
