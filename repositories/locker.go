package repositories

import (
	"context"
	"database/sql"
	"fmt"
)

// AdvisoryLocker serializes settlement of a single competition across
// concurrent scheduler invocations using postgres advisory locks. The lock is
// held on a dedicated connection so that the settlement steps themselves can
// run over the regular pool.
type AdvisoryLocker struct {
	db *sql.DB
}

func NewAdvisoryLocker(db *sql.DB) *AdvisoryLocker {
	return &AdvisoryLocker{db: db}
}

// Acquire attempts to take the advisory lock for key without blocking.
// When ok is true the caller must invoke release exactly once.
func (l *AdvisoryLocker) Acquire(ctx context.Context, key int64) (release func(), ok bool, err error) {
	conn, err := l.db.Conn(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("failed to obtain connection for advisory lock: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock($1)`, key).Scan(&acquired); err != nil {
		conn.Close()
		return nil, false, fmt.Errorf("failed to acquire advisory lock %d: %w", key, err)
	}
	if !acquired {
		conn.Close()
		return nil, false, nil
	}

	release = func() {
		// Unlock on the same connection that took the lock; closing the
		// connection would release it anyway, but an explicit unlock keeps
		// the pooled session clean.
		_, _ = conn.ExecContext(context.Background(), `SELECT pg_advisory_unlock($1)`, key)
		conn.Close()
	}
	return release, true, nil
}
