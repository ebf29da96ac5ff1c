package limiter

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5"
)

// PG is a PostgreSQL-backed fixed-window counter store. It is used when Redis is
// not deployed; a single upsert keeps increment and window reset atomic.
type PG struct {
	pool Querier
	now  func() time.Time
}

// Querier is satisfied by *pgxpool.Pool and the repository pool wrapper.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// NewPG constructs a PostgreSQL-backed store. The rate_limits table comes from
// the service migrations.
func NewPG(q Querier) *PG {
	return &PG{pool: q, now: time.Now}
}

// Hit implements Store.
func (l *PG) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	const q = `
INSERT INTO rate_limits (key, count, expires_at)
VALUES ($1, 1, now() + $2::interval)
ON CONFLICT (key) DO UPDATE
SET
  count = CASE WHEN rate_limits.expires_at <= now() THEN 1 ELSE rate_limits.count + 1 END,
  expires_at = CASE WHEN rate_limits.expires_at <= now() THEN now() + $2::interval ELSE rate_limits.expires_at END
RETURNING count, expires_at`
	var (
		count     int64
		expiresAt time.Time
	)
	if err := l.pool.QueryRow(ctx, q, key, window).Scan(&count, &expiresAt); err != nil {
		return 0, 0, err
	}
	return count, expiresAt.Sub(l.now()), nil
}
