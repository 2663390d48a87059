package limiter

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Querier is the part of a pgx pool the limiter uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres keeps attempt counters in the login_attempts table.
type Postgres struct {
	q   Querier
	p   Policy
	now func() time.Time
}

// NewPostgres returns a limiter over q enforcing p.
func NewPostgres(q Querier, p Policy) *Postgres {
	return &Postgres{q: q, p: p, now: time.Now}
}

const (
	sqlCheck = `SELECT blocked_until FROM login_attempts WHERE username=$1 AND ip_hash=$2`

	sqlReset = `
INSERT INTO login_attempts (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 0, 'epoch', $3)
ON CONFLICT (username, ip_hash)
DO UPDATE SET fail_count=0, blocked_until='epoch', updated_at=EXCLUDED.updated_at`

	sqlFailure = `
INSERT INTO login_attempts (username, ip_hash, fail_count, blocked_until, updated_at)
VALUES ($1, $2, 1, 'epoch', $3)
ON CONFLICT (username, ip_hash) DO UPDATE SET
  fail_count = CASE WHEN EXCLUDED.updated_at - login_attempts.updated_at > $4::interval
                    THEN 1 ELSE login_attempts.fail_count + 1 END,
  updated_at = EXCLUDED.updated_at
RETURNING fail_count`

	sqlBlock = `UPDATE login_attempts SET blocked_until=$3 WHERE username=$1 AND ip_hash=$2`
)

// Check returns how long k stays locked out; zero when it may sign in.
func (l *Postgres) Check(ctx context.Context, k Key) (time.Duration, error) {
	var until time.Time
	err := l.q.QueryRow(ctx, sqlCheck, k.Username, k.IPHash).Scan(&until)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	if wait := until.Sub(l.now()); wait > 0 {
		return wait, nil
	}
	return 0, nil
}

// Reset clears the counters of k after a successful sign-in.
func (l *Postgres) Reset(ctx context.Context, k Key) error {
	_, err := l.q.Exec(ctx, sqlReset, k.Username, k.IPHash, l.now())
	return err
}

// Failure counts a failed attempt and locks k out once the policy limit is hit.
func (l *Postgres) Failure(ctx context.Context, k Key) (time.Duration, error) {
	now := l.now()
	var fails int
	if err := l.q.QueryRow(ctx, sqlFailure, k.Username, k.IPHash, now, l.p.Window).Scan(&fails); err != nil {
		return 0, err
	}
	if fails < l.p.MaxFails {
		return 0, nil
	}
	if _, err := l.q.Exec(ctx, sqlBlock, k.Username, k.IPHash, now.Add(l.p.BlockFor)); err != nil {
		return 0, err
	}
	return l.p.BlockFor, nil
}
