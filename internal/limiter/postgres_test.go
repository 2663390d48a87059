package limiter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

func newLimiter(t *testing.T, p Policy) (*Postgres, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	l := NewPostgres(mock, p)
	l.now = func() time.Time { return t0 }
	return l, mock
}

func TestKeyFor(t *testing.T) {
	a, b, c := KeyFor("ann", "1.2.3.4"), KeyFor("ann", "1.2.3.4"), KeyFor("ann", "5.6.7.8")
	require.Equal(t, a, b)
	require.NotEqual(t, a.IPHash, c.IPHash)
	require.Len(t, a.IPHash, 32)
	require.Equal(t, "ann", a.Username)
}

func TestCheck(t *testing.T) {
	k := KeyFor("ann", "1.2.3.4")
	tests := []struct {
		name     string
		rows     *pgxmock.Rows
		err      error
		wantWait time.Duration
		wantErr  bool
	}{
		{name: "no row", err: pgx.ErrNoRows},
		{name: "blocked", rows: pgxmock.NewRows([]string{"blocked_until"}).AddRow(t0.Add(10 * time.Minute)), wantWait: 10 * time.Minute},
		{name: "block expired", rows: pgxmock.NewRows([]string{"blocked_until"}).AddRow(t0.Add(-time.Second))},
		{name: "db error", err: errors.New("boom"), wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, mock := newLimiter(t, DefaultPolicy)
			exp := mock.ExpectQuery(`SELECT blocked_until FROM login_attempts`).WithArgs(k.Username, k.IPHash)
			if tt.rows != nil {
				exp.WillReturnRows(tt.rows)
			} else {
				exp.WillReturnError(tt.err)
			}

			wait, err := l.Check(context.Background(), k)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
				require.Equal(t, tt.wantWait, wait)
			}
			require.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestReset(t *testing.T) {
	l, mock := newLimiter(t, DefaultPolicy)
	k := KeyFor("ann", "1.2.3.4")
	mock.ExpectExec(`INSERT INTO login_attempts`).
		WithArgs(k.Username, k.IPHash, t0).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	require.NoError(t, l.Reset(context.Background(), k))

	mock.ExpectExec(`INSERT INTO login_attempts`).
		WithArgs(k.Username, k.IPHash, t0).
		WillReturnError(errors.New("exec fail"))
	require.Error(t, l.Reset(context.Background(), k))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_BelowLimit(t *testing.T) {
	p := Policy{Window: 5 * time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute}
	l, mock := newLimiter(t, p)
	k := KeyFor("ann", "1.2.3.4")
	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs(k.Username, k.IPHash, t0, p.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(2))

	wait, err := l.Failure(context.Background(), k)
	require.NoError(t, err)
	require.Zero(t, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_BlocksAtLimit(t *testing.T) {
	p := Policy{Window: 5 * time.Minute, MaxFails: 3, BlockFor: 10 * time.Minute}
	l, mock := newLimiter(t, p)
	k := KeyFor("ann", "1.2.3.4")
	mock.ExpectQuery(`RETURNING fail_count`).
		WithArgs(k.Username, k.IPHash, t0, p.Window).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(3))
	mock.ExpectExec(`UPDATE login_attempts SET blocked_until`).
		WithArgs(k.Username, k.IPHash, t0.Add(p.BlockFor)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	wait, err := l.Failure(context.Background(), k)
	require.NoError(t, err)
	require.Equal(t, p.BlockFor, wait)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestFailure_Errors(t *testing.T) {
	p := Policy{Window: time.Minute, MaxFails: 1, BlockFor: time.Minute}
	k := KeyFor("ann", "1.2.3.4")

	l, mock := newLimiter(t, p)
	mock.ExpectQuery(`RETURNING fail_count`).WillReturnError(errors.New("query"))
	_, err := l.Failure(context.Background(), k)
	require.Error(t, err)

	l, mock = newLimiter(t, p)
	mock.ExpectQuery(`RETURNING fail_count`).
		WillReturnRows(pgxmock.NewRows([]string{"fail_count"}).AddRow(1))
	mock.ExpectExec(`UPDATE login_attempts`).WillReturnError(errors.New("exec"))
	_, err = l.Failure(context.Background(), k)
	require.Error(t, err)
}
