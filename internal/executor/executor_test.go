package executor

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/database/dbtest"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/pool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errLost   = errors.New("server has gone away")
	errBusy   = errors.New("lock wait timeout")
	errSyntax = errors.New("syntax error near FROM")
)

// sharedSession lets every pooled connection talk to the same sqlmock
// handle; closing one connection must not close the mock.
type sharedSession struct{ *sql.DB }

func (sharedSession) Close() error { return nil }

type harness struct {
	exec *Executor
	pool *pool.Pool
	mock sqlmock.Sqlmock

	mu      sync.Mutex
	success []string
	failure []string
}

func newHarness(t *testing.T, marker database.Marker, cfg Config) *harness {
	t.Helper()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	d := &dbtest.Dialect{
		Marker: marker,
		OpenFunc: func(context.Context, database.Params) (database.Session, error) {
			return sharedSession{db}, nil
		},
		ClassifyFunc: func(err error) errs.ErrKind {
			switch {
			case errors.Is(err, errLost):
				return errs.ErrKindConnectionLost
			case errors.Is(err, errBusy):
				return errs.ErrKindBusy
			default:
				return errs.ErrKindQueryFailed
			}
		},
	}

	p := pool.New(d, database.Params{})
	t.Cleanup(func() { _ = p.Close() })

	h := &harness{exec: New(p, cfg), pool: p, mock: mock}
	h.exec.OnSuccess(func(stmt string, _ []any) {
		h.mu.Lock()
		h.success = append(h.success, stmt)
		h.mu.Unlock()
	})
	h.exec.OnFailure(func(stmt string, _ []any) {
		h.mu.Lock()
		h.failure = append(h.failure, stmt)
		h.mu.Unlock()
	})
	return h
}

func fastConfig() Config {
	return Config{
		MaxAttempts: 3,
		Delay:       time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		SettleDelay: time.Hour,
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 100*time.Millisecond, cfg.Delay)
	assert.Equal(t, 5*time.Second, cfg.MaxDelay)
	assert.Equal(t, 5*time.Second, cfg.SettleDelay)
	assert.False(t, cfg.ReleaseOnFatal)

	filled := Config{}.withDefaults()
	assert.Equal(t, cfg.MaxAttempts, filled.MaxAttempts)
	assert.Equal(t, cfg.Delay, filled.Delay)
}

func TestFetchAll_Success(t *testing.T) {
	h := newHarness(t, database.DollarMarker, fastConfig())

	h.mock.ExpectQuery("SELECT id, name FROM users WHERE id > $1").
		WithArgs(10).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow(11, "ada").AddRow(12, "bob"))

	rows, err := h.exec.FetchAll(context.Background(), "SELECT id, name FROM users WHERE id > ?", 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(11), rows[0].Int("id", 0))
	assert.Equal(t, "bob", rows[1].String("name"))

	assert.Equal(t, []string{"SELECT id, name FROM users WHERE id > ?"}, h.success)
	assert.Empty(t, h.failure)

	st := h.pool.Stats()
	assert.Zero(t, st.Running)
	assert.Equal(t, 1, st.Free)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestFetchOne_EmptyRow(t *testing.T) {
	h := newHarness(t, nil, fastConfig())

	h.mock.ExpectQuery("SELECT id FROM users WHERE id = ?").
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	row, err := h.exec.FetchOne(context.Background(), "SELECT id FROM users WHERE id = ?", 99)
	require.NoError(t, err)
	assert.NotNil(t, row)
	assert.Empty(t, row)
}

func TestExec_RebindsPlaceholders(t *testing.T) {
	h := newHarness(t, database.AtPMarker, fastConfig())

	h.mock.ExpectExec("UPDATE t SET a = @p1 WHERE b = @p2 AND c = '?'").
		WithArgs("x", 2).
		WillReturnResult(sqlmock.NewResult(0, 3))

	res, err := h.exec.Exec(context.Background(), "UPDATE t SET a = ? WHERE b = ? AND c = '?'", "x", 2)
	require.NoError(t, err)
	n, err := res.RowsAffected()
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
}

func TestRecoversFromLostConnection(t *testing.T) {
	h := newHarness(t, nil, fastConfig())

	h.mock.ExpectQuery("SELECT 1").WillReturnError(errLost)
	h.mock.ExpectQuery("SELECT 1").WillReturnRows(sqlmock.NewRows([]string{"1"}).AddRow(1))

	row, err := h.exec.FetchOne(context.Background(), "SELECT 1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), row.Int("1", 0))

	st := h.pool.Stats()
	assert.Equal(t, uint64(1), st.Discarded)
	assert.Equal(t, uint64(2), st.Created)
	assert.Equal(t, 1, st.All)

	assert.Empty(t, h.success, "recovered operations report through failure hooks only")
	assert.Equal(t, []string{"SELECT 1"}, h.failure)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRecoversFromBusyServer(t *testing.T) {
	h := newHarness(t, nil, fastConfig())

	h.mock.ExpectExec("DELETE FROM jobs").WillReturnError(errBusy)
	h.mock.ExpectExec("DELETE FROM jobs").WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := h.exec.Exec(context.Background(), "DELETE FROM jobs")
	require.NoError(t, err)

	st := h.pool.Stats()
	assert.Equal(t, uint64(2), st.Created, "retry must run on another connection")
	assert.Equal(t, 1, st.Running, "the busy connection is still settling")
	assert.Equal(t, 1, st.Free)
	assert.Zero(t, st.Discarded)
	assert.Equal(t, []string{"DELETE FROM jobs"}, h.failure)
}

func TestBusyConnectionSettlesBackToFree(t *testing.T) {
	cfg := fastConfig()
	cfg.SettleDelay = 20 * time.Millisecond
	h := newHarness(t, nil, cfg)

	h.mock.ExpectExec("DELETE FROM jobs").WillReturnError(errBusy)
	h.mock.ExpectExec("DELETE FROM jobs").WillReturnResult(sqlmock.NewResult(0, 1))
	h.mock.ExpectExec("DELETE FROM jobs").WillReturnResult(sqlmock.NewResult(0, 0))

	_, err := h.exec.Exec(context.Background(), "DELETE FROM jobs")
	require.NoError(t, err)
	assert.Equal(t, uint64(2), h.pool.Stats().Created)

	require.Eventually(t, func() bool {
		st := h.pool.Stats()
		return st.Running == 0 && st.Free == 2
	}, time.Second, 5*time.Millisecond, "the busy connection returns to the free list after settling")

	_, err = h.exec.Exec(context.Background(), "DELETE FROM jobs")
	require.NoError(t, err)

	st := h.pool.Stats()
	assert.Equal(t, uint64(2), st.Created, "settled connections are reused")
	assert.Zero(t, st.Discarded)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestRetryExhausted(t *testing.T) {
	h := newHarness(t, nil, fastConfig())

	for i := 0; i < 3; i++ {
		h.mock.ExpectQuery("SELECT 1").WillReturnError(errLost)
	}

	_, err := h.exec.FetchAll(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.True(t, errs.IsRetryExhausted(err))
	assert.ErrorIs(t, err, errLost)

	assert.Equal(t, uint64(3), h.pool.Stats().Discarded)
	assert.Equal(t, []string{"SELECT 1"}, h.failure)
	assert.Empty(t, h.success)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestFatalErrorIsNotRetried(t *testing.T) {
	h := newHarness(t, nil, fastConfig())

	h.mock.ExpectQuery("SELEC 1").WillReturnError(errSyntax)

	_, err := h.exec.FetchAll(context.Background(), "SELEC 1")
	require.Error(t, err)
	assert.True(t, errs.IsQueryFailed(err))
	assert.ErrorIs(t, err, errSyntax)

	st := h.pool.Stats()
	assert.Equal(t, 1, st.Running, "connection is left checked out after a fatal error")
	assert.Empty(t, h.success)
	assert.Empty(t, h.failure)
	require.NoError(t, h.mock.ExpectationsWereMet())
}

func TestFatalErrorReleaseOnFatal(t *testing.T) {
	cfg := fastConfig()
	cfg.ReleaseOnFatal = true
	h := newHarness(t, nil, cfg)

	h.mock.ExpectQuery("SELEC 1").WillReturnError(errSyntax)

	_, err := h.exec.FetchAll(context.Background(), "SELEC 1")
	require.Error(t, err)

	st := h.pool.Stats()
	assert.Zero(t, st.Running)
	assert.Equal(t, 1, st.Free)
}

func TestFatalAfterRetryFiresFailureHooks(t *testing.T) {
	h := newHarness(t, nil, fastConfig())

	h.mock.ExpectQuery("SELECT x").WillReturnError(errLost)
	h.mock.ExpectQuery("SELECT x").WillReturnError(errSyntax)

	_, err := h.exec.FetchAll(context.Background(), "SELECT x")
	assert.ErrorIs(t, err, errSyntax)
	assert.Equal(t, []string{"SELECT x"}, h.failure)
}

func TestHooksFireInRegistrationOrder(t *testing.T) {
	h := newHarness(t, nil, fastConfig())

	var order []int
	for i := 1; i <= 3; i++ {
		h.exec.OnSuccess(func(string, []any) { order = append(order, i) })
	}

	h.mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	_, err := h.exec.Exec(context.Background(), "SELECT 1")
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, order)
}

func TestSuccessAndRecoveredFireEachHookOnce(t *testing.T) {
	h := newHarness(t, nil, fastConfig())
	ctx := context.Background()

	h.mock.ExpectExec("INSERT INTO a VALUES (1)").WillReturnResult(sqlmock.NewResult(1, 1))
	h.mock.ExpectExec("INSERT INTO b VALUES (1)").WillReturnError(errBusy)
	h.mock.ExpectExec("INSERT INTO b VALUES (1)").WillReturnResult(sqlmock.NewResult(1, 1))

	_, err := h.exec.Exec(ctx, "INSERT INTO a VALUES (1)")
	require.NoError(t, err)
	_, err = h.exec.Exec(ctx, "INSERT INTO b VALUES (1)")
	require.NoError(t, err)

	assert.Equal(t, []string{"INSERT INTO a VALUES (1)"}, h.success)
	assert.Equal(t, []string{"INSERT INTO b VALUES (1)"}, h.failure)
}

func TestConn(t *testing.T) {
	h := newHarness(t, nil, fastConfig())
	ctx := context.Background()

	h.mock.ExpectExec("SET NAMES utf8mb4").WillReturnResult(sqlmock.NewResult(0, 0))
	h.mock.ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))

	err := h.exec.Conn(ctx, func(c *pool.Conn) error {
		if _, err := c.ExecContext(ctx, "SET NAMES utf8mb4"); err != nil {
			return err
		}
		_, err := c.ExecContext(ctx, "SELECT 1")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, 1, h.pool.Stats().Free)

	h.mock.ExpectExec("SELECT 2").WillReturnError(errLost)
	err = h.exec.Conn(ctx, func(c *pool.Conn) error {
		_, err := c.ExecContext(ctx, "SELECT 2")
		return err
	})
	assert.True(t, errs.IsConnectionLost(err))
	assert.Equal(t, uint64(1), h.pool.Stats().Discarded)

	h.mock.ExpectExec("SELEC 3").WillReturnError(errSyntax)
	err = h.exec.Conn(ctx, func(c *pool.Conn) error {
		_, err := c.ExecContext(ctx, "SELEC 3")
		return err
	})
	assert.True(t, errs.IsQueryFailed(err))
	assert.Zero(t, h.pool.Stats().Running, "scoped connections are released after fatal errors")
	require.NoError(t, h.mock.ExpectationsWereMet())
}
