// Package executor runs statements against a pool and recovers from
// transient faults by repairing the pool and retrying the whole operation.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/juju/clock"
	"github.com/juju/retry"
	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
	"github.com/koustreak/dbmap/internal/logger"
	"github.com/koustreak/dbmap/internal/pool"
)

// Config bounds the retry loop.
type Config struct {
	// MaxAttempts is the total number of tries, first one included.
	MaxAttempts int

	// Delay is the wait before the first retry; it doubles per retry up to MaxDelay.
	Delay    time.Duration
	MaxDelay time.Duration

	// SettleDelay is how long a connection that hit a busy/contention fault
	// stays checked out before it goes back to the free list.
	SettleDelay time.Duration

	// ReleaseOnFatal returns the connection to the pool after a fatal error.
	// Off by default: the connection stays running and its state is unknown.
	ReleaseOnFatal bool
}

// DefaultConfig returns the executor defaults.
func DefaultConfig() Config {
	return Config{
		MaxAttempts: 5,
		Delay:       100 * time.Millisecond,
		MaxDelay:    5 * time.Second,
		SettleDelay: 5 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.Delay <= 0 {
		c.Delay = def.Delay
	}
	if c.MaxDelay < c.Delay {
		c.MaxDelay = c.Delay
	}
	if c.SettleDelay < 0 {
		c.SettleDelay = 0
	}
	return c
}

// Hook observes an operation's outcome. Hooks must not block for long and
// must not panic; they run on the caller's goroutine.
type Hook func(stmt string, args []any)

// Executor is safe for concurrent use.
type Executor struct {
	pool    *pool.Pool
	dialect database.Dialect
	cfg     Config
	clock   clock.Clock
	log     *logger.Logger

	hookMu    sync.RWMutex
	onSuccess []Hook
	onFailure []Hook
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the executor's logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.log = l
		}
	}
}

// WithClock replaces the wall clock used for retry backoff.
func WithClock(c clock.Clock) Option {
	return func(e *Executor) {
		if c != nil {
			e.clock = c
		}
	}
}

// New creates an executor over p using p's dialect.
func New(p *pool.Pool, cfg Config, opts ...Option) *Executor {
	e := &Executor{
		pool:    p,
		dialect: p.Dialect(),
		cfg:     cfg.withDefaults(),
		clock:   clock.WallClock,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.log = e.log.Component("executor")
	return e
}

// Pool returns the underlying pool.
func (e *Executor) Pool() *pool.Pool { return e.pool }

// Dialect returns the dialect statements are rebound and classified with.
func (e *Executor) Dialect() database.Dialect { return e.dialect }

// Config returns the effective configuration.
func (e *Executor) Config() Config { return e.cfg }

// Close closes the pool.
func (e *Executor) Close() error { return e.pool.Close() }

// OnSuccess registers a hook fired when an operation succeeds on its first attempt.
func (e *Executor) OnSuccess(h Hook) {
	e.hookMu.Lock()
	e.onSuccess = append(e.onSuccess, h)
	e.hookMu.Unlock()
}

// OnFailure registers a hook fired once whenever an operation needed recovery,
// whether it eventually succeeded or not.
func (e *Executor) OnFailure(h Hook) {
	e.hookMu.Lock()
	e.onFailure = append(e.onFailure, h)
	e.hookMu.Unlock()
}

// --- operations ---

// Exec runs a statement that returns no rows.
func (e *Executor) Exec(ctx context.Context, stmt string, args ...any) (sql.Result, error) {
	var res sql.Result
	err := e.run(ctx, stmt, args, func(ctx context.Context, c *pool.Conn, query string) error {
		r, err := c.ExecContext(ctx, query, args...)
		if err != nil {
			return err
		}
		res = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// FetchAll runs a query and returns every row.
func (e *Executor) FetchAll(ctx context.Context, stmt string, args ...any) ([]database.Row, error) {
	var out []database.Row
	err := e.run(ctx, stmt, args, func(ctx context.Context, c *pool.Conn, query string) error {
		rows, err := c.QueryContext(ctx, query, args...)
		if err != nil {
			return err
		}
		res, err := database.ScanRows(rows)
		if err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchOne returns the first row, or an empty non-nil Row when nothing matched.
func (e *Executor) FetchOne(ctx context.Context, stmt string, args ...any) (database.Row, error) {
	rows, err := e.FetchAll(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return database.Row{}, nil
	}
	return rows[0], nil
}

// Conn hands fn a connection for several statements in a row, without retry.
// The connection is released afterwards, discarded if the session was lost,
// or released after the settle delay on a busy fault.
func (e *Executor) Conn(ctx context.Context, fn func(c *pool.Conn) error) error {
	c, err := e.pool.Acquire(ctx)
	if err != nil {
		return err
	}

	ferr := fn(c)
	if ferr == nil {
		return e.pool.Release(c)
	}

	kind := e.dialect.Classify(ferr)
	e.recover(c, kind)
	if kind == errs.ErrKindConnectionLost || kind == errs.ErrKindBusy {
		return errs.Wrap(kind, "connection fault", ferr)
	}
	if err := e.pool.Release(c); err != nil {
		e.log.Zerolog().Warn().Err(err).Uint64("conn_id", c.ID()).Msg("release after error failed")
	}
	return wrapFatal(kind, ferr)
}

// --- retry loop ---

type attemptFunc func(ctx context.Context, c *pool.Conn, query string) error

func (e *Executor) run(ctx context.Context, stmt string, args []any, fn attemptFunc) error {
	query := e.dialect.Rebind(stmt)
	faulted := false

	err := retry.Call(retry.CallArgs{
		Func: func() error {
			err := e.attempt(ctx, query, fn)
			if errs.IsTransient(err) {
				faulted = true
			}
			return err
		},
		IsFatalError: func(err error) bool {
			return !errs.IsTransient(err)
		},
		NotifyFunc: func(err error, attempt int) {
			e.log.Zerolog().Warn().Err(err).Int("attempt", attempt).Str("stmt", stmt).Msg("transient fault, retrying")
		},
		Attempts:    e.cfg.MaxAttempts,
		Delay:       e.cfg.Delay,
		MaxDelay:    e.cfg.MaxDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       e.clock,
		Stop:        ctx.Done(),
	})

	switch {
	case err == nil:
	case retry.IsAttemptsExceeded(err):
		err = errs.Wrap(errs.ErrKindRetryExhausted,
			fmt.Sprintf("gave up after %d attempts", e.cfg.MaxAttempts), retry.LastError(err))
	case retry.IsRetryStopped(err):
		err = errs.Wrap(errs.ErrKindTimeout, "retry cancelled", ctx.Err())
	}

	if faulted {
		e.fire(e.failureHooks(), stmt, args)
	} else if err == nil {
		e.fire(e.successHooks(), stmt, args)
	}
	return err
}

// attempt runs fn once on a fresh checkout and applies the recovery the
// resulting fault calls for. The returned error is always an *errs.Error.
func (e *Executor) attempt(ctx context.Context, query string, fn attemptFunc) error {
	c, err := e.pool.Acquire(ctx)
	if err != nil {
		return wrapFatal(e.dialect.Classify(err), err)
	}

	ferr := fn(ctx, c, query)
	if ferr == nil {
		if err := e.pool.Release(c); err != nil {
			e.log.Zerolog().Warn().Err(err).Uint64("conn_id", c.ID()).Msg("release failed")
		}
		return nil
	}

	kind := e.dialect.Classify(ferr)
	if kind.Transient() {
		e.recover(c, kind)
		return errs.Wrap(kind, "transient fault", ferr)
	}

	if e.cfg.ReleaseOnFatal {
		if err := e.pool.Release(c); err != nil {
			e.log.Zerolog().Warn().Err(err).Uint64("conn_id", c.ID()).Msg("release after fatal error failed")
		}
	}
	return wrapFatal(kind, ferr)
}

// recover repairs the pool for a transient fault on c.
func (e *Executor) recover(c *pool.Conn, kind errs.ErrKind) {
	switch kind {
	case errs.ErrKindConnectionLost:
		if err := e.pool.Discard(c); err != nil {
			e.log.Zerolog().Warn().Err(err).Uint64("conn_id", c.ID()).Msg("discard failed")
		}
	case errs.ErrKindBusy:
		e.pool.ReleaseAfter(c, e.cfg.SettleDelay)
	}
}

// wrapFatal attaches kind to err, keeping an already classified error as is.
func wrapFatal(kind errs.ErrKind, err error) error {
	if kind == errs.ErrKindUnknown {
		kind = errs.ErrKindQueryFailed
	}
	if e, ok := err.(*errs.Error); ok && e.Kind == kind {
		return e
	}
	return errs.Wrap(kind, "statement failed", err)
}

// --- hooks ---

func (e *Executor) successHooks() []Hook {
	e.hookMu.RLock()
	defer e.hookMu.RUnlock()
	return append([]Hook(nil), e.onSuccess...)
}

func (e *Executor) failureHooks() []Hook {
	e.hookMu.RLock()
	defer e.hookMu.RUnlock()
	return append([]Hook(nil), e.onFailure...)
}

func (e *Executor) fire(hooks []Hook, stmt string, args []any) {
	for _, h := range hooks {
		h(stmt, args)
	}
}
