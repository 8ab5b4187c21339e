// Package dbtest provides an in-memory Dialect for exercising the pool,
// executor and registry without a database server.
package dbtest

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
)

// ErrNoQuery is returned by Session when no query behaviour was configured.
var ErrNoQuery = errors.New("dbtest: session has no query handler")

// Dialect is a configurable fake. The zero value opens Sessions that accept
// Ping and Close and classifies unrecognised errors as QueryFailed.
type Dialect struct {
	DialectName string
	Marker      database.Marker

	// Brackets makes Rebind skip [...] identifiers, as SQL Server does.
	Brackets bool

	// OpenFunc, when set, replaces the default session factory.
	OpenFunc func(ctx context.Context, p database.Params) (database.Session, error)

	// ClassifyFunc, when set, is consulted after database.ClassifyCommon.
	ClassifyFunc func(err error) errs.ErrKind

	mu   sync.Mutex
	tags []string
}

// Name returns DialectName, or "fake".
func (d *Dialect) Name() string {
	if d.DialectName == "" {
		return "fake"
	}
	return d.DialectName
}

// Open records the client tag and returns a session.
func (d *Dialect) Open(ctx context.Context, p database.Params) (database.Session, error) {
	d.mu.Lock()
	d.tags = append(d.tags, p.ClientTag)
	d.mu.Unlock()

	if d.OpenFunc != nil {
		return d.OpenFunc(ctx, p)
	}
	return &Session{}, nil
}

// Classify applies the common rules, then ClassifyFunc, then QueryFailed.
func (d *Dialect) Classify(err error) errs.ErrKind {
	if kind, ok := database.ClassifyCommon(err); ok {
		return kind
	}
	if d.ClassifyFunc != nil {
		return d.ClassifyFunc(err)
	}
	return errs.ErrKindQueryFailed
}

// Rebind rewrites placeholders with Marker.
func (d *Dialect) Rebind(query string) string {
	if d.Brackets {
		return database.RebindBracketed(query, d.Marker)
	}
	return database.Rebind(query, d.Marker)
}

// Tags returns every client tag Open has seen, in call order.
func (d *Dialect) Tags() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.tags...)
}

// Session is a fake physical session that only tracks Close.
type Session struct {
	closed atomic.Bool
}

// QueryContext always fails with ErrNoQuery.
func (s *Session) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, ErrNoQuery
}

// ExecContext always fails with ErrNoQuery.
func (s *Session) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, ErrNoQuery
}

// PingContext succeeds until the session is closed.
func (s *Session) PingContext(context.Context) error {
	if s.closed.Load() {
		return sql.ErrConnDone
	}
	return nil
}

// Close marks the session closed.
func (s *Session) Close() error {
	s.closed.Store(true)
	return nil
}

// Closed reports whether Close has been called.
func (s *Session) Closed() bool { return s.closed.Load() }

// Call is one statement seen by Querier.
type Call struct {
	Stmt string
	Args []any
}

// Querier is a scripted FetchAll implementation for catalog readers.
type Querier struct {
	Handler func(stmt string, args []any) ([]database.Row, error)

	mu    sync.Mutex
	calls []Call
}

// FetchAll records the call and delegates to Handler.
func (q *Querier) FetchAll(_ context.Context, stmt string, args ...any) ([]database.Row, error) {
	q.mu.Lock()
	q.calls = append(q.calls, Call{Stmt: stmt, Args: args})
	q.mu.Unlock()

	if q.Handler == nil {
		return []database.Row{}, nil
	}
	return q.Handler(stmt, args)
}

// Calls returns the recorded statements in order.
func (q *Querier) Calls() []Call {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]Call(nil), q.calls...)
}
