package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/koustreak/dbmap/internal/errs"
)

// Session is one live physical connection to a database server.
// All layers above this package talk only to this interface;
// *sql.DB pinned to a single connection satisfies it.
type Session interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	PingContext(ctx context.Context) error
	Close() error
}

// Dialect is the capability surface each supported engine implements.
// The pool and executor are generic over it.
type Dialect interface {
	// Name is the dialect identifier used in configuration (e.g. "mysql").
	Name() string

	// Open establishes one physical session described by p.
	Open(ctx context.Context, p Params) (Session, error)

	// Classify maps a driver error to an ErrKind using structured codes.
	// Transient kinds (ConnectionLost, Busy) trigger local recovery.
	Classify(err error) errs.ErrKind

	// Rebind rewrites generic ? placeholders into the dialect's marker.
	Rebind(query string) string
}

// OpenSession opens driverName/dsn as a database/sql handle restricted to one
// connection, then pings it within timeout so a Session is always live.
func OpenSession(ctx context.Context, driverName, dsn string, timeout time.Duration) (Session, error) {
	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("invalid %s DSN", driverName), err)
	}

	// One physical session per Session: the pool, not database/sql, owns reuse.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, fmt.Sprintf("failed to open %s session", driverName), err)
	}
	return db, nil
}
