package postgres

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
)

// PostgreSQL SQLSTATE codes this dialect reacts to.
// Full list: https://www.postgresql.org/docs/current/errcodes-appendix.html
const (
	pgErrSerializationFailure = "40001"
	pgErrDeadlockDetected     = "40P01"
	pgErrLockNotAvailable     = "55P03"
	pgErrTooManyConnections   = "53300"
	pgErrAdminShutdown        = "57P01"
	pgErrCrashShutdown        = "57P02"
	pgErrCannotConnectNow     = "57P03"
	pgErrQueryCanceled        = "57014"
	pgErrInsufficientPriv     = "42501"
	pgErrInvalidCatalogName   = "3D000"
)

// Classify implements database.Dialect.
func (Dialect) Classify(err error) errs.ErrKind {
	if errors.Is(err, pgx.ErrNoRows) {
		return errs.ErrKindNotFound
	}
	if kind, ok := database.ClassifyCommon(err); ok {
		return kind
	}
	if pgconn.Timeout(err) {
		return errs.ErrKindTimeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return classifyCode(pgErr.Code)
	}

	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return errs.ErrKindConnectionFailed
	}

	// Nothing reached the server, so the session itself is the problem.
	if pgconn.SafeToRetry(err) {
		return errs.ErrKindConnectionLost
	}
	return errs.ErrKindQueryFailed
}

func classifyCode(code string) errs.ErrKind {
	switch code {
	case pgErrSerializationFailure, pgErrDeadlockDetected, pgErrLockNotAvailable, pgErrTooManyConnections:
		return errs.ErrKindBusy
	case pgErrAdminShutdown, pgErrCrashShutdown, pgErrCannotConnectNow:
		return errs.ErrKindConnectionLost
	case pgErrQueryCanceled:
		return errs.ErrKindTimeout
	case pgErrInsufficientPriv:
		return errs.ErrKindPermissionDenied
	case pgErrInvalidCatalogName:
		return errs.ErrKindConnectionFailed
	}

	switch {
	case strings.HasPrefix(code, "08"): // connection exception
		return errs.ErrKindConnectionLost
	case strings.HasPrefix(code, "28"): // invalid authorization specification
		return errs.ErrKindPermissionDenied
	default:
		return errs.ErrKindQueryFailed
	}
}
