package mysql

import (
	"errors"

	"github.com/go-sql-driver/mysql"
	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
)

// MySQL server and client error numbers this dialect reacts to.
// Full list: https://dev.mysql.com/doc/mysql-errors/8.0/en/server-error-reference.html
const (
	errServerShutdown   = 1053 // ER_SERVER_SHUTDOWN
	errTooManyConns     = 1040 // ER_CON_COUNT_ERROR
	errDBAccessDenied   = 1044 // ER_DBACCESS_DENIED_ERROR
	errAccessDenied     = 1045 // ER_ACCESS_DENIED_ERROR
	errUnknownDatabase  = 1049 // ER_BAD_DB_ERROR
	errTableAccess      = 1142 // ER_TABLEACCESS_DENIED_ERROR
	errLockWaitTimeout  = 1205 // ER_LOCK_WAIT_TIMEOUT
	errDeadlock         = 1213 // ER_LOCK_DEADLOCK
	errConnKilled       = 1927 // ER_CONNECTION_KILLED
	errServerGone       = 2006 // CR_SERVER_GONE_ERROR
	errServerLost       = 2013 // CR_SERVER_LOST
	errQueryInterrupted = 1317 // ER_QUERY_INTERRUPTED
)

// Classify implements database.Dialect.
func (Dialect) Classify(err error) errs.ErrKind {
	if kind, ok := database.ClassifyCommon(err); ok {
		return kind
	}

	switch {
	case errors.Is(err, mysql.ErrInvalidConn),
		errors.Is(err, mysql.ErrPktSync),
		errors.Is(err, mysql.ErrPktSyncMul):
		return errs.ErrKindConnectionLost
	}

	var myErr *mysql.MySQLError
	if errors.As(err, &myErr) {
		return classifyCode(myErr.Number)
	}
	return errs.ErrKindQueryFailed
}

func classifyCode(code uint16) errs.ErrKind {
	switch code {
	case errServerGone, errServerLost, errServerShutdown, errConnKilled:
		return errs.ErrKindConnectionLost
	case errLockWaitTimeout, errDeadlock, errTooManyConns:
		return errs.ErrKindBusy
	case errDBAccessDenied, errAccessDenied, errTableAccess:
		return errs.ErrKindPermissionDenied
	case errUnknownDatabase:
		return errs.ErrKindConnectionFailed
	case errQueryInterrupted:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}
