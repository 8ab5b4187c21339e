package mssql

import (
	"errors"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
)

// SQL Server error numbers this dialect reacts to.
// Full list: https://learn.microsoft.com/sql/relational-databases/errors-events/database-engine-events-and-errors
const (
	errDeadlockVictim     = 1205
	errLockTimeout        = 1222
	errMemoryGrant        = 8645
	errServiceBusy        = 40501
	errElasticPoolBusy1   = 49918
	errElasticPoolBusy2   = 49919
	errElasticPoolBusy3   = 49920
	errNoProcess          = 233
	errTransportAborted   = 10053
	errTransportReset     = 10054
	errTransportTimeout   = 10060
	errDatabaseUnavail    = 40613
	errCannotOpenDatabase = 4060
	errLoginFailed        = 18456
	errPermissionDenied   = 229
	errQueryCancelled     = 3617
)

// sqlError is satisfied by mssql.Error without tying callers to the driver type.
// Only the error number is used; message text is never matched.
type sqlError interface {
	error
	SQLErrorNumber() int32
}

// Classify implements database.Dialect.
func (Dialect) Classify(err error) errs.ErrKind {
	if kind, ok := database.ClassifyCommon(err); ok {
		return kind
	}

	var se sqlError
	if errors.As(err, &se) {
		return classifyNumber(se.SQLErrorNumber())
	}
	return errs.ErrKindQueryFailed
}

func classifyNumber(n int32) errs.ErrKind {
	switch n {
	case errDeadlockVictim, errLockTimeout, errMemoryGrant, errServiceBusy,
		errElasticPoolBusy1, errElasticPoolBusy2, errElasticPoolBusy3:
		return errs.ErrKindBusy
	case errNoProcess, errTransportAborted, errTransportReset, errTransportTimeout,
		errDatabaseUnavail, errCannotOpenDatabase:
		return errs.ErrKindConnectionLost
	case errLoginFailed, errPermissionDenied:
		return errs.ErrKindPermissionDenied
	case errQueryCancelled:
		return errs.ErrKindTimeout
	}
	return errs.ErrKindQueryFailed
}
