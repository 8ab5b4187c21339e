package sqlite

import (
	"errors"

	"github.com/koustreak/dbmap/internal/database"
	"github.com/koustreak/dbmap/internal/errs"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// Classify implements database.Dialect using the primary result code;
// extended codes carry the primary code in their low byte.
func (Dialect) Classify(err error) errs.ErrKind {
	if kind, ok := database.ClassifyCommon(err); ok {
		return kind
	}

	var sqErr *sqlite.Error
	if errors.As(err, &sqErr) {
		return classifyCode(sqErr.Code())
	}
	return errs.ErrKindQueryFailed
}

func classifyCode(code int) errs.ErrKind {
	switch code & 0xff {
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return errs.ErrKindBusy
	case sqlite3.SQLITE_MISUSE, sqlite3.SQLITE_IOERR, sqlite3.SQLITE_NOTADB, sqlite3.SQLITE_CORRUPT:
		return errs.ErrKindConnectionLost
	case sqlite3.SQLITE_AUTH, sqlite3.SQLITE_PERM, sqlite3.SQLITE_READONLY:
		return errs.ErrKindPermissionDenied
	case sqlite3.SQLITE_CANTOPEN:
		return errs.ErrKindConnectionFailed
	case sqlite3.SQLITE_INTERRUPT:
		return errs.ErrKindTimeout
	default:
		return errs.ErrKindQueryFailed
	}
}
