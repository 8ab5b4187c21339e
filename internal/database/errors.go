package database

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"syscall"

	"github.com/koustreak/dbmap/internal/errs"
)

// ClassifyCommon recognises failures that look the same on every driver:
// cancelled contexts, broken sockets and database/sql sentinels.
// ok is false when err needs dialect-specific classification.
func ClassifyCommon(err error) (kind errs.ErrKind, ok bool) {
	if err == nil {
		return errs.ErrKindUnknown, false
	}

	// Already classified somewhere below us.
	var e *errs.Error
	if errors.As(err, &e) {
		return e.Kind, true
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.ErrKindTimeout, true
	case errors.Is(err, sql.ErrNoRows):
		return errs.ErrKindNotFound, true
	case errors.Is(err, driver.ErrBadConn),
		errors.Is(err, sql.ErrConnDone),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.ECONNABORTED),
		errors.Is(err, syscall.EPIPE):
		return errs.ErrKindConnectionLost, true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return errs.ErrKindTimeout, true
		}
		return errs.ErrKindConnectionLost, true
	}

	return errs.ErrKindUnknown, false
}
