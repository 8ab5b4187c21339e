package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/dbmap/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
)

// S3 error codes, checked before the HTTP status since some arrive with a
// generic status.
var codeKinds = map[string]errs.ErrKind{
	"NoSuchBucket":          errs.ErrKindNotFound,
	"NoSuchKey":             errs.ErrKindNotFound,
	"NoSuchUpload":          errs.ErrKindNotFound,
	"AccessDenied":          errs.ErrKindPermissionDenied,
	"InvalidAccessKeyId":    errs.ErrKindPermissionDenied,
	"SignatureDoesNotMatch": errs.ErrKindPermissionDenied,
	"InvalidBucketName":     errs.ErrKindInvalidInput,
	"InvalidObjectName":     errs.ErrKindInvalidInput,
	"KeyTooLongError":       errs.ErrKindInvalidInput,
	"EntityTooLarge":        errs.ErrKindInvalidInput,
	"RequestTimeout":        errs.ErrKindTimeout,
	"SlowDown":              errs.ErrKindBusy,
	"ServiceUnavailable":    errs.ErrKindBusy,
}

var statusKinds = map[int]errs.ErrKind{
	http.StatusNotFound:           errs.ErrKindNotFound,
	http.StatusForbidden:          errs.ErrKindPermissionDenied,
	http.StatusUnauthorized:       errs.ErrKindPermissionDenied,
	http.StatusBadRequest:         errs.ErrKindInvalidInput,
	http.StatusRequestTimeout:     errs.ErrKindTimeout,
	http.StatusServiceUnavailable: errs.ErrKindBusy,
}

// mapError translates a MinIO SDK error into a *errs.Error. Anything the
// SDK does not describe as an S3 response is a connection failure.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}
	return errs.Wrap(classify(err), msg, err)
}

func classify(err error) errs.ErrKind {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.ErrKindTimeout
	}

	var resp miniogo.ErrorResponse
	if !errors.As(err, &resp) {
		return errs.ErrKindConnectionFailed
	}
	if kind, ok := codeKinds[resp.Code]; ok {
		return kind
	}
	if kind, ok := statusKinds[resp.StatusCode]; ok {
		return kind
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return errs.ErrKindConnectionFailed
	}
	return errs.ErrKindQueryFailed
}
