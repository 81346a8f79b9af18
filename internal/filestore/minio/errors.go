package minio

import (
	"context"
	"errors"
	"net/http"

	"github.com/koustreak/bucketfs/internal/errs"
	miniogo "github.com/minio/minio-go/v7"
)

// mapError translates a MinIO SDK error into a *errs.Error.
// Errors that are already *errs.Error pass through unchanged.
func mapError(err error, msg string) *errs.Error {
	if err == nil {
		return nil
	}

	var mapped *errs.Error
	if errors.As(err, &mapped) {
		return mapped
	}

	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	var resp miniogo.ErrorResponse
	if !errors.As(err, &resp) {
		// Not an S3 protocol error: DNS, TCP, TLS …
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	// Codes first: HEAD responses carry no body, so some arrive with a
	// status only and others with a code only.
	switch resp.Code {
	case "NoSuchBucket", "NoSuchKey", "NoSuchUpload", "NoSuchVersion":
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError", "EntityTooLarge",
		"InvalidArgument", "MalformedXML", "XMinioInvalidObjectName":
		return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
	case "RequestTimeout", "SlowDown":
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	}

	switch resp.StatusCode {
	case http.StatusNotFound:
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case http.StatusForbidden, http.StatusUnauthorized:
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	case http.StatusBadRequest:
		return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	return errs.Wrap(errs.ErrKindOperationFailed, msg, err)
}
