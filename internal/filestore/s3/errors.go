package s3

import (
	"context"
	"errors"
	"net/http"

	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/koustreak/bucketfs/internal/errs"
)

// mapError translates an aws-sdk-go error into a *errs.Error.
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

	var aerr awserr.Error
	if !errors.As(err, &aerr) {
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	switch aerr.Code() {
	case request.CanceledErrorCode, "RequestTimeout", "SlowDown":
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	case "NoSuchBucket", "NoSuchKey", "NoSuchUpload", "NoSuchVersion", "NotFound":
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled", "Forbidden":
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	case "InvalidBucketName", "InvalidObjectName", "KeyTooLongError", "EntityTooLarge",
		"InvalidArgument", "MalformedXML", "InvalidParameter", request.ErrCodeSerialization:
		return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
	case request.ErrCodeRequestError:
		return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
	}

	var reqErr awserr.RequestFailure
	if errors.As(err, &reqErr) {
		switch reqErr.StatusCode() {
		case http.StatusNotFound:
			return errs.Wrap(errs.ErrKindNotFound, msg, err)
		case http.StatusForbidden, http.StatusUnauthorized:
			return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
		case http.StatusBadRequest:
			return errs.Wrap(errs.ErrKindInvalidInput, msg, err)
		case http.StatusServiceUnavailable, http.StatusBadGateway:
			return errs.Wrap(errs.ErrKindConnectionFailed, msg, err)
		}
	}

	return errs.Wrap(errs.ErrKindOperationFailed, msg, err)
}
