package minio

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/minio/minio-go/v7"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

const scheme = reference.SchemeObjectStore

// translateError maps a MinIO client error onto the staging error taxonomy.
// Errors without a service response are treated as transient network
// failures.
func translateError(op, location string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	cause := fmt.Errorf("minio.%s: %w", op, err)

	resp := minio.ToErrorResponse(err)
	switch resp.Code {
	case "NoSuchKey", "NoSuchBucket", "NotFound", "NoSuchUpload":
		return backend.NotFound(scheme, location, cause)
	case "AccessDenied", "InvalidAccessKeyId", "SignatureDoesNotMatch", "AllAccessDisabled":
		return backend.AccessDenied(scheme, location, cause)
	case "SlowDown", "SlowDownRead", "SlowDownWrite":
		return backend.Transient(errors.CodeRateLimit, scheme, location, cause)
	case "RequestTimeout":
		return backend.Transient(errors.CodeTimeout, scheme, location, cause)
	case "InternalError", "ServiceUnavailable", "XMinioServerNotInitialized":
		return backend.Transient(errors.CodeUnavailable, scheme, location, cause)
	case "XMinioStorageFull", "EntityTooLarge", "QuotaExceeded":
		return backend.CapacityExceeded(scheme, location, cause)
	case "BadDigest", "InvalidDigest", "XAmzContentSHA256Mismatch":
		return errors.WrapWithContext(cause, errors.CodeChecksumMismatch, "backend rejected content digest",
			map[string]interface{}{"scheme": string(scheme), "location": location})
	}

	switch code := resp.StatusCode; {
	case code == 0:
		return backend.Transient(errors.CodeNetwork, scheme, location, cause)
	case code == http.StatusNotFound:
		return backend.NotFound(scheme, location, cause)
	case code == http.StatusForbidden || code == http.StatusUnauthorized:
		return backend.AccessDenied(scheme, location, cause)
	case code == http.StatusTooManyRequests:
		return backend.Transient(errors.CodeRateLimit, scheme, location, cause)
	case code >= http.StatusInternalServerError:
		return backend.Transient(errors.CodeUnavailable, scheme, location, cause)
	default:
		return backend.Failed(op, scheme, location, cause)
	}
}
