package s3

import (
	"context"
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

const scheme = reference.SchemeObjectStore

// translate maps an S3 SDK error onto the staging error taxonomy. Errors that
// never reached the service are treated as transient network failures;
// unrecognised service errors are permanent.
func translate(op, location string, err error) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return err
	}
	cause := fmt.Errorf("s3.%s: %w", op, err)

	var noSuchKey *types.NoSuchKey
	var notFound *types.NotFound
	var noSuchBucket *types.NoSuchBucket
	if stderrors.As(err, &noSuchKey) || stderrors.As(err, &notFound) || stderrors.As(err, &noSuchBucket) {
		return backend.NotFound(scheme, location, cause)
	}

	var apiErr smithy.APIError
	if stderrors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound", "NoSuchBucket", "NoSuchUpload":
			return backend.NotFound(scheme, location, cause)
		case "AccessDenied", "Forbidden", "InvalidAccessKeyId", "SignatureDoesNotMatch",
			"AllAccessDisabled", "AccountProblem":
			return backend.AccessDenied(scheme, location, cause)
		case "SlowDown", "Throttling", "ThrottlingException", "RequestLimitExceeded",
			"TooManyRequestsException", "RequestThrottled":
			return backend.Transient(errors.CodeRateLimit, scheme, location, cause)
		case "RequestTimeout", "RequestTimeTooSkewed":
			return backend.Transient(errors.CodeTimeout, scheme, location, cause)
		case "InternalError", "ServiceUnavailable", "XMinioServerNotInitialized":
			return backend.Transient(errors.CodeUnavailable, scheme, location, cause)
		case "BadDigest", "InvalidDigest", "XAmzContentSHA256Mismatch":
			return errors.WrapWithContext(cause, errors.CodeChecksumMismatch, "backend rejected content digest",
				map[string]interface{}{"scheme": string(scheme), "location": location})
		case "QuotaExceeded", "EntityTooLarge", "XMinioStorageFull", "ServiceQuotaExceededException":
			return backend.CapacityExceeded(scheme, location, cause)
		}
	}

	var status interface{ HTTPStatusCode() int }
	if stderrors.As(err, &status) {
		switch code := status.HTTPStatusCode(); {
		case code == http.StatusNotFound:
			return backend.NotFound(scheme, location, cause)
		case code == http.StatusForbidden || code == http.StatusUnauthorized:
			return backend.AccessDenied(scheme, location, cause)
		case code == http.StatusTooManyRequests:
			return backend.Transient(errors.CodeRateLimit, scheme, location, cause)
		case code == http.StatusRequestTimeout:
			return backend.Transient(errors.CodeTimeout, scheme, location, cause)
		case code >= http.StatusInternalServerError:
			return backend.Transient(errors.CodeUnavailable, scheme, location, cause)
		}
	}

	if apiErr != nil {
		return backend.Failed(op, scheme, location, cause)
	}
	return backend.Transient(errors.CodeNetwork, scheme, location, cause)
}
