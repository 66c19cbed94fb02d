// Package errors provides the error handling system for the staging layer.
// It extends Go's standard error handling with structured error codes, retry
// classification and context preservation so that callers can decide whether a
// failed transfer is worth another attempt.
package errors

// ErrorCode represents a specific error condition in the staging layer.
// Error codes are string-based for debuggability and natural JSON serialization.
type ErrorCode string

const (
	// Resource errors.

	// CodeNotFound indicates a requested file or object does not exist.
	CodeNotFound ErrorCode = "NOT_FOUND"

	// CodeAlreadyExists indicates a resource already exists and cannot be created again.
	CodeAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// CodeCapacity indicates the backend ran out of space or quota.
	CodeCapacity ErrorCode = "CAPACITY_EXCEEDED"

	// Permission errors.

	// CodeUnauthorized indicates the request lacks valid authentication credentials.
	CodeUnauthorized ErrorCode = "UNAUTHORIZED"

	// CodeForbidden indicates the credentials lack permission for the operation.
	CodeForbidden ErrorCode = "FORBIDDEN"

	// Validation errors.

	// CodeInvalidInput indicates the provided input is invalid or malformed.
	CodeInvalidInput ErrorCode = "INVALID_INPUT"

	// CodeInvalidConfig indicates a configuration error prevents the operation.
	CodeInvalidConfig ErrorCode = "INVALID_CONFIGURATION"

	// CodeUnsupportedScheme indicates a file reference names a scheme no backend handles.
	CodeUnsupportedScheme ErrorCode = "UNSUPPORTED_SCHEME"

	// Integrity errors.

	// CodeChecksumMismatch indicates transferred bytes did not match the expected checksum or size.
	CodeChecksumMismatch ErrorCode = "CHECKSUM_MISMATCH"

	// Infrastructure errors.

	// CodeNetwork indicates a network operation failed.
	CodeNetwork ErrorCode = "NETWORK_ERROR"

	// CodeTimeout indicates an operation exceeded its time limit.
	CodeTimeout ErrorCode = "TIMEOUT"

	// CodeRateLimit indicates the rate limit has been exceeded.
	CodeRateLimit ErrorCode = "RATE_LIMIT_EXCEEDED"

	// CodeUnavailable indicates the backend is temporarily unavailable.
	CodeUnavailable ErrorCode = "SERVICE_UNAVAILABLE"

	// Execution errors.

	// CodeTransferExhausted indicates a transfer failed on every allowed attempt.
	CodeTransferExhausted ErrorCode = "TRANSFER_EXHAUSTED"

	// CodeCanceled indicates the surrounding job cancelled the operation.
	CodeCanceled ErrorCode = "CANCELED"

	// CodeSessionClosed indicates an operation was attempted on a closed staging session.
	CodeSessionClosed ErrorCode = "SESSION_CLOSED"

	// System errors.

	// CodeInternal indicates an internal system error occurred.
	CodeInternal ErrorCode = "INTERNAL_ERROR"

	// CodeNotImplemented indicates the requested functionality is not implemented.
	CodeNotImplemented ErrorCode = "NOT_IMPLEMENTED"

	// Generic errors.

	// CodeUnknown indicates an unknown or unclassified error occurred.
	CodeUnknown ErrorCode = "UNKNOWN"
)

// retryableByDefault reports whether errors carrying code are transient unless
// explicitly marked otherwise.
func retryableByDefault(code ErrorCode) bool {
	switch code {
	case CodeNetwork, CodeTimeout, CodeRateLimit, CodeUnavailable, CodeChecksumMismatch:
		return true
	default:
		return false
	}
}
