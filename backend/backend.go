// Package backend defines the capability set every storage backend exposes to
// the staging layer. Concrete adapters live in sub-packages (local, sharedfs,
// s3, minio) and are used exclusively through the Adapter interface.
package backend

import (
	"context"
	"io"

	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

// Adapter performs raw operations against one storage scheme.
//
// Implementations must be safe for concurrent use.
type Adapter interface {
	// Scheme returns the reference scheme the adapter serves.
	Scheme() reference.Scheme

	// Fetch opens location for reading. It fails with a NOT_FOUND error if the
	// location does not exist and FORBIDDEN on permission failures.
	Fetch(ctx context.Context, location string) (io.ReadCloser, error)

	// Put writes r to location, replacing any existing content, and returns
	// the size the backend confirms it stored. It fails with FORBIDDEN or
	// CAPACITY_EXCEEDED errors.
	Put(ctx context.Context, r io.Reader, location string) (int64, error)

	// Exists reports whether location exists.
	Exists(ctx context.Context, location string) (bool, error)

	// Delete removes location. Deleting an absent location succeeds.
	Delete(ctx context.Context, location string) error

	// Rename moves from onto to, replacing to. It is the commit step of an
	// atomic transfer; readers of to observe either the old or the new
	// content.
	Rename(ctx context.Context, from, to string) error
}

// LocalFile is implemented by readers returned from Fetch that are backed by a
// file on the host filesystem. Adapters that can link files use it to avoid
// copying bytes.
type LocalFile interface {
	io.ReadCloser

	// HostPath returns the absolute host path of the file.
	HostPath() string
}

// NotFound returns a NOT_FOUND error for location.
func NotFound(scheme reference.Scheme, location string, cause error) error {
	return wrap(cause, errors.CodeNotFound, "file not found", scheme, location)
}

// AccessDenied returns a FORBIDDEN error for location.
func AccessDenied(scheme reference.Scheme, location string, cause error) error {
	return wrap(cause, errors.CodeForbidden, "access denied", scheme, location)
}

// CapacityExceeded returns a CAPACITY_EXCEEDED error for location.
func CapacityExceeded(scheme reference.Scheme, location string, cause error) error {
	return wrap(cause, errors.CodeCapacity, "storage capacity exceeded", scheme, location)
}

// Transient returns a retryable error with the given code for location.
func Transient(code errors.ErrorCode, scheme reference.Scheme, location string, cause error) error {
	return errors.AsTransient(wrap(cause, code, "transient backend failure", scheme, location))
}

// Failed wraps an unclassified backend failure for location. It is not
// retried.
func Failed(op string, scheme reference.Scheme, location string, cause error) error {
	return wrap(cause, errors.CodeInternal, op+" failed", scheme, location)
}

func wrap(cause error, code errors.ErrorCode, msg string, scheme reference.Scheme, location string) error {
	if cause == nil {
		return errors.NewWithContext(code, msg, errContext(scheme, location))
	}
	return errors.WrapWithContext(cause, code, msg, errContext(scheme, location))
}

func errContext(scheme reference.Scheme, location string) map[string]interface{} {
	return map[string]interface{}{
		"scheme":   string(scheme),
		"location": location,
	}
}
