package backend

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"

	gobilly "github.com/go-git/go-billy/v5"

	perrors "github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

// ClassifyFSError maps a filesystem error onto the staging error taxonomy.
// Locations that cross the filesystem root or name the wrong kind of file are
// permanent. Unrecognised I/O failures are treated as transient.
func ClassifyFSError(op string, scheme reference.Scheme, location string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, iofs.ErrNotExist):
		return NotFound(scheme, location, err)
	case errors.Is(err, iofs.ErrPermission):
		return AccessDenied(scheme, location, err)
	case errors.Is(err, gobilly.ErrCrossedBoundary), isPathKindError(err):
		return InvalidLocation(scheme, location, fmt.Errorf("%s: %w", op, err))
	case isCapacityError(err):
		return CapacityExceeded(scheme, location, err)
	case perrors.GetCode(err) != "":
		return err
	default:
		return Transient(perrors.CodeUnavailable, scheme, location, fmt.Errorf("%s: %w", op, err))
	}
}
