//go:build !unix

package backend

import (
	"errors"
	"syscall"
)

func isCapacityError(err error) bool {
	return errors.Is(err, syscall.ENOSPC)
}

// IsCrossDevice reports whether err is the failure returned when linking or
// renaming across filesystems.
func IsCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

func isPathKindError(err error) bool {
	return errors.Is(err, syscall.EISDIR) || errors.Is(err, syscall.ENOTDIR)
}
