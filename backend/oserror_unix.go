//go:build unix

package backend

import (
	"errors"
	"syscall"
)

func isCapacityError(err error) bool {
	return errors.Is(err, syscall.ENOSPC) || errors.Is(err, syscall.EDQUOT)
}

// IsCrossDevice reports whether err is the EXDEV failure returned when linking
// or renaming across filesystems.
func IsCrossDevice(err error) bool {
	return errors.Is(err, syscall.EXDEV)
}

// isPathKindError reports errors caused by the shape of the path rather than
// the state of the filesystem.
func isPathKindError(err error) bool {
	return errors.Is(err, syscall.EISDIR) ||
		errors.Is(err, syscall.ENOTDIR) ||
		errors.Is(err, syscall.ENAMETOOLONG)
}
