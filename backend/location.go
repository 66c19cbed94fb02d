package backend

import (
	"path/filepath"
	"strings"

	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

// CheckLocation rejects filesystem locations that climb above the adapter
// root once cleaned. Absolute locations are resolved against the root, so
// only relative locations starting with ".." escape it.
func CheckLocation(scheme reference.Scheme, location string) error {
	p := filepath.Clean(filepath.FromSlash(location))
	if p == ".." || strings.HasPrefix(p, ".."+string(filepath.Separator)) {
		return InvalidLocation(scheme, location, nil)
	}
	return nil
}

// InvalidLocation returns an INVALID_INPUT error for a location no retry can
// make valid.
func InvalidLocation(scheme reference.Scheme, location string, cause error) error {
	return errors.AsPermanent(wrap(cause, errors.CodeInvalidInput, "invalid location", scheme, location))
}
