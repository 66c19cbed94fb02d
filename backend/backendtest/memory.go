package backendtest

import (
	"github.com/input-output-hk/catalyst-forge-libs/staging/backend/local"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

// NewMemoryAdapter returns an adapter serving scheme from an in-memory
// filesystem. Locations are paths inside that filesystem.
func NewMemoryAdapter(scheme reference.Scheme) *local.Adapter {
	return local.New(
		local.WithFilesystem(billy.NewInMemoryFS()),
		local.WithScheme(scheme),
	)
}
