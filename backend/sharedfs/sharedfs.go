// Package sharedfs implements the backend adapter for the scheme "sharedfs":
// a network filesystem mounted on every node at the same root. Locations are
// paths relative to that root.
//
// When the content being put comes from another host file, the adapter
// hard links it instead of copying bytes, and falls back to a copy that keeps
// the file mode when the files live on different devices or the filesystem
// refuses links.
package sharedfs

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/backend/local"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/core"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

// Adapter serves files below a mount root.
type Adapter struct {
	*local.Adapter
	root    string
	linking bool
	logger  *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithoutLinks disables hard linking; every put copies bytes.
func WithoutLinks() Option {
	return func(a *Adapter) {
		a.linking = false
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates an adapter rooted at root.
func New(root string, opts ...Option) *Adapter {
	a := &Adapter{
		root:    root,
		linking: true,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.Adapter = local.New(
		local.WithRoot(root),
		local.WithScheme(reference.SchemeSharedFS),
		local.WithLogger(a.logger),
	)
	return a
}

// Root returns the mount root.
func (a *Adapter) Root() string {
	return a.root
}

// Put implements backend.Adapter. If r is a backend.LocalFile the file is
// hard linked into place, or copied by path keeping its mode when linking is
// disabled or fails. Other readers are streamed.
func (a *Adapter) Put(ctx context.Context, r io.Reader, location string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := backend.CheckLocation(reference.SchemeSharedFS, location); err != nil {
		return 0, err
	}
	lf, ok := r.(backend.LocalFile)
	if !ok {
		return a.Adapter.Put(ctx, r, location)
	}

	if a.linking {
		n, err := a.link(lf.HostPath(), location)
		if err == nil {
			return n, nil
		}
		a.debug("hard link failed, copying",
			"source", lf.HostPath(),
			"location", location,
			"cross_device", backend.IsCrossDevice(err),
			"error", err)
	}

	n, err := core.Copy(billy.NewOSFS("/"), lf.HostPath(), a.Filesystem(), location)
	if err == nil {
		return n, nil
	}
	a.debug("copy by path failed, streaming", "source", lf.HostPath(), "location", location, "error", err)
	return a.Adapter.Put(ctx, r, location)
}

func (a *Adapter) link(src, location string) (int64, error) {
	dst := a.HostPath(location)
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return 0, err
	}
	if err := os.Remove(dst); err != nil && !os.IsNotExist(err) {
		return 0, err
	}
	if err := os.Link(src, dst); err != nil {
		return 0, err
	}
	info, err := os.Stat(dst)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

var _ backend.Adapter = (*Adapter)(nil)
