// Package local implements the backend adapter for the scheme "local": paths
// on the filesystem of the machine running the job.
package local

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/core"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

// Adapter reads and writes files through a core.FS. By default it uses the
// host filesystem rooted at "/", so locations are absolute host paths.
type Adapter struct {
	fs         core.FS
	root       string
	hostBacked bool
	scheme     reference.Scheme
	logger     *slog.Logger
}

// Option configures an Adapter.
type Option func(*Adapter)

// WithRoot roots the adapter at a host directory. Locations are resolved
// relative to it.
func WithRoot(root string) Option {
	return func(a *Adapter) {
		a.fs = billy.NewOSFS(root)
		a.root = root
		a.hostBacked = true
	}
}

// WithFilesystem replaces the filesystem. Files read from it are not treated
// as host files, so they are never hard linked by other adapters.
func WithFilesystem(fs core.FS) Option {
	return func(a *Adapter) {
		a.fs = fs
		a.root = ""
		a.hostBacked = false
	}
}

// WithScheme overrides the scheme the adapter reports. The shared-fs adapter
// uses it to reuse this implementation.
func WithScheme(s reference.Scheme) Option {
	return func(a *Adapter) {
		a.scheme = s
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Adapter) {
		a.logger = logger
	}
}

// New creates a local adapter.
func New(opts ...Option) *Adapter {
	a := &Adapter{
		fs:         billy.NewOSFS("/"),
		root:       "/",
		hostBacked: true,
		scheme:     reference.SchemeLocal,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Scheme implements backend.Adapter.
func (a *Adapter) Scheme() reference.Scheme {
	return a.scheme
}

// Filesystem returns the filesystem the adapter operates on.
//
//nolint:ireturn // callers need the provider-neutral interface.
func (a *Adapter) Filesystem() core.FS {
	return a.fs
}

// HostPath returns the host path for location, or "" if the adapter is not
// backed by the host filesystem. Location is cleaned as if rooted, the way
// the chrooted filesystem resolves it, so the result never leaves the root.
func (a *Adapter) HostPath(location string) string {
	if !a.hostBacked {
		return ""
	}
	rooted := filepath.Clean(string(filepath.Separator) + filepath.FromSlash(location))
	return filepath.Join(a.root, rooted)
}

// Fetch implements backend.Adapter. When the adapter is host backed the
// returned reader also implements backend.LocalFile.
func (a *Adapter) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := a.begin(ctx, location); err != nil {
		return nil, err
	}

	info, err := a.fs.Stat(location)
	if err != nil {
		return nil, backend.ClassifyFSError("stat", a.scheme, location, err)
	}
	if info.IsDir() {
		return nil, errors.NewWithContext(errors.CodeInvalidInput, "location is a directory",
			map[string]interface{}{"scheme": string(a.scheme), "location": location})
	}

	f, err := a.fs.Open(location)
	if err != nil {
		return nil, backend.ClassifyFSError("open", a.scheme, location, err)
	}
	if !a.hostBacked {
		return f, nil
	}
	return &hostFile{File: f, path: a.HostPath(location)}, nil
}

// Put implements backend.Adapter.
func (a *Adapter) Put(ctx context.Context, r io.Reader, location string) (int64, error) {
	if err := a.begin(ctx, location); err != nil {
		return 0, err
	}

	n, err := core.WriteStream(a.fs, location, &ctxReader{ctx: ctx, r: r}, 0o644)
	if err != nil {
		a.debug("put failed", "location", location, "written", n, "error", err)
		return n, backend.ClassifyFSError("write", a.scheme, location, err)
	}
	return n, nil
}

// Exists implements backend.Adapter.
func (a *Adapter) Exists(ctx context.Context, location string) (bool, error) {
	if err := a.begin(ctx, location); err != nil {
		return false, err
	}
	ok, err := a.fs.Exists(location)
	if err != nil {
		return false, backend.ClassifyFSError("stat", a.scheme, location, err)
	}
	return ok, nil
}

// Delete implements backend.Adapter. Directories are removed recursively.
func (a *Adapter) Delete(ctx context.Context, location string) error {
	if err := a.begin(ctx, location); err != nil {
		return err
	}
	if err := a.fs.RemoveAll(location); err != nil {
		return backend.ClassifyFSError("remove", a.scheme, location, err)
	}
	return nil
}

// Rename implements backend.Adapter.
func (a *Adapter) Rename(ctx context.Context, from, to string) error {
	if err := a.begin(ctx, from, to); err != nil {
		return err
	}
	if dir := filepath.Dir(to); dir != "." && dir != string(filepath.Separator) {
		if err := a.fs.MkdirAll(dir, 0o755); err != nil {
			return backend.ClassifyFSError("mkdir", a.scheme, to, err)
		}
	}
	if err := a.fs.Rename(from, to); err != nil {
		return backend.ClassifyFSError("rename", a.scheme, from, err)
	}
	return nil
}

// begin fails if ctx is done or any location escapes the root.
func (a *Adapter) begin(ctx context.Context, locations ...string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	for _, loc := range locations {
		if err := backend.CheckLocation(a.scheme, loc); err != nil {
			return err
		}
	}
	return nil
}

func (a *Adapter) debug(msg string, args ...any) {
	if a.logger != nil {
		a.logger.Debug(msg, args...)
	}
}

type hostFile struct {
	core.File
	path string
}

func (f *hostFile) HostPath() string {
	return f.path
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

var (
	_ backend.Adapter   = (*Adapter)(nil)
	_ backend.LocalFile = (*hostFile)(nil)
)
