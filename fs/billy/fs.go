// Package billy implements the core filesystem contracts on top of go-billy.
// It backs the local and shared-filesystem staging backends with either the
// host filesystem or an in-memory filesystem for tests.
package billy

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"os"

	"github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/osfs"
	"github.com/go-git/go-billy/v5/util"

	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/core"
)

// FS implements core.FS using go-billy.
type FS struct {
	fs billy.Filesystem
}

// Create implements core.FS.Create.
//
//nolint:ireturn // callers work with the provider-neutral core.File.
func (b *FS) Create(name string) (core.File, error) {
	f, err := b.fs.Create(name)
	if err != nil {
		return nil, fmt.Errorf("billy: create %q: %w", name, err)
	}
	return &File{
		file: f,
		fs:   b,
	}, nil
}

// Exists implements core.FS.Exists.
func (b *FS) Exists(path string) (bool, error) {
	_, err := b.fs.Stat(path)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, iofs.ErrNotExist):
		return false, nil
	default:
		return false, fmt.Errorf("billy: stat %q: %w", path, err)
	}
}

// MkdirAll implements core.FS.MkdirAll.
func (b *FS) MkdirAll(path string, perm os.FileMode) error {
	if err := b.fs.MkdirAll(path, perm); err != nil {
		return fmt.Errorf("billy: mkdirall %q: %w", path, err)
	}
	return nil
}

// Open implements core.FS.Open.
//
//nolint:ireturn // callers work with the provider-neutral core.File.
func (b *FS) Open(name string) (core.File, error) {
	f, err := b.fs.Open(name)
	if err != nil {
		return nil, fmt.Errorf("billy: open %q: %w", name, err)
	}
	return &File{
		file: f,
		fs:   b,
	}, nil
}

// OpenFile implements core.FS.OpenFile.
//
//nolint:ireturn // callers work with the provider-neutral core.File.
func (b *FS) OpenFile(name string, flag int, perm os.FileMode) (core.File, error) {
	f, err := b.fs.OpenFile(name, flag, perm)
	if err != nil {
		return nil, fmt.Errorf("billy: openfile %q: %w", name, err)
	}
	return &File{
		file: f,
		fs:   b,
	}, nil
}

// ReadDir implements core.FS.ReadDir.
func (b *FS) ReadDir(dirname string) ([]os.FileInfo, error) {
	list, err := b.fs.ReadDir(dirname)
	if err != nil {
		return nil, fmt.Errorf("billy: readdir %q: %w", dirname, err)
	}
	return list, nil
}

// ReadFile implements core.FS.ReadFile.
func (b *FS) ReadFile(path string) ([]byte, error) {
	bts, err := util.ReadFile(b.fs, path)
	if err != nil {
		return nil, fmt.Errorf("billy: readfile %q: %w", path, err)
	}
	return bts, nil
}

// Remove implements core.FS.Remove.
func (b *FS) Remove(name string) error {
	if err := b.fs.Remove(name); err != nil {
		return fmt.Errorf("billy: remove %q: %w", name, err)
	}
	return nil
}

// RemoveAll implements core.FS.RemoveAll. A missing path is not an error.
func (b *FS) RemoveAll(path string) error {
	if err := util.RemoveAll(b.fs, path); err != nil && !errors.Is(err, iofs.ErrNotExist) {
		return fmt.Errorf("billy: removeall %q: %w", path, err)
	}
	return nil
}

// Rename implements core.FS.Rename. An existing newpath is replaced.
func (b *FS) Rename(oldpath, newpath string) error {
	if err := b.fs.Rename(oldpath, newpath); err != nil {
		return fmt.Errorf("billy: rename %q -> %q: %w", oldpath, newpath, err)
	}
	return nil
}

// Stat implements core.FS.Stat.
func (b *FS) Stat(name string) (os.FileInfo, error) {
	info, err := b.fs.Stat(name)
	if err != nil {
		return nil, fmt.Errorf("billy: stat %q: %w", name, err)
	}
	return info, nil
}

// WriteFile implements core.FS.WriteFile.
func (b *FS) WriteFile(filename string, data []byte, perm os.FileMode) error {
	if err := util.WriteFile(b.fs, filename, data, perm); err != nil {
		return fmt.Errorf("billy: writefile %q: %w", filename, err)
	}
	return nil
}

// Root returns the host directory the filesystem is rooted at. In-memory
// filesystems report "/".
func (b *FS) Root() string {
	return b.fs.Root()
}

// NewFS creates a new FS using the given go-billy filesystem.
func NewFS(fsys billy.Filesystem) *FS {
	return &FS{
		fs: fsys,
	}
}

// NewInMemoryFS creates a new in-memory filesystem.
func NewInMemoryFS() *FS {
	return NewFS(memfs.New())
}

// NewMemory is shorthand for NewInMemoryFS.
func NewMemory() *FS { return NewInMemoryFS() }

// NewOSFS creates a filesystem backed by the host directory path.
func NewOSFS(path string) *FS {
	return NewFS(osfs.New(path))
}

var (
	_ core.FS     = (*FS)(nil)
	_ core.Rooted = (*FS)(nil)
)
