// Package core defines the filesystem contracts the staging backends are
// written against. Providers implement FS; optional capabilities are exposed
// through additional interfaces and discovered with type assertions.
package core

import (
	"errors"
	"io/fs"
	"os"
)

// ErrUnsupported is returned by providers for operations they cannot perform.
var ErrUnsupported = errors.New("operation not supported")

// File represents an open file handle supporting basic I/O operations.
// Implementations should behave consistently with the standard library. The
// method set is a subset of go-billy's File, so billy handles satisfy it
// without adapters.
type File interface {
	Close() error
	Name() string
	Read(p []byte) (n int, err error)
	ReadAt(p []byte, off int64) (n int, err error)
	Seek(offset int64, whence int) (int64, error)
	Stat() (fs.FileInfo, error)
	Write(p []byte) (n int, err error)
}

// Syncer is implemented by files that can flush buffered writes to storage.
type Syncer interface {
	Sync() error
}

// ReadFS groups read-only operations.
type ReadFS interface {
	Open(name string) (File, error)
	Stat(name string) (os.FileInfo, error)
	ReadDir(dirname string) ([]os.FileInfo, error)
	ReadFile(name string) ([]byte, error)
	Exists(name string) (bool, error)
}

// WriteFS groups operations that create or modify files.
type WriteFS interface {
	Create(name string) (File, error)
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	WriteFile(name string, data []byte, perm os.FileMode) error
	MkdirAll(path string, perm os.FileMode) error
}

// ManageFS groups file management operations.
type ManageFS interface {
	Remove(name string) error
	RemoveAll(path string) error
	Rename(oldpath, newpath string) error
}

// FS is the full filesystem contract.
type FS interface {
	ReadFS
	WriteFS
	ManageFS
}

// Rooted is implemented by filesystems backed by a directory on the host. Root
// returns the host path that filesystem paths are resolved against.
type Rooted interface {
	Root() string
}
