package local_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/backend/backendtest"
	"github.com/input-output-hk/catalyst-forge-libs/staging/backend/local"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

func TestAdapter_HostConformance(t *testing.T) {
	backendtest.TestSuite(t, func(t *testing.T) (backend.Adapter, string) {
		return local.New(local.WithRoot(t.TempDir())), "suite"
	})
}

func TestAdapter_AbsolutePathConformance(t *testing.T) {
	backendtest.TestSuite(t, func(t *testing.T) (backend.Adapter, string) {
		return local.New(), t.TempDir()
	})
}

func TestAdapter_MemoryConformance(t *testing.T) {
	backendtest.TestSuite(t, func(t *testing.T) (backend.Adapter, string) {
		return local.New(local.WithFilesystem(billy.NewInMemoryFS())), "/suite"
	})
}

func TestAdapter_FetchReturnsHostFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "in.txt")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	a := local.New()
	assert.Equal(t, reference.SchemeLocal, a.Scheme())

	rc, err := a.Fetch(context.Background(), path)
	require.NoError(t, err)
	defer rc.Close()

	lf, ok := rc.(backend.LocalFile)
	require.True(t, ok, "host backed adapter must return a LocalFile")
	assert.Equal(t, path, lf.HostPath())
}

func TestAdapter_MemoryFetchIsNotHostFile(t *testing.T) {
	a := local.New(local.WithFilesystem(billy.NewInMemoryFS()))
	_, err := a.Put(context.Background(), bytes.NewReader([]byte("x")), "/x")
	require.NoError(t, err)

	rc, err := a.Fetch(context.Background(), "/x")
	require.NoError(t, err)
	defer rc.Close()

	_, ok := rc.(backend.LocalFile)
	assert.False(t, ok)
	assert.Empty(t, a.HostPath("/x"))
}

func TestAdapter_FetchDirectory(t *testing.T) {
	a := local.New()
	_, err := a.Fetch(context.Background(), t.TempDir())
	require.Error(t, err)
	assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
}

func TestAdapter_DeleteDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch")
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "nested", "f"), []byte("x"), 0o644))

	a := local.New()
	require.NoError(t, a.Delete(context.Background(), dir))

	_, err := os.Stat(dir)
	assert.True(t, os.IsNotExist(err))
}

func TestAdapter_WithScheme(t *testing.T) {
	a := local.New(local.WithScheme(reference.SchemeObjectStore))
	assert.Equal(t, reference.SchemeObjectStore, a.Scheme())
}

func TestAdapter_RejectsLocationsOutsideRoot(t *testing.T) {
	parent := t.TempDir()
	root := filepath.Join(parent, "root")
	require.NoError(t, os.MkdirAll(root, 0o755))
	a := local.New(local.WithRoot(root))
	ctx := context.Background()

	ops := map[string]func(loc string) error{
		"fetch": func(loc string) error {
			_, err := a.Fetch(ctx, loc)
			return err
		},
		"put": func(loc string) error {
			_, err := a.Put(ctx, bytes.NewReader([]byte("x")), loc)
			return err
		},
		"exists": func(loc string) error {
			_, err := a.Exists(ctx, loc)
			return err
		},
		"delete":      func(loc string) error { return a.Delete(ctx, loc) },
		"rename from": func(loc string) error { return a.Rename(ctx, loc, "in.txt") },
		"rename to":   func(loc string) error { return a.Rename(ctx, "in.txt", loc) },
	}

	for name, op := range ops {
		for _, loc := range []string{"../escaped.txt", "a/../../escaped.txt", ".."} {
			t.Run(name+" "+loc, func(t *testing.T) {
				err := op(loc)
				require.Error(t, err)
				assert.Equal(t, errors.CodeInvalidInput, errors.GetCode(err))
				assert.False(t, errors.IsRetryable(err))
			})
		}
	}

	_, err := os.Stat(filepath.Join(parent, "escaped.txt"))
	assert.True(t, os.IsNotExist(err), "nothing may be written above the root")
}

func TestAdapter_HostPathStaysInsideRoot(t *testing.T) {
	root := t.TempDir()
	a := local.New(local.WithRoot(root))

	assert.Equal(t, filepath.Join(root, "a", "b.txt"), a.HostPath("a/b.txt"))
	assert.Equal(t, filepath.Join(root, "x"), a.HostPath("/a/../../x"))
	assert.Equal(t, "/tmp/x", local.New().HostPath("/tmp/x"))
}
