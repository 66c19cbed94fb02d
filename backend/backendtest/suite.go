// Package backendtest provides a conformance suite for backend.Adapter
// implementations and test doubles for code that consumes adapters.
//
// Example usage:
//
//	func TestAdapter(t *testing.T) {
//	    backendtest.TestSuite(t, func(t *testing.T) (backend.Adapter, string) {
//	        return local.New(local.WithRoot(t.TempDir())), "suite"
//	    })
//	}
package backendtest

import (
	"bytes"
	"context"
	"io"
	"path"
	"testing"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
)

// Factory returns a fresh adapter and the base location tests write under.
type Factory func(t *testing.T) (backend.Adapter, string)

// TestSuite runs every conformance test against adapters built by newAdapter.
func TestSuite(t *testing.T, newAdapter Factory) {
	TestSuiteWithSkip(t, newAdapter, nil)
}

// TestSuiteWithSkip runs the conformance tests, skipping those named in skip.
func TestSuiteWithSkip(t *testing.T, newAdapter Factory, skip []string) {
	tests := []struct {
		name string
		fn   func(t *testing.T, a backend.Adapter, base string)
	}{
		{"PutFetch", testPutFetch},
		{"PutReplaces", testPutReplaces},
		{"PutNested", testPutNested},
		{"PutEmpty", testPutEmpty},
		{"FetchNotFound", testFetchNotFound},
		{"Exists", testExists},
		{"DeleteIdempotent", testDeleteIdempotent},
		{"RenameReplaces", testRenameReplaces},
		{"CanceledContext", testCanceledContext},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for _, s := range skip {
				if s == tt.name {
					t.Skip("Skipped by adapter configuration")
				}
			}
			a, base := newAdapter(t)
			tt.fn(t, a, base)
		})
	}
}

func testPutFetch(t *testing.T, a backend.Adapter, base string) {
	ctx := context.Background()
	loc := path.Join(base, "roundtrip.bin")
	content := []byte("staging round trip content")

	n, err := a.Put(ctx, bytes.NewReader(content), loc)
	if err != nil {
		t.Fatalf("Put(%q): got error %v, want nil", loc, err)
	}
	if n != int64(len(content)) {
		t.Errorf("Put(%q): confirmed %d bytes, want %d", loc, n, len(content))
	}

	got := mustRead(t, a, loc)
	if !bytes.Equal(got, content) {
		t.Errorf("Fetch(%q): got %q, want %q", loc, got, content)
	}
}

func testPutReplaces(t *testing.T, a backend.Adapter, base string) {
	loc := path.Join(base, "replace.txt")

	mustPut(t, a, loc, []byte("first version, longer"))
	mustPut(t, a, loc, []byte("second"))

	if got := mustRead(t, a, loc); string(got) != "second" {
		t.Errorf("Fetch(%q) after overwrite: got %q, want %q", loc, got, "second")
	}
}

func testPutNested(t *testing.T, a backend.Adapter, base string) {
	loc := path.Join(base, "a", "b", "c", "nested.txt")
	mustPut(t, a, loc, []byte("nested"))

	if got := mustRead(t, a, loc); string(got) != "nested" {
		t.Errorf("Fetch(%q): got %q, want %q", loc, got, "nested")
	}
}

func testPutEmpty(t *testing.T, a backend.Adapter, base string) {
	loc := path.Join(base, "empty")
	n, err := a.Put(context.Background(), bytes.NewReader(nil), loc)
	if err != nil {
		t.Fatalf("Put(%q): got error %v, want nil", loc, err)
	}
	if n != 0 {
		t.Errorf("Put(%q): confirmed %d bytes, want 0", loc, n)
	}
	if got := mustRead(t, a, loc); len(got) != 0 {
		t.Errorf("Fetch(%q): got %d bytes, want 0", loc, len(got))
	}
}

func testFetchNotFound(t *testing.T, a backend.Adapter, base string) {
	loc := path.Join(base, "does-not-exist")
	rc, err := a.Fetch(context.Background(), loc)
	if err == nil {
		_ = rc.Close()
		t.Fatalf("Fetch(%q): got nil error, want NOT_FOUND", loc)
	}
	if !errors.Is(err, errors.ErrNotFound) {
		t.Errorf("Fetch(%q): got %v, want NOT_FOUND", loc, err)
	}
	if errors.IsRetryable(err) {
		t.Errorf("Fetch(%q): NOT_FOUND must not be retryable", loc)
	}
}

func testExists(t *testing.T, a backend.Adapter, base string) {
	ctx := context.Background()
	loc := path.Join(base, "exists.txt")

	ok, err := a.Exists(ctx, loc)
	if err != nil {
		t.Fatalf("Exists(%q): got error %v, want nil", loc, err)
	}
	if ok {
		t.Errorf("Exists(%q) before Put: got true, want false", loc)
	}

	mustPut(t, a, loc, []byte("x"))

	ok, err = a.Exists(ctx, loc)
	if err != nil {
		t.Fatalf("Exists(%q): got error %v, want nil", loc, err)
	}
	if !ok {
		t.Errorf("Exists(%q) after Put: got false, want true", loc)
	}
}

func testDeleteIdempotent(t *testing.T, a backend.Adapter, base string) {
	ctx := context.Background()
	loc := path.Join(base, "delete.txt")
	mustPut(t, a, loc, []byte("bye"))

	for i := 0; i < 2; i++ {
		if err := a.Delete(ctx, loc); err != nil {
			t.Fatalf("Delete(%q) #%d: got error %v, want nil", loc, i+1, err)
		}
	}

	ok, err := a.Exists(ctx, loc)
	if err != nil {
		t.Fatalf("Exists(%q): got error %v, want nil", loc, err)
	}
	if ok {
		t.Errorf("Exists(%q) after Delete: got true, want false", loc)
	}
}

func testRenameReplaces(t *testing.T, a backend.Adapter, base string) {
	ctx := context.Background()
	from := path.Join(base, "rename.partial")
	to := path.Join(base, "out", "rename.txt")

	mustPut(t, a, to, []byte("old content"))
	mustPut(t, a, from, []byte("new content"))

	if err := a.Rename(ctx, from, to); err != nil {
		t.Fatalf("Rename(%q, %q): got error %v, want nil", from, to, err)
	}
	if got := mustRead(t, a, to); string(got) != "new content" {
		t.Errorf("Fetch(%q) after Rename: got %q, want %q", to, got, "new content")
	}
	ok, err := a.Exists(ctx, from)
	if err != nil {
		t.Fatalf("Exists(%q): got error %v, want nil", from, err)
	}
	if ok {
		t.Errorf("Exists(%q) after Rename: got true, want false", from)
	}
}

func testCanceledContext(t *testing.T, a backend.Adapter, base string) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	loc := path.Join(base, "canceled.txt")
	if _, err := a.Put(ctx, bytes.NewReader([]byte("x")), loc); err == nil {
		t.Errorf("Put(%q) with canceled context: got nil error", loc)
	}
}

func mustPut(t *testing.T, a backend.Adapter, loc string, content []byte) {
	t.Helper()
	if _, err := a.Put(context.Background(), bytes.NewReader(content), loc); err != nil {
		t.Fatalf("Put(%q): setup failed: %v", loc, err)
	}
}

func mustRead(t *testing.T, a backend.Adapter, loc string) []byte {
	t.Helper()
	rc, err := a.Fetch(context.Background(), loc)
	if err != nil {
		t.Fatalf("Fetch(%q): got error %v, want nil", loc, err)
	}
	defer func() {
		if err := rc.Close(); err != nil {
			t.Errorf("Close(): got error %v", err)
		}
	}()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll(%q): got error %v", loc, err)
	}
	return data
}
