package core

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Copy copies the regular file srcPath on src to dstPath on dst, creating
// parent directories as needed and replacing any existing file. It returns the
// number of bytes written.
func Copy(src ReadFS, srcPath string, dst WriteFS, dstPath string) (int64, error) {
	info, err := src.Stat(srcPath)
	if err != nil {
		return 0, fmt.Errorf("copy %q: %w", srcPath, err)
	}
	if info.IsDir() {
		return 0, fmt.Errorf("copy %q: is a directory", srcPath)
	}

	in, err := src.Open(srcPath)
	if err != nil {
		return 0, fmt.Errorf("copy %q: %w", srcPath, err)
	}
	defer func() {
		_ = in.Close()
	}()

	return WriteStream(dst, dstPath, in, info.Mode().Perm())
}

// WriteStream writes r to path on dst, creating parent directories as needed
// and truncating any existing file. Data is synced before the file is closed
// when the file supports it.
func WriteStream(dst WriteFS, path string, r io.Reader, perm os.FileMode) (int64, error) {
	if perm == 0 {
		perm = 0o644
	}
	if dir := filepath.Dir(path); dir != "." && dir != string(filepath.Separator) {
		if err := dst.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("write %q: %w", path, err)
		}
	}

	out, err := dst.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		return 0, fmt.Errorf("write %q: %w", path, err)
	}

	n, err := io.Copy(out, r)
	if err != nil {
		_ = out.Close()
		return n, fmt.Errorf("write %q: %w", path, err)
	}
	if s, ok := out.(Syncer); ok {
		if err := s.Sync(); err != nil {
			_ = out.Close()
			return n, fmt.Errorf("write %q: %w", path, err)
		}
	}
	if err := out.Close(); err != nil {
		return n, fmt.Errorf("write %q: %w", path, err)
	}
	return n, nil
}
