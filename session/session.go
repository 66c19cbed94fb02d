// Package session provides the job-facing staging API.
//
// A Session owns a private scratch directory under a working directory. Files
// imported through it land in that directory and are deleted when the session
// closes; files exported through it are copied out and left in place.
//
//	s, err := session.New(p, "/scratch")
//	if err != nil {
//		return err
//	}
//	defer s.Close(ctx)
//
//	path, err := s.ImportFile(ctx, reference.MustParse("objectstore:bucket/sample.bam"))
//	...
//	_, err = s.ExportFile(ctx, outPath, reference.MustParse("objectstore:bucket/out.vcf"))
package session

import (
	"context"
	"log/slog"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/billy"
	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/core"
	"github.com/input-output-hk/catalyst-forge-libs/staging/planner"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
	"github.com/input-output-hk/catalyst-forge-libs/staging/transfer"
)

// mockContent is the placeholder written by imports in mock mode.
var mockContent = []byte("contents")

// Session stages files between remote backends and a private scratch
// directory. It is safe for concurrent use.
type Session struct {
	id       string
	root     string
	planner  *planner.Planner
	scratch  backend.Adapter
	executor *transfer.Executor
	fs       core.FS
	mock     bool
	logger   *slog.Logger

	mu       sync.Mutex
	closed   bool
	next     int
	paths    []string
	tasks    []*transfer.Task
	exports  []reference.FileReference
	inflight sync.WaitGroup
}

// New creates a session with a fresh scratch directory
// "<workDir>/staging-<uuid>". The planner must serve the local scheme.
func New(p *planner.Planner, workDir string, opts ...Option) (*Session, error) {
	if p == nil {
		return nil, errors.New(errors.CodeInvalidInput, "planner cannot be nil")
	}
	if workDir == "" {
		return nil, errors.New(errors.CodeInvalidInput, "working directory cannot be empty")
	}

	s := &Session{
		id:      uuid.NewString(),
		planner: p,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.executor == nil {
		s.executor = transfer.NewExecutor(transfer.WithLogger(s.logger))
	}
	if s.fs == nil {
		s.fs = billy.NewOSFS("/")
	}

	s.root = filepath.Join(workDir, "staging-"+s.id)
	scratch, err := p.Resolve(reference.Local(s.root))
	if err != nil {
		return nil, err
	}
	s.scratch = scratch

	if err := s.fs.MkdirAll(s.root, 0o750); err != nil {
		return nil, backend.ClassifyFSError("mkdir", reference.SchemeLocal, s.root, err)
	}
	s.debug("session created", "root", s.root, "mock", s.mock)
	return s, nil
}

// ID returns the session's unique identifier.
func (s *Session) ID() string { return s.id }

// Root returns the session's scratch directory.
func (s *Session) Root() string { return s.root }

// ImportFile copies ref into a new scratch path and returns that path. The
// path is owned by the session and removed on Close, even if the import
// fails.
func (s *Session) ImportFile(ctx context.Context, ref reference.FileReference, opts ...ImportOption) (string, error) {
	o := importOptions{name: ref.Base()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := validName(o.name); err != nil {
		return "", errors.WrapWithContext(err, errors.CodeInvalidInput, "invalid scratch file name",
			map[string]interface{}{"reference": ref.String(), "name": o.name})
	}

	dst, err := s.allocate(o.name)
	if err != nil {
		return "", err
	}
	defer s.inflight.Done()

	if s.mock {
		if err := s.mockImport(dst); err != nil {
			return "", err
		}
		s.debug("mock import", "reference", ref.String(), "path", dst)
		return dst, nil
	}

	task, err := s.planner.Plan(transfer.Import, ref, reference.Local(dst))
	if err != nil {
		return "", err
	}
	s.track(task)

	if _, err := s.executor.Execute(ctx, task); err != nil {
		return "", err
	}
	return dst, nil
}

// ImportAll imports refs with at most concurrency transfers in flight and
// returns the scratch paths in the order of refs. The first failure cancels
// the imports that have not finished.
func (s *Session) ImportAll(ctx context.Context, refs []reference.FileReference, concurrency int) ([]string, error) {
	paths := make([]string, len(refs))
	g, ctx := errgroup.WithContext(ctx)
	if concurrency > 0 {
		g.SetLimit(concurrency)
	}
	for i, ref := range refs {
		g.Go(func() error {
			p, err := s.ImportFile(ctx, ref)
			if err != nil {
				return err
			}
			paths[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return paths, nil
}

// ExportFile copies the local file at localPath to dst. The local file is not
// removed.
func (s *Session) ExportFile(ctx context.Context, localPath string, dst reference.FileReference) (*transfer.Result, error) {
	if err := s.enter(); err != nil {
		return nil, err
	}
	defer s.inflight.Done()

	src := reference.Local(localPath)
	if s.mock {
		s.mu.Lock()
		s.exports = append(s.exports, dst)
		s.mu.Unlock()
		s.debug("mock export", "path", localPath, "reference", dst.String())
		return &transfer.Result{Source: src, Destination: dst}, nil
	}

	task, err := s.planner.Plan(transfer.Export, src, dst)
	if err != nil {
		return nil, err
	}
	s.track(task)
	return s.executor.Execute(ctx, task)
}

// CopyFiles exports each local file into outputDir under its base name. It
// stops at the first failure.
func (s *Session) CopyFiles(ctx context.Context, paths []string, outputDir string) ([]*transfer.Result, error) {
	results := make([]*transfer.Result, 0, len(paths))
	for _, p := range paths {
		dst := reference.Local(filepath.Join(outputDir, filepath.Base(p)))
		res, err := s.ExportFile(ctx, p, dst)
		if err != nil {
			return results, err
		}
		results = append(results, res)
	}
	return results, nil
}

// Tasks returns the tasks the session has created, oldest first.
func (s *Session) Tasks() []*transfer.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*transfer.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// MockExports returns the destinations exports were requested for while in
// mock mode.
func (s *Session) MockExports() []reference.FileReference {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]reference.FileReference, len(s.exports))
	copy(out, s.exports)
	return out
}

// Close waits for in-flight operations, then deletes every scratch path the
// session allocated and the scratch directory itself. Calling Close again is
// a no-op. Cleanup runs even if ctx is canceled. All deletions are
// attempted; their errors are joined.
func (s *Session) Close(ctx context.Context) error {
	ctx = context.WithoutCancel(ctx)

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.inflight.Wait()

	s.mu.Lock()
	paths := s.paths
	s.paths = nil
	s.mu.Unlock()

	var errs []error
	for _, p := range paths {
		if err := s.scratch.Delete(ctx, p); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.fs.RemoveAll(s.root); err != nil {
		errs = append(errs, backend.ClassifyFSError("remove", reference.SchemeLocal, s.root, err))
	}

	s.debug("session closed", "paths", len(paths), "errors", len(errs))
	return errors.Join(errs...)
}

// mockImport writes a placeholder to dst unless a file is already there.
func (s *Session) mockImport(dst string) error {
	exists, err := s.fs.Exists(dst)
	if err != nil {
		return backend.ClassifyFSError("stat", reference.SchemeLocal, dst, err)
	}
	if exists {
		return nil
	}
	if err := s.fs.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return backend.ClassifyFSError("mkdir", reference.SchemeLocal, dst, err)
	}
	if err := s.fs.WriteFile(dst, mockContent, 0o640); err != nil {
		return backend.ClassifyFSError("write", reference.SchemeLocal, dst, err)
	}
	return nil
}

// enter registers an in-flight operation, failing if the session is closed.
func (s *Session) enter() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.closedError()
	}
	s.inflight.Add(1)
	return nil
}

// allocate enters the session and records a new scratch path for name.
func (s *Session) allocate(name string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", s.closedError()
	}
	s.inflight.Add(1)

	dst := filepath.Join(s.root, strconv.Itoa(s.next), name)
	s.next++
	s.paths = append(s.paths, dst)
	return dst, nil
}

func (s *Session) track(task *transfer.Task) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
}

func (s *Session) closedError() error {
	return errors.WrapWithContext(errors.ErrSessionClosed, errors.CodeSessionClosed,
		"staging session is closed", map[string]interface{}{"session": s.id})
}

func (s *Session) debug(msg string, args ...any) {
	if s.logger == nil {
		return
	}
	s.logger.Debug(msg, append([]any{"session", s.id}, args...)...)
}

func validName(name string) error {
	switch {
	case name == "", name == ".", name == "..", name == "/":
		return errors.New(errors.CodeInvalidInput, "name is empty")
	case filepath.Base(name) != name:
		return errors.New(errors.CodeInvalidInput, "name must not contain path separators")
	}
	return nil
}
