package session

import (
	"log/slog"

	"github.com/input-output-hk/catalyst-forge-libs/staging/fs/core"
	"github.com/input-output-hk/catalyst-forge-libs/staging/transfer"
)

// Option configures a Session.
type Option func(*Session)

// WithExecutor sets the executor that runs transfers. Defaults to
// transfer.NewExecutor() with default retry settings.
func WithExecutor(e *transfer.Executor) Option {
	return func(s *Session) {
		s.executor = e
	}
}

// WithFilesystem sets the filesystem holding the working directory. It must
// be the filesystem the planner's local adapter writes to. Defaults to the
// host filesystem.
func WithFilesystem(fs core.FS) Option {
	return func(s *Session) {
		s.fs = fs
	}
}

// WithMockMode makes imports write a "contents" placeholder, keeping any file
// already at the scratch path, and exports record the request without moving
// any bytes.
func WithMockMode(enabled bool) Option {
	return func(s *Session) {
		s.mock = enabled
	}
}

// WithLogger sets the logger for session events. A nil logger disables
// logging.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Session) {
		s.logger = logger
	}
}

// ImportOption configures a single ImportFile call.
type ImportOption func(*importOptions)

type importOptions struct {
	name string
}

// WithName stores the imported file under name instead of the base name of
// the reference's location.
func WithName(name string) ImportOption {
	return func(o *importOptions) {
		o.name = name
	}
}
