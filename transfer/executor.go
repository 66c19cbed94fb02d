package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/staging/errors"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

// DefaultMaxAttempts is the number of attempts made when none is configured.
const DefaultMaxAttempts = 3

// Result describes a completed transfer.
type Result struct {
	TaskID      string
	Source      reference.FileReference
	Destination reference.FileReference
	// Bytes is the size the destination backend confirmed.
	Bytes int64
	// Checksum is the checksum of the stored content. It is only set when an
	// expected checksum was verified.
	Checksum reference.Checksum
	Attempts int
	Duration time.Duration
}

// Executor runs tasks. It holds no per-task state and is safe for concurrent
// use.
type Executor struct {
	maxAttempts int
	backoff     Backoff
	sleep       Sleeper
	logger      *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxAttempts sets the maximum number of attempts per task, including the
// first. Values below 1 are ignored.
func WithMaxAttempts(n int) Option {
	return func(e *Executor) {
		if n >= 1 {
			e.maxAttempts = n
		}
	}
}

// WithBackoff sets the retry backoff.
func WithBackoff(b Backoff) Option {
	return func(e *Executor) {
		e.backoff = b
	}
}

// WithSleeper replaces the function used to wait between attempts.
func WithSleeper(s Sleeper) Option {
	return func(e *Executor) {
		if s != nil {
			e.sleep = s
		}
	}
}

// WithLogger sets the logger. A nil logger disables logging.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Executor) {
		e.logger = logger
	}
}

// NewExecutor creates an Executor.
func NewExecutor(opts ...Option) *Executor {
	e := &Executor{
		maxAttempts: DefaultMaxAttempts,
		backoff:     DefaultBackoff(),
		sleep:       sleepContext,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// MaxAttempts returns the configured attempt bound.
func (e *Executor) MaxAttempts() int {
	return e.maxAttempts
}

// Execute drives task to a terminal status. On failure the returned error is
// also recorded on the task: a permanent backend error, a TRANSFER_EXHAUSTED
// error wrapping the last cause, or a CANCELED error wrapping the context's
// error.
func (e *Executor) Execute(ctx context.Context, task *Task) (*Result, error) {
	if task == nil || task.srcAdapter == nil || task.dstAdapter == nil {
		return nil, errors.New(errors.CodeInvalidInput, "task is not bound to adapters")
	}
	if st := task.Status(); st != StatusPending {
		return nil, errors.NewWithContext(errors.CodeInvalidInput, "task has already been executed",
			map[string]interface{}{"task": task.id, "status": string(st)})
	}

	start := time.Now()
	e.log(ctx, slog.LevelDebug, "transfer started", task)

	for {
		if err := ctx.Err(); err != nil {
			return nil, e.finish(ctx, task, e.canceled(task, err))
		}
		if err := task.transition(StatusAttempting); err != nil {
			return nil, err
		}

		result, err := e.attempt(ctx, task)
		if err == nil {
			if terr := task.transition(StatusSucceeded); terr != nil {
				return nil, terr
			}
			result.Attempts = task.Attempts()
			result.Duration = time.Since(start)
			e.log(ctx, slog.LevelInfo, "transfer completed", task,
				"bytes", result.Bytes,
				"attempts", result.Attempts,
				"duration", result.Duration)
			return result, nil
		}

		attempt := task.Attempts()
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, e.finish(ctx, task, e.canceled(task, ctxErr))
		}
		if !errors.IsRetryable(err) {
			return nil, e.finish(ctx, task, e.permanent(task, err))
		}
		if attempt >= e.maxAttempts {
			return nil, e.finish(ctx, task, errors.WrapWithContext(err, errors.CodeTransferExhausted,
				fmt.Sprintf("transfer failed after %d attempts", attempt), e.errContext(task)))
		}

		if terr := task.transition(StatusRetryWait); terr != nil {
			return nil, terr
		}
		delay := e.backoff.Delay(attempt)
		e.log(ctx, slog.LevelWarn, "transfer attempt failed, retrying", task,
			"attempt", attempt,
			"max_attempts", e.maxAttempts,
			"delay", delay,
			"error", err)
		if serr := e.sleep(ctx, delay); serr != nil {
			return nil, e.finish(ctx, task, e.canceled(task, serr))
		}
	}
}

// attempt performs one full transfer into a temporary destination and
// commits it after verification.
func (e *Executor) attempt(ctx context.Context, task *Task) (*Result, error) {
	src, dst := task.src, task.dst

	rc, err := task.srcAdapter.Fetch(ctx, src.Location())
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	tmp := tempLocation(dst.Location())
	n, err := task.dstAdapter.Put(ctx, rc, tmp)
	if err != nil {
		e.discard(ctx, task, tmp)
		return nil, err
	}

	sum, err := e.verify(ctx, task, tmp, n)
	if err != nil {
		e.discard(ctx, task, tmp)
		return nil, err
	}

	if err := task.dstAdapter.Rename(ctx, tmp, dst.Location()); err != nil {
		e.discard(ctx, task, tmp)
		return nil, err
	}

	return &Result{
		TaskID:      task.id,
		Source:      src,
		Destination: dst,
		Bytes:       n,
		Checksum:    sum,
	}, nil
}

// verify checks the stored temporary object against the expected size and
// checksum. Expectations on the destination take precedence over those on
// the source.
func (e *Executor) verify(ctx context.Context, task *Task, tmp string, n int64) (reference.Checksum, error) {
	size, hasSize := task.dst.ExpectedSize()
	if !hasSize {
		size, hasSize = task.src.ExpectedSize()
	}
	want, hasSum := task.dst.ExpectedChecksum()
	if !hasSum {
		want, hasSum = task.src.ExpectedChecksum()
	}

	if hasSize && n != size {
		return reference.Checksum{}, errors.NewWithContext(errors.CodeChecksumMismatch, "size mismatch",
			e.errContext(task, "expected_size", size, "actual_size", n))
	}
	if !hasSum {
		return reference.Checksum{}, nil
	}

	rc, err := task.dstAdapter.Fetch(ctx, tmp)
	if err != nil {
		return reference.Checksum{}, err
	}
	defer rc.Close()

	got, read, err := reference.Compute(want.Algorithm, rc)
	if err != nil {
		if errors.GetCode(err) != "" {
			return reference.Checksum{}, err
		}
		return reference.Checksum{}, errors.AsTransient(errors.WrapWithContext(err, errors.CodeNetwork,
			"failed to read back stored content", e.errContext(task)))
	}
	if read != n {
		return reference.Checksum{}, errors.NewWithContext(errors.CodeChecksumMismatch, "size mismatch on read back",
			e.errContext(task, "expected_size", n, "actual_size", read))
	}
	if !got.Equal(want) {
		return reference.Checksum{}, errors.NewWithContext(errors.CodeChecksumMismatch, "checksum mismatch",
			e.errContext(task, "expected", want.String(), "actual", got.String()))
	}
	return got, nil
}

// discard deletes a temporary object. It runs even if ctx is canceled.
func (e *Executor) discard(ctx context.Context, task *Task, tmp string) {
	if err := task.dstAdapter.Delete(context.WithoutCancel(ctx), tmp); err != nil {
		e.log(ctx, slog.LevelWarn, "failed to delete temporary object", task,
			"location", tmp,
			"error", err)
	}
}

func (e *Executor) finish(ctx context.Context, task *Task, err error) error {
	if terr := task.fail(err); terr != nil {
		return terr
	}
	e.log(ctx, slog.LevelError, "transfer failed", task,
		"attempts", task.Attempts(),
		"error", err)
	return err
}

func (e *Executor) canceled(task *Task, err error) error {
	return errors.WrapWithContext(err, errors.CodeCanceled, "transfer canceled", e.errContext(task))
}

// permanent annotates a non-retryable error with the task's references while
// keeping its code.
func (e *Executor) permanent(task *Task, err error) error {
	code := errors.GetCode(err)
	if code == "" {
		code = errors.CodeInternal
	}
	return errors.AsPermanent(errors.WrapWithContext(err, code, "transfer failed", e.errContext(task)))
}

func (e *Executor) errContext(task *Task, kv ...interface{}) map[string]interface{} {
	m := map[string]interface{}{
		"source":      task.src.String(),
		"destination": task.dst.String(),
	}
	for i := 0; i+1 < len(kv); i += 2 {
		m[fmt.Sprint(kv[i])] = kv[i+1]
	}
	return m
}

func (e *Executor) log(ctx context.Context, level slog.Level, msg string, task *Task, args ...any) {
	if e.logger == nil {
		return
	}
	args = append([]any{
		"task", task.id,
		"direction", task.direction.String(),
		"source", task.src.String(),
		"destination", task.dst.String(),
	}, args...)
	e.logger.Log(ctx, level, msg, args...)
}

// tempLocation returns a unique temporary name next to location.
func tempLocation(location string) string {
	return location + ".partial-" + uuid.NewString()
}

