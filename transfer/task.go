package transfer

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

// Direction is the intent of a transfer relative to job-local scratch space.
type Direction int

const (
	// Import moves a remote file into local scratch space.
	Import Direction = iota
	// Export moves a local scratch file to remote storage.
	Export
)

func (d Direction) String() string {
	switch d {
	case Import:
		return "import"
	case Export:
		return "export"
	default:
		return fmt.Sprintf("direction(%d)", int(d))
	}
}

// Status is the lifecycle state of a Task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAttempting Status = "attempting"
	StatusRetryWait  Status = "retry-wait"
	StatusSucceeded  Status = "succeeded"
	StatusFailed     Status = "failed"
)

// IsTerminal reports whether s is a final status.
func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

// Transition records a status change.
type Transition struct {
	From Status
	To   Status
	At   time.Time
}

// Task is one transfer between two references, bound to the adapters that
// serve them. It is created by the planner and driven by an Executor. A Task
// reaches exactly one terminal status and is never executed twice.
type Task struct {
	id         string
	direction  Direction
	src        reference.FileReference
	dst        reference.FileReference
	srcAdapter backend.Adapter
	dstAdapter backend.Adapter

	mu       sync.Mutex
	status   Status
	attempts int
	err      error
	history  []Transition
}

// NewTask creates a pending task.
func NewTask(
	direction Direction,
	src reference.FileReference,
	srcAdapter backend.Adapter,
	dst reference.FileReference,
	dstAdapter backend.Adapter,
) *Task {
	return &Task{
		id:         uuid.NewString(),
		direction:  direction,
		src:        src,
		dst:        dst,
		srcAdapter: srcAdapter,
		dstAdapter: dstAdapter,
		status:     StatusPending,
	}
}

// ID returns the task's unique identifier.
func (t *Task) ID() string { return t.id }

// Direction returns the transfer direction.
func (t *Task) Direction() Direction { return t.direction }

// Source returns the source reference.
func (t *Task) Source() reference.FileReference { return t.src }

// Destination returns the destination reference.
func (t *Task) Destination() reference.FileReference { return t.dst }

// Status returns the current status.
func (t *Task) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Attempts returns the number of attempts started so far.
func (t *Task) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Err returns the error the task failed with, or nil.
func (t *Task) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// History returns a copy of the recorded transitions.
func (t *Task) History() []Transition {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Transition, len(t.history))
	copy(out, t.history)
	return out
}

func (t *Task) String() string {
	return fmt.Sprintf("%s %s -> %s", t.direction, t.src, t.dst)
}

// transition moves the task from its current status to to. It fails if the
// move is not allowed, which indicates a bug in the executor.
func (t *Task) transition(to Status) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	from := t.status
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("task %s: disallowed transition %s -> %s", t.id, from, to)
	}
	t.status = to
	if to == StatusAttempting {
		t.attempts++
	}
	t.history = append(t.history, Transition{From: from, To: to, At: time.Now()})
	return nil
}

func (t *Task) fail(err error) error {
	if terr := t.transition(StatusFailed); terr != nil {
		return terr
	}
	t.mu.Lock()
	t.err = err
	t.mu.Unlock()
	return nil
}

func isAllowedTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusAttempting || to == StatusFailed
	case StatusAttempting:
		return to == StatusSucceeded || to == StatusRetryWait || to == StatusFailed
	case StatusRetryWait:
		return to == StatusAttempting || to == StatusFailed
	default:
		return false
	}
}
