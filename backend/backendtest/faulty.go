package backendtest

import (
	"bytes"
	"context"
	"io"
	"sync"

	"github.com/input-output-hk/catalyst-forge-libs/staging/backend"
	"github.com/input-output-hk/catalyst-forge-libs/staging/reference"
)

// Op names an adapter operation for fault injection.
type Op string

const (
	OpFetch  Op = "fetch"
	OpPut    Op = "put"
	OpExists Op = "exists"
	OpDelete Op = "delete"
	OpRename Op = "rename"
)

// FaultyAdapter wraps an adapter and injects scripted failures. Queued errors
// are returned, one per call, before the wrapped adapter is consulted. It is
// safe for concurrent use.
type FaultyAdapter struct {
	inner backend.Adapter

	mu      sync.Mutex
	queued  map[Op][]error
	always  map[Op]error
	corrupt int
	calls   map[Op]int
	hook    func(op Op, location string)
}

// NewFaultyAdapter wraps inner.
func NewFaultyAdapter(inner backend.Adapter) *FaultyAdapter {
	return &FaultyAdapter{
		inner:  inner,
		queued: make(map[Op][]error),
		always: make(map[Op]error),
		calls:  make(map[Op]int),
	}
}

// FailNext queues errs to be returned by the next len(errs) calls to op.
func (f *FaultyAdapter) FailNext(op Op, errs ...error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queued[op] = append(f.queued[op], errs...)
}

// FailAlways makes every call to op return err. A nil err clears it.
func (f *FaultyAdapter) FailAlways(op Op, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err == nil {
		delete(f.always, op)
		return
	}
	f.always[op] = err
}

// CorruptNextPuts flips a byte in the content of the next n puts. The stored
// size is unchanged, so only checksum verification can notice.
func (f *FaultyAdapter) CorruptNextPuts(n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.corrupt = n
}

// OnCall registers a function run at the start of every call.
func (f *FaultyAdapter) OnCall(fn func(op Op, location string)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hook = fn
}

// Calls returns how many times op was invoked.
func (f *FaultyAdapter) Calls(op Op) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FaultyAdapter) enter(op Op, location string) error {
	f.mu.Lock()
	f.calls[op]++
	hook := f.hook
	var err error
	if q := f.queued[op]; len(q) > 0 {
		err, f.queued[op] = q[0], q[1:]
	} else if e, ok := f.always[op]; ok {
		err = e
	}
	f.mu.Unlock()

	if hook != nil {
		hook(op, location)
	}
	return err
}

func (f *FaultyAdapter) takeCorrupt() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.corrupt > 0 {
		f.corrupt--
		return true
	}
	return false
}

// Scheme implements backend.Adapter.
func (f *FaultyAdapter) Scheme() reference.Scheme {
	return f.inner.Scheme()
}

// Fetch implements backend.Adapter.
func (f *FaultyAdapter) Fetch(ctx context.Context, location string) (io.ReadCloser, error) {
	if err := f.enter(OpFetch, location); err != nil {
		return nil, err
	}
	return f.inner.Fetch(ctx, location)
}

// Put implements backend.Adapter.
func (f *FaultyAdapter) Put(ctx context.Context, r io.Reader, location string) (int64, error) {
	if err := f.enter(OpPut, location); err != nil {
		return 0, err
	}
	if f.takeCorrupt() {
		data, err := io.ReadAll(r)
		if err != nil {
			return 0, err
		}
		if len(data) == 0 {
			data = []byte{0}
		} else {
			data[0] ^= 0xff
		}
		r = bytes.NewReader(data)
	}
	return f.inner.Put(ctx, r, location)
}

// Exists implements backend.Adapter.
func (f *FaultyAdapter) Exists(ctx context.Context, location string) (bool, error) {
	if err := f.enter(OpExists, location); err != nil {
		return false, err
	}
	return f.inner.Exists(ctx, location)
}

// Delete implements backend.Adapter.
func (f *FaultyAdapter) Delete(ctx context.Context, location string) error {
	if err := f.enter(OpDelete, location); err != nil {
		return err
	}
	return f.inner.Delete(ctx, location)
}

// Rename implements backend.Adapter.
func (f *FaultyAdapter) Rename(ctx context.Context, from, to string) error {
	if err := f.enter(OpRename, from); err != nil {
		return err
	}
	return f.inner.Rename(ctx, from, to)
}

var _ backend.Adapter = (*FaultyAdapter)(nil)
