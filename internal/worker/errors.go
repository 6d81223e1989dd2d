package worker

import (
	"errors"
	"fmt"
)

// ErrClosed is returned by operations on a closed pool.
var ErrClosed = errors.New("worker pool is closed")

// ErrNoHandler is returned when engine work reaches a worker before a
// Handler was installed.
var ErrNoHandler = errors.New("no job handler installed")

// ErrCrashed is returned by Call when the proxied function panicked.
var ErrCrashed = errors.New("proxied call crashed")

// UnknownThreadError is returned when a message targets a thread that does
// not exist or has exited.
type UnknownThreadError struct {
	Thread ThreadID
}

func (e *UnknownThreadError) Error() string {
	return fmt.Sprintf("no thread %d", e.Thread)
}

// DuplicateJobError is returned when a completion id is already pending.
type DuplicateJobError struct {
	ID uint32
}

func (e *DuplicateJobError) Error() string {
	return fmt.Sprintf("a job with completion id %d is already pending", e.ID)
}

// JobError rejects a job whose handler failed on the worker.
type JobError struct {
	ID     uint32
	Kind   JobKind
	Thread ThreadID
	Err    error
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s job %d failed on thread %d: %v", e.Kind, e.ID, e.Thread, e.Err)
}

func (e *JobError) Unwrap() error {
	return e.Err
}

// WrongThreadError is returned when an associated object is used from a
// thread other than its owner.
type WrongThreadError struct {
	ID     uint32
	Owner  ThreadID
	Caller ThreadID
}

func (e *WrongThreadError) Error() string {
	return fmt.Sprintf("associated object %d belongs to thread %d and cannot be used from thread %d",
		e.ID, e.Owner, e.Caller)
}

// UnknownObjectError is returned for an associated object id that was never
// set or was disposed.
type UnknownObjectError struct {
	ID uint32
}

func (e *UnknownObjectError) Error() string {
	return fmt.Sprintf("no associated object %d", e.ID)
}

// NoThreadError is the panic value of a host function invoked outside a
// pool thread.
type NoThreadError struct {
	Function string
}

func (e *NoThreadError) Error() string {
	return fmt.Sprintf("worker: %s called outside a pool thread", e.Function)
}
