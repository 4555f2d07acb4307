package party

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned when an operation references a session id that is
// no longer present.
var ErrNotFound = errors.New("session not found")

// ErrNotOwner is returned when a non-owner attempts an owner-only operation
// (edit, cancel).
var ErrNotOwner = errors.New("only the session owner can do that")

// ValidationError reports malformed or unacceptable input at session
// creation or edit. The session is unchanged.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "invalid session details: " + e.Reason
}

// CorruptStoreError reports an unreadable store file. Recoverable: the
// caller continues with an empty session set.
type CorruptStoreError struct {
	Path string
	Err  error
}

func (e *CorruptStoreError) Error() string {
	return fmt.Sprintf("corrupt session store %s: %v", e.Path, e.Err)
}

func (e *CorruptStoreError) Unwrap() error { return e.Err }

// PersistenceError reports a failed store write. The mutation that caused it
// has been rolled back; the caller may retry.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// PlatformError reports a failed chat-platform call. Terminal errors mean
// the target no longer exists and the call must not be retried; everything
// else is transient and retried on a later tick.
type PlatformError struct {
	Op       string
	Terminal bool
	Err      error
}

func (e *PlatformError) Error() string {
	kind := "transient"
	if e.Terminal {
		kind = "terminal"
	}
	return fmt.Sprintf("platform %s (%s): %v", e.Op, kind, e.Err)
}

func (e *PlatformError) Unwrap() error { return e.Err }

// IsTerminal reports whether err is (or wraps) a terminal platform error.
func IsTerminal(err error) bool {
	var pe *PlatformError
	return errors.As(err, &pe) && pe.Terminal
}
