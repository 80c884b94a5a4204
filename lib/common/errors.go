package common

import (
	"github.com/cockroachdb/errors"
)

// Error taxonomy of the versioned store. Errors returned by vsdb packages
// are marked with one of these sentinels and can be tested with errors.Is.
var (
	// ErrNotFound marks a missing key, version or branch
	ErrNotFound = errors.New("not found")
	// ErrAlreadyExists marks a duplicate branch or version name
	ErrAlreadyExists = errors.New("already exists")
	// ErrDiverged marks a merge rejected because the target has diverged
	ErrDiverged = errors.New("branches diverged")
	// ErrEngine marks a failure of the storage engine
	ErrEngine = errors.New("engine error")
	// ErrInconsistent marks a violated invariant, the store must not be mutated anymore
	ErrInconsistent = errors.New("inconsistent state")
	// ErrInvalidOperation marks a request that can never succeed as given
	ErrInvalidOperation = errors.New("invalid operation")
	// ErrBusy marks an exclusive request that conflicts with open readers
	ErrBusy = errors.New("busy")
)

// markedError tags a cause with a sentinel that both the standard library's
// and cockroachdb's errors.Is can see.
type markedError struct {
	cause error
	mark  error
}

func (e *markedError) Error() string { return e.cause.Error() }

func (e *markedError) Unwrap() error { return e.cause }

func (e *markedError) Is(target error) bool { return target == e.mark }

func mark(err, sentinel error) error {
	return &markedError{cause: errors.Mark(err, sentinel), mark: sentinel}
}

// EngineErr wraps an engine failure with context and marks it ErrEngine.
// A nil err returns nil.
func EngineErr(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrEngine) {
		return errors.Wrapf(err, format, args...)
	}
	return mark(errors.Wrapf(err, format, args...), ErrEngine)
}

// Errorf returns the sentinel with a context message ("<context>: <sentinel>").
func Errorf(sentinel error, format string, args ...interface{}) error {
	return errors.Wrapf(sentinel, format, args...)
}

// Wrap adds context to err and marks it with the sentinel.
func Wrap(sentinel error, err error, format string, args ...interface{}) error {
	return mark(errors.Wrapf(err, format, args...), sentinel)
}
