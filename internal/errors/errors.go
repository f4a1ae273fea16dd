// Package errors provides error types used across the tracker:
// transient failures that degrade gracefully, panic capture around
// event and tick handlers, and multi-error collection for shutdown.
package errors

import (
	"fmt"
	"runtime/debug"
	"strings"
)

// TransientError wraps a recoverable external failure (CLI error, timeout).
// Callers treat it as "no result" rather than a fatal condition.
type TransientError struct {
	Op  string // the operation that failed, e.g. "gh pr view"
	Err error
}

// NewTransientError creates a TransientError for the given operation.
func NewTransientError(op string, err error) *TransientError {
	return &TransientError{Op: op, Err: err}
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// PanicError captures a recovered panic with its stack trace.
type PanicError struct {
	Value      any
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// Recover runs fn and converts a panic into a *PanicError.
// Used to isolate per-session work so one failing handler can never
// take down the shared scheduler loop.
func Recover(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &PanicError{
				Value:      r,
				StackTrace: string(debug.Stack()),
			}
		}
	}()
	return fn()
}

// MultiError collects errors from multi-step operations such as shutdown.
type MultiError struct {
	Errors []error
}

// Append adds a non-nil error to the collection.
func (m *MultiError) Append(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

// ErrorOrNil returns nil if no errors were collected, the single error
// if exactly one was, or the MultiError itself otherwise.
func (m *MultiError) ErrorOrNil() error {
	switch len(m.Errors) {
	case 0:
		return nil
	case 1:
		return m.Errors[0]
	default:
		return m
	}
}

func (m *MultiError) Error() string {
	msgs := make([]string, len(m.Errors))
	for i, err := range m.Errors {
		msgs[i] = err.Error()
	}
	return fmt.Sprintf("%d errors: %s", len(m.Errors), strings.Join(msgs, "; "))
}
