// Package api
// Author: momentics <momentics@gmail.com>
//
// Common error types and error handling utilities for hioload-mem.

package api

import (
	"fmt"

	"github.com/pkg/errors"
)

// Common errors used across the library.
var (
	// ErrPoolClosed is the state error returned by every pool operation after Shutdown.
	ErrPoolClosed = errors.New("page pool is closed")
	// ErrInvalidArgument reports a bad pool or page configuration.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrNotSupported is returned for zero or negative allocation sizes.
	ErrNotSupported = errors.New("operation not supported")
	// ErrOffHeapUnavailable reports a failed native allocation.
	ErrOffHeapUnavailable = errors.New("off-heap memory unavailable")
)

// ErrorCode represents specific error conditions in the library.
type ErrorCode int

const (
	ErrCodeOK ErrorCode = iota
	ErrCodeInvalidArgument
	ErrCodeNotSupported
	ErrCodeClosed
	ErrCodeOffHeap
)

// Error represents a structured error with code and context.
type Error struct {
	Code    ErrorCode
	Message string
	Context map[string]any
}

// Error implements the error interface.
func (e *Error) Error() string {
	if len(e.Context) == 0 {
		return e.Message
	}
	return fmt.Sprintf("%s (context: %+v)", e.Message, e.Context)
}

// Unwrap maps the code onto its sentinel so errors.Is works on structured errors.
func (e *Error) Unwrap() error {
	switch e.Code {
	case ErrCodeInvalidArgument:
		return ErrInvalidArgument
	case ErrCodeNotSupported:
		return ErrNotSupported
	case ErrCodeClosed:
		return ErrPoolClosed
	case ErrCodeOffHeap:
		return ErrOffHeapUnavailable
	default:
		return nil
	}
}

// NewError creates a new structured error.
func NewError(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Context: make(map[string]any),
	}
}

// WithContext adds context information to the error.
func (e *Error) WithContext(key string, value any) *Error {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
