// Package domain provides the core types shared by the request pipeline,
// the background refresh loop and the worker pool monitor.
package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel wiring errors.
var (
	// ErrFrozen is returned by mutation methods once a sequence is frozen.
	ErrFrozen = errors.New("sequence is frozen")

	// ErrAlreadyRun is returned when a run-once sequence is run again.
	ErrAlreadyRun = errors.New("sequence already run")

	// ErrEmptyName is returned when a step or action is registered without a name.
	ErrEmptyName = errors.New("name cannot be empty")

	// ErrPoolNotBound is wrapped by PoolNotBoundError.
	ErrPoolNotBound = errors.New("worker pool not bound")
)

// NotFoundError is returned when a named step or action is absent.
type NotFoundError struct {
	Kind string
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %q not found", e.Kind, e.Name)
}

// DuplicateNameError is returned when a name is already taken.
type DuplicateNameError struct {
	Kind string
	Name string
}

func (e *DuplicateNameError) Error() string {
	return fmt.Sprintf("%s %q already registered", e.Kind, e.Name)
}

// AnchorNotFoundError is returned when an insertion anchor is absent.
type AnchorNotFoundError struct {
	Anchor string
}

func (e *AnchorNotFoundError) Error() string {
	return fmt.Sprintf("anchor %q not found", e.Anchor)
}

// PoolNotBoundError is returned when a worker pool operation runs before
// the server has bound its listener and created the pool.
type PoolNotBoundError struct {
	Op string
}

func (e *PoolNotBoundError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, ErrPoolNotBound)
}

func (e *PoolNotBoundError) Unwrap() error {
	return ErrPoolNotBound
}

// HTTPError is an error carrying the HTTP status the response should use.
// Steps return it to short-circuit with a specific status.
type HTTPError struct {
	StatusCode int
	Message    string
	// Location is set for redirects.
	Location string
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%d %s", e.StatusCode, http.StatusText(e.StatusCode))
	}
	return fmt.Sprintf("%d %s", e.StatusCode, e.Message)
}

// NewHTTPError creates an HTTPError using the standard status text as message
// when msg is empty.
func NewHTTPError(status int, msg string) *HTTPError {
	if msg == "" {
		msg = http.StatusText(status)
	}
	return &HTTPError{StatusCode: status, Message: msg}
}

// PanicError wraps a value recovered from a panicking step or job.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("panic: %v", e.Value)
}

// IsNotFound reports whether err is a NotFoundError.
func IsNotFound(err error) bool {
	var e *NotFoundError
	return errors.As(err, &e)
}

// IsDuplicateName reports whether err is a DuplicateNameError.
func IsDuplicateName(err error) bool {
	var e *DuplicateNameError
	return errors.As(err, &e)
}

// IsAnchorNotFound reports whether err is an AnchorNotFoundError.
func IsAnchorNotFound(err error) bool {
	var e *AnchorNotFoundError
	return errors.As(err, &e)
}

// StatusCode returns the HTTP status an error maps to: the HTTPError status
// when there is one, 500 otherwise.
func StatusCode(err error) int {
	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode > 0 {
		return he.StatusCode
	}
	return http.StatusInternalServerError
}
