package dispatch

import (
	"errors"
	"fmt"
	"net/http"
)

// Error is an error carrying the HTTP status it should be reported with.
type Error struct {
	Status int
	Err    error
}

// NewError returns an Error for status wrapping err. A nil err uses the
// status text.
func NewError(status int, err error) *Error {
	if err == nil {
		err = errors.New(http.StatusText(status))
	}
	return &Error{Status: status, Err: err}
}

func (e *Error) Error() string { return e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

// StatusCode implements the status interface read by StatusOf.
func (e *Error) StatusCode() int { return e.Status }

// PanicError is produced when a middleware panics.
type PanicError struct {
	Value any
	Stack []byte
}

func (e *PanicError) Error() string { return fmt.Sprintf("panic: %v", e.Value) }

func (e *PanicError) StatusCode() int { return http.StatusInternalServerError }

// Unwrap exposes the panic value when it is an error.
func (e *PanicError) Unwrap() error {
	err, _ := e.Value.(error)
	return err
}

// StatusOf reports the HTTP status for err: the StatusCode of the first
// error in the chain that has one, otherwise 500.
func StatusOf(err error) int {
	var sc interface{ StatusCode() int }
	if errors.As(err, &sc) {
		if code := sc.StatusCode(); code >= 400 && code <= 599 {
			return code
		}
	}
	return http.StatusInternalServerError
}
