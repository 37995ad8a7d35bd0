// Package cmerr holds the error taxonomy used across the campman client.
// Notably, it contains the Error type, which carries a message meant for the
// operator at the console alongside a technical message and one or more
// 'cause' errors. Calling errors.Is() on an Error with any of its causes as the
// target returns true.
//
// The sentinel errors in this package classify a failure as one of the kinds
// the console treats differently: validation and conflict errors stay with the
// action that caused them, authorization errors change what the console shows,
// and everything else is reported as a backend failure.
package cmerr

import (
	"errors"
	"fmt"
)

var (
	ErrValidation   = errors.New("the submitted data is invalid")
	ErrConflict     = errors.New("the request conflicts with an existing resource")
	ErrForbidden    = errors.New("you don't have permission to do that")
	ErrUnauthorized = errors.New("not logged in or session is no longer valid")
	ErrNotFound     = errors.New("the requested resource could not be found")
	ErrBackend      = errors.New("the server could not complete the request")
)

// AdminAccessRequired is the console message used for every admin-only
// resource the client is refused.
const AdminAccessRequired = "Admin access required"

// Error is a typed error returned by campman client functions. It contains a
// technical message, an optional message to show at the console, and zero or
// more causes. errors.Is on an Error matches any of its causes.
//
// If Error has at least one cause defined, the result of calling Error.Error()
// will be its technical message with the result of calling Error() on its
// first cause appended to it.
type Error struct {
	msg     string
	console string
	cause   []error
}

// Error returns the technical message defined for the Error, concatenated with
// the result of calling Error() on its first cause if one is defined. If no
// message was defined but there is at least one cause, the first cause's
// Error() is returned.
func (e *Error) Error() string {
	if e.msg == "" && len(e.cause) > 0 {
		return e.cause[0].Error()
	}

	if len(e.cause) > 0 {
		return e.msg + ": " + e.cause[0].Error()
	}

	return e.msg
}

// Unwrap returns the causes of Error. The return value will be nil if no
// causes were defined for it.
func (e *Error) Unwrap() []error {
	if len(e.cause) > 0 {
		return e.cause
	}
	return nil
}

// ConsoleMessage returns the message that should be displayed to the operator.
// If none was set, the technical message is used.
func (e *Error) ConsoleMessage() string {
	if e.console != "" {
		return e.console
	}
	return e.Error()
}

// New creates a new Error with the given technical message, along with any
// errors it should wrap as its causes.
func New(msg string, causes ...error) *Error {
	err := &Error{msg: msg}
	if len(causes) > 0 {
		err.cause = make([]error, len(causes))
		copy(err.cause, causes)
	}
	return err
}

// WithConsole creates a new Error that has both the message to show at the
// console and the technical description of the error, plus its causes. If
// technical is empty, one is generated from the console message.
func WithConsole(console, technical string, causes ...error) *Error {
	if technical == "" {
		technical = fmt.Sprintf("console error(%q)", console)
	}
	err := New(technical, causes...)
	err.console = console
	return err
}

// Validation returns an Error that matches ErrValidation whose console message
// is built from the given format string and arguments.
func Validation(format string, a ...interface{}) *Error {
	msg := fmt.Sprintf(format, a...)
	return WithConsole(msg, "validation: "+msg, ErrValidation)
}

// Conflict returns an Error that matches ErrConflict. The server-provided
// message is shown at the console exactly as received.
func Conflict(serverMsg string, cause error) *Error {
	causes := []error{ErrConflict}
	if cause != nil {
		causes = append([]error{cause}, causes...)
	}
	return WithConsole(serverMsg, "conflict: "+serverMsg, causes...)
}

// Forbidden returns an Error that matches ErrForbidden and shows the given
// console message. If console is empty, AdminAccessRequired is used.
func Forbidden(console string, cause error) *Error {
	if console == "" {
		console = AdminAccessRequired
	}
	causes := []error{ErrForbidden}
	if cause != nil {
		causes = append([]error{cause}, causes...)
	}
	return WithConsole(console, "forbidden: "+console, causes...)
}

// ConsoleMessage gets the message to display at the console for the given
// error. If it is an Error from this package (or wraps one), the console
// message is returned. Otherwise, err.Error() is returned.
func ConsoleMessage(err error) string {
	if err == nil {
		return ""
	}
	var cmErr *Error
	if errors.As(err, &cmErr) {
		return cmErr.ConsoleMessage()
	}
	return err.Error()
}
