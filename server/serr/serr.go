// Package serr holds the errors returned by the campman development backend.
// Service functions return an Error carrying the message the client should
// see, plus sentinel causes that say what kind of failure it was. The API
// layer turns those causes into HTTP statuses with Status.
package serr

import (
	"errors"
	"net/http"
)

var (
	ErrBadCredentials = errors.New("the supplied email/password combination is incorrect")
	ErrPasswordNotSet = errors.New("the account has no password yet")
	ErrBadToken       = errors.New("the token is invalid or expired")
	ErrPermissions    = errors.New("you don't have permission to do that")
	ErrNotFound       = errors.New("the requested entity could not be found")
	ErrAlreadyExists  = errors.New("resource with same identifying information already exists")
	ErrConflict       = errors.New("the request conflicts with an existing resource")
	ErrDB             = errors.New("an error occured with the DB")
	ErrBadArgument    = errors.New("one or more of the arguments is invalid")
	ErrBodyUnmarshal  = errors.New("malformed data in request")
)

// Error is a message for the client plus the errors that caused it. errors.Is
// on an Error matches any of its causes. Create one with New or WrapDB.
type Error struct {
	msg   string
	cause []error
}

// Error gives the message followed by the first cause, or just whichever of
// the two is present.
func (e Error) Error() string {
	switch {
	case len(e.cause) == 0:
		return e.msg
	case e.msg == "":
		return e.cause[0].Error()
	default:
		return e.msg + ": " + e.cause[0].Error()
	}
}

// Message returns only the message the Error was created with.
func (e Error) Message() string {
	return e.msg
}

func (e Error) Unwrap() []error {
	if len(e.cause) > 0 {
		return e.cause
	}
	return nil
}

// New creates an Error with the given client message and causes.
func New(msg string, causes ...error) Error {
	err := Error{msg: msg}
	if len(causes) > 0 {
		err.cause = make([]error, len(causes))
		copy(err.cause, causes)
	}
	return err
}

// WrapDB creates an Error caused by both err and ErrDB. msg may be empty.
func WrapDB(msg string, err error) Error {
	return New(msg, err, ErrDB)
}

// statuses is checked in order; the first cause err matches decides.
var statuses = []struct {
	cause  error
	status int
}{
	{ErrBadCredentials, http.StatusUnauthorized},
	{ErrBadToken, http.StatusUnauthorized},
	{ErrPermissions, http.StatusForbidden},
	{ErrConflict, http.StatusConflict},
	{ErrNotFound, http.StatusNotFound},
	{ErrAlreadyExists, http.StatusBadRequest},
	{ErrBadArgument, http.StatusBadRequest},
	{ErrBodyUnmarshal, http.StatusBadRequest},
}

// Status gives the HTTP status that reports err. Anything not caused by one
// of the client-facing errors of this package, ErrDB included, is a 500.
func Status(err error) int {
	if errors.Is(err, ErrDB) {
		return http.StatusInternalServerError
	}
	for _, s := range statuses {
		if errors.Is(err, s.cause) {
			return s.status
		}
	}
	return http.StatusInternalServerError
}

// Message gives the client message of the outermost Error in err's chain, or
// fallback if there is none or it has no message.
func Message(err error, fallback string) string {
	var se Error
	if errors.As(err, &se) && se.msg != "" {
		return se.msg
	}
	return fallback
}
