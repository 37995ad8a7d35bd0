// Package result holds the values API endpoints return and writes them out as
// HTTP responses. Every constructor takes an optional internal message, given
// as a format string followed by its arguments, that is logged but never sent
// to the client.
package result

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// ErrorResponse is the body of every error sent as JSON.
type ErrorResponse struct {
	Error  string `json:"error"`
	Status int    `json:"status"`
}

type bodyKind int

const (
	bodyJSON bodyKind = iota
	bodyText
	bodyRaw
)

// Result is the outcome of an endpoint. Status 0 means it was never filled in.
type Result struct {
	Status      int
	IsErr       bool
	InternalMsg string

	kind        bodyKind
	body        interface{}
	contentType string
	hdrs        http.Header

	// set by Encode.
	encoded []byte
}

// sprintf formats only when there are arguments, so a message that contains
// a bare '%' survives unchanged.
func sprintf(format string, v []interface{}) string {
	if len(v) == 0 {
		return format
	}
	return fmt.Sprintf(format, v...)
}

// internal builds the internal message from the variadic args accepted by the
// constructors, falling back to def.
func internal(def string, msg []interface{}) string {
	if len(msg) == 0 {
		return def
	}
	format, ok := msg[0].(string)
	if !ok {
		return fmt.Sprint(msg...)
	}
	return sprintf(format, msg[1:])
}

// OK is an HTTP-200 with body encoded as JSON.
func OK(body interface{}, internalMsg ...interface{}) Result {
	return Response(http.StatusOK, body, internal("OK", internalMsg))
}

// Created is an HTTP-201 with body encoded as JSON.
func Created(body interface{}, internalMsg ...interface{}) Result {
	return Response(http.StatusCreated, body, internal("created", internalMsg))
}

func BadRequest(userMsg string, internalMsg ...interface{}) Result {
	return Err(http.StatusBadRequest, userMsg, internal("bad request", internalMsg))
}

func Conflict(userMsg string, internalMsg ...interface{}) Result {
	return Err(http.StatusConflict, userMsg, internal("conflict", internalMsg))
}

func NotFound(internalMsg ...interface{}) Result {
	return Err(http.StatusNotFound, "The requested resource was not found", internal("not found", internalMsg))
}

// MethodNotAllowed names the method and path that were refused.
func MethodNotAllowed(req *http.Request, internalMsg ...interface{}) Result {
	userMsg := fmt.Sprintf("Method %s is not allowed for %s", req.Method, req.URL.Path)
	return Err(http.StatusMethodNotAllowed, userMsg, internal("method not allowed", internalMsg))
}

// Unauthorized is an HTTP-401 carrying a bearer challenge. If userMsg is
// empty, a generic one is used.
func Unauthorized(userMsg string, internalMsg ...interface{}) Result {
	if userMsg == "" {
		userMsg = "You are not authorized to do that"
	}
	return Err(http.StatusUnauthorized, userMsg, internal("unauthorized", internalMsg)).
		WithHeader("WWW-Authenticate", `Bearer realm="campman"`)
}

func InternalServerError(internalMsg ...interface{}) Result {
	return Err(http.StatusInternalServerError, "An internal server error occurred", internal("internal server error", internalMsg))
}

// Response is a successful result with the given status. body is encoded as
// JSON and must not be nil unless status is http.StatusNoContent.
func Response(status int, body interface{}, internalMsg string, v ...interface{}) Result {
	return Result{
		Status:      status,
		InternalMsg: sprintf(internalMsg, v),
		kind:        bodyJSON,
		body:        body,
	}
}

// Err is an error result whose JSON body is an ErrorResponse holding userMsg.
func Err(status int, userMsg, internalMsg string, v ...interface{}) Result {
	return Result{
		Status:      status,
		IsErr:       true,
		InternalMsg: sprintf(internalMsg, v),
		kind:        bodyJSON,
		body:        ErrorResponse{Error: userMsg, Status: status},
	}
}

// TextErr is like Err but writes userMsg as plain text. It is used when JSON
// encoding itself cannot be trusted, such as after a panic.
func TextErr(status int, userMsg, internalMsg string, v ...interface{}) Result {
	return Result{
		Status:      status,
		IsErr:       true,
		InternalMsg: sprintf(internalMsg, v),
		kind:        bodyText,
		body:        userMsg,
	}
}

// File is an HTTP-200 whose body is data sent as-is with the given content
// type.
func File(contentType string, data []byte, internalMsg string, v ...interface{}) Result {
	return Result{
		Status:      http.StatusOK,
		InternalMsg: sprintf(internalMsg, v),
		kind:        bodyRaw,
		body:        data,
		contentType: contentType,
	}
}

// WithHeader returns a copy of r that also sets the given header.
func (r Result) WithHeader(name, val string) Result {
	cp := r
	cp.hdrs = r.hdrs.Clone()
	if cp.hdrs == nil {
		cp.hdrs = http.Header{}
	}
	cp.hdrs.Set(name, val)
	return cp
}

// Encode prepares the bytes of the body so that writing r cannot fail. Only
// the first successful call does any work.
func (r *Result) Encode() error {
	if r.encoded != nil || r.Status == http.StatusNoContent {
		return nil
	}

	switch r.kind {
	case bodyJSON:
		data, err := json.Marshal(r.body)
		if err != nil {
			return err
		}
		r.encoded = data
	case bodyRaw:
		data, _ := r.body.([]byte)
		r.encoded = append([]byte{}, data...)
	default:
		r.encoded = []byte(fmt.Sprintf("%v", r.body))
	}
	return nil
}

func (r Result) mediaType() string {
	switch r.kind {
	case bodyRaw:
		return r.contentType
	case bodyText:
		return "text/plain; charset=utf-8"
	default:
		return "application/json"
	}
}

// WriteResponse writes r to w. It panics if r was never populated or its body
// cannot be encoded; call Encode first to handle that case.
func (r Result) WriteResponse(w http.ResponseWriter) {
	if r.Status == 0 {
		panic("result not populated")
	}
	if err := r.Encode(); err != nil {
		panic(fmt.Sprintf("could not encode response: %s", err.Error()))
	}

	h := w.Header()
	h.Set("Content-Type", r.mediaType())
	h.Set("X-Content-Type-Options", "nosniff")
	for name, vals := range r.hdrs {
		h[name] = vals
	}

	w.WriteHeader(r.Status)
	if r.Status != http.StatusNoContent {
		w.Write(r.encoded)
	}
}
