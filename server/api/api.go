// Package api provides HTTP API endpoints for the campman development backend.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"runtime/debug"
	"strconv"
	"strings"
	"time"

	"github.com/dekarrin/campman/internal/logging"
	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/middle"
	"github.com/dekarrin/campman/server/result"
	"github.com/dekarrin/campman/server/serr"
	"github.com/dekarrin/campman/server/service"
	"github.com/go-chi/chi/v5"
)

const (
	// PathPrefix is the prefix of all paths in the API. Routers should mount
	// a sub-router that routes all requests to the API at this path.
	PathPrefix = "/api"
)

// requireIDParam gets the ID of the main entity being referenced in the URI and
// returns it. It panics if the key is not there or is not parsable.
func requireIDParam(r *http.Request) int {
	id, err := getURLParam(r, "id", strconv.Atoi)
	if err != nil {
		panic(err.Error())
	}
	return id
}

func getURLParam[E any](r *http.Request, key string, parse func(string) (E, error)) (val E, err error) {
	valStr := chi.URLParam(r, key)
	if valStr == "" {
		// either it does not exist or it is nil; treat both as the same and
		// return an error
		return val, fmt.Errorf("parameter does not exist")
	}

	val, err = parse(valStr)
	if err != nil {
		return val, serr.New("", serr.ErrBadArgument)
	}
	return val, nil
}

// API holds parameters for endpoints needed to run and a service layer that
// will perform most of the actual logic. To use API, create one and then
// assign the result of its HTTP* methods as handlers to a router or some other
// kind of server mux.
//
// This is exclusively an API for serving external requests. For direct
// programmatic access into the backend via Go code, see [service.Service].
type API struct {
	// Backend is the service that the API calls to perform the requested
	// actions.
	Backend service.Service

	// UnauthDelay is the amount of time that a request will pause before
	// responding with an HTTP-403, HTTP-401, or HTTP-500 to deprioritize such
	// requests from processing and I/O.
	UnauthDelay time.Duration

	// Secret is the secret used to sign JWT tokens.
	Secret []byte

	// Logger receives one line per request. If nil, nothing is logged.
	Logger *slog.Logger
}

// v must be a pointer to a type. Will return error such that
// errors.Is(err, serr.ErrBodyUnmarshal) returns true if it is problem decoding
// the JSON itself.
func parseJSON(req *http.Request, v interface{}) error {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))

	if strings.ToLower(mediaType) != "application/json" {
		return fmt.Errorf("request content-type is not application/json")
	}

	bodyData, err := io.ReadAll(req.Body)
	if err != nil {
		return fmt.Errorf("could not read request body: %w", err)
	}
	defer func() {
		req.Body.Close()
		req.Body = io.NopCloser(bytes.NewBuffer(bodyData))
	}()

	err = json.Unmarshal(bodyData, v)
	if err != nil {
		return serr.New("malformed JSON in request", err, serr.ErrBodyUnmarshal)
	}

	return nil
}

// isMultipart returns whether the request body is multipart form data.
func isMultipart(req *http.Request) bool {
	mediaType, _, _ := mime.ParseMediaType(req.Header.Get("Content-Type"))
	return strings.ToLower(mediaType) == "multipart/form-data"
}

// EndpointFunc is the signature of every API endpoint.
type EndpointFunc func(req *http.Request) result.Result

// Endpoint turns ep into an http.HandlerFunc that logs the request, recovers
// from panics, and delays unauthorized and failed responses.
func (api API) Endpoint(ep EndpointFunc) http.HandlerFunc {
	return httpEndpoint(api.UnauthDelay, logging.OrDiscard(api.Logger), ep)
}

func httpEndpoint(unauthDelay time.Duration, lg *slog.Logger, ep EndpointFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		defer panicTo500(w, req, lg)
		r := ep(req)

		// if this hasn't been properly created, output error directly and do not
		// try to read properties
		if r.Status == 0 {
			logHttpResponse(lg, slog.LevelError, req, http.StatusInternalServerError, "endpoint result was never populated")
			http.Error(w, "An internal server error occurred", http.StatusInternalServerError)
			return
		}

		// encode up front; WriteResponse panics if it fails there
		if err := r.Encode(); err != nil {
			newResp := result.Err(http.StatusInternalServerError, "An internal server error occurred", "could not marshal JSON response: "+err.Error())
			logHttpResponse(lg, slog.LevelError, req, newResp.Status, newResp.InternalMsg)
			newResp.WriteResponse(w)
			return
		}

		if r.IsErr {
			logHttpResponse(lg, slog.LevelError, req, r.Status, r.InternalMsg)
		} else {
			logHttpResponse(lg, slog.LevelInfo, req, r.Status, r.InternalMsg)
		}

		if r.Status == http.StatusUnauthorized || r.Status == http.StatusForbidden || r.Status == http.StatusInternalServerError {
			// if it's one of these statusus, either the user is improperly
			// logging in or tried to access a forbidden resource, both of which
			// should force the wait time before responding.
			time.Sleep(unauthDelay)
		}

		r.WriteResponse(w)
	}
}

func panicTo500(w http.ResponseWriter, req *http.Request, lg *slog.Logger) (panicVal interface{}) {
	if panicErr := recover(); panicErr != nil {
		msg := fmt.Sprintf("panic: %v\nSTACK TRACE: %s", panicErr, string(debug.Stack()))
		logHttpResponse(lg, slog.LevelError, req, http.StatusInternalServerError, msg)
		result.TextErr(
			http.StatusInternalServerError,
			"An internal server error occurred",
			msg,
		).WriteResponse(w)
		return true
	}
	return false
}

func logHttpResponse(lg *slog.Logger, level slog.Level, req *http.Request, respStatus int, msg string) {
	lg.Log(req.Context(), level, msg,
		"remote", remoteIP(req),
		"method", req.Method,
		"path", req.URL.Path,
		"status", respStatus,
	)
}

// remoteIP gives the address of the client without the ephemeral port.
func remoteIP(req *http.Request) string {
	host, _, err := net.SplitHostPort(req.RemoteAddr)
	if err != nil {
		return req.RemoteAddr
	}
	return host
}

// errResult converts an error from the service layer into the Result that
// reports it. The message the service gave the error is shown to the client.
func errResult(err error, internalMsg string) result.Result {
	internal := internalMsg + ": " + err.Error()

	switch status := serr.Status(err); status {
	case http.StatusInternalServerError:
		return result.InternalServerError(internal)
	case http.StatusUnauthorized:
		return result.Unauthorized(serr.Message(err, "Invalid credentials"), internal)
	default:
		return result.Err(status, serr.Message(err, err.Error()), internal)
	}
}

// activity is an action being recorded to the activity log. It is started
// when the endpoint begins work and finished once the outcome is known.
type activity struct {
	api     API
	req     *http.Request
	start   time.Time
	entry   dao.LogEntry
	details map[string]interface{}
}

func (api API) startActivity(req *http.Request, action, resourceType string) *activity {
	user := middle.User(req)
	return &activity{
		api:   api,
		req:   req,
		start: time.Now(),
		entry: dao.LogEntry{
			UserID:       user.ID,
			UserEmail:    user.Email,
			Action:       action,
			ResourceType: resourceType,
			IPAddress:    remoteIP(req),
		},
	}
}

func (a *activity) by(u dao.User) *activity {
	a.entry.UserID = u.ID
	a.entry.UserEmail = u.Email
	return a
}

func (a *activity) resource(id int) *activity {
	a.entry.ResourceID = strconv.Itoa(id)
	return a
}

func (a *activity) detail(key string, val interface{}) *activity {
	if a.details == nil {
		a.details = map[string]interface{}{}
	}
	a.details[key] = val
	return a
}

// finish records the activity with a status derived from r and returns r.
// Failing to record does not change the response.
func (a *activity) finish(r result.Result) result.Result {
	a.entry.Status = service.StatusSuccess
	if r.IsErr {
		a.entry.Status = service.StatusError
		a.detail("status_code", r.Status)
	}

	dur := float64(time.Since(a.start).Microseconds()) / 1000
	a.entry.DurationMS = &dur

	if len(a.details) > 0 {
		detailBytes, err := json.Marshal(a.details)
		if err == nil {
			a.entry.Details = string(detailBytes)
		}
	}

	// the request may already be cancelled; the record should still land
	ctx := context.WithoutCancel(a.req.Context())
	if _, err := a.api.Backend.RecordActivity(ctx, a.entry); err != nil {
		logging.OrDiscard(a.api.Logger).Warn("could not record activity", "action", a.entry.Action, "error", err)
	}
	return r
}
