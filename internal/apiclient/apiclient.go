// Package apiclient provides the HTTP client every campman component uses to
// talk to the campaign backend. It attaches the current bearer token to each
// request and turns non-2xx responses into *Error values.
package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/dekarrin/campman/internal/logging"
	"github.com/dekarrin/campman/internal/version"
)

// DefaultTimeout is used when Options.Timeout is not set.
const DefaultTimeout = 30 * time.Second

// TokenSource gives the bearer token to attach to a request. An empty string
// means no token is available and the request is sent unauthenticated.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenFunc adapts an ordinary function to a TokenSource.
type TokenFunc func(ctx context.Context) (string, error)

func (f TokenFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

type Options struct {
	// BaseURL is the root every request path is joined to, such as
	// "http://localhost:8080/api".
	BaseURL string

	// Tokens gives the bearer token for each request. If nil, every request is
	// sent unauthenticated.
	Tokens TokenSource

	Logger *slog.Logger

	// Timeout bounds each request when HTTPClient is not given. Defaults to
	// DefaultTimeout.
	Timeout time.Duration

	HTTPClient *http.Client

	// UserAgent defaults to "campman/<version>".
	UserAgent string
}

// Client issues requests against a single backend.
type Client struct {
	base   *url.URL
	tokens TokenSource
	log    *slog.Logger
	http   *http.Client
	ua     string
}

func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required")
	}
	base, err := url.Parse(opts.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL: scheme must be http or https")
	}

	c := &Client{
		base:   base,
		tokens: opts.Tokens,
		log:    logging.OrDiscard(opts.Logger),
		http:   opts.HTTPClient,
		ua:     opts.UserAgent,
	}
	if c.http == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		c.http = &http.Client{Timeout: timeout}
	}
	if c.ua == "" {
		c.ua = "campman/" + version.Current
	}

	return c, nil
}

// SetTokens replaces the source of bearer tokens. It exists so a client can
// be constructed before the session controller that owns the token.
func (c *Client) SetTokens(src TokenSource) {
	c.tokens = src
}

// BaseURL returns the URL that request paths are resolved against.
func (c *Client) BaseURL() string {
	return c.base.String()
}

type requestOptions struct {
	query     url.Values
	anonymous bool
}

// RequestOption modifies a single request.
type RequestOption func(*requestOptions)

// WithQuery adds the given values as the request's query string.
func WithQuery(q url.Values) RequestOption {
	return func(ro *requestOptions) {
		ro.query = q
	}
}

// Anonymous sends the request without a bearer token even if one is
// available.
func Anonymous() RequestOption {
	return func(ro *requestOptions) {
		ro.anonymous = true
	}
}

// Get sends a GET to path and decodes a JSON response into out. If out is nil
// the response body is discarded.
func (c *Client) Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodGet, path, nil, out, opts)
}

// Post sends body as JSON to path. A nil body sends no content.
func (c *Client) Post(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPost, path, body, out, opts)
}

func (c *Client) Put(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodPut, path, body, out, opts)
}

func (c *Client) Delete(ctx context.Context, path string, out interface{}, opts ...RequestOption) error {
	return c.doJSON(ctx, http.MethodDelete, path, nil, out, opts)
}

// PostMultipart sends form as a multipart/form-data body to path.
func (c *Client) PostMultipart(ctx context.Context, path string, form *FormData, out interface{}, opts ...RequestOption) error {
	if form == nil {
		return fmt.Errorf("form data is required")
	}
	body, contentType, err := form.encode()
	if err != nil {
		return fmt.Errorf("encode form: %w", err)
	}
	return c.do(ctx, http.MethodPost, path, bytes.NewReader(body), contentType, out, opts)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body, out interface{}, opts []RequestOption) error {
	var rd io.Reader
	var contentType string
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
		contentType = "application/json"
	}
	return c.do(ctx, method, path, rd, contentType, out, opts)
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}, opts []RequestOption) error {
	var ro requestOptions
	for _, o := range opts {
		o(&ro)
	}

	u := c.base.JoinPath(path)
	if len(ro.query) > 0 {
		u.RawQuery = ro.query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.ua)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	if !ro.anonymous && c.tokens != nil {
		tok, err := c.tokens.Token(ctx)
		if err != nil {
			return fmt.Errorf("get token: %w", err)
		}
		if tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.log.Debug("request failed", "method", method, "path", path, "error", err)
		return cmerr.New(fmt.Sprintf("%s %s", method, path), cmerr.ErrBackend, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return cmerr.New(fmt.Sprintf("%s %s: read response", method, path), cmerr.ErrBackend, err)
	}

	c.log.Debug("request complete",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return newError(resp.StatusCode, respBody)
	}

	if out == nil || len(bytes.TrimSpace(respBody)) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return cmerr.New(fmt.Sprintf("%s %s: decode response", method, path), cmerr.ErrBackend, err)
	}
	return nil
}

// Error is returned for any response with a non-2xx status. Message is the
// "error" or "message" field of a JSON payload, and is empty if the payload
// had neither. Body holds the payload exactly as the backend sent it.
type Error struct {
	Status  int
	Message string
	Body    []byte
}

func newError(status int, body []byte) *Error {
	e := &Error{Status: status, Body: body}

	var payload struct {
		Error   *string `json:"error"`
		Message *string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error != nil && *payload.Error != "" {
			e.Message = *payload.Error
		} else if payload.Message != nil && *payload.Message != "" {
			e.Message = *payload.Message
		}
	}

	return e
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.Status)
	}
	return fmt.Sprintf("HTTP-%d: %s", e.Status, msg)
}

// Unwrap gives the cmerr sentinel that corresponds to the status code.
func (e *Error) Unwrap() error {
	switch e.Status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return cmerr.ErrValidation
	case http.StatusUnauthorized:
		return cmerr.ErrUnauthorized
	case http.StatusForbidden:
		return cmerr.ErrForbidden
	case http.StatusNotFound:
		return cmerr.ErrNotFound
	case http.StatusConflict:
		return cmerr.ErrConflict
	default:
		return cmerr.ErrBackend
	}
}

// Status returns the HTTP status of err if it is or wraps an *Error, and 0
// otherwise.
func Status(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// Message returns the backend-provided message of err if it is or wraps an
// *Error that has one. Otherwise it returns the empty string.
func Message(err error) string {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Message
	}
	return ""
}

// IsStatus returns whether err is an *Error with the given status.
func IsStatus(err error, status int) bool {
	return Status(err) == status
}

// Requester is the set of request methods that Client provides. Components
// depend on it rather than on *Client.
type Requester interface {
	Get(ctx context.Context, path string, out interface{}, opts ...RequestOption) error
	Post(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error
	Put(ctx context.Context, path string, body, out interface{}, opts ...RequestOption) error
	Delete(ctx context.Context, path string, out interface{}, opts ...RequestOption) error
	PostMultipart(ctx context.Context, path string, form *FormData, out interface{}, opts ...RequestOption) error
}
