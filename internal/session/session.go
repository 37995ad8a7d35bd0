// Package session owns the console's login state. The Controller is the only
// component that writes the stored bearer token; everything else reads the
// token through it.
package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dekarrin/campman/internal/apiclient"
	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/dekarrin/campman/internal/logging"
	"github.com/dekarrin/campman/internal/token"
	"github.com/dekarrin/campman/internal/users"
)

// State is the phase of the login state machine.
type State string

const (
	StateAnonymous             State = "anonymous"
	StateAuthenticating        State = "authenticating"
	StateAuthenticated         State = "authenticated"
	StatePasswordSetupRequired State = "password-setup-required"
)

// Route is a view of the console.
type Route string

const (
	RouteLogin       Route = "login"
	RouteSetPassword Route = "set-password"
	RouteCampaigns   Route = "campaigns"
	RouteUsers       Route = "users"
	RouteLogs        Route = "logs"
)

// DefaultRoute is where an authenticated user lands.
const DefaultRoute = RouteCampaigns

// AdminOnly returns whether the route requires an admin user.
func (r Route) AdminOnly() bool {
	return r == RouteUsers || r == RouteLogs
}

// Public returns whether the route is shown to users who are not logged in.
func (r Route) Public() bool {
	return r == RouteLogin || r == RouteSetPassword
}

// LoginResult is the backend's answer to a login or password set. Backends
// name the session token either "token" or "access_token".
type LoginResult struct {
	Token                 string      `json:"token"`
	AccessToken           string      `json:"access_token"`
	User                  *users.User `json:"user"`
	RequiresPasswordSetup bool        `json:"requires_password_setup"`
	SetupToken            string      `json:"setup_token"`
	Message               string      `json:"message"`
}

// BearerToken returns whichever session token the result carries.
func (lr LoginResult) BearerToken() string {
	if lr.Token != "" {
		return lr.Token
	}
	return lr.AccessToken
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type passwordSet struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

type Options struct {
	API    apiclient.Requester
	Store  *token.Store
	Logger *slog.Logger

	// Now gives the current time for expiry checks. Defaults to time.Now.
	Now func() time.Time
}

// Controller runs login, logout, and password setup, and holds the token and
// user of the current session.
type Controller struct {
	api   apiclient.Requester
	store *token.Store
	log   *slog.Logger
	now   func() time.Time

	mtx        sync.Mutex
	state      State
	tok        string
	user       *users.User
	setupToken string
	redirect   Route
}

func New(opts Options) *Controller {
	c := &Controller{
		api:   opts.API,
		store: opts.Store,
		log:   logging.OrDiscard(opts.Logger),
		now:   opts.Now,
		state: StateAnonymous,
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

// SetAPI sets the requester used to reach the backend. The request client
// needs the controller as its token source, so one of the two is always
// finished after the other is built.
func (c *Controller) SetAPI(api apiclient.Requester) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.api = api
}

// Token gives the bearer token of the current session, or the empty string if
// there is none. A token found to be expired is discarded and the session
// ends.
func (c *Controller) Token(ctx context.Context) (string, error) {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.tok == "" {
		return "", nil
	}
	if token.IsExpired(c.tok, c.now()) {
		c.log.Info("session token expired")
		c.endLocked(ctx)
		return "", nil
	}
	return c.tok, nil
}

func (c *Controller) State() State {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.state
}

// User returns the user of the current session.
func (c *Controller) User() (users.User, bool) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.user == nil {
		return users.User{}, false
	}
	return *c.user, true
}

// IsAdmin returns whether the session belongs to an admin.
func (c *Controller) IsAdmin() bool {
	u, ok := c.User()
	return ok && u.IsAdmin
}

// SetupToken returns the one-time identity token given by a login that
// requires a password to be set, if the backend provided one.
func (c *Controller) SetupToken() string {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	return c.setupToken
}

// Redirect returns the route the console should move to as a result of the
// last session change, and clears it. The empty Route means stay put.
func (c *Controller) Redirect() Route {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	r := c.redirect
	c.redirect = ""
	return r
}

// Gate returns the route to actually show when route is requested. Users who
// are not logged in only see public routes and are otherwise sent to login.
// Admin-only routes send non-admins to the default route.
func (c *Controller) Gate(route Route) Route {
	c.mtx.Lock()
	defer c.mtx.Unlock()

	if c.state != StateAuthenticated {
		if route.Public() {
			return route
		}
		if c.state == StatePasswordSetupRequired {
			return RouteSetPassword
		}
		return RouteLogin
	}

	if route.Public() {
		return DefaultRoute
	}
	if route.AdminOnly() && (c.user == nil || !c.user.IsAdmin) {
		return DefaultRoute
	}
	return route
}

// Init restores a session from the stored token. A missing or expired token
// starts the console anonymous. A token whose user cannot be resolved is
// treated as invalid and discarded.
func (c *Controller) Init(ctx context.Context) error {
	tok, err := c.store.Read(ctx)
	if err != nil {
		c.log.Warn("could not read stored token", "error", err)
		c.mtx.Lock()
		c.state = StateAnonymous
		c.mtx.Unlock()
		return nil
	}

	if tok == "" {
		c.log.Debug("no stored session")
		return nil
	}

	if token.IsExpired(tok, c.now()) {
		c.log.Info("stored session token has expired")
		c.mtx.Lock()
		c.endLocked(ctx)
		c.redirect = ""
		c.mtx.Unlock()
		return nil
	}

	c.mtx.Lock()
	c.tok = tok
	c.state = StateAuthenticating
	c.mtx.Unlock()

	u, err := c.fetchMe(ctx)
	if err != nil {
		c.log.Warn("stored session token rejected", "error", err)
		c.mtx.Lock()
		c.endLocked(ctx)
		c.redirect = ""
		c.mtx.Unlock()
		return nil
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.user = &u
	c.state = StateAuthenticated
	c.log.Info("restored session", "user", u.Email)
	return nil
}

// Login authenticates with email and password. On success the session is
// authenticated, unless the backend requires a password to be set first, in
// which case the state becomes StatePasswordSetupRequired and no token is
// stored. On failure the session stays anonymous.
func (c *Controller) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return cmerr.Validation("Email and password are required")
	}

	c.mtx.Lock()
	c.state = StateAuthenticating
	api := c.api
	c.mtx.Unlock()

	var res LoginResult
	err := api.Post(ctx, "auth/login", credentials{Email: email, Password: password}, &res, apiclient.Anonymous())
	if err != nil {
		c.setState(StateAnonymous)
		return translate(err, "Login failed")
	}

	if res.RequiresPasswordSetup {
		c.mtx.Lock()
		c.state = StatePasswordSetupRequired
		c.setupToken = res.SetupToken
		c.redirect = RouteSetPassword
		c.mtx.Unlock()
		c.log.Info("password setup required", "email", email)
		return nil
	}

	tok := res.BearerToken()
	if tok == "" {
		c.setState(StateAnonymous)
		return cmerr.WithConsole("Login failed: the server did not return a session", "login response has no token", cmerr.ErrBackend)
	}

	return c.establish(ctx, tok, res.User)
}

// SetPassword exchanges a one-time identity token and a new password for a
// session. If identityToken is empty, the token from the last login that
// required setup is used. If the backend sets the password but does not start
// a session, the console is sent back to login.
func (c *Controller) SetPassword(ctx context.Context, identityToken, newPassword string) error {
	if identityToken == "" {
		identityToken = c.SetupToken()
	}
	if identityToken == "" {
		return cmerr.Validation("A password setup token is required")
	}
	if newPassword == "" {
		return cmerr.Validation("Password is required")
	}

	c.mtx.Lock()
	api := c.api
	c.mtx.Unlock()

	var res LoginResult
	err := api.Post(ctx, "auth/set-password", passwordSet{Token: identityToken, Password: newPassword}, &res, apiclient.Anonymous())
	if err != nil {
		return translate(err, "Failed to set password")
	}

	tok := res.BearerToken()
	if tok == "" {
		c.mtx.Lock()
		c.state = StateAnonymous
		c.setupToken = ""
		c.redirect = RouteLogin
		c.mtx.Unlock()
		c.log.Info("password set without a session")
		return nil
	}

	return c.establish(ctx, tok, res.User)
}

// Logout ends the session. The backend is told on a best-effort basis; the
// local session always ends, and the console is sent to login.
func (c *Controller) Logout(ctx context.Context) {
	c.mtx.Lock()
	hasToken := c.tok != ""
	api := c.api
	c.mtx.Unlock()

	if hasToken {
		if err := api.Post(ctx, "auth/logout", nil, nil); err != nil {
			c.log.Warn("logout notification failed", "error", err)
		}
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.endLocked(ctx)
	c.log.Info("logged out")
}

// Invalidate ends the session because the backend no longer accepts it, such
// as after a 401. Nothing is sent to the backend.
func (c *Controller) Invalidate(ctx context.Context) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	if c.state == StateAnonymous && c.tok == "" {
		return
	}
	c.log.Info("session invalidated by server")
	c.endLocked(ctx)
}

// CheckError ends the session if err shows the backend rejected its
// credentials. It returns whether it did.
func (c *Controller) CheckError(ctx context.Context, err error) bool {
	if err == nil || !errors.Is(err, cmerr.ErrUnauthorized) {
		return false
	}
	c.Invalidate(ctx)
	return true
}

func (c *Controller) establish(ctx context.Context, tok string, u *users.User) error {
	c.mtx.Lock()
	c.tok = tok
	c.setupToken = ""
	c.mtx.Unlock()

	if err := c.store.Save(ctx, tok); err != nil {
		c.log.Warn("session will not survive restart", "error", err)
	}

	var resolved users.User
	if u != nil {
		resolved = *u
	} else {
		var err error
		resolved, err = c.fetchMe(ctx)
		if err != nil {
			c.mtx.Lock()
			c.endLocked(ctx)
			c.redirect = ""
			c.mtx.Unlock()
			return translate(err, "Could not load your account")
		}
	}

	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.user = &resolved
	c.state = StateAuthenticated
	c.redirect = DefaultRoute
	c.log.Info("logged in", "user", resolved.Email, "admin", resolved.IsAdmin)
	return nil
}

func (c *Controller) fetchMe(ctx context.Context) (users.User, error) {
	c.mtx.Lock()
	api := c.api
	c.mtx.Unlock()

	var resp struct {
		User    *users.User `json:"user"`
		ID      int         `json:"id"`
		Email   string      `json:"email"`
		IsAdmin bool        `json:"is_admin"`
	}
	if err := api.Get(ctx, "auth/me", &resp); err != nil {
		return users.User{}, err
	}

	if resp.User != nil {
		return *resp.User, nil
	}
	if resp.Email != "" {
		return users.User{ID: resp.ID, Email: resp.Email, IsAdmin: resp.IsAdmin}, nil
	}
	return users.User{}, fmt.Errorf("current user response has no user")
}

// endLocked clears the session. c.mtx must be held.
func (c *Controller) endLocked(ctx context.Context) {
	if err := c.store.Clear(ctx); err != nil {
		c.log.Warn("could not clear stored token", "error", err)
	}
	c.tok = ""
	c.user = nil
	c.setupToken = ""
	c.state = StateAnonymous
	c.redirect = RouteLogin
}

func (c *Controller) setState(s State) {
	c.mtx.Lock()
	defer c.mtx.Unlock()
	c.state = s
}

func translate(err error, fallback string) error {
	msg := apiclient.Message(err)
	switch {
	case apiclient.Status(err) == http.StatusForbidden:
		return cmerr.Forbidden(msg, err)
	case msg != "":
		return cmerr.WithConsole(msg, "", err)
	default:
		return cmerr.WithConsole(fallback, "", err)
	}
}
