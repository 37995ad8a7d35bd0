// Package middle contains middleware for use with the campman development
// backend.
package middle

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/result"
	"github.com/dekarrin/campman/server/token"
)

// Middleware is a function that takes a handler and returns a new handler which
// wraps the given one and provides some additional functionality.
type Middleware func(next http.Handler) http.Handler

// Level is how much a route requires of the caller's session.
type Level int

const (
	// AuthOptional lets every request through, resolving the user when a valid
	// token is present.
	AuthOptional Level = iota

	// AuthUser rejects requests without a valid token with an HTTP-401.
	AuthUser

	// AuthAdmin is AuthUser plus an HTTP-403 for users who are not admins.
	AuthAdmin
)

type ctxKey struct{}

// session is what an authenticated request carries in its context.
type session struct {
	loggedIn bool
	user     dao.User
}

// Auth resolves bearer tokens to users. The zero value is not usable; Users
// and Secret must be set.
type Auth struct {
	Users  dao.UserRepository
	Secret []byte

	// UnauthDelay is waited before any rejection is written.
	UnauthDelay time.Duration
}

// Require returns middleware that enforces level on every request and makes
// the resolved user available through User and LoggedIn.
func (a Auth) Require(level Level) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			s, rejection := a.resolve(req, level)
			if rejection != nil {
				time.Sleep(a.UnauthDelay)
				rejection.WriteResponse(w)
				return
			}

			ctx := context.WithValue(req.Context(), ctxKey{}, s)
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	}
}

func (a Auth) resolve(req *http.Request, level Level) (session, *result.Result) {
	var s session

	tok, err := token.Get(req)
	if err != nil {
		if level == AuthOptional {
			return s, nil
		}
		r := result.Unauthorized("Missing token", err.Error())
		return s, &r
	}

	u, err := token.Validate(req.Context(), tok, a.Secret, a.Users)
	if err != nil {
		if level == AuthOptional {
			return s, nil
		}
		userMsg := "Invalid token"
		if errors.Is(err, token.ErrUnknownUser) {
			userMsg = "Invalid user"
		}
		r := result.Unauthorized(userMsg, err.Error())
		return s, &r
	}

	if level == AuthAdmin && !u.IsAdmin {
		r := result.Err(http.StatusForbidden, "Admin access required", "user '%s' is not an admin", u.Email)
		return s, &r
	}

	s.loggedIn = true
	s.user = u
	return s, nil
}

// User returns the logged-in user of a request that passed through Require.
// It is the zero User if nobody is logged in.
func User(req *http.Request) dao.User {
	s, _ := req.Context().Value(ctxKey{}).(session)
	return s.user
}

// LoggedIn returns whether the request has a logged-in user.
func LoggedIn(req *http.Request) bool {
	s, _ := req.Context().Value(ctxKey{}).(session)
	return s.loggedIn
}
