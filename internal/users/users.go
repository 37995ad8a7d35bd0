// Package users manages the roster of accounts that may log in to the
// console. Every operation here requires an admin session.
package users

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/mail"
	"strings"

	"github.com/dekarrin/campman/internal/apiclient"
	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/dekarrin/campman/internal/logging"
)

// User is an account known to the backend. Users created from the console
// have no password until they complete the first-login flow.
type User struct {
	ID      int    `json:"id"`
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Role returns a short label for the user's capability.
func (u User) Role() string {
	if u.IsAdmin {
		return "admin"
	}
	return "user"
}

type createRequest struct {
	Email   string `json:"email"`
	IsAdmin bool   `json:"is_admin"`
}

// Client performs user operations against the backend.
type Client struct {
	api apiclient.Requester
	log *slog.Logger
}

func NewClient(api apiclient.Requester, lg *slog.Logger) *Client {
	return &Client{api: api, log: logging.OrDiscard(lg)}
}

func (c *Client) List(ctx context.Context) ([]User, error) {
	var all []User
	if err := c.api.Get(ctx, "users", &all); err != nil {
		return nil, translate(err, "Failed to load users")
	}
	return all, nil
}

// Create adds a user with the given email. The address is checked locally and
// no request is made if it is not valid.
func (c *Client) Create(ctx context.Context, email string, isAdmin bool) (User, error) {
	email, err := ValidateEmail(email)
	if err != nil {
		return User{}, err
	}

	var created User
	req := createRequest{Email: email, IsAdmin: isAdmin}
	if err := c.api.Post(ctx, "users", req, &created); err != nil {
		return User{}, translate(err, "Failed to create user")
	}

	c.log.Info("created user", "id", created.ID, "email", created.Email, "admin", created.IsAdmin)
	return created, nil
}

func (c *Client) Delete(ctx context.Context, id int) error {
	if err := c.api.Delete(ctx, fmt.Sprintf("users/%d", id), nil); err != nil {
		return translate(err, "Failed to delete user")
	}
	c.log.Info("deleted user", "id", id)
	return nil
}

// ValidateEmail checks that s is a bare email address with a dotted domain
// and returns it trimmed of surrounding space.
func ValidateEmail(s string) (string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", cmerr.Validation("Email is required")
	}

	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return "", cmerr.Validation("%q is not a valid email address", s)
	}

	at := strings.LastIndex(s, "@")
	domain := s[at+1:]
	if dot := strings.Index(domain, "."); dot <= 0 || dot == len(domain)-1 {
		return "", cmerr.Validation("%q is not a valid email address", s)
	}

	return s, nil
}

func translate(err error, fallback string) error {
	msg := apiclient.Message(err)

	switch apiclient.Status(err) {
	case http.StatusForbidden:
		return cmerr.Forbidden("", err)
	case 0:
		return cmerr.WithConsole(fallback, "", err)
	default:
		if msg == "" {
			return cmerr.WithConsole(fallback, "", err)
		}
		return cmerr.WithConsole(fallback+": "+msg, "", err)
	}
}
