// Package token issues and checks the JWTs used by the development backend.
//
// Every token is signed with a key built from the server secret, the user's
// password hash and the time of their last logout, so changing the password or
// logging out invalidates all tokens issued before.
package token

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dekarrin/campman/server/dao"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	Issuer = "cmdevd"

	// SessionLifetime is how long a login token is valid.
	SessionLifetime = 8 * time.Hour

	// SetupLifetime is how long a password setup token is valid.
	SetupLifetime = 24 * time.Hour

	purposeSetup = "password-setup"
)

// Generate creates a session token for u.
func Generate(secret []byte, u dao.User) (string, error) {
	return generate(secret, u, SessionLifetime, "")
}

// GenerateSetup creates a token that lets u set their first password. It stops
// working once a password is set.
func GenerateSetup(secret []byte, u dao.User) (string, error) {
	return generate(secret, u, SetupLifetime, purposeSetup)
}

func generate(secret []byte, u dao.User, lifetime time.Duration, purpose string) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"iss": Issuer,
		"iat": now.Unix(),
		"exp": now.Add(lifetime).Unix(),
		"sub": strconv.Itoa(u.ID),
		"jti": uuid.NewString(),
	}
	if purpose != "" {
		claims["purpose"] = purpose
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS512, claims)

	tokStr, err := tok.SignedString(signKey(secret, u))
	if err != nil {
		return "", err
	}
	return tokStr, nil
}

func signKey(secret []byte, u dao.User) []byte {
	var key []byte
	key = append(key, secret...)
	key = append(key, []byte(u.Password)...)
	key = append(key, []byte(fmt.Sprintf("%d", u.LastLogoutTime.Unix()))...)
	return key
}

// Get returns the bearer token in the Authorization header of req.
func Get(req *http.Request) (string, error) {
	authHeader := strings.TrimSpace(req.Header.Get("Authorization"))

	if authHeader == "" {
		return "", fmt.Errorf("no authorization header present")
	}

	authParts := strings.SplitN(authHeader, " ", 2)
	if len(authParts) != 2 {
		return "", fmt.Errorf("authorization header not in Bearer format")
	}

	scheme := strings.TrimSpace(strings.ToLower(authParts[0]))
	token := strings.TrimSpace(authParts[1])

	if scheme != "bearer" {
		return "", fmt.Errorf("authorization header not in Bearer format")
	}

	return token, nil
}

// ErrUnknownUser is returned when a token's subject does not exist.
var ErrUnknownUser = errors.New("subject does not exist")

// Validate checks a session token and returns the user it was issued to.
func Validate(ctx context.Context, tok string, secret []byte, db dao.UserRepository) (dao.User, error) {
	return validate(ctx, tok, secret, db, "")
}

// ValidateSetup checks a password setup token and returns the user it was
// issued to.
func ValidateSetup(ctx context.Context, tok string, secret []byte, db dao.UserRepository) (dao.User, error) {
	return validate(ctx, tok, secret, db, purposeSetup)
}

func validate(ctx context.Context, tok string, secret []byte, db dao.UserRepository, purpose string) (dao.User, error) {
	var user dao.User

	parsed, err := jwt.Parse(tok, func(t *jwt.Token) (interface{}, error) {
		// who is the user? we need this for further verification
		subj, err := t.Claims.GetSubject()
		if err != nil {
			return nil, fmt.Errorf("cannot get subject: %w", err)
		}

		id, err := strconv.Atoi(subj)
		if err != nil {
			return nil, fmt.Errorf("cannot parse subject ID: %w", err)
		}

		user, err = db.GetByID(ctx, id)
		if err != nil {
			if errors.Is(err, dao.ErrNotFound) {
				return nil, ErrUnknownUser
			}
			return nil, fmt.Errorf("subject could not be validated")
		}

		return signKey(secret, user), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS512.Alg()}), jwt.WithIssuer(Issuer), jwt.WithLeeway(time.Minute))

	if err != nil {
		return dao.User{}, err
	}

	claims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return dao.User{}, fmt.Errorf("unexpected claims type")
	}
	got, _ := claims["purpose"].(string)
	if got != purpose {
		return dao.User{}, fmt.Errorf("token purpose is %q, not %q", got, purpose)
	}

	return user, nil
}
