// Package token holds the bearer token used to authenticate against the
// campaign backend. It can persist a token, read it back, and decode it to
// check whether it has expired.
//
// Decoding never verifies the signature. The claims it returns are fit for
// display and expiry checks only, and must never be used to decide what the
// backend will allow.
package token

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/dekarrin/campman/internal/storage"
	"github.com/golang-jwt/jwt/v5"
)

// StorageKey is the fixed key the token is kept under in local storage.
const StorageKey = "token"

var ErrMalformed = errors.New("token is malformed")

// Claims is the subset of a token's claims that the client cares about. Times
// that were absent from the token are nil.
type Claims struct {
	Subject   string
	IssuedAt  *time.Time
	ExpiresAt *time.Time
	ID        string
}

// Decode parses the three dot-separated segments of a compact token and
// returns its claims. It returns an error wrapping ErrMalformed if the segment
// count is wrong, a segment is not valid base64url, the header or payload is
// not JSON. The header's alg is not checked.
func Decode(tok string) (Claims, error) {
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	// claims are already decoded when only the alg lookup fails
	if err != nil && !(errors.Is(err, jwt.ErrTokenUnverifiable) && parsed != nil) {
		return Claims{}, fmt.Errorf("%w: %s", ErrMalformed, err)
	}

	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return Claims{}, fmt.Errorf("%w: unexpected claims type", ErrMalformed)
	}

	var c Claims

	exp, err := mc.GetExpirationTime()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: exp: %s", ErrMalformed, err)
	}
	if exp != nil {
		t := exp.Time
		c.ExpiresAt = &t
	}

	iat, err := mc.GetIssuedAt()
	if err != nil {
		return Claims{}, fmt.Errorf("%w: iat: %s", ErrMalformed, err)
	}
	if iat != nil {
		t := iat.Time
		c.IssuedAt = &t
	}

	// some backends issue numeric subjects, so don't use GetSubject.
	c.Subject = claimString(mc["sub"])
	c.ID = claimString(mc["jti"])

	return c, nil
}

// IsExpired returns whether tok should be treated as expired at the given time.
// It fails open: a token that cannot be decoded or that has no exp claim is
// expired. Otherwise it is expired once now reaches exp.
func IsExpired(tok string, now time.Time) bool {
	c, err := Decode(tok)
	if err != nil {
		return true
	}
	if c.ExpiresAt == nil {
		return true
	}
	return c.ExpiresAt.UnixMilli() <= now.UnixMilli()
}

func claimString(v interface{}) string {
	switch typed := v.(type) {
	case string:
		return typed
	case float64:
		return strconv.FormatFloat(typed, 'f', -1, 64)
	case nil:
		return ""
	default:
		return fmt.Sprintf("%v", typed)
	}
}

// Store persists a single token in a LocalStorage.
type Store struct {
	ls storage.LocalStorage
}

func NewStore(ls storage.LocalStorage) *Store {
	return &Store{ls: ls}
}

// Save persists tok, replacing any token already stored.
func (s *Store) Save(ctx context.Context, tok string) error {
	if err := s.ls.Set(ctx, StorageKey, tok); err != nil {
		return fmt.Errorf("save token: %w", err)
	}
	return nil
}

// Read returns the stored token. If no token is stored, the empty string is
// returned with a nil error.
func (s *Store) Read(ctx context.Context) (string, error) {
	tok, err := s.ls.Get(ctx, StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("read token: %w", err)
	}
	return tok, nil
}

// Clear removes the stored token.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.ls.Remove(ctx, StorageKey); err != nil {
		return fmt.Errorf("clear token: %w", err)
	}
	return nil
}

// Valid returns the stored token only if one is present and is not expired at
// now. Otherwise it returns the empty string.
func (s *Store) Valid(ctx context.Context, now time.Time) (string, error) {
	tok, err := s.Read(ctx)
	if err != nil || tok == "" {
		return "", err
	}
	if IsExpired(tok, now) {
		return "", nil
	}
	return tok, nil
}
