package token

import (
	"context"
	"encoding/base64"
	"testing"
	"time"

	"github.com/dekarrin/campman/internal/storage/inmem"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func signed(t *testing.T, claims jwt.MapClaims) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-key"))
	if err != nil {
		t.Fatalf("could not sign test token: %v", err)
	}
	return tok
}

func Test_Decode(t *testing.T) {
	header := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

	testCases := []struct {
		name      string
		tok       func(t *testing.T) string
		expect    Claims
		expectErr bool
	}{
		{
			name: "all claims",
			tok: func(t *testing.T) string {
				return signed(t, jwt.MapClaims{"sub": "12", "exp": 2000000000, "iat": 1999971200, "jti": "abc"})
			},
			expect: Claims{
				Subject:   "12",
				ExpiresAt: ptrTime(time.Unix(2000000000, 0)),
				IssuedAt:  ptrTime(time.Unix(1999971200, 0)),
				ID:        "abc",
			},
		},
		{
			name: "numeric subject",
			tok: func(t *testing.T) string {
				return signed(t, jwt.MapClaims{"sub": 7})
			},
			expect: Claims{Subject: "7"},
		},
		{
			name: "unknown alg",
			tok: func(t *testing.T) string {
				h := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS999","typ":"JWT"}`))
				p := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"3","exp":4102444800}`))
				return h + "." + p + ".sig"
			},
			expect: Claims{Subject: "3", ExpiresAt: ptrTime(time.Unix(4102444800, 0))},
		},
		{
			name: "no alg",
			tok: func(t *testing.T) string {
				h := base64.RawURLEncoding.EncodeToString([]byte(`{"typ":"JWT"}`))
				p := base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"3"}`))
				return h + "." + p + ".sig"
			},
			expect: Claims{Subject: "3"},
		},
		{
			name:      "two segments",
			tok:       func(t *testing.T) string { return "abc.def" },
			expectErr: true,
		},
		{
			name: "non-JSON payload",
			tok: func(t *testing.T) string {
				return header + "." + base64.RawURLEncoding.EncodeToString([]byte("not json")) + ".sig"
			},
			expectErr: true,
		},
		{
			name:      "bad base64",
			tok:       func(t *testing.T) string { return header + ".***.sig" },
			expectErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			actual, err := Decode(tc.tok(t))
			if tc.expectErr {
				assert.ErrorIs(err, ErrMalformed)
				return
			}
			if !assert.NoError(err) {
				return
			}

			assert.Equal(tc.expect.Subject, actual.Subject)
			assert.Equal(tc.expect.ID, actual.ID)
			assertTimePtr(t, tc.expect.ExpiresAt, actual.ExpiresAt)
			assertTimePtr(t, tc.expect.IssuedAt, actual.IssuedAt)
		})
	}
}

func Test_IsExpired(t *testing.T) {
	exp := time.Unix(1700000000, 0)
	withExp := signed(t, jwt.MapClaims{"sub": "1", "exp": exp.Unix()})
	otherAlg := base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS999"}`)) + "." +
		base64.RawURLEncoding.EncodeToString([]byte(`{"exp":1700000000}`)) + ".sig"

	testCases := []struct {
		name   string
		tok    string
		now    time.Time
		expect bool
	}{
		{name: "missing exp", tok: signed(t, jwt.MapClaims{"sub": "1"}), now: exp, expect: true},
		{name: "wrong segment count", tok: "a.b.c.d", now: exp, expect: true},
		{name: "empty", tok: "", now: exp, expect: true},
		{name: "exp equals now", tok: withExp, now: exp, expect: true},
		{name: "exp before now", tok: withExp, now: exp.Add(time.Hour), expect: true},
		{name: "one ms before exp", tok: withExp, now: exp.Add(-time.Millisecond), expect: false},
		{name: "unknown alg, fresh", tok: otherAlg, now: exp.Add(-time.Hour), expect: false},
		{name: "fresh", tok: withExp, now: exp.Add(-8 * time.Hour), expect: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, IsExpired(tc.tok, tc.now))
		})
	}
}

func Test_Store(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	now := time.Unix(1700000000, 0)

	st := NewStore(inmem.New())

	tok, err := st.Read(ctx)
	assert.NoError(err)
	assert.Equal("", tok)

	fresh := signed(t, jwt.MapClaims{"exp": now.Add(time.Hour).Unix()})
	assert.NoError(st.Save(ctx, fresh))

	tok, err = st.Read(ctx)
	assert.NoError(err)
	assert.Equal(fresh, tok)

	tok, err = st.Valid(ctx, now)
	assert.NoError(err)
	assert.Equal(fresh, tok)

	tok, err = st.Valid(ctx, now.Add(2*time.Hour))
	assert.NoError(err)
	assert.Equal("", tok)

	assert.NoError(st.Clear(ctx))
	tok, err = st.Read(ctx)
	assert.NoError(err)
	assert.Equal("", tok)
}

func ptrTime(t time.Time) *time.Time {
	return &t
}

func assertTimePtr(t *testing.T, expect, actual *time.Time) {
	if expect == nil {
		assert.Nil(t, actual)
		return
	}
	if assert.NotNil(t, actual) {
		assert.True(t, expect.Equal(*actual), "expected %v, got %v", *expect, *actual)
	}
}
