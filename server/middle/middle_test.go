package middle

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/dekarrin/campman/server/dao"
	"github.com/dekarrin/campman/server/dao/inmem"
	"github.com/dekarrin/campman/server/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("middleware-test-secret-0123456789")

func Test_Auth_Require(t *testing.T) {
	ctx := context.Background()
	db := inmem.NewDatastore()

	admin, err := db.Users().Create(ctx, dao.User{Email: "admin@example.com", Password: "x", IsAdmin: true})
	require.NoError(t, err)
	user, err := db.Users().Create(ctx, dao.User{Email: "user@example.com", Password: "y"})
	require.NoError(t, err)

	adminTok, err := token.Generate(testSecret, admin)
	require.NoError(t, err)
	userTok, err := token.Generate(testSecret, user)
	require.NoError(t, err)

	auth := Auth{Users: db.Users(), Secret: testSecret, UnauthDelay: -1}

	// echoes who the middleware resolved
	whoami := http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if !LoggedIn(req) {
			w.Write([]byte("anonymous"))
			return
		}
		w.Write([]byte(User(req).Email))
	})

	testCases := []struct {
		name         string
		level        Level
		authz        string
		expectStatus int
		expectBody   string
	}{
		{name: "optional without token", level: AuthOptional, expectStatus: http.StatusOK, expectBody: "anonymous"},
		{name: "optional with bad token", level: AuthOptional, authz: "Bearer nope", expectStatus: http.StatusOK, expectBody: "anonymous"},
		{name: "optional with token", level: AuthOptional, authz: "Bearer " + userTok, expectStatus: http.StatusOK, expectBody: "user@example.com"},
		{name: "user without token", level: AuthUser, expectStatus: http.StatusUnauthorized, expectBody: `{"error":"Missing token","status":401}`},
		{name: "user with bad token", level: AuthUser, authz: "Bearer nope", expectStatus: http.StatusUnauthorized, expectBody: `{"error":"Invalid token","status":401}`},
		{name: "user with token", level: AuthUser, authz: "Bearer " + userTok, expectStatus: http.StatusOK, expectBody: "user@example.com"},
		{name: "admin as user", level: AuthAdmin, authz: "Bearer " + userTok, expectStatus: http.StatusForbidden, expectBody: `{"error":"Admin access required","status":403}`},
		{name: "admin as admin", level: AuthAdmin, authz: "Bearer " + adminTok, expectStatus: http.StatusOK, expectBody: "admin@example.com"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.authz != "" {
				req.Header.Set("Authorization", tc.authz)
			}
			w := httptest.NewRecorder()

			auth.Require(tc.level)(whoami).ServeHTTP(w, req)

			assert.Equal(tc.expectStatus, w.Code)
			assert.Equal(tc.expectBody, w.Body.String())
		})
	}
}

func Test_User_withoutMiddleware(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)

	assert.False(t, LoggedIn(req))
	assert.Equal(t, dao.User{}, User(req))
}
