package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/dekarrin/campman/internal/apiclient"
	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/dekarrin/campman/internal/storage/inmem"
	"github.com/dekarrin/campman/internal/token"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2024, time.January, 15, 9, 0, 0, 0, time.UTC)

func issue(t *testing.T, sub string, exp time.Time) string {
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": sub,
		"iat": testNow.Unix(),
		"exp": exp.Unix(),
		"jti": "jti-" + sub,
	}).SignedString([]byte("secret"))
	require.NoError(t, err)
	return tok
}

// authBackend is a minimal stand-in for the auth routes.
type authBackend struct {
	mtx        sync.Mutex
	loginResp  string
	loginCode  int
	meResp     string
	meCode     int
	setResp    string
	logoutCode int

	logoutAuth []string
	loginAuth  []string
	meCalls    int
}

func (ab *authBackend) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ab.mtx.Lock()
	defer ab.mtx.Unlock()
	w.Header().Set("Content-Type", "application/json")

	reply := func(code int, body string) {
		if code == 0 {
			code = http.StatusOK
		}
		w.WriteHeader(code)
		w.Write([]byte(body))
	}

	switch r.URL.Path {
	case "/api/auth/login":
		ab.loginAuth = append(ab.loginAuth, r.Header.Get("Authorization"))
		reply(ab.loginCode, ab.loginResp)
	case "/api/auth/me":
		ab.meCalls++
		if r.Header.Get("Authorization") == "" {
			reply(http.StatusUnauthorized, `{"message": "Missing token"}`)
			return
		}
		reply(ab.meCode, ab.meResp)
	case "/api/auth/set-password":
		var body passwordSet
		json.NewDecoder(r.Body).Decode(&body)
		if body.Token != "setup-123" {
			reply(http.StatusBadRequest, `{"error": "Invalid or expired setup token"}`)
			return
		}
		reply(http.StatusOK, ab.setResp)
	case "/api/auth/logout":
		ab.logoutAuth = append(ab.logoutAuth, r.Header.Get("Authorization"))
		reply(ab.logoutCode, `{"message": "Logged out"}`)
	default:
		reply(http.StatusNotFound, `{"message": "Not found"}`)
	}
}

func newController(t *testing.T, ab *authBackend, store *token.Store) *Controller {
	srv := httptest.NewServer(ab)
	t.Cleanup(srv.Close)

	ctrl := New(Options{Store: store, Now: func() time.Time { return testNow }})
	api, err := apiclient.New(apiclient.Options{BaseURL: srv.URL + "/api", Tokens: ctrl})
	require.NoError(t, err)
	ctrl.SetAPI(api)
	return ctrl
}

func Test_Login_tokenResponse(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fresh := issue(t, "1", testNow.Add(8*time.Hour))
	ab := &authBackend{
		loginResp: `{"token": "` + fresh + `"}`,
		meResp:    `{"user": {"id": 1, "email": "admin@example.com", "is_admin": true}}`,
	}
	store := token.NewStore(inmem.New())
	ctrl := newController(t, ab, store)

	require.NoError(t, ctrl.Login(ctx, "admin@example.com", "pw"))

	assert.Equal(StateAuthenticated, ctrl.State())
	stored, err := store.Read(ctx)
	assert.NoError(err)
	assert.Equal(fresh, stored)
	assert.False(token.IsExpired(stored, testNow))

	u, ok := ctrl.User()
	assert.True(ok)
	assert.Equal("admin@example.com", u.Email)
	assert.Equal(1, ab.meCalls)
	assert.Equal([]string{""}, ab.loginAuth)
	assert.Equal(RouteCampaigns, ctrl.Redirect())
	assert.Equal(Route(""), ctrl.Redirect())
}

func Test_Login_embeddedUserAndAccessToken(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fresh := issue(t, "2", testNow.Add(time.Hour))
	ab := &authBackend{
		loginResp: `{"access_token": "` + fresh + `", "user": {"id": 2, "email": "ops@example.com", "is_admin": false}}`,
	}
	ctrl := newController(t, ab, token.NewStore(inmem.New()))

	require.NoError(t, ctrl.Login(ctx, "ops@example.com", "pw"))

	assert.Equal(StateAuthenticated, ctrl.State())
	assert.Equal(0, ab.meCalls)
	assert.False(ctrl.IsAdmin())

	tok, err := ctrl.Token(ctx)
	assert.NoError(err)
	assert.Equal(fresh, tok)
}

func Test_Login_requiresPasswordSetup(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fresh := issue(t, "3", testNow.Add(time.Hour))
	ab := &authBackend{
		loginResp: `{"requires_password_setup": true, "setup_token": "setup-123"}`,
		setResp:   `{"token": "` + fresh + `", "user": {"id": 3, "email": "new@example.com"}}`,
	}
	store := token.NewStore(inmem.New())
	ctrl := newController(t, ab, store)

	require.NoError(t, ctrl.Login(ctx, "new@example.com", "temp"))
	assert.Equal(StatePasswordSetupRequired, ctrl.State())
	assert.Equal("setup-123", ctrl.SetupToken())
	assert.Equal(RouteSetPassword, ctrl.Gate(RouteCampaigns))

	stored, _ := store.Read(ctx)
	assert.Equal("", stored)

	err := ctrl.SetPassword(ctx, "wrong", "new-password")
	assert.ErrorIs(err, cmerr.ErrValidation)
	assert.Equal("Invalid or expired setup token", cmerr.ConsoleMessage(err))
	assert.Equal(StatePasswordSetupRequired, ctrl.State())

	require.NoError(t, ctrl.SetPassword(ctx, "", "new-password"))
	assert.Equal(StateAuthenticated, ctrl.State())
	stored, _ = store.Read(ctx)
	assert.Equal(fresh, stored)
	assert.Equal("", ctrl.SetupToken())
}

func Test_SetPassword_withoutSession(t *testing.T) {
	assert := assert.New(t)
	ab := &authBackend{setResp: `{"message": "Password updated"}`}
	ctrl := newController(t, ab, token.NewStore(inmem.New()))

	require.NoError(t, ctrl.SetPassword(context.Background(), "setup-123", "pw"))
	assert.Equal(StateAnonymous, ctrl.State())
	assert.Equal(RouteLogin, ctrl.Redirect())

	assert.ErrorIs(ctrl.SetPassword(context.Background(), "", "pw"), cmerr.ErrValidation)
}

func Test_Login_failure(t *testing.T) {
	assert := assert.New(t)

	ab := &authBackend{loginCode: http.StatusUnauthorized, loginResp: `{"message": "Invalid credentials"}`}
	ctrl := newController(t, ab, token.NewStore(inmem.New()))

	err := ctrl.Login(context.Background(), "a@example.com", "bad")
	assert.ErrorIs(err, cmerr.ErrUnauthorized)
	assert.Equal("Invalid credentials", cmerr.ConsoleMessage(err))
	assert.Equal(StateAnonymous, ctrl.State())

	err = ctrl.Login(context.Background(), "", "")
	assert.ErrorIs(err, cmerr.ErrValidation)
}

func Test_Logout(t *testing.T) {
	testCases := []struct {
		name       string
		logoutCode int
	}{
		{name: "backend accepts", logoutCode: http.StatusOK},
		{name: "backend fails", logoutCode: http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			fresh := issue(t, "1", testNow.Add(time.Hour))
			ab := &authBackend{
				loginResp:  `{"token": "` + fresh + `", "user": {"id": 1, "email": "a@example.com"}}`,
				logoutCode: tc.logoutCode,
			}
			store := token.NewStore(inmem.New())
			ctrl := newController(t, ab, store)
			require.NoError(t, ctrl.Login(ctx, "a@example.com", "pw"))
			ctrl.Redirect()

			ctrl.Logout(ctx)

			assert.Equal(StateAnonymous, ctrl.State())
			_, ok := ctrl.User()
			assert.False(ok)
			stored, _ := store.Read(ctx)
			assert.Equal("", stored)
			assert.Equal(RouteLogin, ctrl.Redirect())
			assert.Equal([]string{"Bearer " + fresh}, ab.logoutAuth)
		})
	}
}

func Test_Init(t *testing.T) {
	testCases := []struct {
		name        string
		stored      func(t *testing.T) string
		meCode      int
		expectState State
		expectKept  bool
		expectMe    int
	}{
		{
			name:        "nothing stored",
			stored:      func(t *testing.T) string { return "" },
			expectState: StateAnonymous,
		},
		{
			name:        "expired token",
			stored:      func(t *testing.T) string { return issue(t, "1", testNow.Add(-time.Minute)) },
			expectState: StateAnonymous,
		},
		{
			name:        "malformed token",
			stored:      func(t *testing.T) string { return "not-a-token" },
			expectState: StateAnonymous,
		},
		{
			name:        "valid token and user",
			stored:      func(t *testing.T) string { return issue(t, "1", testNow.Add(time.Hour)) },
			expectState: StateAuthenticated,
			expectKept:  true,
			expectMe:    1,
		},
		{
			name:        "valid token rejected by backend",
			stored:      func(t *testing.T) string { return issue(t, "1", testNow.Add(time.Hour)) },
			meCode:      http.StatusUnauthorized,
			expectState: StateAnonymous,
			expectMe:    1,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			ctx := context.Background()

			ab := &authBackend{meCode: tc.meCode, meResp: `{"user": {"id": 1, "email": "a@example.com", "is_admin": true}}`}
			store := token.NewStore(inmem.New())
			tok := tc.stored(t)
			if tok != "" {
				require.NoError(t, store.Save(ctx, tok))
			}
			ctrl := newController(t, ab, store)

			assert.NoError(ctrl.Init(ctx))
			assert.Equal(tc.expectState, ctrl.State())
			assert.Equal(tc.expectMe, ab.meCalls)

			stored, _ := store.Read(ctx)
			if tc.expectKept {
				assert.Equal(tok, stored)
			} else {
				assert.Equal("", stored)
			}
		})
	}
}

func Test_Token_expiresDuringSession(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	now := testNow
	exp := testNow.Add(time.Hour)
	tok := issue(t, "1", exp)
	store := token.NewStore(inmem.New())
	ctrl := New(Options{Store: store, Now: func() time.Time { return now }})
	ab := &authBackend{loginResp: `{"token": "` + tok + `", "user": {"id": 1, "email": "a@example.com"}}`}
	srv := httptest.NewServer(ab)
	defer srv.Close()
	api, err := apiclient.New(apiclient.Options{BaseURL: srv.URL + "/api", Tokens: ctrl})
	require.NoError(t, err)
	ctrl.SetAPI(api)

	require.NoError(t, ctrl.Login(ctx, "a@example.com", "pw"))

	got, _ := ctrl.Token(ctx)
	assert.Equal(tok, got)

	now = exp
	got, _ = ctrl.Token(ctx)
	assert.Equal("", got)
	assert.Equal(StateAnonymous, ctrl.State())
	stored, _ := store.Read(ctx)
	assert.Equal("", stored)
}

func Test_Gate(t *testing.T) {
	testCases := []struct {
		name   string
		login  string
		route  Route
		expect Route
	}{
		{name: "anonymous to campaigns", route: RouteCampaigns, expect: RouteLogin},
		{name: "anonymous to logs", route: RouteLogs, expect: RouteLogin},
		{name: "anonymous to set-password", route: RouteSetPassword, expect: RouteSetPassword},
		{name: "user to campaigns", login: "user", route: RouteCampaigns, expect: RouteCampaigns},
		{name: "user to logs", login: "user", route: RouteLogs, expect: RouteCampaigns},
		{name: "user to users", login: "user", route: RouteUsers, expect: RouteCampaigns},
		{name: "user to login", login: "user", route: RouteLogin, expect: RouteCampaigns},
		{name: "admin to logs", login: "admin", route: RouteLogs, expect: RouteLogs},
		{name: "admin to users", login: "admin", route: RouteUsers, expect: RouteUsers},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ab := &authBackend{}
			if tc.login != "" {
				isAdmin := tc.login == "admin"
				body, _ := json.Marshal(map[string]interface{}{
					"token": issue(t, "1", testNow.Add(time.Hour)),
					"user":  map[string]interface{}{"id": 1, "email": tc.login + "@example.com", "is_admin": isAdmin},
				})
				ab.loginResp = string(body)
			}
			ctrl := newController(t, ab, token.NewStore(inmem.New()))
			if tc.login != "" {
				require.NoError(t, ctrl.Login(context.Background(), tc.login+"@example.com", "pw"))
			}

			assert.Equal(t, tc.expect, ctrl.Gate(tc.route))
		})
	}
}

func Test_CheckError(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	ab := &authBackend{loginResp: `{"token": "` + issue(t, "1", testNow.Add(time.Hour)) + `", "user": {"id": 1, "email": "a@example.com"}}`}
	ctrl := newController(t, ab, token.NewStore(inmem.New()))
	require.NoError(t, ctrl.Login(ctx, "a@example.com", "pw"))
	ctrl.Redirect()

	assert.False(ctrl.CheckError(ctx, cmerr.New("other", cmerr.ErrBackend)))
	assert.Equal(StateAuthenticated, ctrl.State())

	assert.True(ctrl.CheckError(ctx, &apiclient.Error{Status: 401}))
	assert.Equal(StateAnonymous, ctrl.State())
	assert.Equal(RouteLogin, ctrl.Redirect())
}

func Test_LoginResult_BearerToken(t *testing.T) {
	assert.Equal(t, "a", LoginResult{Token: "a", AccessToken: "b"}.BearerToken())
	assert.Equal(t, "b", LoginResult{AccessToken: "b"}.BearerToken())
}
