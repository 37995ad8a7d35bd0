package result

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Result_WriteResponse(t *testing.T) {
	testCases := []struct {
		name        string
		r           Result
		expectCode  int
		expectType  string
		expectBody  string
		expectIsErr bool
	}{
		{
			name:       "ok json",
			r:          OK(map[string]string{"message": "Logged out"}),
			expectCode: http.StatusOK,
			expectType: "application/json",
			expectBody: `{"message":"Logged out"}`,
		},
		{
			name:        "conflict carries user message",
			r:           Conflict("Campaign dates overlap", "overlap with %d", 3),
			expectCode:  http.StatusConflict,
			expectType:  "application/json",
			expectBody:  `{"error":"Campaign dates overlap","status":409}`,
			expectIsErr: true,
		},
		{
			name:       "created",
			r:          Created(map[string]int{"id": 2}),
			expectCode: http.StatusCreated,
			expectType: "application/json",
			expectBody: `{"id":2}`,
		},
		{
			name:       "file",
			r:          File("image/png", []byte("PNG"), "served"),
			expectCode: http.StatusOK,
			expectType: "image/png",
			expectBody: "PNG",
		},
		{
			name:        "text error",
			r:           TextErr(http.StatusInternalServerError, "broken", "panic"),
			expectCode:  http.StatusInternalServerError,
			expectType:  "text/plain; charset=utf-8",
			expectBody:  "broken",
			expectIsErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)

			w := httptest.NewRecorder()
			tc.r.WriteResponse(w)

			assert.Equal(tc.expectCode, w.Code)
			assert.Equal(tc.expectType, w.Header().Get("Content-Type"))
			assert.Equal(tc.expectBody, w.Body.String())
			assert.Equal(tc.expectIsErr, tc.r.IsErr)
		})
	}
}

func Test_Unauthorized_setsChallenge(t *testing.T) {
	assert := assert.New(t)

	r := Unauthorized("Missing token")
	w := httptest.NewRecorder()
	r.WriteResponse(w)

	assert.Equal(http.StatusUnauthorized, w.Code)
	assert.Equal(`Bearer realm="campman"`, w.Header().Get("WWW-Authenticate"))
	assert.JSONEq(`{"error":"Missing token","status":401}`, w.Body.String())
}

func Test_internalMessages(t *testing.T) {
	testCases := []struct {
		name   string
		r      Result
		expect string
	}{
		{name: "default", r: OK(nil), expect: "OK"},
		{name: "formatted", r: Conflict("overlap", "overlap with campaign %d", 3), expect: "overlap with campaign 3"},
		{name: "bare percent kept", r: BadRequest("bad", "100% wrong"), expect: "100% wrong"},
		{name: "non-string first arg", r: InternalServerError(404), expect: "404"},
		{name: "not found default", r: NotFound(), expect: "not found"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expect, tc.r.InternalMsg)
		})
	}
}

func Test_Result_WithHeader_doesNotShare(t *testing.T) {
	assert := assert.New(t)

	base := OK(map[string]string{}).WithHeader("X-One", "1")
	second := base.WithHeader("X-Two", "2")

	w := httptest.NewRecorder()
	base.WriteResponse(w)
	assert.Equal("1", w.Header().Get("X-One"))
	assert.Empty(w.Header().Get("X-Two"))

	w = httptest.NewRecorder()
	second.WriteResponse(w)
	assert.Equal("1", w.Header().Get("X-One"))
	assert.Equal("2", w.Header().Get("X-Two"))
}
