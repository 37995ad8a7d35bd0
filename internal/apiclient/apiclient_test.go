package apiclient

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/dekarrin/campman/internal/cmerr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Method string
	Path   string
	Query  string
	Auth   string
	CType  string
	Body   []byte
}

func newCaptureServer(t *testing.T, status int, respBody string) (*httptest.Server, *[]capturedRequest) {
	var got []capturedRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		got = append(got, capturedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Query:  r.URL.RawQuery,
			Auth:   r.Header.Get("Authorization"),
			CType:  r.Header.Get("Content-Type"),
			Body:   body,
		})
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, respBody)
	}))
	t.Cleanup(srv.Close)
	return srv, &got
}

func staticToken(tok string) TokenSource {
	return TokenFunc(func(ctx context.Context) (string, error) {
		return tok, nil
	})
}

func Test_Client_BearerAttachment(t *testing.T) {
	testCases := []struct {
		name       string
		token      string
		opts       []RequestOption
		expectAuth string
	}{
		{name: "token present", token: "abc.def.ghi", expectAuth: "Bearer abc.def.ghi"},
		{name: "no token", token: "", expectAuth: ""},
		{name: "anonymous with token", token: "abc.def.ghi", opts: []RequestOption{Anonymous()}, expectAuth: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			srv, got := newCaptureServer(t, http.StatusOK, `{"ok": true}`)

			c, err := New(Options{BaseURL: srv.URL + "/api", Tokens: staticToken(tc.token)})
			require.NoError(t, err)

			var out map[string]bool
			err = c.Get(context.Background(), "campaigns", &out, tc.opts...)
			assert.NoError(err)
			assert.True(out["ok"])

			if assert.Len(*got, 1) {
				assert.Equal("/api/campaigns", (*got)[0].Path)
				assert.Equal(tc.expectAuth, (*got)[0].Auth)
			}
		})
	}
}

func Test_Client_ErrorNormalization(t *testing.T) {
	testCases := []struct {
		name          string
		status        int
		body          string
		expectMessage string
		expectIs      error
	}{
		{name: "error key", status: 409, body: `{"error": "Campaign dates overlap with Spring Sale"}`, expectMessage: "Campaign dates overlap with Spring Sale", expectIs: cmerr.ErrConflict},
		{name: "message key", status: 403, body: `{"message": "Admin only"}`, expectMessage: "Admin only", expectIs: cmerr.ErrForbidden},
		{name: "no JSON", status: 500, body: `oops`, expectMessage: "", expectIs: cmerr.ErrBackend},
		{name: "unauthorized", status: 401, body: `{}`, expectMessage: "", expectIs: cmerr.ErrUnauthorized},
		{name: "bad request", status: 400, body: `{"error": "bad"}`, expectMessage: "bad", expectIs: cmerr.ErrValidation},
		{name: "not found", status: 404, body: ``, expectMessage: "", expectIs: cmerr.ErrNotFound},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert := assert.New(t)
			srv, _ := newCaptureServer(t, tc.status, tc.body)

			c, err := New(Options{BaseURL: srv.URL})
			require.NoError(t, err)

			err = c.Post(context.Background(), "/campaigns", map[string]string{"name": "x"}, nil)
			assert.ErrorIs(err, tc.expectIs)
			assert.Equal(tc.status, Status(err))
			assert.Equal(tc.expectMessage, Message(err))

			var apiErr *Error
			if assert.ErrorAs(err, &apiErr) {
				assert.Equal(tc.body, string(apiErr.Body))
			}
		})
	}
}

func Test_Client_RequestShapes(t *testing.T) {
	assert := assert.New(t)
	srv, got := newCaptureServer(t, http.StatusOK, ``)

	c, err := New(Options{BaseURL: srv.URL + "/api/"})
	require.NoError(t, err)
	ctx := context.Background()

	assert.NoError(c.Put(ctx, "campaigns/4", map[string]string{"name": "Spring"}, nil))
	assert.NoError(c.Delete(ctx, "campaigns/4", nil))
	assert.NoError(c.Get(ctx, "logs", nil, WithQuery(url.Values{"status": {"error"}})))

	form := NewFormData().
		AddField("name", "Spring").
		AddFile("logo", File{Name: "logo.png", ContentType: "image/png", Data: []byte{0x89, 'P', 'N', 'G'}})
	assert.Equal(2, form.Len())
	assert.Equal(1, form.FileCount())
	assert.NoError(c.PostMultipart(ctx, "uploads/4", form, nil))

	require.Len(t, *got, 4)

	put := (*got)[0]
	assert.Equal(http.MethodPut, put.Method)
	assert.Equal("/api/campaigns/4", put.Path)
	assert.Equal("application/json", put.CType)
	var putBody map[string]string
	assert.NoError(json.Unmarshal(put.Body, &putBody))
	assert.Equal("Spring", putBody["name"])

	assert.Equal(http.MethodDelete, (*got)[1].Method)
	assert.Equal("status=error", (*got)[2].Query)

	mp := (*got)[3]
	assert.Equal("/api/uploads/4", mp.Path)
	assert.Contains(mp.CType, "multipart/form-data; boundary=")
	assert.Contains(string(mp.Body), `name="logo"; filename="logo.png"`)
	assert.Contains(string(mp.Body), "Content-Type: image/png")
}

func Test_Client_TransportFailure(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Options{BaseURL: base})
	require.NoError(t, err)

	err = c.Get(context.Background(), "campaigns", nil)
	assert.ErrorIs(err, cmerr.ErrBackend)
	assert.Equal(0, Status(err))
}

func Test_New_invalidBaseURL(t *testing.T) {
	_, err := New(Options{BaseURL: ""})
	assert.Error(t, err)

	_, err = New(Options{BaseURL: "ftp://example.com"})
	assert.Error(t, err)
}
