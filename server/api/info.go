package api

import (
	"net/http"

	"github.com/dekarrin/campman/internal/version"
	"github.com/dekarrin/campman/server/middle"
	"github.com/dekarrin/campman/server/result"
)

// HTTPGetInfo returns a HandlerFunc that retrieves information on the API and
// server.
//
// The handler has requirements for the request context it receives, and if the
// requirements are not met it may return an HTTP-500. The context must contain
// a value denoting whether the client making the request is logged-in.
func (api API) HTTPGetInfo() http.HandlerFunc {
	return api.Endpoint(api.epGetInfo)
}

func (api API) epGetInfo(req *http.Request) result.Result {
	var resp InfoModel
	resp.Version.Server = version.DevServerCurrent
	resp.Version.Console = version.Current

	userStr := "unauthed client"
	if middle.LoggedIn(req) {
		userStr = "user '" + middle.User(req).Email + "'"
	}
	return result.OK(resp, "%s got API info", userStr)
}
