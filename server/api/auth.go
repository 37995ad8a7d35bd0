package api

import (
	"errors"
	"net/http"

	"github.com/dekarrin/campman/server/middle"
	"github.com/dekarrin/campman/server/result"
	"github.com/dekarrin/campman/server/serr"
	"github.com/dekarrin/campman/server/service"
	"github.com/dekarrin/campman/server/token"
)

// HTTPCreateLogin returns a HandlerFunc that uses the API to log in a user with
// an email and password and return the auth token for that user. Users who
// have not yet set a password get a password setup token instead.
func (api API) HTTPCreateLogin() http.HandlerFunc {
	return api.Endpoint(api.epCreateLogin)
}

func (api API) epCreateLogin(req *http.Request) result.Result {
	act := api.startActivity(req, service.ActionLogin, service.ResourceAuth)

	loginData := LoginRequest{}
	err := parseJSON(req, &loginData)
	if err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}

	if loginData.Email == "" || loginData.Password == "" {
		return result.BadRequest("Missing credentials", "empty email or password")
	}
	act.detail("email", loginData.Email)

	user, err := api.Backend.Login(req.Context(), loginData.Email, loginData.Password)
	if err != nil {
		if errors.Is(err, serr.ErrPasswordNotSet) {
			setupTok, err := token.GenerateSetup(api.Secret, user)
			if err != nil {
				return act.by(user).finish(result.InternalServerError("could not generate setup JWT: " + err.Error()))
			}
			resp := LoginResponse{
				RequiresPasswordSetup: true,
				SetupToken:            setupTok,
				Message:               "Password setup required",
			}
			return act.by(user).detail("setup_required", true).finish(result.OK(resp, "user '%s' must set a password", user.Email))
		} else if errors.Is(err, serr.ErrBadCredentials) {
			return act.finish(result.Unauthorized("Invalid credentials", "user '%s': %s", loginData.Email, err.Error()))
		}
		return act.finish(result.InternalServerError(err.Error()))
	}

	// password is valid, generate token for user and return it.
	tok, err := token.Generate(api.Secret, user)
	if err != nil {
		return act.by(user).finish(result.InternalServerError("could not generate JWT: " + err.Error()))
	}

	um := userModel(user)
	resp := LoginResponse{
		Token: tok,
		User:  &um,
	}
	return act.by(user).finish(result.OK(resp, "user '%s' successfully logged in", user.Email))
}

// HTTPSetPassword returns a HandlerFunc that sets a user's first password from
// a password setup token and logs them in.
func (api API) HTTPSetPassword() http.HandlerFunc {
	return api.Endpoint(api.epSetPassword)
}

func (api API) epSetPassword(req *http.Request) result.Result {
	act := api.startActivity(req, service.ActionSetPassword, service.ResourceUser)

	var data SetPasswordRequest
	if err := parseJSON(req, &data); err != nil {
		return result.BadRequest(err.Error(), err.Error())
	}
	if data.Token == "" || data.Password == "" {
		return result.BadRequest("Token and password required", "empty token or password")
	}

	user, err := token.ValidateSetup(req.Context(), data.Token, api.Secret, api.Backend.DB.Users())
	if err != nil {
		return act.finish(result.BadRequest("Invalid or expired token", "setup token: %s", err.Error()))
	}
	act.by(user).resource(user.ID)

	updated, err := api.Backend.UpdatePassword(req.Context(), user.ID, data.Password)
	if err != nil {
		return act.finish(errResult(err, "set password"))
	}

	tok, err := token.Generate(api.Secret, updated)
	if err != nil {
		return act.finish(result.InternalServerError("could not generate JWT: " + err.Error()))
	}

	um := userModel(updated)
	resp := LoginResponse{
		Token:   tok,
		User:    &um,
		Message: "Password set successfully",
	}
	return act.finish(result.OK(resp, "user '%s' set their password", updated.Email))
}

// HTTPDeleteLogin returns a HandlerFunc that ends the current session of the
// logged-in user. Every token issued to the user before this is invalidated.
//
// The handler has requirements for the request context it receives, and if the
// requirements are not met it may return an HTTP-500. The context must contain
// the logged-in user of the client making the request.
func (api API) HTTPDeleteLogin() http.HandlerFunc {
	return api.Endpoint(api.epDeleteLogin)
}

func (api API) epDeleteLogin(req *http.Request) result.Result {
	user := middle.User(req)
	act := api.startActivity(req, service.ActionLogout, service.ResourceAuth)

	_, err := api.Backend.Logout(req.Context(), user.ID)
	if err != nil {
		return act.finish(errResult(err, "could not log out user"))
	}

	return act.finish(result.OK(MessageResponse{Message: "Logged out"}, "user '%s' successfully logged out", user.Email))
}

// HTTPGetMe returns a HandlerFunc that gives the logged-in user.
func (api API) HTTPGetMe() http.HandlerFunc {
	return api.Endpoint(api.epGetMe)
}

func (api API) epGetMe(req *http.Request) result.Result {
	user := middle.User(req)
	return result.OK(MeResponse{User: userModel(user)}, "user '%s' got own info", user.Email)
}
