package api

import (
	"net/http"

	"github.com/dekarrin/campman/server/middle"
	"github.com/dekarrin/campman/server/result"
	"github.com/dekarrin/campman/server/service"
)

// HTTPGetAllUsers returns a HandlerFunc that retrieves all existing users. Only
// an admin user can call this endpoint.
func (api API) HTTPGetAllUsers() http.HandlerFunc {
	return api.Endpoint(api.epGetAllUsers)
}

func (api API) epGetAllUsers(req *http.Request) result.Result {
	user := middle.User(req)

	users, err := api.Backend.GetAllUsers(req.Context())
	if err != nil {
		return errResult(err, "get all users")
	}

	resp := make([]UserModel, len(users))
	for i := range users {
		resp[i] = userModel(users[i])
	}

	return result.OK(resp, "user '%s' got all users", user.Email)
}

// HTTPCreateUser returns a HandlerFunc that creates a new user. The new user
// has no password unless one is given and must set one on first login. Only
// an admin user can call this endpoint.
func (api API) HTTPCreateUser() http.HandlerFunc {
	return api.Endpoint(api.epCreateUser)
}

func (api API) epCreateUser(req *http.Request) result.Result {
	user := middle.User(req)
	act := api.startActivity(req, service.ActionAddUser, service.ResourceUser)

	var data UserCreateRequest
	if err := parseJSON(req, &data); err != nil {
		return act.finish(result.BadRequest(err.Error(), err.Error()))
	}
	act.detail("email", data.Email).detail("is_admin", data.IsAdmin)

	newUser, err := api.Backend.CreateUser(req.Context(), data.Email, data.Password, data.IsAdmin)
	if err != nil {
		return act.finish(errResult(err, "create user"))
	}
	act.resource(newUser.ID)

	return act.finish(result.Created(userModel(newUser), "user '%s' (%d) created by '%s'", newUser.Email, newUser.ID, user.Email))
}

// HTTPDeleteUser returns a HandlerFunc that deletes a user. Admins cannot
// delete themselves. Only an admin user can call this endpoint.
func (api API) HTTPDeleteUser() http.HandlerFunc {
	return api.Endpoint(api.epDeleteUser)
}

func (api API) epDeleteUser(req *http.Request) result.Result {
	id := requireIDParam(req)
	user := middle.User(req)
	act := api.startActivity(req, service.ActionDeleteUser, service.ResourceUser).resource(id)

	deleted, err := api.Backend.DeleteUser(req.Context(), user, id)
	if err != nil {
		return act.finish(errResult(err, "delete user"))
	}
	act.detail("email", deleted.Email)

	return act.finish(result.OK(MessageResponse{Message: "User deleted"}, "user '%s' deleted by '%s'", deleted.Email, user.Email))
}
