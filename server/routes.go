package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/dekarrin/campman/server/api"
	"github.com/dekarrin/campman/server/middle"
	"github.com/dekarrin/campman/server/result"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

var (
	paramTypePats = map[string]string{
		"int": "[0-9]+",
	}
)

// p is a quick parameter in a URI, made very small to ease readability in route
// listings.
func p(nameType string) string {
	var name string
	var pat string

	parts := strings.SplitN(nameType, ":", 2)
	name = parts[0]
	if len(parts) == 2 {
		// we have a type, if it's a name in the paramTypePats map use that else
		// treat it as a normal pattern
		pat = parts[1]

		if translatedPat, ok := paramTypePats[parts[1]]; ok {
			pat = translatedPat
		}
	}

	if pat == "" {
		return "{" + name + "}"
	}
	return "{" + name + ":" + pat + "}"
}

func authenticator(a api.API) middle.Auth {
	return middle.Auth{Users: a.Backend.DB.Users(), Secret: a.Secret, UnauthDelay: a.UnauthDelay}
}

func newRouter(a api.API) chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.StripSlashes)
	r.Mount(api.PathPrefix, newAPIRouter(a))

	return r
}

func newAPIRouter(a api.API) chi.Router {
	r := chi.NewRouter()

	r.Mount("/auth", newAuthRouter(a))
	r.Mount("/campaigns", newCampaignsRouter(a))
	r.Mount("/uploads", newUploadsRouter(a))
	r.Mount("/files", newFilesRouter(a))
	r.Mount("/users", newUsersRouter(a))
	r.Mount("/logs", newLogsRouter(a))
	r.Mount("/info", newInfoRouter(a))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		result.NotFound().WriteResponse(w)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(a.UnauthDelay)
		result.MethodNotAllowed(r).WriteResponse(w)
	})

	return r
}

func newAuthRouter(a api.API) chi.Router {
	reqAuth := authenticator(a).Require(middle.AuthUser)

	r := chi.NewRouter()

	r.Post("/login", a.HTTPCreateLogin())
	r.Post("/set-password", a.HTTPSetPassword())
	r.With(reqAuth).Post("/logout", a.HTTPDeleteLogin())
	r.With(reqAuth).Get("/me", a.HTTPGetMe())

	return r
}

func newCampaignsRouter(a api.API) chi.Router {
	reqAuth := authenticator(a).Require(middle.AuthUser)

	r := chi.NewRouter()

	r.Use(reqAuth)

	r.Get("/", a.HTTPGetCampaigns())
	r.Post("/", a.HTTPCreateCampaign())

	r.Route("/"+p("id:int"), func(r chi.Router) {
		r.Put("/", a.HTTPUpdateCampaign())
		r.Delete("/", a.HTTPDeleteCampaign())
		r.Get("/images", a.HTTPGetCampaignImages())
		r.Post("/images", a.HTTPCreateUpload())
	})

	return r
}

func newUploadsRouter(a api.API) chi.Router {
	reqAuth := authenticator(a).Require(middle.AuthUser)

	r := chi.NewRouter()

	r.With(reqAuth).Post("/"+p("id:int"), a.HTTPCreateUpload())

	return r
}

func newFilesRouter(a api.API) chi.Router {
	r := chi.NewRouter()

	r.Get("/"+p("id:int")+"/"+p("slot"), a.HTTPGetImageFile())

	return r
}

func newUsersRouter(a api.API) chi.Router {
	reqAdmin := authenticator(a).Require(middle.AuthAdmin)

	r := chi.NewRouter()

	r.Use(reqAdmin)

	r.Get("/", a.HTTPGetAllUsers())
	r.Post("/", a.HTTPCreateUser())
	r.Delete("/"+p("id:int"), a.HTTPDeleteUser())

	return r
}

func newLogsRouter(a api.API) chi.Router {
	reqAdmin := authenticator(a).Require(middle.AuthAdmin)

	r := chi.NewRouter()

	r.Use(reqAdmin)

	r.Get("/", a.HTTPGetLogs())
	r.Get("/export", a.HTTPExportLogs())
	r.Get("/stats", a.HTTPGetLogStats())

	return r
}

func newInfoRouter(a api.API) chi.Router {
	optAuth := authenticator(a).Require(middle.AuthOptional)

	r := chi.NewRouter()

	r.With(optAuth).Get("/", a.HTTPGetInfo())

	return r
}
