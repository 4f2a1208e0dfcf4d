package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimid "github.com/go-chi/chi/v5/middleware"

	"github.com/voltade/platform-engine/internal/api/handlers"
	mw "github.com/voltade/platform-engine/internal/api/middleware"
	"github.com/voltade/platform-engine/internal/repository"
	"github.com/voltade/platform-engine/internal/token"
)

type Dependencies struct {
	Issuer            *token.Issuer
	OrgRepo           repository.OrganizationRepository
	RunnerSecretToken string
	GeneratorToken    string
	GeneratorHostname string
	Production        bool

	HealthHandler        *handlers.HealthHandler
	AppsHandler          *handlers.AppsHandler
	BuildsHandler        *handlers.BuildsHandler
	InstallationsHandler *handlers.InstallationsHandler
	EnvironmentsHandler  *handlers.EnvironmentsHandler
	EnvVarsHandler       *handlers.EnvVarsHandler
	ProvisionHandler     *handlers.ProvisionHandler
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Use(mw.RequestID)
	r.Use(mw.Recovery)
	r.Use(mw.Logging)
	r.Use(mw.CORS)
	r.Use(mw.RateLimit(10, 20))
	r.Use(chimid.Compress(5))

	r.Get("/healthz", dep.HealthHandler.Liveness)
	r.Get("/readyz", dep.HealthHandler.Readiness)
	r.Get("/.well-known/jwks.json", dep.ProvisionHandler.JWKS)

	r.Route("/api/v1", func(api chi.Router) {
		// Unauthenticated discovery of public production apps.
		api.Get("/installations/public", dep.InstallationsHandler.GetPublic)

		// Machine endpoints carry their own authentication.
		api.With(mw.StaticBearer(dep.RunnerSecretToken)).
			Patch("/builds/{buildId}/status", dep.BuildsHandler.Status)
		api.With(mw.GeneratorAuth(dep.GeneratorToken, dep.GeneratorHostname, dep.Production)).
			Post("/getparams.execute", dep.ProvisionHandler.GetParams)

		// Runner-scoped reads: the token itself pins the tenant pair.
		api.Group(func(rr chi.Router) {
			rr.Use(mw.Auth(dep.Issuer))
			rr.Use(mw.RequireRole(token.RoleRunner))
			rr.Get("/env_vars/{orgId}/{envId}", dep.EnvVarsHandler.FetchForRunner)
			rr.Get("/installations/runner", dep.InstallationsHandler.ListForRunner)
		})

		// Developer API: every request is organization scoped; mutations
		// require service_role.
		api.Group(func(dev chi.Router) {
			dev.Use(mw.Auth(dep.Issuer))
			dev.Use(mw.RequireRole(token.RoleAnon, token.RoleServiceRole))
			dev.Use(mw.ResolveOrg(dep.OrgRepo))

			dev.Get("/apps", dep.AppsHandler.List)
			dev.Get("/apps/{id}", dep.AppsHandler.Get)
			dev.Get("/builds", dep.BuildsHandler.List)
			dev.Get("/builds/{buildId}", dep.BuildsHandler.Get)
			dev.Get("/installations", dep.InstallationsHandler.List)
			dev.Get("/environments", dep.EnvironmentsHandler.List)
			dev.Get("/environments/{id}", dep.EnvironmentsHandler.Get)
			dev.Get("/env_vars", dep.EnvVarsHandler.List)

			dev.Group(func(priv chi.Router) {
				priv.Use(mw.RequireRole(token.RoleServiceRole))

				priv.Post("/apps", dep.AppsHandler.Create)
				priv.Put("/apps/{id}", dep.AppsHandler.Update)
				priv.Delete("/apps/{id}", dep.AppsHandler.Delete)

				priv.Post("/builds/git", dep.BuildsHandler.RequestGit)
				priv.Post("/builds/upload_url", dep.BuildsHandler.RequestUploadURL)
				priv.Post("/builds/uploaded", dep.BuildsHandler.Uploaded)

				priv.Post("/installations", dep.InstallationsHandler.Create)
				priv.Put("/installations", dep.InstallationsHandler.Update)
				priv.Delete("/installations", dep.InstallationsHandler.Delete)

				priv.Post("/environments", dep.EnvironmentsHandler.Create)
				priv.Delete("/environments/{id}", dep.EnvironmentsHandler.Delete)

				priv.Post("/env_vars", dep.EnvVarsHandler.Create)
				priv.Delete("/env_vars", dep.EnvVarsHandler.Delete)
			})
		})
	})

	return r
}
