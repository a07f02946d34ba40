package httpapi

import (
	"net/http"
	"time"

	"assetgen/internal/http/handlers"
	"assetgen/internal/infra"
	mw "assetgen/internal/middleware"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// RouterOptions carries the cross-cutting settings of the manifest API.
type RouterOptions struct {
	CORSOrigins     []string
	RateLimitPerMin int
	Logger          infra.Logger
}

func NewRouter(app *handlers.App, opts RouterOptions) http.Handler {
	r := chi.NewRouter()

	r.Use(
		mw.RequestID,
		middleware.RealIP,
		middleware.Recoverer,
		mw.Logger(opts.Logger),
		mw.CORS(opts.CORSOrigins),
		mw.RateLimit(opts.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)
	r.Get("/v1/openapi.json", app.OpenAPIJSON)
	r.Get("/v1/docs", app.OpenAPIDocs)

	r.Route("/v1/manifest", func(r chi.Router) {
		r.Get("/", app.Manifest)
		r.Get("/heroes/{name}", app.Hero)
		r.Get("/portfolio/{id}", app.PortfolioItem)
	})

	r.Get("/v1/runs/{id}/tasks", app.RunTasks)

	return r
}
