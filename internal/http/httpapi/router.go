package httpapi

import (
	"net/http"
	"time"

	"stylefit/internal/http/handlers"
	"stylefit/internal/middleware"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

type Options struct {
	JWTSecret      string
	DefaultLocale  string
	CountryLookup  middleware.CountryLookup
	AllowedOrigins []string
	RateLimit      int
	StaticDir      string
}

func NewRouter(app *handlers.App, opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.CORS(opts.AllowedOrigins),
		middleware.I18N(opts.DefaultLocale, opts.CountryLookup),
	)
	if opts.RateLimit > 0 {
		r.Use(middleware.RateLimit(opts.RateLimit, time.Minute))
	}

	r.Get("/v1/healthz", app.Health)

	r.Group(func(r chi.Router) {
		r.Use(middleware.AuthJWT(opts.JWTSecret))

		r.Route("/v1/tryon", func(r chi.Router) {
			r.Post("/generate", app.TryonGenerate)
			r.Post("/variations", app.TryonVariations)
			r.Get("/{job_id}", app.TryonStatus)
		})
		r.Get("/v1/credits", app.CreditsBalance)
		r.Get("/v1/projects/{id}/results.zip", app.ProjectResultsZip)
	})

	if opts.StaticDir != "" {
		fs := http.StripPrefix("/static/", http.FileServer(http.Dir(opts.StaticDir)))
		r.Get("/static/*", fs.ServeHTTP)
	}

	return r
}
