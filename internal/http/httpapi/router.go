package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"brandguard/internal/http/handlers"
	"brandguard/internal/middleware"
)

// NewRouter assembles the API surface. lookup may be nil when no GeoIP
// database is configured.
func NewRouter(app *handlers.App, lookup middleware.CountryLookup) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.RequestID,
		chimw.RealIP,
		chimw.Recoverer,
		middleware.Logger(app.Logger),
		middleware.Locale(app.Config.DefaultLocale, lookup),
		middleware.RateLimit(app.Config.RateLimitPerMin, time.Minute),
	)

	r.Get("/v1/healthz", app.Health)

	r.Route("/v1/jobs", func(r chi.Router) {
		r.Post("/", app.SubmitJob)
		r.Get("/{job_id}", app.GetJob)
		r.Post("/{job_id}/cancel", app.CancelJob)
		r.Get("/{job_id}/assets", app.JobAssets)
		r.Get("/{job_id}/assets/zip", app.JobAssetsZip)
	})

	r.Route("/v1/brands", func(r chi.Router) {
		r.Get("/", app.ListBrands)
		r.Get("/{brand_id}", app.GetBrand)
	})

	if app.Store != nil {
		fileServer := http.StripPrefix("/static/", http.FileServer(http.Dir(app.Store.BasePath())))
		r.Handle("/static/*", fileServer)
	}

	return r
}
