package handlers

import (
	"database/sql"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/skpttrack/tracker/internal/logging"
)

// Routes collects everything the HTTP surface needs. Metrics may be nil.
type Routes struct {
	DB       *sql.DB
	Verifier TokenVerifier
	Links    *LinkHandler
	Track    *TrackHandler
	Events   *EventHandler
	Reports  *ReportHandler
	Health   *HealthHandler
	Metrics  http.Handler
}

func NewRouter(rt Routes) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  logging.For("http"),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Get("/health", rt.Health.Live)
	r.Get("/health/ready", rt.Health.Ready)
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics)
	}

	r.Get("/track", rt.Track.ServeHTTP)
	r.Post("/track", rt.Track.ServeHTTP)

	r.Route("/api", func(r chi.Router) {
		r.Use(RequireStore(rt.DB))
		r.Use(AuthMiddleware(rt.Verifier, rt.DB))

		r.Post("/links", rt.Links.Create)
		r.Get("/links", rt.Links.List)
		r.Get("/links/{id}", rt.Links.Get)
		r.Delete("/links/{id}", rt.Links.Deactivate)
		r.Get("/links/{id}/qr", rt.Links.QRCode)

		r.Get("/events", rt.Events.List)

		r.Post("/reports", rt.Reports.Compute)
		r.Get("/reports", rt.Reports.List)
		r.Get("/reports/breakdown", rt.Reports.Breakdown)
	})

	return r
}
