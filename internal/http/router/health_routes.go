package router

import "github.com/go-chi/chi/v5"

func registerHealthRoutes(r chi.Router, d Deps) {
	if d.Health != nil {
		r.Get("/healthz", d.Health.Live)
		r.Get("/readyz", d.Health.Ready)
	}
	if d.Metrics != nil {
		r.Handle("/metrics", d.Metrics)
	}
}
