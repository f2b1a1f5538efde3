package gateway

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi mux with all routes wired.
func (g *Gateway) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	// Public, no auth required.
	r.Get("/health", g.handleHealth())
	r.Method(http.MethodGet, "/metrics", g.metrics.Handler())

	r.Group(func(r chi.Router) {
		r.Use(authMiddleware(g.config.Token, g.logger))
		r.Route("/api", func(r chi.Router) {
			r.Get("/facts", g.handleListFacts())
			r.Get("/digests", g.handleListDigests())
			r.Get("/points", g.handleListPoints())
			r.Post("/points", g.handleAddPoint())
			if g.audit != nil {
				r.Post("/audit", g.handleRecordAudit())
			}
		})
		r.Get("/ws/ingest", g.handleIngest)
	})

	return r
}
