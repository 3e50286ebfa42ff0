package chord

import (
	"net/http"

	"go.miragespace.co/chord/metrics"
	"go.miragespace.co/chord/spec/chord"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

func StatsHandler(registry *Registry, factory chord.HandleFactory) http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.URLFormat)
	router.Get("/nodes", nodesHandler(registry))
	router.Get("/nodes/{id}", nodeHandler(registry))
	router.Get("/nodes/{id}/graph", ringGraphHandler(registry, factory))
	router.Get("/metrics", metrics.MetricsHandler)

	return router
}
