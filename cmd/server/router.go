package main

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lumenlearn/lumen-api/internal/api"
	"github.com/lumenlearn/lumen-api/internal/api/middleware"
	"github.com/lumenlearn/lumen-api/internal/jobqueue"
	"github.com/lumenlearn/lumen-api/internal/notify"
	"github.com/lumenlearn/lumen-api/internal/store"
)

// newRouter assembles the HTTP surface: generation job endpoints, the
// websocket event bridge, metrics and liveness.
func newRouter(manager *jobqueue.Manager, cache store.ResultCache, hub *notify.Hub, log *slog.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)

	handler := api.NewGenerationHandler(manager, cache, log)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generations", handler.Submit)
		r.Get("/generations/{id}", handler.GetStatus)
		r.Delete("/generations/{id}", handler.Cancel)
		r.Get("/generations/{id}/result", handler.GetJobResult)
		r.Get("/lessons/{lessonID}/result", handler.GetLessonResult)
	})

	r.Handle("/ws", notify.NewWSHandler(hub, log))
	r.Handle("/metrics", promhttp.Handler())

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}
