package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/wikicite/archiver/internal/api/middleware"
)

// NewRouter builds the HTTP router with all task routes mounted under
// /api. The stream routes speak websocket after the upgrade handshake.
func NewRouter(taskHandler *TaskHandler, streamHandler *StreamHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RealIP)
	r.Use(middleware.TraceMiddleware)
	r.Use(chimiddleware.Recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", taskHandler.CreateTask)
			r.Get("/", taskHandler.ListTasks)
			r.Get("/stream", streamHandler.CreateAndStreamTask)
			r.Get("/{id}", taskHandler.GetTask)
			r.Post("/{id}/cancel", taskHandler.CancelTask)
			r.Get("/{id}/stream", streamHandler.StreamTask)
		})
	})

	return r
}
