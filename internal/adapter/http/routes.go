package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// MountRoutes registers all API routes on the given chi router.
func MountRoutes(r chi.Router, h *Handlers) {
	r.Route("/api/v1", func(r chi.Router) {
		// Version
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"version":"0.1.0"}`))
		})

		// Document ingest
		r.Post("/documents", h.IngestDocument)

		// Workflows
		r.Get("/workflows", h.ListWorkflows)
		r.Get("/workflows/{id}", h.GetWorkflow)
		r.Get("/workflows/{id}/history", h.GetWorkflowHistory)
		r.Get("/workflows/{id}/tasks", h.ListWorkflowTasks)
		r.Post("/workflows/{id}/tasks", h.SubmitWorkflowTask)

		// Tasks
		r.Get("/tasks", h.ListTasks)
		r.Get("/tasks/{id}", h.GetTask)
		r.Post("/tasks/{id}/dispatch", h.DispatchTask)
		r.Post("/tasks/{id}/complete", h.CompleteTask)

		// Agents
		r.Get("/agents", h.ListAgents)
		r.Post("/agents", h.RegisterAgent)
		r.Get("/agents/{id}", h.GetAgent)

		// Introspection
		r.Get("/status", h.GetStatus)
		r.Get("/export", h.ExportState)
	})

	r.Get("/healthz", h.Healthz)
	r.Get("/ws", h.Hub.HandleWS)
}
