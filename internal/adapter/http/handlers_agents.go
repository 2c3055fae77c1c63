package http

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
)

// ListAgents handles GET /api/v1/agents
func (h *Handlers) ListAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.Registry.List(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if agents == nil {
		agents = []agent.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

// GetAgent handles GET /api/v1/agents/{id}
func (h *Handlers) GetAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.Registry.Get(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "agent not found")
		return
	}
	writeJSON(w, http.StatusOK, a)
}

// RegisterAgent handles POST /api/v1/agents
func (h *Handlers) RegisterAgent(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[agent.RegisterRequest](w, r)
	if !ok {
		return
	}

	a, err := h.Registry.Register(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "agent registration failed")
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// ListTasks handles GET /api/v1/tasks
func (h *Handlers) ListTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.Tasks.ListTasks(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// GetTask handles GET /api/v1/tasks/{id}
func (h *Handlers) GetTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.Tasks.GetTask(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// ListWorkflowTasks handles GET /api/v1/workflows/{id}/tasks
func (h *Handlers) ListWorkflowTasks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	tasks, err := h.Tasks.ListWorkflowTasks(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "workflow not found")
		return
	}
	if tasks == nil {
		tasks = []task.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

// DispatchTask handles POST /api/v1/tasks/{id}/dispatch. It retries
// assignment of a pending task; 202 means the task is still pending
// because no capable agent is idle yet.
func (h *Handlers) DispatchTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	t, err := h.Tasks.Dispatch(r.Context(), id)
	switch {
	case errors.Is(err, domain.ErrUnassignable):
		writeJSON(w, http.StatusAccepted, t)
	case err != nil:
		writeDomainError(w, err, "task not found")
	default:
		writeJSON(w, http.StatusOK, t)
	}
}

// submitTaskRequest is the body for submitting a workflow task.
type submitTaskRequest struct {
	Type     task.Type     `json:"type"`
	Priority task.Priority `json:"priority,omitempty"`
}

// SubmitWorkflowTask handles POST /api/v1/workflows/{id}/tasks. Hosts use
// it to feed replacement attempts after a failed completion; stage fan-out
// stays with the orchestrator. 202 means the task was created but no
// capable agent was idle.
func (h *Handlers) SubmitWorkflowTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	req, ok := readJSON[submitTaskRequest](w, r)
	if !ok {
		return
	}

	t, err := h.Tasks.SubmitTask(r.Context(), task.SubmitRequest{
		WorkflowID: id,
		Type:       req.Type,
		Priority:   req.Priority,
	})
	switch {
	case errors.Is(err, domain.ErrUnassignable):
		writeJSON(w, http.StatusAccepted, t)
	case err != nil:
		writeDomainError(w, err, "task submission failed")
	default:
		writeJSON(w, http.StatusCreated, t)
	}
}

// CompleteTask handles POST /api/v1/tasks/{id}/complete. The body is the
// agent's uniform result; a result with error set marks the attempt failed
// and leaves the workflow untouched.
func (h *Handlers) CompleteTask(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	res, ok := readJSON[task.Result](w, r)
	if !ok {
		return
	}

	t, err := h.Orchestrator.CompleteTask(r.Context(), id, res)
	if err != nil {
		writeDomainError(w, err, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, t)
}
