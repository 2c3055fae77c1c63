package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/docuflow/docuflow/internal/adapter/ws"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/domain/workflow"
	"github.com/docuflow/docuflow/internal/export"
	"github.com/docuflow/docuflow/internal/port/audittrail"
	"github.com/docuflow/docuflow/internal/port/cache"
	"github.com/docuflow/docuflow/internal/port/messagequeue"
	"github.com/docuflow/docuflow/internal/port/state"
	"github.com/docuflow/docuflow/internal/service"
)

// Handlers holds the HTTP handler dependencies. Cache is optional; a nil
// cache disables response caching without changing behavior.
type Handlers struct {
	Orchestrator *service.OrchestratorService
	Tasks        *service.TaskService
	Registry     *service.RegistryService
	Store        state.Store
	Trail        audittrail.Trail
	Hub          *ws.Hub
	Queue        messagequeue.Queue
	Cache        cache.Cache
	CacheTTL     time.Duration
}

// ingestResponse pairs the created workflow with its kick-off extraction
// task. The task may still be pending when no capable agent was idle.
type ingestResponse struct {
	Workflow *workflow.Workflow `json:"workflow"`
	Task     *task.Task         `json:"task"`
}

// IngestDocument handles POST /api/v1/documents. It creates the workflow
// and submits the kick-off extraction task. When no extraction agent is
// idle the task stays pending and the response is 202, not an error; the
// task can be re-dispatched later.
func (h *Handlers) IngestDocument(w http.ResponseWriter, r *http.Request) {
	req, ok := readJSON[workflow.CreateRequest](w, r)
	if !ok {
		return
	}

	wf, err := h.Orchestrator.CreateWorkflow(r.Context(), req)
	if err != nil {
		writeDomainError(w, err, "workflow creation failed")
		return
	}

	t, err := h.Tasks.SubmitTask(r.Context(), task.SubmitRequest{
		WorkflowID: wf.ID,
		Type:       task.TypeExtraction,
		Priority:   task.PriorityHigh,
	})
	switch {
	case errors.Is(err, domain.ErrUnassignable):
		writeJSON(w, http.StatusAccepted, ingestResponse{Workflow: wf, Task: t})
	case err != nil:
		writeDomainError(w, err, "extraction task submission failed")
	default:
		writeJSON(w, http.StatusCreated, ingestResponse{Workflow: wf, Task: t})
	}
}

// ListWorkflows handles GET /api/v1/workflows
func (h *Handlers) ListWorkflows(w http.ResponseWriter, r *http.Request) {
	workflows, err := h.Orchestrator.ListWorkflows(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}
	if workflows == nil {
		workflows = []workflow.Workflow{}
	}
	writeJSON(w, http.StatusOK, workflows)
}

// GetWorkflow handles GET /api/v1/workflows/{id}
func (h *Handlers) GetWorkflow(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	wf, err := h.Orchestrator.GetWorkflow(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "workflow not found")
		return
	}

	// Snapshots are keyed by version, so a cached copy is never stale.
	key := cache.WorkflowKey(wf.ID, wf.Version)
	if data, ok := h.cacheGet(r, key); ok {
		writeRawJSON(w, http.StatusOK, data)
		return
	}

	data, err := json.Marshal(wf)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	h.cachePut(r, key, data)
	writeRawJSON(w, http.StatusOK, data)
}

// GetWorkflowHistory handles GET /api/v1/workflows/{id}/history
func (h *Handlers) GetWorkflowHistory(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	// The workflow version keys the cached history: one record per version
	// means the history for a version can never change.
	wf, err := h.Orchestrator.GetWorkflow(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "workflow not found")
		return
	}

	key := cache.HistoryKey(wf.ID, wf.Version)
	if data, ok := h.cacheGet(r, key); ok {
		writeRawJSON(w, http.StatusOK, data)
		return
	}

	hist, err := h.Orchestrator.History(r.Context(), id)
	if err != nil {
		writeDomainError(w, err, "workflow not found")
		return
	}

	data, err := json.Marshal(hist)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	h.cachePut(r, key, data)
	writeRawJSON(w, http.StatusOK, data)
}

// GetStatus handles GET /api/v1/status
func (h *Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	if data, ok := h.cacheGet(r, cache.StatusKey()); ok {
		writeRawJSON(w, http.StatusOK, data)
		return
	}

	status, err := h.Orchestrator.SystemStatus(r.Context())
	if err != nil {
		writeInternalError(w, err)
		return
	}

	data, err := json.Marshal(status)
	if err != nil {
		writeInternalError(w, err)
		return
	}
	h.cachePut(r, cache.StatusKey(), data)
	writeRawJSON(w, http.StatusOK, data)
}

// ExportState handles GET /api/v1/export. The response is the full audit
// handoff snapshot: workflows, agents, tasks and the transition archive.
// Exports are never cached; a handoff must reflect the state at request
// time.
func (h *Handlers) ExportState(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Disposition", `attachment; filename="docuflow-export.json"`)

	snap, err := export.Collect(r.Context(), h.Store, h.Trail)
	if err != nil {
		writeInternalError(w, err)
		return
	}

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		writeInternalError(w, err)
		return
	}
	writeRawJSON(w, http.StatusOK, data)
}

// healthResponse reports process liveness plus the event bus connection
// state: "connected", "disconnected", or empty when NATS is not configured.
type healthResponse struct {
	Status string `json:"status"`
	NATS   string `json:"nats,omitempty"`
}

// Healthz handles GET /healthz
func (h *Handlers) Healthz(w http.ResponseWriter, _ *http.Request) {
	resp := healthResponse{Status: "ok"}
	if h.Queue != nil {
		if h.Queue.IsConnected() {
			resp.NATS = "connected"
		} else {
			resp.NATS = "disconnected"
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// --- cache helpers ---

func (h *Handlers) cacheGet(r *http.Request, key string) ([]byte, bool) {
	if h.Cache == nil {
		return nil, false
	}
	data, ok, err := h.Cache.Get(r.Context(), key)
	if err != nil || !ok {
		return nil, false
	}
	return data, true
}

func (h *Handlers) cachePut(r *http.Request, key string, data []byte) {
	if h.Cache == nil {
		return
	}
	_ = h.Cache.Set(r.Context(), key, data, h.CacheTTL)
}
