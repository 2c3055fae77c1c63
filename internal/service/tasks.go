package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/docuflow/internal/adapter/ws"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/port/broadcast"
	"github.com/docuflow/docuflow/internal/port/messagequeue"
	"github.com/docuflow/docuflow/internal/port/state"
)

// TaskService submits tasks and routes each one to the best idle agent
// declaring its type. Selection is greedy: highest success rate wins,
// registration order breaks ties. A task that finds no agent stays pending
// and is retried through Dispatch.
type TaskService struct {
	store    state.Store
	registry *RegistryService
	hub      broadcast.Broadcaster
	bus      messagequeue.Queue
	mu       sync.Mutex // serializes the select-and-assign window
}

// NewTaskService creates a TaskService. bus may be nil to disable queue
// publishing.
func NewTaskService(store state.Store, registry *RegistryService, hub broadcast.Broadcaster, bus messagequeue.Queue) *TaskService {
	return &TaskService{store: store, registry: registry, hub: hub, bus: bus}
}

// SubmitTask creates a task for an existing workflow and immediately tries
// to assign it. When no idle capable agent exists the task is still created
// and returned alongside ErrUnassignable; it stays pending until a Dispatch
// retry finds an agent. Submission never mutates the workflow.
func (s *TaskService) SubmitTask(ctx context.Context, req task.SubmitRequest) (*task.Task, error) {
	if !req.Type.Known() {
		return nil, fmt.Errorf("unknown task type %q: %w", req.Type, domain.ErrValidation)
	}
	if _, err := s.store.GetWorkflow(ctx, req.WorkflowID); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", req.WorkflowID, err)
	}

	priority := req.Priority
	if priority == "" {
		priority = task.PriorityMedium
	}

	t := &task.Task{
		ID:         uuid.NewString(),
		WorkflowID: req.WorkflowID,
		Type:       req.Type,
		Priority:   priority,
		Status:     task.StatusPending,
		CreatedAt:  time.Now(),
	}
	if err := s.store.PutTask(ctx, t); err != nil {
		return nil, fmt.Errorf("store task: %w", err)
	}
	notifyTaskStatus(ctx, s.hub, s.bus, t)
	slog.Info("task submitted", "task_id", t.ID, "workflow_id", t.WorkflowID, "type", t.Type, "priority", t.Priority)

	if err := s.assign(ctx, t); err != nil {
		return t, err
	}
	return t, nil
}

// Dispatch retries assignment for a pending task, typically after an agent
// has been released. The task must still be pending.
func (s *TaskService) Dispatch(ctx context.Context, taskID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusPending {
		return nil, fmt.Errorf("dispatch task %s with status %s: %w", taskID, t.Status, domain.ErrInvalidState)
	}
	if err := s.assign(ctx, t); err != nil {
		return t, err
	}
	return t, nil
}

// BeginTask moves an assigned task and its agent to processing.
func (s *TaskService) BeginTask(ctx context.Context, taskID string) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status != task.StatusAssigned {
		return nil, fmt.Errorf("begin task %s with status %s: %w", taskID, t.Status, domain.ErrInvalidState)
	}
	if _, err := s.registry.BeginProcessing(ctx, t.AgentID); err != nil {
		return nil, err
	}

	now := time.Now()
	t.Status = task.StatusProcessing
	t.StartedAt = &now
	if err := s.store.PutTask(ctx, t); err != nil {
		return nil, fmt.Errorf("store task: %w", err)
	}
	notifyTaskStatus(ctx, s.hub, s.bus, t)
	return t, nil
}

// GetTask returns a snapshot of the task with the given id.
func (s *TaskService) GetTask(ctx context.Context, id string) (*task.Task, error) {
	return s.store.GetTask(ctx, id)
}

// ListTasks returns snapshots of all tasks in submission order.
func (s *TaskService) ListTasks(ctx context.Context) ([]task.Task, error) {
	return s.store.ListTasks(ctx)
}

// ListWorkflowTasks returns the tasks of one workflow in submission order.
// This is the coordination ledger for the workflow: every assignment and
// outcome is readable here without touching the workflow's version.
func (s *TaskService) ListWorkflowTasks(ctx context.Context, workflowID string) ([]task.Task, error) {
	if _, err := s.store.GetWorkflow(ctx, workflowID); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, err)
	}
	return s.store.ListTasksByWorkflow(ctx, workflowID)
}

// --- helpers ---

// assign runs the select-and-assign window under the service lock so two
// tasks can never claim the same agent.
func (s *TaskService) assign(ctx context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	best, err := s.selectAgent(ctx, t.Type)
	if err != nil {
		return err
	}
	if best == nil {
		s.hub.BroadcastEvent(ctx, ws.EventTaskUnassignable, ws.TaskUnassignableEvent{
			TaskID:     t.ID,
			WorkflowID: t.WorkflowID,
			Type:       string(t.Type),
		})
		slog.Warn("no capable agent available", "task_id", t.ID, "type", t.Type)
		return fmt.Errorf("task %s (%s): %w", t.ID, t.Type, domain.ErrUnassignable)
	}

	if _, err := s.registry.Assign(ctx, best.ID, t.ID); err != nil {
		return fmt.Errorf("assign agent %s: %w", best.ID, err)
	}

	now := time.Now()
	t.Status = task.StatusAssigned
	t.AgentID = best.ID
	t.AssignedAt = &now
	if err := s.store.PutTask(ctx, t); err != nil {
		return fmt.Errorf("store task: %w", err)
	}
	notifyTaskStatus(ctx, s.hub, s.bus, t)
	slog.Info("task assigned", "task_id", t.ID, "agent_id", best.ID, "success_rate", best.SuccessRate)
	return nil
}

// selectAgent picks the idle agent with the strictly highest success rate
// among those declaring the capability. Ties keep the earlier registration.
func (s *TaskService) selectAgent(ctx context.Context, capability task.Type) (*agent.Agent, error) {
	candidates, err := s.registry.ListIdle(ctx, capability)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	best := candidates[0]
	for _, c := range candidates[1:] {
		if c.SuccessRate > best.SuccessRate {
			best = c
		}
	}
	return &best, nil
}

// notifyTaskStatus pushes a task status change to websocket observers and
// the message bus. The workflow id rides the context so the bus adapter can
// forward it to consumers.
func notifyTaskStatus(ctx context.Context, hub broadcast.Broadcaster, bus messagequeue.Queue, t *task.Task) {
	ctx = logger.WithWorkflowID(ctx, t.WorkflowID)
	errMsg := ""
	if t.Result != nil {
		errMsg = t.Result.Error
	}
	hub.BroadcastEvent(ctx, ws.EventTaskStatus, ws.TaskStatusEvent{
		TaskID:     t.ID,
		WorkflowID: t.WorkflowID,
		Type:       string(t.Type),
		Status:     string(t.Status),
		AgentID:    t.AgentID,
		Error:      errMsg,
	})
	publishEvent(ctx, bus, messagequeue.SubjectTaskStatus, messagequeue.TaskStatusPayload{
		TaskID:     t.ID,
		WorkflowID: t.WorkflowID,
		Type:       string(t.Type),
		Status:     string(t.Status),
		AgentID:    t.AgentID,
		Error:      errMsg,
	})
}

// publishEvent marshals and publishes a payload to the message bus.
// Publishing is best effort: a bus failure is logged and never fails the
// operation that produced the event.
func publishEvent(ctx context.Context, bus messagequeue.Queue, subject string, payload any) {
	if bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal queue payload", "subject", subject, "error", err)
		return
	}
	if err := bus.Publish(ctx, subject, data); err != nil {
		slog.Error("publish queue message", "subject", subject, "error", err)
	}
}
