package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	dfotel "github.com/docuflow/docuflow/internal/adapter/otel"
	"github.com/docuflow/docuflow/internal/adapter/ws"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/audit"
	"github.com/docuflow/docuflow/internal/domain/decision"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/domain/workflow"
	"github.com/docuflow/docuflow/internal/logger"
	"github.com/docuflow/docuflow/internal/port/audittrail"
	"github.com/docuflow/docuflow/internal/port/broadcast"
	"github.com/docuflow/docuflow/internal/port/messagequeue"
	"github.com/docuflow/docuflow/internal/port/state"
)

// OrchestratorService drives documents through the pipeline. It owns every
// workflow mutation: creation, result recording, stage advancement and the
// final decision. Each mutation increments the version and appends exactly
// one audit record before the new state is stored, so a workflow's history
// length always equals its version.
type OrchestratorService struct {
	store    state.Store
	registry *RegistryService
	tasks    *TaskService
	trail    audittrail.Trail
	hub      broadcast.Broadcaster
	bus      messagequeue.Queue
	metrics  *dfotel.Metrics

	mu    sync.Mutex
	locks map[string]*sync.Mutex // per-workflow mutation locks
}

// NewOrchestratorService creates an OrchestratorService. bus and metrics
// may be nil.
func NewOrchestratorService(
	store state.Store,
	registry *RegistryService,
	tasks *TaskService,
	trail audittrail.Trail,
	hub broadcast.Broadcaster,
	bus messagequeue.Queue,
	metrics *dfotel.Metrics,
) *OrchestratorService {
	return &OrchestratorService{
		store:    store,
		registry: registry,
		tasks:    tasks,
		trail:    trail,
		hub:      hub,
		bus:      bus,
		metrics:  metrics,
		locks:    make(map[string]*sync.Mutex),
	}
}

// CreateWorkflow starts a new workflow at the extraction stage with version
// 1 and writes its creation audit record. The extraction kick-off task is
// the caller's to submit; creation itself schedules nothing.
func (s *OrchestratorService) CreateWorkflow(ctx context.Context, req workflow.CreateRequest) (*workflow.Workflow, error) {
	if req.DocumentType == "" {
		return nil, fmt.Errorf("document_type is required: %w", domain.ErrValidation)
	}

	now := time.Now()
	w := workflow.New(uuid.NewString(), req.DocumentType, now)

	if err := s.appendTransition(ctx, w, audit.KindCreated, now); err != nil {
		return nil, err
	}
	if err := s.store.PutWorkflow(ctx, w); err != nil {
		return nil, fmt.Errorf("store workflow: %w", err)
	}
	s.notifyTransition(ctx, w, audit.KindCreated)

	_, span := dfotel.StartWorkflowSpan(ctx, w.ID, w.DocumentType)
	span.End()
	if s.metrics != nil {
		s.metrics.WorkflowsCreated.Add(ctx, 1, metric.WithAttributes(
			attribute.String("document.type", w.DocumentType),
		))
	}
	slog.Info("workflow created", "workflow_id", w.ID, "document_type", w.DocumentType)
	return w, nil
}

// GetWorkflow returns a snapshot of the workflow with the given id.
func (s *OrchestratorService) GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error) {
	return s.store.GetWorkflow(ctx, id)
}

// ListWorkflows returns snapshots of all workflows in creation order.
func (s *OrchestratorService) ListWorkflows(ctx context.Context) ([]workflow.Workflow, error) {
	return s.store.ListWorkflows(ctx)
}

// History returns the audit trail of a workflow ordered by version.
func (s *OrchestratorService) History(ctx context.Context, workflowID string) ([]audit.Transition, error) {
	if _, err := s.store.GetWorkflow(ctx, workflowID); err != nil {
		return nil, fmt.Errorf("workflow %s: %w", workflowID, err)
	}
	return s.trail.History(ctx, workflowID)
}

// CompleteTask resolves a task with the result its agent reported. The
// agent is released back to idle whatever the outcome. A result with Error
// set marks the task failed and leaves the workflow untouched; a successful
// result is recorded on the workflow and the stage machine advances as far
// as the accumulated results allow, fanning out the next stage's tasks.
func (s *OrchestratorService) CompleteTask(ctx context.Context, taskID string, res task.Result) (*task.Task, error) {
	t, err := s.store.GetTask(ctx, taskID)
	if err != nil {
		return nil, err
	}
	if t.Status == task.StatusPending {
		return nil, fmt.Errorf("complete task %s that was never assigned: %w", taskID, domain.ErrInvalidState)
	}
	if t.Status.IsTerminal() {
		return nil, fmt.Errorf("complete task %s with status %s: %w", taskID, t.Status, domain.ErrInvalidState)
	}

	// Hosts may complete an assigned task directly without an explicit
	// BeginTask; the agent still passes through processing.
	now := time.Now()
	if t.Status == task.StatusAssigned {
		if _, err := s.registry.BeginProcessing(ctx, t.AgentID); err != nil {
			return nil, err
		}
		t.Status = task.StatusProcessing
		t.StartedAt = &now
	}

	success := res.Error == ""
	if _, err := s.registry.Resolve(ctx, t.AgentID, success); err != nil {
		return nil, err
	}

	t.Status = task.StatusCompleted
	if !success {
		t.Status = task.StatusFailed
	}
	t.Result = res.Clone()
	t.CompletedAt = &now
	if err := s.store.PutTask(ctx, t); err != nil {
		return nil, fmt.Errorf("store task: %w", err)
	}
	notifyTaskStatus(ctx, s.hub, s.bus, t)

	_, span := dfotel.StartTaskSpan(ctx, t.ID, string(t.Type), t.AgentID)
	span.SetAttributes(attribute.String("status", string(t.Status)))
	span.End()
	s.recordTaskMetrics(ctx, t, now, success)

	if !success {
		slog.Warn("task failed", "task_id", t.ID, "workflow_id", t.WorkflowID, "type", t.Type, "error", res.Error)
		return t, nil
	}

	if err := s.applyResult(ctx, t, res); err != nil {
		return nil, err
	}
	return t, nil
}

// SystemStatus summarizes live orchestrator state for dashboards.
func (s *OrchestratorService) SystemStatus(ctx context.Context) (*SystemStatus, error) {
	return buildSystemStatus(ctx, s.store)
}

// --- mutation path ---

// applyResult records a successful task result on the owning workflow and
// runs the advance loop, all under the workflow's mutation lock.
func (s *OrchestratorService) applyResult(ctx context.Context, t *task.Task, res task.Result) error {
	mu := s.lockFor(t.WorkflowID)
	mu.Lock()
	defer mu.Unlock()

	w, err := s.store.GetWorkflow(ctx, t.WorkflowID)
	if err != nil {
		return fmt.Errorf("workflow %s: %w", t.WorkflowID, err)
	}

	now := time.Now()
	w.SetResult(t.AgentID, t.Type, res, now)
	if err := s.mutate(ctx, w, audit.KindResultUpdate, now); err != nil {
		return err
	}
	slog.Info("result recorded",
		"workflow_id", w.ID,
		"agent_id", t.AgentID,
		"type", t.Type,
		"confidence", res.Confidence,
		"anomalies", len(res.Anomalies),
		"version", w.Version,
	)

	return s.advance(ctx, w)
}

// advance moves the workflow forward while every stage's required results
// are present. Entering the decision stage immediately evaluates and
// completes the workflow. The caller holds the workflow's mutation lock.
func (s *OrchestratorService) advance(ctx context.Context, w *workflow.Workflow) error {
	for {
		if w.Stage.IsTerminal() {
			return nil
		}
		required := w.Stage.RequiredResults()
		if len(required) == 0 || !w.HasResultsFor(required) {
			return nil
		}
		next, ok := w.Stage.Next()
		if !ok {
			return nil
		}

		if err := s.enterStage(ctx, w, next); err != nil {
			return err
		}
		if next == workflow.StageDecision {
			return s.decide(ctx, w)
		}
		s.fanOut(ctx, w, next)
	}
}

// enterStage advances the workflow into next as one versioned mutation.
func (s *OrchestratorService) enterStage(ctx context.Context, w *workflow.Workflow, next workflow.Stage) error {
	now := time.Now()
	w.Stage = next
	w.Status = next.EnteredStatus()
	if err := s.mutate(ctx, w, audit.KindStageAdvance, now); err != nil {
		return err
	}

	if s.metrics != nil {
		s.metrics.StageAdvances.Add(ctx, 1, metric.WithAttributes(
			attribute.String("stage", string(next)),
		))
	}
	slog.Info("stage advanced", "workflow_id", w.ID, "stage", w.Stage, "status", w.Status, "version", w.Version)
	return nil
}

// fanOut submits the tasks a freshly entered stage needs. Quality review
// runs at high priority, validations at medium. A task that finds no agent
// stays pending for a later Dispatch; fan-out never fails the advance.
func (s *OrchestratorService) fanOut(ctx context.Context, w *workflow.Workflow, stage workflow.Stage) {
	for _, tt := range stage.EntryTasks() {
		priority := task.PriorityMedium
		if tt == task.TypeQualityReview {
			priority = task.PriorityHigh
		}
		if _, err := s.tasks.SubmitTask(ctx, task.SubmitRequest{
			WorkflowID: w.ID,
			Type:       tt,
			Priority:   priority,
		}); err != nil {
			slog.Warn("fan-out submission", "workflow_id", w.ID, "type", tt, "error", err)
		}
	}
}

// decide aggregates the workflow's results, evaluates the decision rules
// and completes the workflow. Recording the decision and entering the
// completed stage are one mutation.
func (s *OrchestratorService) decide(ctx context.Context, w *workflow.Workflow) error {
	ctx = logger.WithWorkflowID(ctx, w.ID)
	_, span := dfotel.StartDecisionSpan(ctx, w.ID)
	defer span.End()

	now := time.Now()
	confidence, anomalyCount := Aggregate(w)
	d := decision.Evaluate(confidence, anomalyCount, now)
	span.SetAttributes(
		attribute.String("action", string(d.Action)),
		attribute.Float64("confidence", d.Confidence),
	)

	w.Decision = &d
	w.Stage = workflow.StageCompleted
	w.Status = workflow.StatusCompleted
	if err := s.mutate(ctx, w, audit.KindStageAdvance, now); err != nil {
		return err
	}

	s.hub.BroadcastEvent(ctx, ws.EventWorkflowDecision, ws.WorkflowDecisionEvent{
		WorkflowID:   w.ID,
		DocumentType: w.DocumentType,
		Action:       string(d.Action),
		Reasoning:    d.Reasoning,
		Confidence:   d.Confidence,
		AnomalyCount: d.AnomalyCount,
		Risk:         string(d.Risk),
	})
	publishEvent(ctx, s.bus, messagequeue.SubjectWorkflowDecision, messagequeue.WorkflowDecisionPayload{
		WorkflowID:   w.ID,
		DocumentType: w.DocumentType,
		Action:       string(d.Action),
		Reasoning:    d.Reasoning,
		Confidence:   d.Confidence,
		AnomalyCount: d.AnomalyCount,
		Risk:         string(d.Risk),
	})

	if s.metrics != nil {
		attrs := metric.WithAttributes(
			attribute.String("action", string(d.Action)),
			attribute.String("risk", string(d.Risk)),
		)
		s.metrics.WorkflowsCompleted.Add(ctx, 1, attrs)
		s.metrics.DecisionConfidence.Record(ctx, d.Confidence, attrs)
	}
	slog.Info("workflow decided",
		"workflow_id", w.ID,
		"action", d.Action,
		"confidence", d.Confidence,
		"anomalies", d.AnomalyCount,
		"risk", d.Risk,
		"version", w.Version,
	)
	return nil
}

// mutate applies one versioned mutation: bump the version, append the audit
// record, then store the new state. The record is appended first so a trail
// failure can never leave a version without its record.
func (s *OrchestratorService) mutate(ctx context.Context, w *workflow.Workflow, kind audit.Kind, now time.Time) error {
	w.Version++
	w.UpdatedAt = now
	if err := s.appendTransition(ctx, w, kind, now); err != nil {
		return err
	}
	if err := s.store.PutWorkflow(ctx, w); err != nil {
		return fmt.Errorf("store workflow: %w", err)
	}
	s.notifyTransition(ctx, w, kind)
	return nil
}

// --- helpers ---

func (s *OrchestratorService) lockFor(workflowID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	mu, ok := s.locks[workflowID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[workflowID] = mu
	}
	return mu
}

func (s *OrchestratorService) appendTransition(ctx context.Context, w *workflow.Workflow, kind audit.Kind, now time.Time) error {
	tr := &audit.Transition{
		ID:         uuid.NewString(),
		WorkflowID: w.ID,
		Kind:       kind,
		Status:     w.Status,
		Stage:      w.Stage,
		Version:    w.Version,
		Snapshot:   *w.Clone(),
		RecordedAt: now,
	}
	if err := s.trail.Append(ctx, tr); err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

func (s *OrchestratorService) notifyTransition(ctx context.Context, w *workflow.Workflow, kind audit.Kind) {
	ctx = logger.WithWorkflowID(ctx, w.ID)
	s.hub.BroadcastEvent(ctx, ws.EventWorkflowStatus, ws.WorkflowStatusEvent{
		WorkflowID:   w.ID,
		DocumentType: w.DocumentType,
		Stage:        string(w.Stage),
		Status:       string(w.Status),
		Version:      w.Version,
	})
	publishEvent(ctx, s.bus, messagequeue.SubjectWorkflowTransition, messagequeue.WorkflowTransitionPayload{
		WorkflowID:   w.ID,
		DocumentType: w.DocumentType,
		Kind:         string(kind),
		Stage:        string(w.Stage),
		Status:       string(w.Status),
		Version:      w.Version,
	})
}

func (s *OrchestratorService) recordTaskMetrics(ctx context.Context, t *task.Task, now time.Time, success bool) {
	if s.metrics == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("type", string(t.Type)))
	if success {
		s.metrics.TasksCompleted.Add(ctx, 1, attrs)
	} else {
		s.metrics.TasksFailed.Add(ctx, 1, attrs)
	}
	if t.StartedAt != nil {
		s.metrics.TaskDuration.Record(ctx, now.Sub(*t.StartedAt).Seconds(), attrs)
	}
}
