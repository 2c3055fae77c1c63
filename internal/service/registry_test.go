package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/docuflow/docuflow/internal/adapter/memstate"
	"github.com/docuflow/docuflow/internal/adapter/memtrail"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/port/messagequeue"
)

// mockHub records every broadcast event.
type mockHub struct {
	mu     sync.Mutex
	events []capturedEvent
}

type capturedEvent struct {
	eventType string
	payload   any
}

func (h *mockHub) BroadcastEvent(_ context.Context, eventType string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, capturedEvent{eventType, payload})
}

func (h *mockHub) ofType(eventType string) []capturedEvent {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []capturedEvent
	for _, e := range h.events {
		if e.eventType == eventType {
			out = append(out, e)
		}
	}
	return out
}

// mockQueue implements messagequeue.Queue for testing.
type mockQueue struct {
	mu        sync.Mutex
	published []struct {
		subject string
		data    []byte
	}
}

func (q *mockQueue) Publish(_ context.Context, subject string, data []byte) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.published = append(q.published, struct {
		subject string
		data    []byte
	}{subject, data})
	return nil
}

func (q *mockQueue) Subscribe(_ context.Context, _ string, _ messagequeue.Handler) (func(), error) {
	return func() {}, nil
}

func (q *mockQueue) Drain() error      { return nil }
func (q *mockQueue) Close() error      { return nil }
func (q *mockQueue) IsConnected() bool { return true }

func (q *mockQueue) onSubject(subject string) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, p := range q.published {
		if p.subject == subject {
			n++
		}
	}
	return n
}

// pipeline bundles fully wired services over in-memory adapters.
type pipeline struct {
	store    *memstate.Store
	trail    *memtrail.Trail
	hub      *mockHub
	queue    *mockQueue
	registry *RegistryService
	tasks    *TaskService
	orch     *OrchestratorService
}

func newPipeline() *pipeline {
	store := memstate.New()
	trail := memtrail.New()
	hub := &mockHub{}
	queue := &mockQueue{}
	registry := NewRegistryService(store, hub, queue)
	tasks := NewTaskService(store, registry, hub, queue)
	orch := NewOrchestratorService(store, registry, tasks, trail, hub, queue, nil)
	return &pipeline{
		store:    store,
		trail:    trail,
		hub:      hub,
		queue:    queue,
		registry: registry,
		tasks:    tasks,
		orch:     orch,
	}
}

func registerAgent(t *testing.T, p *pipeline, id string, rate float64, caps ...task.Type) *agent.Agent {
	t.Helper()
	a, err := p.registry.Register(context.Background(), agent.RegisterRequest{
		ID:           id,
		Name:         id,
		Capabilities: caps,
		SuccessRate:  rate,
	})
	if err != nil {
		t.Fatalf("register %s: %v", id, err)
	}
	return a
}

// --- RegistryService tests ---

func TestRegisterRejectsEmptyCapabilities(t *testing.T) {
	p := newPipeline()
	_, err := p.registry.Register(context.Background(), agent.RegisterRequest{
		ID:          "a1",
		SuccessRate: 0.9,
	})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestRegisterRejectsBadSuccessRate(t *testing.T) {
	p := newPipeline()
	for _, rate := range []float64{0, -0.5, 1.5} {
		_, err := p.registry.Register(context.Background(), agent.RegisterRequest{
			ID:           "a1",
			Capabilities: []task.Type{task.TypeExtraction},
			SuccessRate:  rate,
		})
		if !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("rate %v: expected ErrValidation, got %v", rate, err)
		}
	}
}

func TestRegisterDuplicateID(t *testing.T) {
	p := newPipeline()
	registerAgent(t, p, "a1", 0.9, task.TypeExtraction)
	_, err := p.registry.Register(context.Background(), agent.RegisterRequest{
		ID:           "a1",
		Capabilities: []task.Type{task.TypeContract},
		SuccessRate:  0.8,
	})
	if !errors.Is(err, domain.ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}
}

func TestRegisterGeneratesID(t *testing.T) {
	p := newPipeline()
	a, err := p.registry.Register(context.Background(), agent.RegisterRequest{
		Name:         "anon",
		Capabilities: []task.Type{task.TypeMSA},
		SuccessRate:  0.7,
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if a.ID == "" {
		t.Fatal("expected generated agent id")
	}
	if a.State != agent.StateIdle {
		t.Fatalf("expected idle, got %s", a.State)
	}
}

func TestListIdleFiltersByCapabilityAndState(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerAgent(t, p, "ext", 0.9, task.TypeExtraction)
	registerAgent(t, p, "multi", 0.8, task.TypeExtraction, task.TypeContract)
	registerAgent(t, p, "qr", 0.95, task.TypeQualityReview)

	if _, err := p.registry.Assign(ctx, "ext", "t1"); err != nil {
		t.Fatalf("assign: %v", err)
	}

	idle, err := p.registry.ListIdle(ctx, task.TypeExtraction)
	if err != nil {
		t.Fatalf("list idle: %v", err)
	}
	if len(idle) != 1 || idle[0].ID != "multi" {
		t.Fatalf("expected only multi, got %+v", idle)
	}
}

func TestAssignRequiresIdle(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerAgent(t, p, "a1", 0.9, task.TypeExtraction)

	if _, err := p.registry.Assign(ctx, "a1", "t1"); err != nil {
		t.Fatalf("first assign: %v", err)
	}
	_, err := p.registry.Assign(ctx, "a1", "t2")
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestResolveReleasesAgent(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerAgent(t, p, "a1", 0.9, task.TypeExtraction)

	if _, err := p.registry.Assign(ctx, "a1", "t1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := p.registry.BeginProcessing(ctx, "a1"); err != nil {
		t.Fatalf("begin processing: %v", err)
	}
	a, err := p.registry.Resolve(ctx, "a1", true)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.State != agent.StateIdle {
		t.Fatalf("expected idle after resolve, got %s", a.State)
	}
	if a.CurrentTaskID != "" {
		t.Fatalf("expected cleared task, got %q", a.CurrentTaskID)
	}
	if a.TasksCompleted != 1 || a.TasksFailed != 0 {
		t.Fatalf("expected 1 completed, got %d/%d", a.TasksCompleted, a.TasksFailed)
	}
}

func TestResolveFailureCountsAndReleases(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerAgent(t, p, "a1", 0.9, task.TypeExtraction)

	if _, err := p.registry.Assign(ctx, "a1", "t1"); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if _, err := p.registry.BeginProcessing(ctx, "a1"); err != nil {
		t.Fatalf("begin processing: %v", err)
	}
	a, err := p.registry.Resolve(ctx, "a1", false)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if a.State != agent.StateIdle {
		t.Fatalf("expected idle after failed resolve, got %s", a.State)
	}
	if a.TasksFailed != 1 {
		t.Fatalf("expected 1 failed, got %d", a.TasksFailed)
	}
}

func TestResolveRequiresProcessing(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerAgent(t, p, "a1", 0.9, task.TypeExtraction)

	_, err := p.registry.Resolve(ctx, "a1", true)
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("expected ErrInvalidState, got %v", err)
	}
}

func TestResolveUnknownAgent(t *testing.T) {
	p := newPipeline()
	_, err := p.registry.Resolve(context.Background(), "ghost", true)
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
