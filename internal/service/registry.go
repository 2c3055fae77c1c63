package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/docuflow/docuflow/internal/adapter/ws"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/port/broadcast"
	"github.com/docuflow/docuflow/internal/port/messagequeue"
	"github.com/docuflow/docuflow/internal/port/state"
)

// RegistryService owns the agent pool: registration, capability lookup and
// the agent lifecycle state machine. Every transition is validated against
// the machine; an illegal transition is a coordination bug and surfaces as
// ErrInvalidState.
type RegistryService struct {
	store state.Store
	hub   broadcast.Broadcaster
	bus   messagequeue.Queue
	mu    sync.Mutex // serializes agent state transitions
}

// NewRegistryService creates a RegistryService. bus may be nil to disable
// queue publishing.
func NewRegistryService(store state.Store, hub broadcast.Broadcaster, bus messagequeue.Queue) *RegistryService {
	return &RegistryService{store: store, hub: hub, bus: bus}
}

// Register validates and adds a new agent to the pool in idle state.
// Registration order is stable and breaks assignment ties.
func (s *RegistryService) Register(ctx context.Context, req agent.RegisterRequest) (*agent.Agent, error) {
	if len(req.Capabilities) == 0 {
		return nil, fmt.Errorf("agent needs at least one capability: %w", domain.ErrValidation)
	}
	if req.SuccessRate <= 0 || req.SuccessRate > 1 {
		return nil, fmt.Errorf("success_rate %v outside (0,1]: %w", req.SuccessRate, domain.ErrValidation)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.store.GetAgent(ctx, id); err == nil {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrConflict)
	}

	now := time.Now()
	a := &agent.Agent{
		ID:              id,
		Name:            req.Name,
		Capabilities:    append([]task.Type(nil), req.Capabilities...),
		Latency:         req.Latency,
		SuccessRate:     req.SuccessRate,
		State:           agent.StateIdle,
		LastStateChange: now,
		RegisteredAt:    now,
	}
	if err := s.store.PutAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("store agent: %w", err)
	}

	s.broadcastAgentStatus(ctx, a)
	slog.Info("agent registered", "agent_id", a.ID, "capabilities", a.Capabilities, "success_rate", a.SuccessRate)
	return a, nil
}

// Get returns a snapshot of the agent with the given id.
func (s *RegistryService) Get(ctx context.Context, id string) (*agent.Agent, error) {
	return s.store.GetAgent(ctx, id)
}

// List returns snapshots of all agents in registration order.
func (s *RegistryService) List(ctx context.Context) ([]agent.Agent, error) {
	return s.store.ListAgents(ctx)
}

// ListIdle returns the idle agents declaring the given capability, in
// registration order.
func (s *RegistryService) ListIdle(ctx context.Context, capability task.Type) ([]agent.Agent, error) {
	agents, err := s.store.ListAgents(ctx)
	if err != nil {
		return nil, err
	}
	var out []agent.Agent
	for _, a := range agents {
		if a.State == agent.StateIdle && a.HasCapability(capability) {
			out = append(out, a)
		}
	}
	return out, nil
}

// Assign moves an idle agent to assigned, holding the given task.
func (s *RegistryService) Assign(ctx context.Context, agentID, taskID string) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !a.State.CanTransition(agent.StateAssigned) {
		return nil, fmt.Errorf("assign agent %s in state %s: %w", agentID, a.State, domain.ErrInvalidState)
	}

	a.State = agent.StateAssigned
	a.CurrentTaskID = taskID
	a.LastStateChange = time.Now()
	if err := s.store.PutAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("store agent: %w", err)
	}

	s.broadcastAgentStatus(ctx, a)
	return a, nil
}

// BeginProcessing moves an assigned agent to processing.
func (s *RegistryService) BeginProcessing(ctx context.Context, agentID string) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}
	if !a.State.CanTransition(agent.StateProcessing) {
		return nil, fmt.Errorf("begin processing for agent %s in state %s: %w", agentID, a.State, domain.ErrInvalidState)
	}

	a.State = agent.StateProcessing
	a.LastStateChange = time.Now()
	if err := s.store.PutAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("store agent: %w", err)
	}

	s.broadcastAgentStatus(ctx, a)
	return a, nil
}

// Resolve finishes the agent's current task. The agent passes through
// completed or failed and is released back to idle in the same operation,
// with its held task cleared, so no outcome can leave an agent stuck.
func (s *RegistryService) Resolve(ctx context.Context, agentID string, success bool) (*agent.Agent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, err := s.store.GetAgent(ctx, agentID)
	if err != nil {
		return nil, err
	}

	target := agent.StateCompleted
	if !success {
		target = agent.StateFailed
	}
	if !a.State.CanTransition(target) {
		return nil, fmt.Errorf("resolve agent %s in state %s: %w", agentID, a.State, domain.ErrInvalidState)
	}

	a.State = target
	if success {
		a.TasksCompleted++
	} else {
		a.TasksFailed++
	}
	a.LastStateChange = time.Now()
	if err := s.store.PutAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("store agent: %w", err)
	}
	s.broadcastAgentStatus(ctx, a)

	// unconditional release back to idle
	a.State = agent.StateIdle
	a.CurrentTaskID = ""
	a.LastStateChange = time.Now()
	if err := s.store.PutAgent(ctx, a); err != nil {
		return nil, fmt.Errorf("store agent: %w", err)
	}
	s.broadcastAgentStatus(ctx, a)

	return a, nil
}

func (s *RegistryService) broadcastAgentStatus(ctx context.Context, a *agent.Agent) {
	s.hub.BroadcastEvent(ctx, ws.EventAgentStatus, ws.AgentStatusEvent{
		AgentID:       a.ID,
		State:         string(a.State),
		CurrentTaskID: a.CurrentTaskID,
	})
	publishEvent(ctx, s.bus, messagequeue.SubjectAgentStatus, messagequeue.AgentStatusPayload{
		AgentID:       a.ID,
		State:         string(a.State),
		CurrentTaskID: a.CurrentTaskID,
	})
}
