// Package memstate provides the default in-memory implementation of the
// state store port. It is the backing map for a single orchestrator
// process; all methods are safe for concurrent use.
package memstate

import (
	"context"
	"fmt"
	"sync"

	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/domain/workflow"
)

// Store holds agents, tasks and workflows in maps with explicit insertion
// order. Every Get/List returns deep copies and every Put stores a deep
// copy, so callers never alias live records.
type Store struct {
	mu sync.RWMutex

	agents     map[string]*agent.Agent
	agentOrder []string

	tasks     map[string]*task.Task
	taskOrder []string

	workflows     map[string]*workflow.Workflow
	workflowOrder []string
}

// New returns an empty store.
func New() *Store {
	return &Store{
		agents:    map[string]*agent.Agent{},
		tasks:     map[string]*task.Task{},
		workflows: map[string]*workflow.Workflow{},
	}
}

// PutAgent stores a deep copy of a, keeping first-registration order.
func (s *Store) PutAgent(_ context.Context, a *agent.Agent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.agents[a.ID]; !ok {
		s.agentOrder = append(s.agentOrder, a.ID)
	}
	s.agents[a.ID] = a.Clone()
	return nil
}

// GetAgent returns a deep copy of the agent with the given id.
func (s *Store) GetAgent(_ context.Context, id string) (*agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.agents[id]
	if !ok {
		return nil, fmt.Errorf("agent %s: %w", id, domain.ErrNotFound)
	}
	return a.Clone(), nil
}

// ListAgents returns deep copies of all agents in registration order.
func (s *Store) ListAgents(_ context.Context) ([]agent.Agent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]agent.Agent, 0, len(s.agentOrder))
	for _, id := range s.agentOrder {
		out = append(out, *s.agents[id].Clone())
	}
	return out, nil
}

// PutTask stores a deep copy of t, keeping submission order.
func (s *Store) PutTask(_ context.Context, t *task.Task) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[t.ID]; !ok {
		s.taskOrder = append(s.taskOrder, t.ID)
	}
	s.tasks[t.ID] = t.Clone()
	return nil
}

// GetTask returns a deep copy of the task with the given id.
func (s *Store) GetTask(_ context.Context, id string) (*task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tasks[id]
	if !ok {
		return nil, fmt.Errorf("task %s: %w", id, domain.ErrNotFound)
	}
	return t.Clone(), nil
}

// ListTasks returns deep copies of all tasks in submission order.
func (s *Store) ListTasks(_ context.Context) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]task.Task, 0, len(s.taskOrder))
	for _, id := range s.taskOrder {
		out = append(out, *s.tasks[id].Clone())
	}
	return out, nil
}

// ListTasksByWorkflow returns deep copies of the workflow's tasks in
// submission order.
func (s *Store) ListTasksByWorkflow(_ context.Context, workflowID string) ([]task.Task, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []task.Task
	for _, id := range s.taskOrder {
		if t := s.tasks[id]; t.WorkflowID == workflowID {
			out = append(out, *t.Clone())
		}
	}
	return out, nil
}

// PutWorkflow stores a deep copy of w, keeping creation order.
func (s *Store) PutWorkflow(_ context.Context, w *workflow.Workflow) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.workflows[w.ID]; !ok {
		s.workflowOrder = append(s.workflowOrder, w.ID)
	}
	s.workflows[w.ID] = w.Clone()
	return nil
}

// GetWorkflow returns a deep copy of the workflow with the given id.
func (s *Store) GetWorkflow(_ context.Context, id string) (*workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.workflows[id]
	if !ok {
		return nil, fmt.Errorf("workflow %s: %w", id, domain.ErrNotFound)
	}
	return w.Clone(), nil
}

// ListWorkflows returns deep copies of all workflows in creation order.
func (s *Store) ListWorkflows(_ context.Context) ([]workflow.Workflow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]workflow.Workflow, 0, len(s.workflowOrder))
	for _, id := range s.workflowOrder {
		out = append(out, *s.workflows[id].Clone())
	}
	return out, nil
}
