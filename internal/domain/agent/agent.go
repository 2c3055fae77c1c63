// Package agent defines the worker agent entity and its lifecycle state
// machine.
package agent

import (
	"time"

	"github.com/docuflow/docuflow/internal/domain/task"
)

// State represents the lifecycle state of an agent.
type State string

const (
	StateIdle       State = "idle"
	StateAssigned   State = "assigned"
	StateProcessing State = "processing"
	StateCompleted  State = "completed"
	StateFailed     State = "failed"
)

// allowedTransitions maps each state to the set of states it may move to.
// completed and failed both release back to idle; there is no other exit,
// so an agent can never get stuck holding a task.
var allowedTransitions = map[State]map[State]struct{}{
	StateIdle:       {StateAssigned: {}},
	StateAssigned:   {StateProcessing: {}},
	StateProcessing: {StateCompleted: {}, StateFailed: {}},
	StateCompleted:  {StateIdle: {}},
	StateFailed:     {StateIdle: {}},
}

// CanTransition reports whether moving from s to next is legal.
func (s State) CanTransition(next State) bool {
	nexts, ok := allowedTransitions[s]
	if !ok {
		return false
	}
	_, ok = nexts[next]
	return ok
}

// Agent represents a worker that processes pipeline tasks. An agent holds at
// most one task at a time, referenced by CurrentTaskID while the agent is
// assigned or processing.
type Agent struct {
	ID              string        `json:"id"`
	Name            string        `json:"name"`
	Capabilities    []task.Type   `json:"capabilities"`
	Latency         time.Duration `json:"latency"`
	SuccessRate     float64       `json:"success_rate"`
	State           State         `json:"state"`
	CurrentTaskID   string        `json:"current_task_id,omitempty"`
	TasksCompleted  int           `json:"tasks_completed"`
	TasksFailed     int           `json:"tasks_failed"`
	LastStateChange time.Time     `json:"last_state_change"`
	RegisteredAt    time.Time     `json:"registered_at"`
}

// HasCapability reports whether the agent declares the given task type.
func (a *Agent) HasCapability(t task.Type) bool {
	for _, c := range a.Capabilities {
		if c == t {
			return true
		}
	}
	return false
}

// Clone returns a deep copy of the agent.
func (a *Agent) Clone() *Agent {
	if a == nil {
		return nil
	}
	out := *a
	if a.Capabilities != nil {
		out.Capabilities = make([]task.Type, len(a.Capabilities))
		copy(out.Capabilities, a.Capabilities)
	}
	return &out
}

// RegisterRequest holds the fields needed to register a new agent.
// SuccessRate outside (0,1] and an empty capability list are rejected.
type RegisterRequest struct {
	ID           string        `json:"id,omitempty"`
	Name         string        `json:"name"`
	Capabilities []task.Type   `json:"capabilities"`
	Latency      time.Duration `json:"latency,omitempty"`
	SuccessRate  float64       `json:"success_rate"`
}
