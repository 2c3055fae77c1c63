package service

import (
	"context"
	"fmt"

	"github.com/docuflow/docuflow/internal/port/state"
)

// SystemStatus is a point-in-time summary of orchestrator state, grouped
// the way dashboards consume it.
type SystemStatus struct {
	Workflows WorkflowCounts `json:"workflows"`
	Tasks     TaskCounts     `json:"tasks"`
	Agents    AgentCounts    `json:"agents"`
}

// WorkflowCounts groups workflows by status and completed decisions by action.
type WorkflowCounts struct {
	Total     int            `json:"total"`
	ByStatus  map[string]int `json:"by_status"`
	Decisions map[string]int `json:"decisions"`
}

// TaskCounts groups tasks by status.
type TaskCounts struct {
	Total    int            `json:"total"`
	ByStatus map[string]int `json:"by_status"`
}

// AgentCounts groups agents by lifecycle state.
type AgentCounts struct {
	Total   int            `json:"total"`
	ByState map[string]int `json:"by_state"`
}

func buildSystemStatus(ctx context.Context, store state.Store) (*SystemStatus, error) {
	status := &SystemStatus{
		Workflows: WorkflowCounts{ByStatus: map[string]int{}, Decisions: map[string]int{}},
		Tasks:     TaskCounts{ByStatus: map[string]int{}},
		Agents:    AgentCounts{ByState: map[string]int{}},
	}

	workflows, err := store.ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	status.Workflows.Total = len(workflows)
	for _, w := range workflows {
		status.Workflows.ByStatus[string(w.Status)]++
		if w.Decision != nil {
			status.Workflows.Decisions[string(w.Decision.Action)]++
		}
	}

	tasks, err := store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	status.Tasks.Total = len(tasks)
	for _, t := range tasks {
		status.Tasks.ByStatus[string(t.Status)]++
	}

	agents, err := store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	status.Agents.Total = len(agents)
	for _, a := range agents {
		status.Agents.ByState[string(a.State)]++
	}

	return status, nil
}
