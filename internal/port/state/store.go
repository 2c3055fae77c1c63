// Package state defines the store port backing the orchestrator's live
// state. The orchestrator process exclusively owns every record for its
// lifetime; a Store is the map it keeps them in, not a shared database.
package state

import (
	"context"

	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/domain/workflow"
)

// Store is the port interface for live orchestrator state. Implementations
// must return deep copies from every Get/List and store deep copies on
// every Put, so callers can never alias live records. List order is
// insertion order: registration order for agents, submission order for
// tasks, creation order for workflows.
type Store interface {
	// Agents
	PutAgent(ctx context.Context, a *agent.Agent) error
	GetAgent(ctx context.Context, id string) (*agent.Agent, error)
	ListAgents(ctx context.Context) ([]agent.Agent, error)

	// Tasks
	PutTask(ctx context.Context, t *task.Task) error
	GetTask(ctx context.Context, id string) (*task.Task, error)
	ListTasks(ctx context.Context) ([]task.Task, error)
	ListTasksByWorkflow(ctx context.Context, workflowID string) ([]task.Task, error)

	// Workflows
	PutWorkflow(ctx context.Context, w *workflow.Workflow) error
	GetWorkflow(ctx context.Context, id string) (*workflow.Workflow, error)
	ListWorkflows(ctx context.Context) ([]workflow.Workflow, error)
}
