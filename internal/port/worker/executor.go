// Package worker defines the injected execution capability. The
// orchestration core never performs document work itself; a host wires an
// Executor (real or simulated) and feeds its outcomes back as completion
// events.
package worker

import (
	"context"

	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
)

// Executor performs one task on behalf of an agent and returns the uniform
// result. A non-nil error marks the attempt failed; any partial result is
// discarded by the caller.
type Executor interface {
	Execute(ctx context.Context, ag agent.Agent, t task.Task) (task.Result, error)
}

// Func adapts a plain function to the Executor interface.
type Func func(ctx context.Context, ag agent.Agent, t task.Task) (task.Result, error)

// Execute implements Executor.
func (f Func) Execute(ctx context.Context, ag agent.Agent, t task.Task) (task.Result, error) {
	return f(ctx, ag, t)
}
