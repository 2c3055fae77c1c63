// Package sim drives simulated documents through the pipeline end to end.
// The runner is a host around the orchestration core: it creates workflows,
// submits extraction kick-offs, plays the worker side of every assigned
// task and feeds completions back. Pacing lives here, never in the core.
package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/docuflow/docuflow/internal/config"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/domain/workflow"
	"github.com/docuflow/docuflow/internal/port/worker"
	"github.com/docuflow/docuflow/internal/service"
)

// documentTypes cycles through the catalog of simulated documents.
var documentTypes = []string{"invoice", "contract", "msa", "lease", "fixed_asset"}

// idleWait is how long a document waits before re-trying its pending tasks
// when every capable agent is busy.
const idleWait = 10 * time.Millisecond

// Runner drives simulated documents to their decisions.
type Runner struct {
	// Cooldown pauses a document after one of its tasks completes, resting
	// the released agent before new work is driven. Zero disables the pause.
	Cooldown time.Duration

	cfg      config.Sim
	orch     *service.OrchestratorService
	tasks    *service.TaskService
	registry *service.RegistryService
	exec     worker.Executor
}

// NewRunner creates a Runner over the wired services and an executor.
func NewRunner(cfg config.Sim, orch *service.OrchestratorService, tasks *service.TaskService, registry *service.RegistryService, exec worker.Executor) *Runner {
	return &Runner{cfg: cfg, orch: orch, tasks: tasks, registry: registry, exec: exec}
}

// Run processes the configured number of documents concurrently and returns
// once every workflow has reached its decision or ctx is canceled.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < r.cfg.Documents; i++ {
		docType := documentTypes[i%len(documentTypes)]
		g.Go(func() error {
			return r.runDocument(ctx, docType)
		})
	}
	return g.Wait()
}

// runDocument takes one document from creation to decision.
func (r *Runner) runDocument(ctx context.Context, documentType string) error {
	w, err := r.orch.CreateWorkflow(ctx, workflow.CreateRequest{DocumentType: documentType})
	if err != nil {
		return fmt.Errorf("create %s workflow: %w", documentType, err)
	}
	if err := r.submit(ctx, w.ID, task.TypeExtraction, task.PriorityHigh); err != nil {
		return err
	}

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		current, err := r.orch.GetWorkflow(ctx, w.ID)
		if err != nil {
			return err
		}
		if current.Stage.IsTerminal() {
			slog.Info("document decided",
				"workflow_id", current.ID,
				"document_type", current.DocumentType,
				"action", current.Decision.Action,
				"confidence", current.Decision.Confidence,
				"risk", current.Risk,
			)
			return nil
		}

		progressed, err := r.step(ctx, w.ID)
		if err != nil {
			return err
		}
		if progressed {
			continue
		}
		retried, err := r.dispatchPending(ctx, w.ID)
		if err != nil {
			return err
		}
		if !retried {
			if err := sleep(ctx, idleWait); err != nil {
				return err
			}
		}
	}
}

// step plays the next assigned task of the workflow: begin, execute,
// complete, then rest for the cooldown. It reports false when no task is
// ready to run.
func (r *Runner) step(ctx context.Context, workflowID string) (bool, error) {
	list, err := r.tasks.ListWorkflowTasks(ctx, workflowID)
	if err != nil {
		return false, err
	}
	for _, t := range list {
		if t.Status != task.StatusAssigned {
			continue
		}
		begun, err := r.tasks.BeginTask(ctx, t.ID)
		if err != nil {
			return false, fmt.Errorf("begin task %s: %w", t.ID, err)
		}
		ag, err := r.registry.Get(ctx, begun.AgentID)
		if err != nil {
			return false, err
		}
		if err := sleep(ctx, r.pace(ag.Latency)); err != nil {
			return false, err
		}

		res, err := r.exec.Execute(ctx, *ag, *begun)
		if err != nil {
			return false, fmt.Errorf("execute task %s: %w", begun.ID, err)
		}
		done, err := r.orch.CompleteTask(ctx, begun.ID, res)
		if err != nil {
			return false, fmt.Errorf("complete task %s: %w", begun.ID, err)
		}
		if done.Status == task.StatusFailed {
			// The host owns retries: submit a replacement attempt.
			if err := r.submit(ctx, workflowID, done.Type, done.Priority); err != nil {
				return false, err
			}
		}
		if err := sleep(ctx, r.Cooldown); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// dispatchPending retries assignment for the workflow's pending tasks.
func (r *Runner) dispatchPending(ctx context.Context, workflowID string) (bool, error) {
	list, err := r.tasks.ListWorkflowTasks(ctx, workflowID)
	if err != nil {
		return false, err
	}
	retried := false
	for _, t := range list {
		if t.Status != task.StatusPending {
			continue
		}
		if _, err := r.tasks.Dispatch(ctx, t.ID); err != nil {
			if errors.Is(err, domain.ErrUnassignable) {
				continue
			}
			return retried, err
		}
		retried = true
	}
	return retried, nil
}

func (r *Runner) submit(ctx context.Context, workflowID string, tt task.Type, priority task.Priority) error {
	_, err := r.tasks.SubmitTask(ctx, task.SubmitRequest{
		WorkflowID: workflowID,
		Type:       tt,
		Priority:   priority,
	})
	if err != nil && !errors.Is(err, domain.ErrUnassignable) {
		return fmt.Errorf("submit %s task: %w", tt, err)
	}
	return nil
}

// pace caps an agent's latency at the configured delay. A zero delay
// disables pacing entirely for fast, test-friendly runs.
func (r *Runner) pace(latency time.Duration) time.Duration {
	if r.cfg.Delay <= 0 {
		return 0
	}
	if latency < r.cfg.Delay {
		return latency
	}
	return r.cfg.Delay
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
