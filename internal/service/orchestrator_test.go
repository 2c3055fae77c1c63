package service

import (
	"context"
	"errors"
	"math"
	"sort"
	"testing"

	"github.com/docuflow/docuflow/internal/adapter/ws"
	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/audit"
	"github.com/docuflow/docuflow/internal/domain/decision"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/domain/workflow"
)

// registerRoster registers one agent per task type, mirroring the default
// deployment roster.
func registerRoster(t *testing.T, p *pipeline) {
	t.Helper()
	registerAgent(t, p, "extraction-01", 0.98, task.TypeExtraction)
	registerAgent(t, p, "contract-01", 0.95, task.TypeContract)
	registerAgent(t, p, "msa-01", 0.96, task.TypeMSA)
	registerAgent(t, p, "master-data-01", 0.99, task.TypeMasterData)
	registerAgent(t, p, "quality-01", 0.93, task.TypeQualityReview)
}

// completeByType resolves the workflow's active task of the given type.
func completeByType(t *testing.T, p *pipeline, workflowID string, tt task.Type, res task.Result) *task.Task {
	t.Helper()
	ctx := context.Background()
	list, err := p.tasks.ListWorkflowTasks(ctx, workflowID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	for _, candidate := range list {
		if candidate.Type != tt || candidate.Status.IsTerminal() || candidate.Status == task.StatusPending {
			continue
		}
		done, err := p.orch.CompleteTask(ctx, candidate.ID, res)
		if err != nil {
			t.Fatalf("complete %s task: %v", tt, err)
		}
		return done
	}
	t.Fatalf("no active %s task for workflow %s", tt, workflowID)
	return nil
}

// assertInvariant checks that the audit trail is dense in versions and
// exactly as long as the workflow version.
func assertInvariant(t *testing.T, p *pipeline, workflowID string) {
	t.Helper()
	ctx := context.Background()
	w, err := p.orch.GetWorkflow(ctx, workflowID)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	hist, err := p.orch.History(ctx, workflowID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != w.Version {
		t.Fatalf("history length %d != version %d", len(hist), w.Version)
	}
	for i, tr := range hist {
		if tr.Version != i+1 {
			t.Fatalf("history[%d] has version %d, want %d", i, tr.Version, i+1)
		}
	}
}

func mustGetWorkflow(t *testing.T, p *pipeline, id string) *workflow.Workflow {
	t.Helper()
	w, err := p.orch.GetWorkflow(context.Background(), id)
	if err != nil {
		t.Fatalf("get workflow: %v", err)
	}
	return w
}

// --- OrchestratorService tests ---

func TestCreateWorkflowInitialState(t *testing.T) {
	p := newPipeline()
	w := createWorkflow(t, p, "invoice")

	if w.Version != 1 {
		t.Fatalf("expected version 1, got %d", w.Version)
	}
	if w.Stage != workflow.StageExtraction {
		t.Fatalf("expected extraction stage, got %s", w.Stage)
	}
	if w.Status != workflow.StatusCreated {
		t.Fatalf("expected created status, got %s", w.Status)
	}
	if w.Decision != nil {
		t.Fatal("new workflow must not carry a decision")
	}

	hist, err := p.orch.History(context.Background(), w.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(hist) != 1 || hist[0].Kind != audit.KindCreated {
		t.Fatalf("expected single created record, got %+v", hist)
	}
}

func TestCreateWorkflowRequiresDocumentType(t *testing.T) {
	p := newPipeline()
	_, err := p.orch.CreateWorkflow(context.Background(), workflow.CreateRequest{})
	if !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestInvoicePipelineEndToEnd(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerRoster(t, p)
	w := createWorkflow(t, p, "invoice")
	assertInvariant(t, p, w.ID)

	// Extraction kick-off is the host's to submit.
	if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{
		WorkflowID: w.ID,
		Type:       task.TypeExtraction,
		Priority:   task.PriorityHigh,
	}); err != nil {
		t.Fatalf("submit extraction: %v", err)
	}
	completeByType(t, p, w.ID, task.TypeExtraction, task.Result{Confidence: 0.95})
	assertInvariant(t, p, w.ID)

	got := mustGetWorkflow(t, p, w.ID)
	if got.Stage != workflow.StageValidation {
		t.Fatalf("expected validation stage, got %s", got.Stage)
	}
	if got.Status != workflow.StatusValidationInProgress {
		t.Fatalf("expected validation_in_progress, got %s", got.Status)
	}
	if got.Version != 3 {
		t.Fatalf("expected version 3 after extraction, got %d", got.Version)
	}

	// Entering validation fans out the three validation tasks at medium
	// priority.
	list, err := p.tasks.ListWorkflowTasks(ctx, w.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	if len(list) != 4 {
		t.Fatalf("expected 4 tasks after fan-out, got %d", len(list))
	}
	for _, fanned := range list[1:] {
		if fanned.Status != task.StatusAssigned {
			t.Fatalf("fan-out task %s not assigned: %s", fanned.Type, fanned.Status)
		}
		if fanned.Priority != task.PriorityMedium {
			t.Fatalf("validation task %s priority %s, want medium", fanned.Type, fanned.Priority)
		}
	}

	completeByType(t, p, w.ID, task.TypeContract, task.Result{Confidence: 0.88, Anomalies: []task.Anomaly{"missing_po_number"}})
	completeByType(t, p, w.ID, task.TypeMSA, task.Result{Confidence: 0.90})
	completeByType(t, p, w.ID, task.TypeMasterData, task.Result{Confidence: 0.93})
	assertInvariant(t, p, w.ID)

	got = mustGetWorkflow(t, p, w.ID)
	if got.Stage != workflow.StageQualityReview {
		t.Fatalf("expected quality_review stage, got %s", got.Stage)
	}
	if got.Status != workflow.StatusQualityReviewInProgress {
		t.Fatalf("expected quality_review_in_progress, got %s", got.Status)
	}
	if got.Version != 7 {
		t.Fatalf("expected version 7 after validation, got %d", got.Version)
	}

	// The quality review fan-out runs at high priority.
	list, err = p.tasks.ListWorkflowTasks(ctx, w.ID)
	if err != nil {
		t.Fatalf("list tasks: %v", err)
	}
	qr := list[len(list)-1]
	if qr.Type != task.TypeQualityReview || qr.Priority != task.PriorityHigh {
		t.Fatalf("expected high priority quality_review, got %s/%s", qr.Type, qr.Priority)
	}

	// The reviewer reports the running mean of the four prior scores.
	mean4 := (0.95 + 0.88 + 0.90 + 0.93) / 4
	completeByType(t, p, w.ID, task.TypeQualityReview, task.Result{Confidence: mean4})
	assertInvariant(t, p, w.ID)

	got = mustGetWorkflow(t, p, w.ID)
	if got.Stage != workflow.StageCompleted {
		t.Fatalf("expected completed stage, got %s", got.Stage)
	}
	if got.Status != workflow.StatusCompleted {
		t.Fatalf("expected completed status, got %s", got.Status)
	}
	if got.Version != 10 {
		t.Fatalf("expected final version 10, got %d", got.Version)
	}
	if got.Decision == nil {
		t.Fatal("expected recorded decision")
	}
	if got.Decision.Action != decision.ActionApprove {
		t.Fatalf("expected APPROVE, got %s", got.Decision.Action)
	}
	if got.Decision.Reasoning != "Good confidence, minor anomalies" {
		t.Fatalf("unexpected reasoning %q", got.Decision.Reasoning)
	}
	if got.Decision.AnomalyCount != 1 || got.Risk != decision.RiskMedium {
		t.Fatalf("expected 1 anomaly at medium risk, got %d/%s", got.Decision.AnomalyCount, got.Risk)
	}
	if math.Abs(got.Decision.Confidence-0.915) > 1e-9 {
		t.Fatalf("expected aggregate confidence 0.915, got %v", got.Decision.Confidence)
	}

	// The trail records the creation, five result updates and four stage
	// advances, in order.
	hist, err := p.orch.History(ctx, w.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	wantKinds := []audit.Kind{
		audit.KindCreated,
		audit.KindResultUpdate,
		audit.KindStageAdvance,
		audit.KindResultUpdate,
		audit.KindResultUpdate,
		audit.KindResultUpdate,
		audit.KindStageAdvance,
		audit.KindResultUpdate,
		audit.KindStageAdvance,
		audit.KindStageAdvance,
	}
	if len(hist) != len(wantKinds) {
		t.Fatalf("expected %d records, got %d", len(wantKinds), len(hist))
	}
	for i, kind := range wantKinds {
		if hist[i].Kind != kind {
			t.Fatalf("history[%d] kind %s, want %s", i, hist[i].Kind, kind)
		}
	}
	if hist[len(hist)-1].Snapshot.Decision == nil {
		t.Fatal("final snapshot must carry the decision")
	}
	if hist[2].Snapshot.Decision != nil {
		t.Fatal("early snapshot must not carry a decision")
	}

	// Every agent ends idle with one completed task.
	agents, err := p.registry.List(ctx)
	if err != nil {
		t.Fatalf("list agents: %v", err)
	}
	for _, a := range agents {
		if a.State != agent.StateIdle {
			t.Fatalf("agent %s still %s", a.ID, a.State)
		}
		if a.TasksCompleted != 1 {
			t.Fatalf("agent %s completed %d tasks, want 1", a.ID, a.TasksCompleted)
		}
	}

	if n := len(p.hub.ofType(ws.EventWorkflowDecision)); n != 1 {
		t.Fatalf("expected one decision broadcast, got %d", n)
	}
	if n := p.queue.onSubject("workflows.decision"); n != 1 {
		t.Fatalf("expected one decision queue message, got %d", n)
	}
}

func TestValidationJoinOrderIndependent(t *testing.T) {
	results := map[task.Type]task.Result{
		task.TypeContract:   {Confidence: 0.88, Anomalies: []task.Anomaly{"missing_po_number"}},
		task.TypeMSA:        {Confidence: 0.90, Anomalies: []task.Anomaly{"msa_coverage_issue"}},
		task.TypeMasterData: {Confidence: 0.93},
	}
	orders := [][]task.Type{
		{task.TypeContract, task.TypeMSA, task.TypeMasterData},
		{task.TypeContract, task.TypeMasterData, task.TypeMSA},
		{task.TypeMSA, task.TypeContract, task.TypeMasterData},
		{task.TypeMSA, task.TypeMasterData, task.TypeContract},
		{task.TypeMasterData, task.TypeContract, task.TypeMSA},
		{task.TypeMasterData, task.TypeMSA, task.TypeContract},
	}

	var wantAnomalies []string
	for i, order := range orders {
		p := newPipeline()
		ctx := context.Background()
		registerRoster(t, p)
		w := createWorkflow(t, p, "invoice")
		if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w.ID, Type: task.TypeExtraction}); err != nil {
			t.Fatalf("order %d: submit extraction: %v", i, err)
		}
		completeByType(t, p, w.ID, task.TypeExtraction, task.Result{Confidence: 0.95})

		for _, tt := range order {
			completeByType(t, p, w.ID, tt, results[tt])
		}

		got := mustGetWorkflow(t, p, w.ID)
		if got.Stage != workflow.StageQualityReview {
			t.Fatalf("order %d: expected quality_review, got %s", i, got.Stage)
		}
		if got.Version != 7 {
			t.Fatalf("order %d: expected version 7, got %d", i, got.Version)
		}
		if got.Risk != decision.RiskMedium {
			t.Fatalf("order %d: expected medium risk, got %s", i, got.Risk)
		}

		anomalies := make([]string, len(got.Anomalies))
		for j, a := range got.Anomalies {
			anomalies[j] = string(a)
		}
		sort.Strings(anomalies)
		if i == 0 {
			wantAnomalies = anomalies
			continue
		}
		if len(anomalies) != len(wantAnomalies) {
			t.Fatalf("order %d: anomaly count %d, want %d", i, len(anomalies), len(wantAnomalies))
		}
		for j := range anomalies {
			if anomalies[j] != wantAnomalies[j] {
				t.Fatalf("order %d: anomaly multiset differs at %d: %s vs %s", i, j, anomalies[j], wantAnomalies[j])
			}
		}
	}
}

func TestFailedTaskLeavesWorkflowUntouched(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerRoster(t, p)
	w := createWorkflow(t, p, "contract")

	if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w.ID, Type: task.TypeExtraction}); err != nil {
		t.Fatalf("submit extraction: %v", err)
	}
	failed := completeByType(t, p, w.ID, task.TypeExtraction, task.Result{Error: "ocr engine crashed"})
	if failed.Status != task.StatusFailed {
		t.Fatalf("expected failed task, got %s", failed.Status)
	}

	got := mustGetWorkflow(t, p, w.ID)
	if got.Version != 1 || got.Stage != workflow.StageExtraction {
		t.Fatalf("failed completion must not touch the workflow, got version %d stage %s", got.Version, got.Stage)
	}
	if len(got.Results) != 0 {
		t.Fatalf("failed result must not be recorded, got %d results", len(got.Results))
	}
	assertInvariant(t, p, w.ID)

	a, err := p.registry.Get(ctx, "extraction-01")
	if err != nil {
		t.Fatalf("get agent: %v", err)
	}
	if a.State != agent.StateIdle || a.TasksFailed != 1 {
		t.Fatalf("agent should be idle with 1 failure, got %s/%d", a.State, a.TasksFailed)
	}

	// A fresh extraction attempt proceeds normally.
	if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w.ID, Type: task.TypeExtraction}); err != nil {
		t.Fatalf("resubmit extraction: %v", err)
	}
	completeByType(t, p, w.ID, task.TypeExtraction, task.Result{Confidence: 0.97})
	got = mustGetWorkflow(t, p, w.ID)
	if got.Stage != workflow.StageValidation || got.Version != 3 {
		t.Fatalf("retry should advance to validation at version 3, got %s/%d", got.Stage, got.Version)
	}
}

func TestRepeatResultOverwritesInPlace(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerRoster(t, p)
	w := createWorkflow(t, p, "invoice")

	if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w.ID, Type: task.TypeExtraction}); err != nil {
		t.Fatalf("submit extraction: %v", err)
	}
	completeByType(t, p, w.ID, task.TypeExtraction, task.Result{
		Confidence: 0.75,
		Anomalies:  []task.Anomaly{"vendor_mismatch"},
	})

	// A second extraction pass by the same agent replaces its entry.
	if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w.ID, Type: task.TypeExtraction}); err != nil {
		t.Fatalf("second submit: %v", err)
	}
	completeByType(t, p, w.ID, task.TypeExtraction, task.Result{Confidence: 0.96})

	got := mustGetWorkflow(t, p, w.ID)
	if got.Confidences["extraction-01"] != 0.96 {
		t.Fatalf("expected overwritten confidence 0.96, got %v", got.Confidences["extraction-01"])
	}
	if len(got.Anomalies) != 0 {
		t.Fatalf("anomaly view must be rebuilt, got %v", got.Anomalies)
	}
	if len(got.Results) != 1 {
		t.Fatalf("expected single result entry, got %d", len(got.Results))
	}
	// Creation, first result, advance to validation, second result.
	if got.Version != 4 {
		t.Fatalf("expected version 4, got %d", got.Version)
	}
	assertInvariant(t, p, w.ID)
}

func TestCompleteTaskGuards(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerAgent(t, p, "extraction-01", 0.98, task.TypeExtraction)
	w := createWorkflow(t, p, "invoice")

	if _, err := p.orch.CompleteTask(ctx, "ghost", task.Result{Confidence: 1}); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	// A pending task has no agent to resolve.
	pending, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w.ID, Type: task.TypeMSA})
	if !errors.Is(err, domain.ErrUnassignable) {
		t.Fatalf("expected ErrUnassignable, got %v", err)
	}
	if _, err := p.orch.CompleteTask(ctx, pending.ID, task.Result{Confidence: 0.9}); !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("completing a pending task: expected ErrInvalidState, got %v", err)
	}

	if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w.ID, Type: task.TypeExtraction}); err != nil {
		t.Fatalf("submit extraction: %v", err)
	}
	done := completeByType(t, p, w.ID, task.TypeExtraction, task.Result{Confidence: 0.9})

	_, err = p.orch.CompleteTask(ctx, done.ID, task.Result{Confidence: 0.5})
	if !errors.Is(err, domain.ErrInvalidState) {
		t.Fatalf("completing a terminal task: expected ErrInvalidState, got %v", err)
	}
}

func TestHistoryUnknownWorkflow(t *testing.T) {
	p := newPipeline()
	_, err := p.orch.History(context.Background(), "ghost")
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLateResultAfterCompletionKeepsInvariant(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerRoster(t, p)
	w := createWorkflow(t, p, "invoice")
	runToCompletion(t, p, w.ID)

	if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w.ID, Type: task.TypeQualityReview}); err != nil {
		t.Fatalf("late submit: %v", err)
	}
	completeByType(t, p, w.ID, task.TypeQualityReview, task.Result{Confidence: 0.5})

	got := mustGetWorkflow(t, p, w.ID)
	if got.Stage != workflow.StageCompleted || got.Status != workflow.StatusCompleted {
		t.Fatalf("completed workflow must stay completed, got %s/%s", got.Stage, got.Status)
	}
	if got.Version != 11 {
		t.Fatalf("late result still versions, expected 11, got %d", got.Version)
	}
	assertInvariant(t, p, w.ID)
}

func TestWorkflowsProgressIndependently(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerAgent(t, p, "extraction-01", 0.98, task.TypeExtraction)
	w1 := createWorkflow(t, p, "invoice")
	w2 := createWorkflow(t, p, "lease")

	if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w1.ID, Type: task.TypeExtraction}); err != nil {
		t.Fatalf("submit w1: %v", err)
	}
	// The only extraction agent is busy, so w2's task waits.
	held, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: w2.ID, Type: task.TypeExtraction})
	if !errors.Is(err, domain.ErrUnassignable) {
		t.Fatalf("expected ErrUnassignable, got %v", err)
	}

	completeByType(t, p, w1.ID, task.TypeExtraction, task.Result{Confidence: 0.95})
	if _, err := p.tasks.Dispatch(ctx, held.ID); err != nil {
		t.Fatalf("dispatch w2: %v", err)
	}
	completeByType(t, p, w2.ID, task.TypeExtraction, task.Result{Confidence: 0.85})

	got1 := mustGetWorkflow(t, p, w1.ID)
	got2 := mustGetWorkflow(t, p, w2.ID)
	if got1.Version != 3 || got2.Version != 3 {
		t.Fatalf("workflows must version independently, got %d and %d", got1.Version, got2.Version)
	}
	assertInvariant(t, p, w1.ID)
	assertInvariant(t, p, w2.ID)
}

func TestSystemStatusCounts(t *testing.T) {
	p := newPipeline()
	ctx := context.Background()
	registerRoster(t, p)
	w := createWorkflow(t, p, "invoice")
	runToCompletion(t, p, w.ID)

	status, err := p.orch.SystemStatus(ctx)
	if err != nil {
		t.Fatalf("system status: %v", err)
	}
	if status.Workflows.Total != 1 || status.Workflows.ByStatus["completed"] != 1 {
		t.Fatalf("unexpected workflow counts: %+v", status.Workflows)
	}
	if status.Workflows.Decisions["APPROVE"] != 1 {
		t.Fatalf("expected one APPROVE, got %+v", status.Workflows.Decisions)
	}
	if status.Tasks.Total != 5 || status.Tasks.ByStatus["completed"] != 5 {
		t.Fatalf("unexpected task counts: %+v", status.Tasks)
	}
	if status.Agents.Total != 5 || status.Agents.ByState["idle"] != 5 {
		t.Fatalf("unexpected agent counts: %+v", status.Agents)
	}
}

// runToCompletion drives the standard invoice scenario to its decision.
func runToCompletion(t *testing.T, p *pipeline, workflowID string) {
	t.Helper()
	ctx := context.Background()
	if _, err := p.tasks.SubmitTask(ctx, task.SubmitRequest{WorkflowID: workflowID, Type: task.TypeExtraction, Priority: task.PriorityHigh}); err != nil {
		t.Fatalf("submit extraction: %v", err)
	}
	completeByType(t, p, workflowID, task.TypeExtraction, task.Result{Confidence: 0.95})
	completeByType(t, p, workflowID, task.TypeContract, task.Result{Confidence: 0.88, Anomalies: []task.Anomaly{"missing_po_number"}})
	completeByType(t, p, workflowID, task.TypeMSA, task.Result{Confidence: 0.90})
	completeByType(t, p, workflowID, task.TypeMasterData, task.Result{Confidence: 0.93})
	completeByType(t, p, workflowID, task.TypeQualityReview, task.Result{Confidence: (0.95 + 0.88 + 0.90 + 0.93) / 4})

	got := mustGetWorkflow(t, p, workflowID)
	if got.Stage != workflow.StageCompleted {
		t.Fatalf("scenario did not complete, stage %s", got.Stage)
	}
}
