package export

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/docuflow/docuflow/internal/adapter/memstate"
	"github.com/docuflow/docuflow/internal/adapter/memtrail"
	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/audit"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/domain/workflow"
)

func seedState(t *testing.T) (*memstate.Store, *memtrail.Trail) {
	t.Helper()
	ctx := context.Background()
	store := memstate.New()
	trail := memtrail.New()
	now := time.Now()

	w := workflow.New("wf1", "invoice", now)
	if err := store.PutWorkflow(ctx, w); err != nil {
		t.Fatalf("put workflow: %v", err)
	}
	if err := trail.Append(ctx, &audit.Transition{
		ID: "tr1", WorkflowID: "wf1", Kind: audit.KindCreated,
		Status: w.Status, Stage: w.Stage, Version: 1, Snapshot: *w.Clone(), RecordedAt: now,
	}); err != nil {
		t.Fatalf("append transition: %v", err)
	}
	if err := store.PutAgent(ctx, &agent.Agent{
		ID: "extraction-01", State: agent.StateIdle,
		Capabilities: []task.Type{task.TypeExtraction}, SuccessRate: 0.98,
	}); err != nil {
		t.Fatalf("put agent: %v", err)
	}
	if err := store.PutTask(ctx, &task.Task{
		ID: "t1", WorkflowID: "wf1", Type: task.TypeExtraction,
		Status: task.StatusAssigned, AgentID: "extraction-01",
		CreatedAt: now, AssignedAt: &now,
	}); err != nil {
		t.Fatalf("put task: %v", err)
	}
	return store, trail
}

func TestSnapshotRoundTrip(t *testing.T) {
	store, trail := seedState(t)

	snap, err := Collect(context.Background(), store, trail)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if snap.ExportedAt.IsZero() {
		t.Fatal("expected exported_at to be set")
	}

	var buf bytes.Buffer
	if err := Write(&buf, snap); err != nil {
		t.Fatalf("write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(got.Workflows) != 1 || got.Workflows[0].ID != "wf1" {
		t.Fatalf("workflow lost in round trip: %+v", got.Workflows)
	}
	if len(got.Agents) != 1 || got.Agents[0].ID != "extraction-01" {
		t.Fatalf("agent lost in round trip: %+v", got.Agents)
	}
	if len(got.Tasks) != 1 || got.Tasks[0].Type != task.TypeExtraction {
		t.Fatalf("task lost in round trip: %+v", got.Tasks)
	}
	if got.Tasks[0].AgentID != "extraction-01" || got.Tasks[0].AssignedAt == nil {
		t.Fatalf("assignment record lost in round trip: %+v", got.Tasks[0])
	}
	if len(got.Transitions) != 1 || got.Transitions[0].Version != 1 {
		t.Fatalf("transition lost in round trip: %+v", got.Transitions)
	}
	if got.Transitions[0].Snapshot.ID != "wf1" {
		t.Fatal("transition snapshot lost in round trip")
	}
}

func TestWriteFileAtomic(t *testing.T) {
	store, trail := seedState(t)
	snap, err := Collect(context.Background(), store, trail)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}

	path := filepath.Join(t.TempDir(), "state", "export.json")
	if err := WriteFile(path, snap); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatal("temp file should be renamed away")
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open export: %v", err)
	}
	defer f.Close()
	got, err := Read(f)
	if err != nil {
		t.Fatalf("read export: %v", err)
	}
	if len(got.Workflows) != 1 {
		t.Fatalf("expected 1 workflow in file, got %d", len(got.Workflows))
	}
}

func TestWriteFileRejectsEmptyPath(t *testing.T) {
	if err := WriteFile("", &Snapshot{}); err == nil {
		t.Fatal("expected error for empty path")
	}
}
