package cache_test

import (
	"testing"

	"github.com/docuflow/docuflow/internal/port/cache"
)

func TestWorkflowKeyEmbedsVersion(t *testing.T) {
	if cache.WorkflowKey("wf-1", 3) == cache.WorkflowKey("wf-1", 4) {
		t.Fatal("workflow keys must change with version")
	}
	if cache.WorkflowKey("wf-1", 3) != "wf:wf-1:3" {
		t.Fatalf("unexpected key %q", cache.WorkflowKey("wf-1", 3))
	}
}

func TestHistoryKeyEmbedsVersion(t *testing.T) {
	if cache.HistoryKey("wf-1", 9) == cache.HistoryKey("wf-1", 10) {
		t.Fatal("history keys must change with version")
	}
}

func TestKeyNamespacesDoNotCollide(t *testing.T) {
	if cache.WorkflowKey("wf-1", 3) == cache.HistoryKey("wf-1", 3) {
		t.Fatal("workflow and history keys must not collide")
	}
}
