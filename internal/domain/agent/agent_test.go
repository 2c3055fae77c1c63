package agent_test

import (
	"testing"

	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/task"
)

func TestStateTransitions(t *testing.T) {
	allowed := []struct{ from, to agent.State }{
		{agent.StateIdle, agent.StateAssigned},
		{agent.StateAssigned, agent.StateProcessing},
		{agent.StateProcessing, agent.StateCompleted},
		{agent.StateProcessing, agent.StateFailed},
		{agent.StateCompleted, agent.StateIdle},
		{agent.StateFailed, agent.StateIdle},
	}
	for _, tr := range allowed {
		if !tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be allowed", tr.from, tr.to)
		}
	}

	denied := []struct{ from, to agent.State }{
		{agent.StateIdle, agent.StateProcessing},
		{agent.StateIdle, agent.StateCompleted},
		{agent.StateAssigned, agent.StateCompleted},
		{agent.StateAssigned, agent.StateIdle},
		{agent.StateProcessing, agent.StateIdle},
		{agent.StateCompleted, agent.StateAssigned},
		{agent.StateFailed, agent.StateProcessing},
		{agent.State("bogus"), agent.StateIdle},
	}
	for _, tr := range denied {
		if tr.from.CanTransition(tr.to) {
			t.Errorf("%s -> %s should be denied", tr.from, tr.to)
		}
	}
}

func TestHasCapability(t *testing.T) {
	a := agent.Agent{Capabilities: []task.Type{task.TypeContract, task.TypeMSA}}
	if !a.HasCapability(task.TypeContract) {
		t.Error("expected contract capability")
	}
	if a.HasCapability(task.TypeExtraction) {
		t.Error("did not expect extraction capability")
	}
}

func TestCloneIsDeep(t *testing.T) {
	a := &agent.Agent{ID: "a1", Capabilities: []task.Type{task.TypeExtraction}}
	c := a.Clone()
	c.Capabilities[0] = task.TypeMSA
	c.ID = "a2"
	if a.Capabilities[0] != task.TypeExtraction || a.ID != "a1" {
		t.Fatalf("clone shares state with original: %+v", a)
	}
}
