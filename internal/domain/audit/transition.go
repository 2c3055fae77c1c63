// Package audit defines the append-only state transition record. One record
// is written for every workflow mutation, carrying a deep snapshot of the
// workflow as of that mutation.
package audit

import (
	"time"

	"github.com/docuflow/docuflow/internal/domain/workflow"
)

// Kind says which mutation produced a transition record.
type Kind string

const (
	KindCreated      Kind = "created"
	KindResultUpdate Kind = "result_update"
	KindStageAdvance Kind = "stage_advance"
)

// Transition is one entry of a workflow's audit trail. Version equals the
// workflow version the mutation produced, so the trail for a workflow is
// dense in versions starting at 1. Snapshot is a deep copy: later mutations
// of the live workflow never alter it.
type Transition struct {
	ID         string            `json:"id"`
	WorkflowID string            `json:"workflow_id"`
	Kind       Kind              `json:"kind"`
	Status     workflow.Status   `json:"status"`
	Stage      workflow.Stage    `json:"stage"`
	Version    int               `json:"version"`
	Snapshot   workflow.Workflow `json:"snapshot"`
	RecordedAt time.Time         `json:"recorded_at"`
}
