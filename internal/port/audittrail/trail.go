// Package audittrail defines the port interface for the append-only audit
// trail of workflow state transitions.
package audittrail

import (
	"context"

	"github.com/docuflow/docuflow/internal/domain/audit"
)

// Trail is the port interface for recording and reading transitions.
// Records are never updated or deleted. History returns a workflow's
// records ordered by version ascending; because every mutation appends
// exactly one record, len(History(id)) always equals the workflow version.
type Trail interface {
	// Append persists a new transition record.
	Append(ctx context.Context, tr *audit.Transition) error

	// History returns all transitions for a workflow, ordered by version.
	History(ctx context.Context, workflowID string) ([]audit.Transition, error)

	// All returns every recorded transition in append order, across
	// workflows. Used by the state export.
	All(ctx context.Context) ([]audit.Transition, error)
}
