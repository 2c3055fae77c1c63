// Package memtrail provides the default in-memory implementation of the
// audit trail port: an append-only log ordered by arrival.
package memtrail

import (
	"context"
	"sync"

	"github.com/docuflow/docuflow/internal/domain/audit"
)

// Trail stores transitions in append order with a per-workflow index.
// Records are deep-snapshotted by the caller; the trail itself only copies
// the record envelope.
type Trail struct {
	mu      sync.RWMutex
	records []audit.Transition
	byWf    map[string][]int
}

// New returns an empty trail.
func New() *Trail {
	return &Trail{byWf: map[string][]int{}}
}

// Append implements audittrail.Trail.
func (t *Trail) Append(_ context.Context, tr *audit.Transition) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.records = append(t.records, *tr)
	t.byWf[tr.WorkflowID] = append(t.byWf[tr.WorkflowID], len(t.records)-1)
	return nil
}

// History implements audittrail.Trail. Records come back in append order,
// which for a single workflow is version order.
func (t *Trail) History(_ context.Context, workflowID string) ([]audit.Transition, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	idx := t.byWf[workflowID]
	out := make([]audit.Transition, 0, len(idx))
	for _, i := range idx {
		out = append(out, t.records[i])
	}
	return out, nil
}

// All implements audittrail.Trail.
func (t *Trail) All(_ context.Context) ([]audit.Transition, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]audit.Transition, len(t.records))
	copy(out, t.records)
	return out, nil
}
