package audittrail

import (
	"context"
	"log/slog"

	"github.com/docuflow/docuflow/internal/domain/audit"
)

// Fork writes every record to a primary trail and mirrors it to an archive.
// The primary is authoritative: its errors propagate and all reads come
// from it. Archive writes are best effort; a failing archive is logged and
// never blocks orchestration.
func Fork(primary, archive Trail) Trail {
	return &fork{primary: primary, archive: archive}
}

type fork struct {
	primary Trail
	archive Trail
}

func (f *fork) Append(ctx context.Context, tr *audit.Transition) error {
	if err := f.primary.Append(ctx, tr); err != nil {
		return err
	}
	if err := f.archive.Append(ctx, tr); err != nil {
		slog.Error("archive transition", "workflow_id", tr.WorkflowID, "version", tr.Version, "error", err)
	}
	return nil
}

func (f *fork) History(ctx context.Context, workflowID string) ([]audit.Transition, error) {
	return f.primary.History(ctx, workflowID)
}

func (f *fork) All(ctx context.Context) ([]audit.Transition, error) {
	return f.primary.All(ctx)
}
