package audittrail

import (
	"context"
	"errors"
	"testing"

	"github.com/docuflow/docuflow/internal/domain/audit"
)

type recordingTrail struct {
	appended  []audit.Transition
	appendErr error
}

func (r *recordingTrail) Append(_ context.Context, tr *audit.Transition) error {
	if r.appendErr != nil {
		return r.appendErr
	}
	r.appended = append(r.appended, *tr)
	return nil
}

func (r *recordingTrail) History(context.Context, string) ([]audit.Transition, error) {
	return r.appended, nil
}

func (r *recordingTrail) All(context.Context) ([]audit.Transition, error) {
	return r.appended, nil
}

func TestForkMirrorsAppends(t *testing.T) {
	primary := &recordingTrail{}
	archive := &recordingTrail{}
	f := Fork(primary, archive)

	tr := &audit.Transition{ID: "tr1", WorkflowID: "wf1", Version: 1}
	if err := f.Append(context.Background(), tr); err != nil {
		t.Fatalf("append: %v", err)
	}
	if len(primary.appended) != 1 || len(archive.appended) != 1 {
		t.Fatalf("expected both trails to record, got %d/%d", len(primary.appended), len(archive.appended))
	}
}

func TestForkPrimaryErrorPropagates(t *testing.T) {
	boom := errors.New("disk full")
	primary := &recordingTrail{appendErr: boom}
	archive := &recordingTrail{}
	f := Fork(primary, archive)

	err := f.Append(context.Background(), &audit.Transition{ID: "tr1"})
	if !errors.Is(err, boom) {
		t.Fatalf("expected primary error, got %v", err)
	}
	if len(archive.appended) != 0 {
		t.Fatal("archive must not record when the primary fails")
	}
}

func TestForkArchiveErrorIsSwallowed(t *testing.T) {
	primary := &recordingTrail{}
	archive := &recordingTrail{appendErr: errors.New("connection lost")}
	f := Fork(primary, archive)

	if err := f.Append(context.Background(), &audit.Transition{ID: "tr1"}); err != nil {
		t.Fatalf("archive failure must not propagate, got %v", err)
	}
	if len(primary.appended) != 1 {
		t.Fatal("primary must still record")
	}
}
