package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/docuflow/docuflow/internal/domain"
	"github.com/docuflow/docuflow/internal/domain/audit"
)

// uniqueViolation is the PostgreSQL error code for unique constraint
// violations.
const uniqueViolation = "23505"

// Trail is the PostgreSQL-backed audit trail archive. It implements
// audittrail.Trail; the unique (workflow_id, version) index backs the
// append-only guarantee at the database level.
type Trail struct {
	pool *pgxpool.Pool
}

// NewTrail creates a Trail on an existing connection pool.
func NewTrail(pool *pgxpool.Pool) *Trail {
	return &Trail{pool: pool}
}

// Append persists one transition record. A record that would reuse an
// already archived (workflow, version) pair is rejected with
// domain.ErrConflict.
func (t *Trail) Append(ctx context.Context, tr *audit.Transition) error {
	snapshot, err := json.Marshal(tr.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	const q = `
		INSERT INTO workflow_transitions (id, workflow_id, kind, status, stage, version, snapshot, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err = t.pool.Exec(ctx, q,
		tr.ID, tr.WorkflowID, string(tr.Kind), string(tr.Status), string(tr.Stage),
		tr.Version, snapshot, tr.RecordedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return fmt.Errorf("transition %s v%d for workflow %s: %w", tr.Kind, tr.Version, tr.WorkflowID, domain.ErrConflict)
		}
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// History returns all archived transitions for a workflow, ordered by
// version ascending. An unknown workflow yields an empty slice, not an
// error; existence checks belong to the caller.
func (t *Trail) History(ctx context.Context, workflowID string) ([]audit.Transition, error) {
	const q = `
		SELECT id, workflow_id, kind, status, stage, version, snapshot, recorded_at
		FROM workflow_transitions
		WHERE workflow_id = $1
		ORDER BY version ASC`

	rows, err := t.pool.Query(ctx, q, workflowID)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	return scanTransitions(rows)
}

// All returns every archived transition in append order, across workflows.
func (t *Trail) All(ctx context.Context) ([]audit.Transition, error) {
	const q = `
		SELECT id, workflow_id, kind, status, stage, version, snapshot, recorded_at
		FROM workflow_transitions
		ORDER BY seq ASC`

	rows, err := t.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("query all transitions: %w", err)
	}
	defer rows.Close()

	return scanTransitions(rows)
}

// scannable abstracts pgx.Row and pgx.Rows for shared scan helpers.
type scannable interface {
	Scan(dest ...any) error
}

func scanTransition(row scannable) (audit.Transition, error) {
	var (
		tr       audit.Transition
		snapshot []byte
	)
	if err := row.Scan(
		&tr.ID, &tr.WorkflowID, &tr.Kind, &tr.Status, &tr.Stage,
		&tr.Version, &snapshot, &tr.RecordedAt,
	); err != nil {
		return audit.Transition{}, fmt.Errorf("scan transition: %w", err)
	}
	if err := json.Unmarshal(snapshot, &tr.Snapshot); err != nil {
		return audit.Transition{}, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return tr, nil
}

func scanTransitions(rows interface {
	scannable
	Next() bool
	Err() error
}) ([]audit.Transition, error) {
	result := []audit.Transition{}
	for rows.Next() {
		tr, err := scanTransition(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, tr)
	}
	return result, rows.Err()
}
