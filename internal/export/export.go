// Package export serializes the orchestrator's full state to JSON: every
// workflow, agent, task record and audit transition, under one timestamped
// envelope. The export is a read-only snapshot for offline inspection and
// replay; importing one back is not supported.
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/docuflow/docuflow/internal/domain/agent"
	"github.com/docuflow/docuflow/internal/domain/audit"
	"github.com/docuflow/docuflow/internal/domain/task"
	"github.com/docuflow/docuflow/internal/domain/workflow"
	"github.com/docuflow/docuflow/internal/port/audittrail"
	"github.com/docuflow/docuflow/internal/port/state"
)

// Snapshot is the export envelope.
type Snapshot struct {
	ExportedAt  time.Time           `json:"exported_at"`
	Workflows   []workflow.Workflow `json:"workflows"`
	Agents      []agent.Agent       `json:"agents"`
	Tasks       []task.Task         `json:"tasks"`
	Transitions []audit.Transition  `json:"transitions"`
}

// Collect gathers the current state into a snapshot. Slices keep the
// stores' insertion order; transitions come in append order across
// workflows.
func Collect(ctx context.Context, store state.Store, trail audittrail.Trail) (*Snapshot, error) {
	workflows, err := store.ListWorkflows(ctx)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	agents, err := store.ListAgents(ctx)
	if err != nil {
		return nil, fmt.Errorf("list agents: %w", err)
	}
	tasks, err := store.ListTasks(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	transitions, err := trail.All(ctx)
	if err != nil {
		return nil, fmt.Errorf("list transitions: %w", err)
	}
	return &Snapshot{
		ExportedAt:  time.Now().UTC(),
		Workflows:   workflows,
		Agents:      agents,
		Tasks:       tasks,
		Transitions: transitions,
	}, nil
}

// Write renders the snapshot as indented JSON.
func Write(w io.Writer, snap *Snapshot) error {
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}

// WriteFile writes the snapshot atomically: to a temp file first, then
// renamed into place, so a crash never leaves a truncated export.
func WriteFile(path string, snap *Snapshot) error {
	if path == "" {
		return fmt.Errorf("export path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create export dir: %w", err)
	}
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create temp export: %w", err)
	}
	if err := Write(f, snap); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("close temp export: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("rename export: %w", err)
	}
	return nil
}

// Read parses a snapshot previously produced by Write.
func Read(r io.Reader) (*Snapshot, error) {
	var snap Snapshot
	if err := json.NewDecoder(r).Decode(&snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &snap, nil
}
