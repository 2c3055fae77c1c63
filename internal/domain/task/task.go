// Package task defines pipeline tasks and the uniform result schema every
// worker reports, regardless of task type.
package task

import "time"

// Type identifies the kind of work a task carries. Types double as the
// capability tags agents declare, so assignment is a pure tag match.
type Type string

const (
	TypeExtraction    Type = "extraction"
	TypeContract      Type = "contract"
	TypeMSA           Type = "msa"
	TypeMasterData    Type = "master_data"
	TypeQualityReview Type = "quality_review"
)

// Known reports whether t is one of the pipeline task types.
func (t Type) Known() bool {
	switch t {
	case TypeExtraction, TypeContract, TypeMSA, TypeMasterData, TypeQualityReview:
		return true
	}
	return false
}

// Priority is carried metadata on a task. It does not reorder the queue;
// tasks are processed in submission order.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Status represents the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusAssigned   Status = "assigned"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// IsTerminal returns true if the task is in a final state.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Anomaly is a single finding reported by a worker, e.g. "missing_po_number".
// Anomalies are accumulated across a workflow without deduplication.
type Anomaly string

// Result is the uniform payload every worker reports on completion.
// Confidence is in [0,1]. Fields carries extraction output when present.
// Error is set only on failed completions and never enters a workflow.
type Result struct {
	Confidence float64           `json:"confidence"`
	Anomalies  []Anomaly         `json:"anomalies,omitempty"`
	Fields     map[string]string `json:"fields,omitempty"`
	Notes      string            `json:"notes,omitempty"`
	Error      string            `json:"error,omitempty"`
}

// Clone returns a deep copy of the result.
func (r *Result) Clone() *Result {
	if r == nil {
		return nil
	}
	out := *r
	if r.Anomalies != nil {
		out.Anomalies = make([]Anomaly, len(r.Anomalies))
		copy(out.Anomalies, r.Anomalies)
	}
	if r.Fields != nil {
		out.Fields = make(map[string]string, len(r.Fields))
		for k, v := range r.Fields {
			out.Fields[k] = v
		}
	}
	return &out
}

// Task represents a unit of work routed to exactly one agent. A task also
// serves as the coordination record for its assignment: the agent, the
// assignment time and the completion time stay on it after resolution.
type Task struct {
	ID          string     `json:"id"`
	WorkflowID  string     `json:"workflow_id"`
	Type        Type       `json:"type"`
	Priority    Priority   `json:"priority"`
	Status      Status     `json:"status"`
	AgentID     string     `json:"agent_id,omitempty"`
	Result      *Result    `json:"result,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	AssignedAt  *time.Time `json:"assigned_at,omitempty"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Clone returns a deep copy of the task.
func (t *Task) Clone() *Task {
	if t == nil {
		return nil
	}
	out := *t
	out.Result = t.Result.Clone()
	out.AssignedAt = cloneTime(t.AssignedAt)
	out.StartedAt = cloneTime(t.StartedAt)
	out.CompletedAt = cloneTime(t.CompletedAt)
	return &out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// SubmitRequest holds the fields needed to submit a new task.
type SubmitRequest struct {
	WorkflowID string   `json:"workflow_id"`
	Type       Type     `json:"type"`
	Priority   Priority `json:"priority,omitempty"`
}
