// Package workflow defines the per-document pipeline entity: its stage
// machine, its agent result map and the derived views the decision engine
// reads.
package workflow

import (
	"time"

	"github.com/docuflow/docuflow/internal/domain/decision"
	"github.com/docuflow/docuflow/internal/domain/task"
)

// Status is the presentation status of a workflow. It changes only as part
// of a versioned mutation (creation or stage entry), so a workflow stays
// "created" while its extraction task is in flight.
type Status string

const (
	StatusCreated                 Status = "created"
	StatusValidationInProgress    Status = "validation_in_progress"
	StatusQualityReviewInProgress Status = "quality_review_in_progress"
	StatusDecisionInProgress      Status = "decision_in_progress"
	StatusCompleted               Status = "completed"
)

// AgentResult pairs an agent with the result it reported. Entries keep
// completion order; a re-report by the same agent overwrites the result in
// place and keeps the original position.
type AgentResult struct {
	AgentID    string      `json:"agent_id"`
	Type       task.Type   `json:"task_type"`
	Result     task.Result `json:"result"`
	RecordedAt time.Time   `json:"recorded_at"`
}

// Workflow tracks one document through the pipeline. Version starts at 1 on
// creation and increments on every mutation, so the audit trail length for
// a workflow always equals its version.
type Workflow struct {
	ID           string             `json:"id"`
	DocumentType string             `json:"document_type"`
	Stage        Stage              `json:"stage"`
	Status       Status             `json:"status"`
	Results      []AgentResult      `json:"results"`
	Confidences  map[string]float64 `json:"confidences"`
	Anomalies    []task.Anomaly     `json:"anomalies"`
	Risk         decision.Risk      `json:"risk"`
	Decision     *decision.Decision `json:"decision,omitempty"`
	Version      int                `json:"version"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// New returns a freshly created workflow at the extraction stage with
// version 1.
func New(id, documentType string, now time.Time) *Workflow {
	return &Workflow{
		ID:           id,
		DocumentType: documentType,
		Stage:        StageExtraction,
		Status:       StatusCreated,
		Results:      []AgentResult{},
		Confidences:  map[string]float64{},
		Anomalies:    []task.Anomaly{},
		Risk:         decision.RiskLow,
		Version:      1,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

// SetResult records an agent's result, overwriting in place if the agent
// already reported, and refreshes the derived confidence, anomaly and risk
// views. The anomaly view is rebuilt from the result map in insertion
// order, so overwrites never double-count.
func (w *Workflow) SetResult(agentID string, taskType task.Type, res task.Result, now time.Time) {
	entry := AgentResult{AgentID: agentID, Type: taskType, Result: res, RecordedAt: now}
	replaced := false
	for i := range w.Results {
		if w.Results[i].AgentID == agentID {
			w.Results[i] = entry
			replaced = true
			break
		}
	}
	if !replaced {
		w.Results = append(w.Results, entry)
	}
	if w.Confidences == nil {
		w.Confidences = map[string]float64{}
	}
	w.Confidences[agentID] = res.Confidence

	anomalies := make([]task.Anomaly, 0, len(w.Anomalies))
	for _, r := range w.Results {
		anomalies = append(anomalies, r.Result.Anomalies...)
	}
	w.Anomalies = anomalies
	w.Risk = decision.RiskFromAnomalyCount(len(anomalies))
}

// ResultFor returns the recorded result for an agent, if any.
func (w *Workflow) ResultFor(agentID string) (AgentResult, bool) {
	for _, r := range w.Results {
		if r.AgentID == agentID {
			return r, true
		}
	}
	return AgentResult{}, false
}

// HasResultsFor reports whether the result map holds an entry for every one
// of the given task types, regardless of arrival order.
func (w *Workflow) HasResultsFor(types []task.Type) bool {
	for _, t := range types {
		found := false
		for _, r := range w.Results {
			if r.Type == t {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// Clone returns a deep copy suitable for snapshots: mutating the copy never
// touches the live workflow.
func (w *Workflow) Clone() *Workflow {
	if w == nil {
		return nil
	}
	out := *w
	out.Results = make([]AgentResult, len(w.Results))
	for i, r := range w.Results {
		r.Result = *r.Result.Clone()
		out.Results[i] = r
	}
	out.Confidences = make(map[string]float64, len(w.Confidences))
	for k, v := range w.Confidences {
		out.Confidences[k] = v
	}
	out.Anomalies = make([]task.Anomaly, len(w.Anomalies))
	copy(out.Anomalies, w.Anomalies)
	if w.Decision != nil {
		d := *w.Decision
		out.Decision = &d
	}
	return &out
}

// CreateRequest holds the fields needed to create a new workflow.
type CreateRequest struct {
	DocumentType string `json:"document_type"`
}
