package ws

import (
	"context"
	"encoding/json"
	"log/slog"
)

// Event type constants for WebSocket messages.
const (
	EventWorkflowStatus   = "workflow.status"
	EventWorkflowDecision = "workflow.decision"
	EventTaskStatus       = "task.status"
	EventTaskUnassignable = "task.unassignable"
	EventAgentStatus      = "agent.status"
)

// WorkflowStatusEvent is broadcast on every versioned workflow mutation:
// creation, result updates and stage entries.
type WorkflowStatusEvent struct {
	WorkflowID   string `json:"workflow_id"`
	DocumentType string `json:"document_type"`
	Stage        string `json:"stage"`
	Status       string `json:"status"`
	Version      int    `json:"version"`
}

// WorkflowDecisionEvent is broadcast when the final decision is recorded.
type WorkflowDecisionEvent struct {
	WorkflowID   string  `json:"workflow_id"`
	DocumentType string  `json:"document_type"`
	Action       string  `json:"action"`
	Reasoning    string  `json:"reasoning"`
	Confidence   float64 `json:"confidence"`
	AnomalyCount int     `json:"anomaly_count"`
	Risk         string  `json:"risk"`
}

// TaskStatusEvent is broadcast when a task's status changes.
type TaskStatusEvent struct {
	TaskID     string `json:"task_id"`
	WorkflowID string `json:"workflow_id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	AgentID    string `json:"agent_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// TaskUnassignableEvent is broadcast when no idle capable agent was found
// for a task. The task stays pending.
type TaskUnassignableEvent struct {
	TaskID     string `json:"task_id"`
	WorkflowID string `json:"workflow_id"`
	Type       string `json:"type"`
}

// AgentStatusEvent is broadcast when an agent's lifecycle state changes.
type AgentStatusEvent struct {
	AgentID       string `json:"agent_id"`
	State         string `json:"state"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
}

// BroadcastEvent is a convenience method that marshals a typed event and broadcasts it.
func (h *Hub) BroadcastEvent(ctx context.Context, eventType string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		slog.Error("marshal ws event payload", "type", eventType, "error", err)
		return
	}

	h.Broadcast(ctx, Message{
		Type:    eventType,
		Payload: json.RawMessage(data),
	})
}
