package messagequeue

// WorkflowTransitionPayload is the schema for workflows.transition messages.
type WorkflowTransitionPayload struct {
	WorkflowID   string `json:"workflow_id"`
	DocumentType string `json:"document_type"`
	Kind         string `json:"kind"`
	Stage        string `json:"stage"`
	Status       string `json:"status"`
	Version      int    `json:"version"`
}

// WorkflowDecisionPayload is the schema for workflows.decision messages.
type WorkflowDecisionPayload struct {
	WorkflowID   string  `json:"workflow_id"`
	DocumentType string  `json:"document_type"`
	Action       string  `json:"action"`
	Reasoning    string  `json:"reasoning"`
	Confidence   float64 `json:"confidence"`
	AnomalyCount int     `json:"anomaly_count"`
	Risk         string  `json:"risk"`
}

// TaskStatusPayload is the schema for tasks.status messages.
type TaskStatusPayload struct {
	TaskID     string `json:"task_id"`
	WorkflowID string `json:"workflow_id"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	AgentID    string `json:"agent_id,omitempty"`
	Error      string `json:"error,omitempty"`
}

// AgentStatusPayload is the schema for agents.status messages.
type AgentStatusPayload struct {
	AgentID       string `json:"agent_id"`
	State         string `json:"state"`
	CurrentTaskID string `json:"current_task_id,omitempty"`
}
