package logger

import "context"

// contextKey is a private type to prevent collisions with other context keys.
type contextKey struct{}

// workflowIDKey is the context key for the workflow ID.
var workflowIDKey = contextKey{}

// WithWorkflowID returns a new context with the given workflow ID stored.
func WithWorkflowID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, workflowIDKey, id)
}

// WorkflowID extracts the workflow ID from the context.
// Returns an empty string if no workflow ID is set.
func WorkflowID(ctx context.Context) string {
	id, _ := ctx.Value(workflowIDKey).(string)
	return id
}
