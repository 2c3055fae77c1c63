// Package messagequeue defines the message queue port (interface) and the
// subjects docuflow publishes pipeline events on. External subscribers use
// these to display or throttle progress; nothing in the core consumes them.
package messagequeue

import "context"

// Handler processes a message received from the queue.
type Handler func(ctx context.Context, subject string, data []byte) error

// Queue is the port interface for publishing and subscribing to messages.
type Queue interface {
	// Publish sends a message to the given subject.
	Publish(ctx context.Context, subject string, data []byte) error

	// Subscribe registers a handler for messages on the given subject.
	// The returned function cancels the subscription.
	Subscribe(ctx context.Context, subject string, handler Handler) (cancel func(), err error)

	// Drain gracefully drains all subscriptions before closing.
	Drain() error

	// Close shuts down the queue connection immediately.
	Close() error

	// IsConnected reports whether the queue is currently connected.
	IsConnected() bool
}

// Subject constants for pipeline events.
const (
	SubjectWorkflowTransition = "workflows.transition" // stage entries and creation
	SubjectWorkflowDecision   = "workflows.decision"   // final decision recorded
	SubjectTaskStatus         = "tasks.status"         // submitted/assigned/processing/completed/failed
	SubjectAgentStatus        = "agents.status"        // agent lifecycle changes
)
