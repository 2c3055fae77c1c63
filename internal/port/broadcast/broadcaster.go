// Package broadcast defines the port for pushing pipeline events to
// observers (websocket clients, the message bus). Broadcasting is fire and
// forget: a slow or absent observer never blocks orchestration.
package broadcast

import "context"

// Broadcaster sends a typed event to all connected observers.
type Broadcaster interface {
	BroadcastEvent(ctx context.Context, eventType string, payload any)
}

// Nop discards all events. Useful as a default and in tests.
type Nop struct{}

// BroadcastEvent implements Broadcaster.
func (Nop) BroadcastEvent(context.Context, string, any) {}
