package history

import (
	"context"
	"time"
)

// EventType defines the kind of lifecycle event.
type EventType string

const (
	EventSpawned EventType = "spawned"
	EventReady   EventType = "ready"
	EventAdopted EventType = "adopted" // existing occupant kept under the ignore policy
	EventFailed  EventType = "failed"
	EventStopped EventType = "stopped"
)

// Event represents a server lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType `json:"type"`
	OccurredAt time.Time `json:"occurred_at"`
	Server     string    `json:"server"`
	Index      int       `json:"index"`
	PID        int       `json:"pid"`
	Port       int       `json:"port"`
	Resource   string    `json:"resource,omitempty"`
	Detail     string    `json:"detail,omitempty"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use.
type Sink interface {
	Send(ctx context.Context, e Event) error
}

// Multi fans one event out to several sinks; the first error wins but every
// sink is attempted.
type Multi []Sink

func (m Multi) Send(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Send(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
