// Package notify publishes domain events to external consumers.
package notify

import (
	"context"
	"time"
)

// Event routing keys.
const (
	EventPrincipalRegistered = "principal.registered"
)

// Event is the JSON envelope published for every domain event.
type Event struct {
	ID         string            `json:"id"`
	Type       string            `json:"type"`
	OccurredAt time.Time         `json:"occurredAt"`
	Subject    string            `json:"subject"`
	Attributes map[string]string `json:"attributes,omitempty"`
}

// Publisher delivers events. Implementations must be safe for concurrent use.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Noop discards events. Used when no broker is configured.
type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
