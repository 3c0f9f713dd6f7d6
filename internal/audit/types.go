package audit

import (
	"context"
	"encoding/json"
	"time"
)

// Action is the kind of audited event.
type Action string

const (
	ActionCreate             Action = "CREATE"
	ActionUpdate             Action = "UPDATE"
	ActionDelete             Action = "DELETE"
	ActionLoginSuccess       Action = "LOGIN_SUCCESS"
	ActionLoginFailure       Action = "LOGIN_FAILURE"
	ActionUnauthorizedAccess Action = "UNAUTHORIZED_ACCESS"
	ActionAccessDenied       Action = "ACCESS_DENIED"
	ActionGenericFailure     Action = "GENERIC_FAILURE"
)

// EntityType names the kind of entity an audit record is about.
type EntityType string

const (
	EntityUser      EntityType = "USER"
	EntityProject   EntityType = "PROJECT"
	EntityTask      EntityType = "TASK"
	EntityDeveloper EntityType = "DEVELOPER"
)

// Entry is what callers hand to the sink. EntityID may be empty for
// identity-less events such as a failed login by an unknown user.
type Entry struct {
	Action     Action
	EntityType EntityType
	EntityID   string
	Payload    any
	Actor      string
}

// Record is an immutable, persisted audit entry.
type Record struct {
	ID         string          `json:"id"`
	Action     Action          `json:"actionType"`
	EntityType EntityType      `json:"entityType"`
	EntityID   *string         `json:"entityId,omitempty"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Actor      string          `json:"actorName"`
	RequestID  string          `json:"requestId,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// Filter narrows List results. Zero values match everything.
type Filter struct {
	EntityType EntityType
	Actor      string
	Limit      int
}

// Store persists audit records.
type Store interface {
	Append(ctx context.Context, rec *Record) error
	List(ctx context.Context, f Filter) ([]Record, error)
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

func (f Filter) limit() int {
	switch {
	case f.Limit <= 0:
		return defaultListLimit
	case f.Limit > maxListLimit:
		return maxListLimit
	default:
		return f.Limit
	}
}
