// Package session is the single source of truth for who is logged in.
package session

import (
	"context"
	"time"

	"focusflow/internal/model"
)

// Status is the three-state identity. The zero value is Unknown so an
// unresolved identity is never mistaken for a logged-out one.
type Status uint8

const (
	StatusUnknown Status = iota
	StatusAbsent
	StatusPresent
)

func (s Status) String() string {
	switch s {
	case StatusAbsent:
		return "absent"
	case StatusPresent:
		return "present"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	switch string(b) {
	case "present":
		*s = StatusPresent
	case "absent":
		*s = StatusAbsent
	default:
		*s = StatusUnknown
	}
	return nil
}

// Identity is the resolved session state for one token.
type Identity struct {
	Status    Status      `json:"status"`
	User      *model.User `json:"user,omitempty"`
	SessionID string      `json:"-"`
}

// UserID returns the owner id of a present identity.
func (i Identity) UserID() string {
	if i.User == nil {
		return ""
	}
	return i.User.ID
}

func Absent() Identity  { return Identity{Status: StatusAbsent} }
func Unknown() Identity { return Identity{Status: StatusUnknown} }

// Session is what a successful signup or login hands back.
type Session struct {
	Token     string
	ExpiresAt time.Time
	Identity  Identity
}

// Event is published whenever a session's identity changes.
type Event struct {
	SessionID string
	Identity  Identity
}

// Decision is the route guard's verdict.
type Decision uint8

const (
	Allow Decision = iota
	Redirect
	Wait
)

// Gate decides whether owner-scoped views may render. It never redirects
// while the identity is still unknown.
func Gate(id Identity) Decision {
	switch id.Status {
	case StatusPresent:
		return Allow
	case StatusAbsent:
		return Redirect
	default:
		return Wait
	}
}

type identityKey struct{}

// WithIdentity stores id in ctx.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey{}, id)
}

// FromContext returns the identity stored by WithIdentity, or Unknown.
func FromContext(ctx context.Context) Identity {
	if id, ok := ctx.Value(identityKey{}).(Identity); ok {
		return id
	}
	return Unknown()
}
