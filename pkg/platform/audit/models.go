package audit

import (
	"context"
	"time"
)

// Action names a lifecycle event worth keeping in the audit trail.
type Action string

const (
	ActionRequestCreated        Action = "request_created"
	ActionRequestStatusChanged  Action = "request_status_changed"
	ActionRequestDeleted        Action = "request_deleted"
	ActionShareLinkCreated      Action = "share_link_created"
	ActionShareLinkViewed       Action = "share_link_viewed"
	ActionShareLinkRevoked      Action = "share_link_revoked"
	ActionShareDecisionRecorded Action = "share_decision_recorded"
)

// Event is emitted from domain logic to capture key actions. It is
// transport-agnostic so stores and sinks can fan out.
//
// Events never carry share-token secrets or the civil id of the citizen;
// DocumentRequestID is the join key for investigations.
type Event struct {
	Action            Action    `json:"action"`
	Timestamp         time.Time `json:"timestamp"`
	DocumentRequestID string    `json:"document_request_id,omitempty"`
	// ActorID is the authenticated requester, empty for share-link viewers.
	ActorID string `json:"actor_id,omitempty"`
	// TokenID identifies the share link involved, never its secret half.
	TokenID   string `json:"token_id,omitempty"`
	FromState string `json:"from_state,omitempty"`
	ToState   string `json:"to_state,omitempty"`
	Decision  string `json:"decision,omitempty"`
	// RequestID is the HTTP correlation id.
	RequestID string `json:"request_id,omitempty"`
	ClientIP  string `json:"client_ip,omitempty"`
	Device    string `json:"device,omitempty"`
}

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// Sink receives a copy of every persisted event. Delivery is best effort.
type Sink interface {
	Publish(ctx context.Context, event Event)
}
