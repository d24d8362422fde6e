package audit

import "time"

// Event is an immutable, append-only record of a call lifecycle transition.
//
// Invariants:
// - Events are never updated or deleted.
// - Audit logging is best-effort; call flows must not block on audit failures.
//
// Storage recommendation (Postgres):
// - Table call_audit_events with an INSERT-only policy.
// - Optional: partition by time for retention.

type Event struct {
	ID string `json:"id" db:"id"`

	// Type indicates the lifecycle transition being recorded.
	Type EventType `json:"type" db:"type"`

	// InvitationID ties the event to a private-call invitation.
	InvitationID string `json:"invitation_id" db:"invitation_id"`

	// ActorUserID is the user causing the transition (0 for server-driven
	// transitions such as expiry).
	ActorUserID int `json:"actor_user_id,omitempty" db:"actor_user_id"`

	// FromStatus/ToStatus capture the transition edge.
	FromStatus string `json:"from_status,omitempty" db:"from_status"`
	ToStatus   string `json:"to_status,omitempty" db:"to_status"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty" db:"message"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

type EventType string

const (
	EventTypeInvited   EventType = "call_invited"
	EventTypeAccepted  EventType = "call_accepted"
	EventTypeRejected  EventType = "call_rejected"
	EventTypeCancelled EventType = "call_cancelled"
	EventTypeExpired   EventType = "call_expired"
	EventTypeEnded     EventType = "call_ended"
	EventTypeCleanup   EventType = "call_cleanup"
)
