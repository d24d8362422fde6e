package privatecall

import (
	"fmt"
	"time"
)

// Invitation is a proposed private call. The server row is the source of
// truth for its status; clients only hold projections refreshed by polling.
//
// Lifecycle: pending -> accepted -> ended
//
//	pending -> rejected | cancelled | expired
//
// Terminal statuses never transition again.
type Invitation struct {
	ID         string `json:"invitationId" db:"id"`
	CallerID   int    `json:"callerId" db:"caller_id"`
	ReceiverID int    `json:"receiverId" db:"receiver_id"`

	// Denormalized caller metadata, attached at invite time for display.
	CallerName  string `json:"callerName" db:"caller_name"`
	CallerEmail string `json:"callerEmail" db:"caller_email"`
	CallerRole  string `json:"callerRole" db:"caller_role"`

	// ChannelName is the voice-transport room both peers join. It is
	// derived from the participant ids, so both sides can compute it
	// without server coordination; see ChannelName.
	ChannelName string `json:"channelName" db:"channel_name"`

	Status Status `json:"status" db:"status"`

	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`

	// ExpiresAt bounds how long the invitation may stay pending.
	ExpiresAt time.Time `json:"expiresAt" db:"expires_at"`

	// AcceptedAt/EndedAt bound the voice-connected phase of accepted calls.
	AcceptedAt *time.Time `json:"acceptedAt,omitempty" db:"accepted_at"`
	EndedAt    *time.Time `json:"endedAt,omitempty" db:"ended_at"`

	// EndReason is free-form ("user_hangup", "connection_lost", ...).
	EndReason string `json:"endReason,omitempty" db:"end_reason"`
}

type Status string

const (
	StatusPending   Status = "pending"
	StatusAccepted  Status = "accepted"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusEnded     Status = "ended"
)

// Terminal reports whether no further transition is possible.
// accepted is not terminal: it still transitions to ended.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusExpired, StatusEnded:
		return true
	default:
		return false
	}
}

// ChannelName derives the voice channel for a participant pair.
// It is order-independent: ChannelName(a, b) == ChannelName(b, a).
// Both peers and the server must agree on this formula with no coordination.
func ChannelName(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("private_%d_%d", a, b)
}

// Participant reports whether userID is one of the two call parties.
func (i Invitation) Participant(userID int) bool {
	return userID == i.CallerID || userID == i.ReceiverID
}

// Stats summarizes a user's private-call history over a window.
type Stats struct {
	UserID        int `json:"userId"`
	CallsMade     int `json:"callsMade"`
	CallsReceived int `json:"callsReceived"`
	CallsAccepted int `json:"callsAccepted"`
	CallsRejected int `json:"callsRejected"`
	CallsExpired  int `json:"callsTimedOut"`

	// AvgCallDurationSeconds is nil when no call in the window completed.
	AvgCallDurationSeconds *float64 `json:"avgCallDurationSeconds,omitempty"`
}
