package signaling

import (
	"fmt"
	"time"
)

// Invitation is the client-side projection of a private-call invitation.
// The server owns the row; this copy is only ever refreshed by polling.
type Invitation struct {
	ID          string    `json:"invitationId"`
	CallerID    int       `json:"callerId"`
	ReceiverID  int       `json:"receiverId"`
	CallerName  string    `json:"callerName"`
	CallerEmail string    `json:"callerEmail"`
	CallerRole  string    `json:"callerRole"`
	ChannelName string    `json:"channelName"`
	Status      Status    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
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

// Terminal reports whether no further transition can arrive from the
// server. accepted is not terminal: an accepted call still ends.
func (s Status) Terminal() bool {
	switch s {
	case StatusRejected, StatusCancelled, StatusExpired, StatusEnded:
		return true
	default:
		return false
	}
}

// ChannelName derives the voice channel for a participant pair. Both
// peers compute this locally; it must match what the server stores, so
// the formula is part of the wire contract and never changes casually.
func ChannelName(a, b int) string {
	if a > b {
		a, b = b, a
	}
	return fmt.Sprintf("private_%d_%d", a, b)
}
