// Package call implements the private-call state machines: placing and
// answering invitations, sequencing the voice-channel join, watching
// connection health, and listening for inbound calls.
//
// The server is the source of truth for invitation status; everything
// here is a polling follower. Whichever terminal status the server
// reports first wins, and no component retries a lost race.
package call

import (
	"context"

	"intercom-platform/internal/signaling"
)

// Signaler is the slice of the signaling protocol the state machines
// consume. *signaling.Client satisfies it.
type Signaler interface {
	Invite(ctx context.Context, receiverID int) (signaling.Invitation, error)
	Accept(ctx context.Context, invitationID string) error
	Reject(ctx context.Context, invitationID string) error
	Cancel(ctx context.Context, invitationID string) error
	End(ctx context.Context, invitationID, reason string) error

	signaling.StatusSource
}

// Outcome is the single user-visible resolution of a call attempt.
// Every flow produces exactly one outcome notification; the user is
// never dropped back without an explanation.
type Outcome string

const (
	OutcomeAccepted       Outcome = "accepted"
	OutcomeRejected       Outcome = "rejected"
	OutcomeCancelled      Outcome = "cancelled"
	OutcomeExpired        Outcome = "expired"
	OutcomeTimedOut       Outcome = "timed_out"
	OutcomeAutoRejected   Outcome = "auto_rejected"
	OutcomeEnded          Outcome = "ended"
	OutcomeConnectionLost Outcome = "connection_lost"
	OutcomeConnectFailed  Outcome = "connection_failed"
)

// Notifier receives the one terminal notification per call attempt.
type Notifier interface {
	Notify(outcome Outcome, detail string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(outcome Outcome, detail string)

func (f NotifierFunc) Notify(outcome Outcome, detail string) { f(outcome, detail) }

// NopNotifier discards notifications.
var NopNotifier = NotifierFunc(func(Outcome, string) {})
