package privatecall

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound        = errors.New("privatecall: not found")
	ErrInvalidArgument = errors.New("privatecall: invalid argument")
	ErrForbidden       = errors.New("privatecall: not a participant")

	// ErrConflict is returned when a transition races another writer:
	// the row is no longer in the expected source status. Whichever
	// terminal status landed first wins (clients are pure followers).
	ErrConflict = errors.New("privatecall: status changed concurrently")

	ErrReceiverUnavailable = errors.New("privatecall: receiver unavailable")
	ErrUserBusy            = errors.New("privatecall: user already in a call")
)

// Repository is the persistence contract for invitations.
//
// Transition is the only mutation path after Create. It must be atomic:
// compare the current status against from and apply mutate only on match.
// This is what makes the server the single arbiter of races between
// accept/reject/cancel/expire.
type Repository interface {
	Create(ctx context.Context, inv Invitation) error
	Get(ctx context.Context, id string) (Invitation, error)

	Transition(ctx context.Context, id string, from Status, mutate func(*Invitation)) (Invitation, error)

	// PendingFor returns unexpired pending invitations addressed to the
	// receiver, newest first.
	PendingFor(ctx context.Context, receiverID int, now time.Time) ([]Invitation, error)

	// HasActive reports whether the user participates in any pending or
	// accepted invitation (one call at a time per user).
	HasActive(ctx context.Context, userID int, now time.Time) (bool, error)

	StatsFor(ctx context.Context, userID int, since time.Time) (Stats, error)

	// DeleteTerminalBefore removes terminal invitations updated before
	// the cutoff and returns how many were deleted.
	DeleteTerminalBefore(ctx context.Context, cutoff time.Time) (int, error)
}
