package privatecall

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"intercom-platform/internal/audit"
)

// How long an invitation may stay pending before it expires.
const PendingTTL = 60 * time.Second

// Caller is the denormalized identity attached to an invitation at
// invite time, so receivers can render who is calling without a lookup.
type Caller struct {
	ID    int
	Name  string
	Email string
	Role  string
}

// Service owns the private-call invitation lifecycle. All status
// transitions go through the repository's atomic Transition, which makes
// this service the single arbiter when both sides act at once.
//
// Expiry is lazy: nothing scans for overdue rows. Any read that touches
// a pending invitation past its deadline flips it to expired first.
type Service struct {
	repo     Repository
	presence Presence
	slots    SlotLimiter
	audit    *audit.Service

	clock func() time.Time
	newID func() string
}

func NewService(repo Repository, presence Presence, slots SlotLimiter, auditSvc *audit.Service) *Service {
	return &Service{
		repo:     repo,
		presence: presence,
		slots:    slots,
		audit:    auditSvc,
		clock:    time.Now,
		newID:    uuid.NewString,
	}
}

// Send creates a pending invitation from caller to receiverID.
//
// Preconditions enforced here:
//   - receiver must be online (their client is polling for incoming calls)
//   - neither party may already be in a call
//
// Both parties' call slots are held for the whole invitation lifetime and
// released when it reaches a terminal status.
func (s *Service) Send(ctx context.Context, caller Caller, receiverID int) (Invitation, error) {
	if caller.ID <= 0 || receiverID <= 0 {
		return Invitation{}, ErrInvalidArgument
	}
	if caller.ID == receiverID {
		return Invitation{}, ErrInvalidArgument
	}

	online, err := s.presence.Online(ctx, receiverID)
	if err != nil {
		return Invitation{}, err
	}
	if !online {
		return Invitation{}, ErrReceiverUnavailable
	}

	now := s.clock().UTC()
	for _, id := range []int{caller.ID, receiverID} {
		busy, err := s.repo.HasActive(ctx, id, now)
		if err != nil {
			return Invitation{}, err
		}
		if busy {
			return Invitation{}, ErrUserBusy
		}
	}

	ok, err := s.slots.Acquire(ctx, caller.ID)
	if err != nil {
		return Invitation{}, err
	}
	if !ok {
		return Invitation{}, ErrUserBusy
	}
	ok, err = s.slots.Acquire(ctx, receiverID)
	if err != nil || !ok {
		_ = s.slots.Release(ctx, caller.ID)
		if err != nil {
			return Invitation{}, err
		}
		return Invitation{}, ErrUserBusy
	}

	inv := Invitation{
		ID:          s.newID(),
		CallerID:    caller.ID,
		ReceiverID:  receiverID,
		CallerName:  caller.Name,
		CallerEmail: caller.Email,
		CallerRole:  caller.Role,
		ChannelName: ChannelName(caller.ID, receiverID),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(PendingTTL),
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		_ = s.slots.Release(ctx, caller.ID)
		_ = s.slots.Release(ctx, receiverID)
		return Invitation{}, err
	}

	s.logTransition(ctx, audit.EventTypeInvited, inv.ID, caller.ID, "", StatusPending, "invitation sent")
	return inv, nil
}

// Accept transitions a pending invitation to accepted. Only the receiver
// may accept. Racing a cancel/expiry loses with ErrConflict.
func (s *Service) Accept(ctx context.Context, invitationID string, userID int) (Invitation, error) {
	inv, err := s.getFresh(ctx, invitationID)
	if err != nil {
		return Invitation{}, err
	}
	if inv.ReceiverID != userID {
		return Invitation{}, ErrForbidden
	}

	now := s.clock().UTC()
	out, err := s.repo.Transition(ctx, invitationID, StatusPending, func(i *Invitation) {
		i.Status = StatusAccepted
		i.UpdatedAt = now
		t := now
		i.AcceptedAt = &t
	})
	if err != nil {
		return Invitation{}, err
	}
	s.logTransition(ctx, audit.EventTypeAccepted, out.ID, userID, StatusPending, StatusAccepted, "")
	return out, nil
}

// Reject transitions a pending invitation to rejected. Only the receiver
// may reject.
func (s *Service) Reject(ctx context.Context, invitationID string, userID int) (Invitation, error) {
	inv, err := s.getFresh(ctx, invitationID)
	if err != nil {
		return Invitation{}, err
	}
	if inv.ReceiverID != userID {
		return Invitation{}, ErrForbidden
	}

	now := s.clock().UTC()
	out, err := s.repo.Transition(ctx, invitationID, StatusPending, func(i *Invitation) {
		i.Status = StatusRejected
		i.UpdatedAt = now
	})
	if err != nil {
		return Invitation{}, err
	}
	s.releaseSlots(ctx, out)
	s.logTransition(ctx, audit.EventTypeRejected, out.ID, userID, StatusPending, StatusRejected, "")
	return out, nil
}

// Cancel transitions a pending invitation to cancelled. Only the caller
// may cancel. If the receiver accepted first, Cancel returns ErrConflict
// and the caller's client should treat the call as connected.
func (s *Service) Cancel(ctx context.Context, invitationID string, userID int) (Invitation, error) {
	inv, err := s.getFresh(ctx, invitationID)
	if err != nil {
		return Invitation{}, err
	}
	if inv.CallerID != userID {
		return Invitation{}, ErrForbidden
	}

	now := s.clock().UTC()
	out, err := s.repo.Transition(ctx, invitationID, StatusPending, func(i *Invitation) {
		i.Status = StatusCancelled
		i.UpdatedAt = now
	})
	if err != nil {
		return Invitation{}, err
	}
	s.releaseSlots(ctx, out)
	s.logTransition(ctx, audit.EventTypeCancelled, out.ID, userID, StatusPending, StatusCancelled, "")
	return out, nil
}

// End transitions an accepted invitation to ended. Either participant
// may end; ending twice returns ErrConflict and callers may treat that
// as already ended.
func (s *Service) End(ctx context.Context, invitationID string, userID int, reason string) (Invitation, error) {
	inv, err := s.getFresh(ctx, invitationID)
	if err != nil {
		return Invitation{}, err
	}
	if !inv.Participant(userID) {
		return Invitation{}, ErrForbidden
	}

	now := s.clock().UTC()
	out, err := s.repo.Transition(ctx, invitationID, StatusAccepted, func(i *Invitation) {
		i.Status = StatusEnded
		i.UpdatedAt = now
		t := now
		i.EndedAt = &t
		i.EndReason = reason
	})
	if err != nil {
		return Invitation{}, err
	}
	s.releaseSlots(ctx, out)
	s.logTransition(ctx, audit.EventTypeEnded, out.ID, userID, StatusAccepted, StatusEnded, reason)
	return out, nil
}

// Status returns the invitation as seen by one of its participants,
// applying lazy expiry first.
func (s *Service) Status(ctx context.Context, invitationID string, userID int) (Invitation, error) {
	inv, err := s.getFresh(ctx, invitationID)
	if err != nil {
		return Invitation{}, err
	}
	if !inv.Participant(userID) {
		return Invitation{}, ErrForbidden
	}
	return inv, nil
}

// Incoming returns unexpired pending invitations addressed to userID,
// newest first. It also refreshes the user's presence, since a client
// polling this endpoint is by definition reachable.
func (s *Service) Incoming(ctx context.Context, userID int) ([]Invitation, error) {
	if userID <= 0 {
		return nil, ErrInvalidArgument
	}
	if err := s.presence.Touch(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.PendingFor(ctx, userID, s.clock().UTC())
}

// Stats summarizes the user's call history over the trailing window.
func (s *Service) Stats(ctx context.Context, userID int, window time.Duration) (Stats, error) {
	if userID <= 0 {
		return Stats{}, ErrInvalidArgument
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return s.repo.StatsFor(ctx, userID, s.clock().UTC().Add(-window))
}

// Cleanup deletes terminal invitations last touched before now-olderThan.
func (s *Service) Cleanup(ctx context.Context, olderThan time.Duration) (int, error) {
	if olderThan <= 0 {
		return 0, ErrInvalidArgument
	}
	n, err := s.repo.DeleteTerminalBefore(ctx, s.clock().UTC().Add(-olderThan))
	if err != nil {
		return 0, err
	}
	if n > 0 && s.audit != nil {
		_ = s.audit.Append(ctx, audit.Event{
			Type:    audit.EventTypeCleanup,
			Message: "terminal invitations purged",
		})
	}
	return n, nil
}

// getFresh loads the invitation and flips it to expired if its pending
// deadline has passed. Every read path goes through here so expiry is
// observed consistently without a background sweeper.
func (s *Service) getFresh(ctx context.Context, invitationID string) (Invitation, error) {
	if invitationID == "" {
		return Invitation{}, ErrInvalidArgument
	}
	inv, err := s.repo.Get(ctx, invitationID)
	if err != nil {
		return Invitation{}, err
	}
	if inv.Status != StatusPending || s.clock().UTC().Before(inv.ExpiresAt) {
		return inv, nil
	}

	now := s.clock().UTC()
	out, err := s.repo.Transition(ctx, invitationID, StatusPending, func(i *Invitation) {
		i.Status = StatusExpired
		i.UpdatedAt = now
	})
	if err != nil {
		if errors.Is(err, ErrConflict) {
			// Someone else transitioned it in the meantime; their
			// status wins.
			return s.repo.Get(ctx, invitationID)
		}
		return Invitation{}, err
	}
	s.releaseSlots(ctx, out)
	s.logTransition(ctx, audit.EventTypeExpired, out.ID, 0, StatusPending, StatusExpired, "pending deadline passed")
	return out, nil
}

func (s *Service) releaseSlots(ctx context.Context, inv Invitation) {
	_ = s.slots.Release(ctx, inv.CallerID)
	_ = s.slots.Release(ctx, inv.ReceiverID)
}

func (s *Service) logTransition(ctx context.Context, typ audit.EventType, invitationID string, actor int, from, to Status, msg string) {
	if s.audit == nil {
		return
	}
	_ = s.audit.LogTransition(ctx, typ, invitationID, actor, string(from), string(to), msg)
}
