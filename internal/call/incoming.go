package call

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"intercom-platform/internal/signaling"
)

// Decision is the user's answer to a ringing call.
type Decision int

const (
	DecisionAccept Decision = iota
	DecisionReject
)

// Ringer drives the receiver side of an invitation:
//
//	Idle -> Ringing(pending) -> accepted | rejected | auto_rejected |
//	                            cancelled | expired
//
// While ringing it watches the server for the caller hanging up, and
// auto-rejects if the user does nothing for the ring timeout.
type Ringer struct {
	sig     Signaler
	userID  int
	timings Timings
	notify  Notifier
	log     *slog.Logger
}

func NewRinger(sig Signaler, userID int, t Timings, n Notifier, log *slog.Logger) *Ringer {
	if n == nil {
		n = NopNotifier
	}
	if log == nil {
		log = slog.Default()
	}
	return &Ringer{sig: sig, userID: userID, timings: t.withDefaults(), notify: n, log: log}
}

// Ring handles one ringing invitation until it resolves. decisions
// carries the user's accept/reject choice; the first decision that
// reaches the server wins. Exactly one notification is emitted.
//
// Cancelling ctx abandons the ring without contacting the server.
func (r *Ringer) Ring(ctx context.Context, inv signaling.Invitation, decisions <-chan Decision) (Result, error) {
	log := r.log.With("invitation_id", inv.ID, "caller_id", inv.CallerID)
	log.Info("ringing", "caller", inv.CallerName)

	ticker := time.NewTicker(r.timings.RingPollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(r.timings.RingTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()

		case <-deadline.C:
			// The deadline fires once and the loop exits with it, so
			// the auto-reject cannot repeat.
			log.Info("ring timeout, auto-rejecting")
			r.rejectBestEffort(inv.ID, log)
			r.notify.Notify(OutcomeAutoRejected, "call not answered")
			return Result{Outcome: OutcomeAutoRejected, Invitation: inv}, nil

		case d := <-decisions:
			switch d {
			case DecisionAccept:
				res, done := r.accept(ctx, inv, log)
				if done {
					return res, nil
				}
				// Accept never reached the server; keep ringing.
			case DecisionReject:
				r.rejectBestEffort(inv.ID, log)
				r.notify.Notify(OutcomeRejected, "call declined")
				return Result{Outcome: OutcomeRejected, Invitation: inv}, nil
			}

		case <-ticker.C:
			cur, err := r.sig.Status(ctx, inv.ID, r.userID)
			if err != nil {
				log.Warn("ring status poll failed", "err", err)
				continue
			}
			switch cur.Status {
			case signaling.StatusPending:
				continue
			case signaling.StatusCancelled:
				log.Info("caller cancelled while ringing")
				r.notify.Notify(OutcomeCancelled, "caller hung up")
				return Result{Outcome: OutcomeCancelled, Invitation: cur}, nil
			case signaling.StatusExpired:
				r.notify.Notify(OutcomeExpired, "call expired")
				return Result{Outcome: OutcomeExpired, Invitation: cur}, nil
			default:
				// accepted elsewhere or an unknown terminal status:
				// this ring is over either way.
				r.notify.Notify(OutcomeCancelled, "call no longer available")
				return Result{Outcome: OutcomeCancelled, Invitation: cur}, nil
			}
		}
	}
}

// accept tries to claim the call. done is false only when the request
// never produced a server verdict, in which case ringing continues.
func (r *Ringer) accept(ctx context.Context, inv signaling.Invitation, log *slog.Logger) (Result, bool) {
	err := r.sig.Accept(ctx, inv.ID)
	if err == nil {
		log.Info("call accepted")
		r.notify.Notify(OutcomeAccepted, "call accepted")
		return Result{Outcome: OutcomeAccepted, Invitation: inv}, true
	}

	var ne *signaling.NetworkError
	if errors.As(err, &ne) {
		log.Warn("accept failed, still ringing", "err", err)
		return Result{}, false
	}

	// The server refused: someone else resolved the invitation first.
	// Follow whatever the server now says.
	log.Info("accept lost the race", "err", err)
	cur, serr := r.sig.Status(ctx, inv.ID, r.userID)
	if serr != nil {
		cur = inv
		cur.Status = signaling.StatusCancelled
	}
	switch cur.Status {
	case signaling.StatusExpired:
		r.notify.Notify(OutcomeExpired, "call expired")
		return Result{Outcome: OutcomeExpired, Invitation: cur}, true
	default:
		r.notify.Notify(OutcomeCancelled, "caller hung up")
		return Result{Outcome: OutcomeCancelled, Invitation: cur}, true
	}
}

// rejectBestEffort mirrors the permissive cancel semantics: a reject
// the server refuses means the invitation already resolved, which is
// just as final for this side.
func (r *Ringer) rejectBestEffort(invitationID string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := r.sig.Reject(ctx, invitationID); err != nil {
		log.Warn("reject not acknowledged", "err", err)
	}
}
