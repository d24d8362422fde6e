package call

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"intercom-platform/internal/signaling"
)

// ErrChannelMismatch means the server-reported channel differs from the
// locally computed one. This is fatal to the attempt, never retried.
var ErrChannelMismatch = errors.New("call: channel name mismatch")

// Result is the resolution of one invitation flow.
type Result struct {
	Outcome    Outcome
	Invitation signaling.Invitation
}

// Outgoing drives the caller side of an invitation:
//
//	Idle -> Sent(pending) -> accepted | rejected | cancelled | expired | timed_out
//
// It is a pure follower of server state. The one local transition is
// the 60 second timeout, which fires without further server contact.
type Outgoing struct {
	sig     Signaler
	userID  int
	timings Timings
	notify  Notifier
	log     *slog.Logger
}

func NewOutgoing(sig Signaler, userID int, t Timings, n Notifier, log *slog.Logger) *Outgoing {
	if n == nil {
		n = NopNotifier
	}
	if log == nil {
		log = slog.Default()
	}
	return &Outgoing{sig: sig, userID: userID, timings: t.withDefaults(), notify: n, log: log}
}

// Call sends an invitation to receiverID and polls until it resolves.
// Exactly one notification is emitted per resolution. Cancelling ctx
// withdraws the invitation (best effort) and resolves as cancelled.
//
// An invite the server never created returns an error and emits no
// notification: the flow never left Idle.
func (o *Outgoing) Call(ctx context.Context, receiverID int) (Result, error) {
	inv, err := o.sig.Invite(ctx, receiverID)
	if err != nil {
		return Result{}, fmt.Errorf("send invitation: %w", err)
	}
	log := o.log.With("invitation_id", inv.ID, "receiver_id", receiverID)

	if expected := signaling.ChannelName(o.userID, receiverID); inv.ChannelName != expected {
		log.Error("server channel differs from local derivation",
			"server", inv.ChannelName, "local", expected)
		o.withdraw(inv.ID, log)
		return Result{}, fmt.Errorf("%w: server=%s local=%s", ErrChannelMismatch, inv.ChannelName, expected)
	}
	log.Info("invitation sent", "channel", inv.ChannelName)

	ticker := time.NewTicker(o.timings.StatusPollInterval)
	defer ticker.Stop()
	deadline := time.NewTimer(o.timings.OutgoingTimeout)
	defer deadline.Stop()

	for {
		select {
		case <-ctx.Done():
			o.withdraw(inv.ID, log)
			o.notify.Notify(OutcomeCancelled, "call cancelled")
			return Result{Outcome: OutcomeCancelled, Invitation: inv}, nil

		case <-deadline.C:
			// Local deadline, independent of server expiry. The loop
			// exits here, so a late tick can never re-trigger it.
			log.Info("outgoing call timed out")
			o.withdraw(inv.ID, log)
			o.notify.Notify(OutcomeTimedOut, "no answer")
			return Result{Outcome: OutcomeTimedOut, Invitation: inv}, nil

		case <-ticker.C:
			cur, err := o.sig.Status(ctx, inv.ID, o.userID)
			if err != nil {
				// A dropped poll is transient; the next tick retries.
				log.Warn("status poll failed", "err", err)
				continue
			}
			switch cur.Status {
			case signaling.StatusPending:
				continue
			case signaling.StatusAccepted:
				log.Info("invitation accepted", "channel", cur.ChannelName)
				o.notify.Notify(OutcomeAccepted, "call accepted")
				return Result{Outcome: OutcomeAccepted, Invitation: cur}, nil
			case signaling.StatusRejected:
				o.notify.Notify(OutcomeRejected, "call declined")
				return Result{Outcome: OutcomeRejected, Invitation: cur}, nil
			case signaling.StatusCancelled:
				o.notify.Notify(OutcomeCancelled, "call cancelled")
				return Result{Outcome: OutcomeCancelled, Invitation: cur}, nil
			default:
				// expired, or anything unknown the server may add:
				// terminal as far as this side is concerned.
				o.notify.Notify(OutcomeExpired, "call expired")
				return Result{Outcome: OutcomeExpired, Invitation: cur}, nil
			}
		}
	}
}

// withdraw cancels the invitation server-side, best effort. A cancel
// the server refuses (the invitation already changed state) is treated
// as success: local teardown never blocks on server acknowledgement.
func (o *Outgoing) withdraw(invitationID string, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := o.sig.Cancel(ctx, invitationID); err != nil {
		log.Warn("cancel not acknowledged", "err", err)
	}
}
