package call

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"intercom-platform/internal/signaling"
	"intercom-platform/internal/voice"
)

// Role distinguishes which side of the call this process is, because
// the two sides stagger their engine init to avoid racing it.
type Role int

const (
	RoleCaller Role = iota
	RoleReceiver
)

// Session sequences the voice-transport protocol for an accepted call.
// Every step is gated on the previous one; the engine offers no
// completion events, so the gates are fixed verification delays.
type Session struct {
	engine  voice.Engine
	sig     Signaler
	timings Timings
	notify  Notifier
	log     *slog.Logger
}

func NewSession(engine voice.Engine, sig Signaler, t Timings, n Notifier, log *slog.Logger) *Session {
	if n == nil {
		n = NopNotifier
	}
	if log == nil {
		log = slog.Default()
	}
	return &Session{engine: engine, sig: sig, timings: t.withDefaults(), notify: n, log: log}
}

// Start joins the invitation's channel and verifies the join took.
//
// Protocol, in order:
//  1. stagger by role, then init the engine (idempotent)
//  2. leave any other channel the engine is still in
//  3. join the target channel
//  4. after the verification delay, confirm the engine is actually in
//     it; a mismatch aborts hard, there is no partial success
//
// Start failures emit one connection-failed notification; the caller
// may retry with a fresh Start or give up.
func (s *Session) Start(ctx context.Context, inv signaling.Invitation, userID int, role Role) (*Active, error) {
	log := s.log.With("invitation_id", inv.ID, "channel", inv.ChannelName)
	target := inv.ChannelName

	delay := s.timings.ReceiverPreInitDelay
	if role == RoleCaller {
		delay = s.timings.CallerPreInitDelay
	}
	if err := waitFor(ctx, delay); err != nil {
		return nil, err
	}

	if err := s.engine.Init(ctx); err != nil {
		log.Error("engine init failed", "err", err)
		s.notify.Notify(OutcomeConnectFailed, "voice engine unavailable")
		return nil, fmt.Errorf("init engine: %w", err)
	}

	cur, err := s.engine.CurrentChannel(ctx)
	if err != nil {
		log.Error("channel query failed", "err", err)
		s.notify.Notify(OutcomeConnectFailed, "voice engine unavailable")
		return nil, fmt.Errorf("query channel: %w", err)
	}
	if cur != "" && cur != target {
		// Joining on top of another channel leaves the engine in a
		// multi-channel state it cannot recover from.
		log.Warn("leaving stale channel", "stale", cur)
		if err := s.engine.Leave(ctx); err != nil {
			s.notify.Notify(OutcomeConnectFailed, "could not leave previous call")
			return nil, fmt.Errorf("leave stale channel: %w", err)
		}
		if err := waitFor(ctx, s.timings.LeaveVerifyDelay); err != nil {
			return nil, err
		}
	}

	if err := s.engine.Join(ctx, target); err != nil {
		log.Error("join failed", "err", err)
		s.notify.Notify(OutcomeConnectFailed, "could not join call")
		return nil, fmt.Errorf("join channel: %w", err)
	}

	if err := waitFor(ctx, s.timings.JoinVerifyDelay); err != nil {
		return nil, err
	}
	got, err := s.engine.CurrentChannel(ctx)
	if err != nil || got != target {
		log.Error("join verification failed", "joined", got, "err", err)
		_ = s.engine.Leave(ctx)
		s.notify.Notify(OutcomeConnectFailed, "connection failed")
		if err != nil {
			return nil, fmt.Errorf("verify join: %w", err)
		}
		return nil, fmt.Errorf("%w: joined %q, expected %q", ErrChannelMismatch, got, target)
	}

	log.Info("voice channel joined")
	return &Active{
		session:    s,
		Invitation: inv,
		UserID:     userID,
		Channel:    target,
		startedAt:  time.Now(),
		log:        log,
	}, nil
}

// Active is an established voice session. At most one Active's channel
// may be joined on the engine at a time.
type Active struct {
	session    *Session
	Invitation signaling.Invitation
	UserID     int
	Channel    string

	startedAt time.Time
	log       *slog.Logger

	mu          sync.Mutex
	stopMonitor func()
	micMuted    bool
	speakerOn   bool

	endOnce sync.Once
}

// WaitForPeer samples the engine's connection state once per interval,
// up to the configured attempt budget. The engine has no participant
// API, so the peer is inferred after enough consecutive connected
// samples. false means the budget ran out; the caller chooses between
// waiting again and ending the call.
func (a *Active) WaitForPeer(ctx context.Context) (bool, error) {
	t := a.session.timings
	consecutive := 0
	for attempt := 0; attempt < t.PeerWaitAttempts; attempt++ {
		if err := waitFor(ctx, t.PeerWaitInterval); err != nil {
			return false, err
		}
		state, err := a.session.engine.ConnectionState(ctx)
		if err != nil {
			a.log.Warn("peer wait sample failed", "err", err)
			consecutive = 0
			continue
		}
		if state.Healthy() {
			consecutive++
			if consecutive >= t.PeerConnectedSamples {
				a.log.Info("peer inferred joined", "samples", consecutive)
				return true, nil
			}
		} else {
			consecutive = 0
		}
	}
	a.log.Info("peer wait budget exhausted")
	return false, nil
}

// SetMonitorStop registers the health monitor's stop function so End
// can halt monitoring before anything else.
func (a *Active) SetMonitorStop(stop func()) {
	a.mu.Lock()
	a.stopMonitor = stop
	a.mu.Unlock()
}

func (a *Active) Duration() time.Duration { return time.Since(a.startedAt) }

func (a *Active) Mute(ctx context.Context, muted bool) error {
	if err := a.session.engine.MuteLocalAudio(ctx, muted); err != nil {
		return err
	}
	a.mu.Lock()
	a.micMuted = muted
	a.mu.Unlock()
	return nil
}

func (a *Active) Speakerphone(ctx context.Context, on bool) error {
	if err := a.session.engine.SetSpeakerphone(ctx, on); err != nil {
		return err
	}
	a.mu.Lock()
	a.speakerOn = on
	a.mu.Unlock()
	return nil
}

// End tears the session down: stop monitoring, tell the server (best
// effort), leave the channel, and verify the leave took. Every step is
// independent; a failure anywhere still runs the remaining steps, so
// teardown always makes forward progress. End is idempotent.
func (a *Active) End(ctx context.Context, reason string) {
	a.endOnce.Do(func() {
		a.log.Info("ending call", "reason", reason, "duration", a.Duration().Round(time.Second))

		a.mu.Lock()
		stop := a.stopMonitor
		a.mu.Unlock()
		if stop != nil {
			stop()
		}

		endCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := a.session.sig.End(endCtx, a.Invitation.ID, reason); err != nil {
			a.log.Warn("server end notification failed", "err", err)
		}

		if err := a.session.engine.Leave(endCtx); err != nil {
			a.log.Warn("leave failed", "err", err)
		}
		if err := waitFor(endCtx, a.session.timings.LeaveVerifyDelay); err != nil {
			return
		}
		if ch, err := a.session.engine.CurrentChannel(endCtx); err == nil && ch != "" {
			a.log.Warn("engine still holds a channel after leave", "channel", ch)
			_ = a.session.engine.Leave(endCtx)
		}
	})
}

func waitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
