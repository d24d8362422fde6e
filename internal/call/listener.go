package call

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"intercom-platform/internal/signaling"
)

// Listener polls for invitations addressed to the signed-in user.
// There is no push channel; a 3 second poll is the discovery mechanism.
//
// States: Stopped <-> Listening, with a paused flag layered on top for
// focus and app-state changes. Detecting a call pauses the listener
// immediately so the call being handled is not rediscovered; the owner
// resumes it once the call resolves.
type Listener struct {
	source  signaling.StatusSource
	userID  int
	timings Timings
	log     *slog.Logger
	onCall  func(signaling.Invitation)

	mu       sync.Mutex
	running  bool
	paused   bool
	lastSeen string
	stop     chan struct{}
}

func NewListener(source signaling.StatusSource, userID int, t Timings, onCall func(signaling.Invitation), log *slog.Logger) *Listener {
	if log == nil {
		log = slog.Default()
	}
	return &Listener{source: source, userID: userID, timings: t.withDefaults(), onCall: onCall, log: log}
}

// Start begins polling. No-op while already running.
func (l *Listener) Start() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.running {
		return
	}
	l.running = true
	l.paused = false
	l.stop = make(chan struct{})
	go l.run(l.stop)
	l.log.Info("incoming-call listener started", "user_id", l.userID)
}

// Stop halts polling entirely (signout, shutdown).
func (l *Listener) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.running {
		return
	}
	l.running = false
	close(l.stop)
	l.log.Info("incoming-call listener stopped")
}

// Pause suspends polling without tearing the loop down: a call screen
// took focus or the app went to background.
func (l *Listener) Pause() {
	l.mu.Lock()
	l.paused = true
	l.mu.Unlock()
}

// Resume re-enables polling after focus returns or a call resolves.
func (l *Listener) Resume() {
	l.mu.Lock()
	l.paused = false
	l.mu.Unlock()
}

// Listening reports whether the loop is live and not paused.
func (l *Listener) Listening() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running && !l.paused
}

func (l *Listener) run(stop <-chan struct{}) {
	ticker := time.NewTicker(l.timings.ListenInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			l.poll()
		}
	}
}

func (l *Listener) poll() {
	l.mu.Lock()
	paused := l.paused
	lastSeen := l.lastSeen
	l.mu.Unlock()
	if paused {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), l.timings.ListenInterval)
	defer cancel()

	invs, err := l.source.Incoming(ctx, l.userID)
	if err != nil {
		// A dropped poll is transient; the loop keeps going.
		l.log.Warn("incoming poll failed", "err", err)
		return
	}

	for _, inv := range invs {
		if inv.ID == lastSeen {
			continue
		}
		l.mu.Lock()
		if l.paused {
			// A call arrived through another path while this poll was
			// in flight.
			l.mu.Unlock()
			return
		}
		l.lastSeen = inv.ID
		l.paused = true
		l.mu.Unlock()

		l.log.Info("incoming call detected", "invitation_id", inv.ID, "caller", inv.CallerName)
		if l.onCall != nil {
			l.onCall(inv)
		}
		return
	}
}
