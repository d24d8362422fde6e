package call

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"intercom-platform/internal/signaling"
	"intercom-platform/internal/voice"
)

// DownReason explains why the monitor declared the call dead.
type DownReason string

const (
	// ReasonUnhealthy: the transport reported disconnected/failed for
	// the full failure threshold.
	ReasonUnhealthy DownReason = "transport_unhealthy"
	// ReasonChannelMismatch: the engine is connected but in the wrong
	// channel. Channel identity is an invariant, not retryable.
	ReasonChannelMismatch DownReason = "channel_mismatch"
	// ReasonServerEnded: the server says the call is over. Server
	// authority beats transport health.
	ReasonServerEnded DownReason = "server_ended"
)

// Monitor detects silent call death during an active session. It runs
// two independent checks on every tick:
//
//   - transport health: disconnected/failed samples increment a
//     consecutive-failure counter, connected resets it, and
//     connecting/reconnecting are neutral
//   - server authority: if the server reports the invitation
//     ended or cancelled, the call is over regardless of transport
//
// Server poll failures never feed the failure counter; they are
// transient and unrelated to call health.
type Monitor struct {
	engine  voice.Engine
	source  signaling.StatusSource
	timings Timings
	log     *slog.Logger

	mu        sync.Mutex
	running   bool
	failures  int
	lastCheck time.Time
	stop      chan struct{}
}

func NewMonitor(engine voice.Engine, source signaling.StatusSource, t Timings, log *slog.Logger) *Monitor {
	if log == nil {
		log = slog.Default()
	}
	return &Monitor{engine: engine, source: source, timings: t.withDefaults(), log: log}
}

// Start begins sampling for the given session. onDown is invoked at
// most once per Start, after monitoring has stopped. Start is a no-op
// while already running.
func (m *Monitor) Start(expectedChannel, invitationID string, userID int, onDown func(DownReason)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}
	m.running = true
	m.failures = 0
	m.stop = make(chan struct{})
	go m.run(expectedChannel, invitationID, userID, onDown, m.stop)
}

// Stop halts monitoring. Safe to call repeatedly and from onDown paths.
func (m *Monitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
}

func (m *Monitor) stopLocked() {
	if !m.running {
		return
	}
	m.running = false
	close(m.stop)
}

// Monitoring reports whether the sampling loop is live.
func (m *Monitor) Monitoring() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

// Failures returns the current consecutive-failure count.
func (m *Monitor) Failures() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.failures
}

func (m *Monitor) run(expectedChannel, invitationID string, userID int, onDown func(DownReason), stop <-chan struct{}) {
	ticker := time.NewTicker(m.timings.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			if reason, down := m.sample(expectedChannel, invitationID, userID); down {
				m.mu.Lock()
				// Lost a race with Stop: the session already tore
				// down and nobody should hear about it twice.
				if !m.running {
					m.mu.Unlock()
					return
				}
				m.stopLocked()
				m.mu.Unlock()
				if onDown != nil {
					onDown(reason)
				}
				return
			}
		}
	}
}

// sample runs one health check cycle.
func (m *Monitor) sample(expectedChannel, invitationID string, userID int) (DownReason, bool) {
	ctx, cancel := context.WithTimeout(context.Background(), m.timings.HealthInterval)
	defer cancel()

	m.mu.Lock()
	m.lastCheck = time.Now()
	m.mu.Unlock()

	state, err := m.engine.ConnectionState(ctx)
	switch {
	case err != nil || state.Failed():
		m.mu.Lock()
		m.failures++
		failures := m.failures
		m.mu.Unlock()
		m.log.Warn("unhealthy transport sample", "state", state, "consecutive", failures, "err", err)
		if failures >= m.timings.HealthThreshold {
			return ReasonUnhealthy, true
		}
	case state.Healthy():
		m.mu.Lock()
		m.failures = 0
		m.mu.Unlock()
		ch, cerr := m.engine.CurrentChannel(ctx)
		if cerr == nil && ch != expectedChannel {
			m.log.Error("engine drifted to another channel", "got", ch, "expected", expectedChannel)
			return ReasonChannelMismatch, true
		}
	default:
		// connecting/reconnecting: neither healthy nor failed.
		m.log.Info("transport in transition", "state", state)
	}

	if invitationID != "" {
		inv, serr := m.source.Status(ctx, invitationID, userID)
		if serr != nil {
			m.log.Warn("server status check failed", "err", serr)
		} else if inv.Status == signaling.StatusEnded || inv.Status == signaling.StatusCancelled {
			m.log.Info("server closed the call", "status", inv.Status)
			return ReasonServerEnded, true
		}
	}
	return "", false
}
