package call

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"intercom-platform/internal/signaling"
	"intercom-platform/internal/voice"
)

type downRecorder struct {
	mu      sync.Mutex
	reasons []DownReason
}

func (d *downRecorder) record(r DownReason) {
	d.mu.Lock()
	d.reasons = append(d.reasons, r)
	d.mu.Unlock()
}

func (d *downRecorder) all() []DownReason {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]DownReason, len(d.reasons))
	copy(out, d.reasons)
	return out
}

func TestMonitorThreeFailuresTriggerTeardown(t *testing.T) {
	engine := voice.NewFakeEngine()
	engine.SetStates(voice.StateFailed)
	sig := &stubSignaler{}
	m := NewMonitor(engine, sig, testTimings(), nil)
	down := &downRecorder{}

	m.Start("private_1_2", "inv-1", 1, down.record)
	waitUntil(t, time.Second, func() bool { return len(down.all()) > 0 })

	if got := down.all(); len(got) != 1 || got[0] != ReasonUnhealthy {
		t.Fatalf("down = %v, want one transport_unhealthy", got)
	}
	if m.Monitoring() {
		t.Fatalf("monitor still running after teardown")
	}
}

func TestMonitorCounterResetsOnConnected(t *testing.T) {
	engine := voice.NewFakeEngine()
	// Two failures, then recovery; the last state repeats forever.
	engine.SetStates(voice.StateFailed, voice.StateDisconnected, voice.StateConnected)
	join := engine.Join(context.Background(), "private_1_2")
	if join != nil {
		t.Fatalf("join: %v", join)
	}
	sig := &stubSignaler{}
	m := NewMonitor(engine, sig, testTimings(), nil)
	down := &downRecorder{}

	m.Start("private_1_2", "inv-1", 1, down.record)
	defer m.Stop()

	time.Sleep(10 * testTimings().HealthInterval)
	if got := down.all(); len(got) != 0 {
		t.Fatalf("down = %v, want none after recovery", got)
	}
	if m.Failures() != 0 {
		t.Fatalf("failures = %d, want 0", m.Failures())
	}
}

func TestMonitorNeutralStatesDoNotCount(t *testing.T) {
	engine := voice.NewFakeEngine()
	engine.SetStates(voice.StateReconnecting)
	m := NewMonitor(engine, &stubSignaler{}, testTimings(), nil)
	down := &downRecorder{}

	m.Start("private_1_2", "inv-1", 1, down.record)
	defer m.Stop()

	time.Sleep(10 * testTimings().HealthInterval)
	if got := down.all(); len(got) != 0 {
		t.Fatalf("down = %v, want none while reconnecting", got)
	}
	if m.Failures() != 0 {
		t.Fatalf("failures = %d, want 0", m.Failures())
	}
}

func TestMonitorChannelMismatchForcesTeardown(t *testing.T) {
	engine := voice.NewFakeEngine()
	if err := engine.Join(context.Background(), "private_9_9"); err != nil {
		t.Fatalf("join: %v", err)
	}
	m := NewMonitor(engine, &stubSignaler{}, testTimings(), nil)
	down := &downRecorder{}

	m.Start("private_1_2", "inv-1", 1, down.record)
	waitUntil(t, time.Second, func() bool { return len(down.all()) > 0 })

	if got := down.all(); got[0] != ReasonChannelMismatch {
		t.Fatalf("down = %v, want channel_mismatch", got)
	}
}

func TestMonitorServerAuthorityBeatsHealthyTransport(t *testing.T) {
	engine := voice.NewFakeEngine()
	if err := engine.Join(context.Background(), "private_1_2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	ended := pendingInvitation("inv-1", 1, 2)
	ended.Status = signaling.StatusEnded
	sig := &stubSignaler{statusQueue: []statusReply{{inv: ended}}}
	m := NewMonitor(engine, sig, testTimings(), nil)
	down := &downRecorder{}

	m.Start("private_1_2", "inv-1", 1, down.record)
	waitUntil(t, time.Second, func() bool { return len(down.all()) > 0 })

	if got := down.all(); got[0] != ReasonServerEnded {
		t.Fatalf("down = %v, want server_ended", got)
	}
}

func TestMonitorServerErrorsNeverFeedTheCounter(t *testing.T) {
	engine := voice.NewFakeEngine()
	if err := engine.Join(context.Background(), "private_1_2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	sig := &stubSignaler{
		statusQueue: []statusReply{{err: &signaling.NetworkError{Op: "status", Err: errors.New("timeout")}}},
	}
	m := NewMonitor(engine, sig, testTimings(), nil)
	down := &downRecorder{}

	m.Start("private_1_2", "inv-1", 1, down.record)
	defer m.Stop()

	time.Sleep(10 * testTimings().HealthInterval)
	if got := down.all(); len(got) != 0 {
		t.Fatalf("down = %v, want none", got)
	}
	if m.Failures() != 0 {
		t.Fatalf("failures = %d, want 0", m.Failures())
	}
}

func TestMonitorStopBeforeThreshold(t *testing.T) {
	engine := voice.NewFakeEngine()
	engine.SetStates(voice.StateFailed)
	m := NewMonitor(engine, &stubSignaler{}, Timings{
		HealthInterval:  20 * time.Millisecond,
		HealthThreshold: 50,
	}, nil)
	down := &downRecorder{}

	m.Start("private_1_2", "inv-1", 1, down.record)
	time.Sleep(50 * time.Millisecond)
	m.Stop()
	time.Sleep(50 * time.Millisecond)

	if got := down.all(); len(got) != 0 {
		t.Fatalf("down = %v after Stop", got)
	}
	if m.Monitoring() {
		t.Fatalf("still monitoring after Stop")
	}
}
