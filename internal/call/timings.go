package call

import "time"

// Timings collects every interval and deadline in the call flows.
// Production uses the zero value (withDefaults fills it in); tests
// inject millisecond-scale values instead of faking clocks.
type Timings struct {
	// Outgoing side.
	StatusPollInterval time.Duration // poll cadence while waiting for an answer
	OutgoingTimeout    time.Duration // local deadline, independent of server expiry

	// Incoming side.
	RingTimeout      time.Duration // auto-reject deadline while ringing
	RingPollInterval time.Duration // cadence for noticing cancel/expiry while ringing

	// Session establishment.
	CallerPreInitDelay   time.Duration // caller backs off longer than the receiver
	ReceiverPreInitDelay time.Duration
	JoinVerifyDelay      time.Duration // wait before re-querying the joined channel
	LeaveVerifyDelay     time.Duration

	// Waiting for the peer. The engine has no participant API, so the
	// peer is inferred after PeerConnectedSamples consecutive healthy
	// samples.
	PeerWaitInterval     time.Duration
	PeerWaitAttempts     int
	PeerConnectedSamples int

	// Health monitoring.
	HealthInterval  time.Duration
	HealthThreshold int

	// Inbound-call listener.
	ListenInterval time.Duration
}

func (t Timings) withDefaults() Timings {
	out := t
	if out.StatusPollInterval <= 0 {
		out.StatusPollInterval = 2 * time.Second
	}
	if out.OutgoingTimeout <= 0 {
		out.OutgoingTimeout = 60 * time.Second
	}
	if out.RingTimeout <= 0 {
		out.RingTimeout = 30 * time.Second
	}
	if out.RingPollInterval <= 0 {
		out.RingPollInterval = 3 * time.Second
	}
	if out.CallerPreInitDelay <= 0 {
		out.CallerPreInitDelay = 2 * time.Second
	}
	if out.ReceiverPreInitDelay <= 0 {
		out.ReceiverPreInitDelay = 500 * time.Millisecond
	}
	if out.JoinVerifyDelay <= 0 {
		out.JoinVerifyDelay = 2 * time.Second
	}
	if out.LeaveVerifyDelay <= 0 {
		out.LeaveVerifyDelay = 500 * time.Millisecond
	}
	if out.PeerWaitInterval <= 0 {
		out.PeerWaitInterval = time.Second
	}
	if out.PeerWaitAttempts <= 0 {
		out.PeerWaitAttempts = 20
	}
	if out.PeerConnectedSamples <= 0 {
		out.PeerConnectedSamples = 5
	}
	if out.HealthInterval <= 0 {
		out.HealthInterval = 5 * time.Second
	}
	if out.HealthThreshold <= 0 {
		out.HealthThreshold = 3
	}
	if out.ListenInterval <= 0 {
		out.ListenInterval = 3 * time.Second
	}
	return out
}
