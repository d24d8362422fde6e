package call

import (
	"context"
	"sync"
	"testing"
	"time"

	"intercom-platform/internal/signaling"
)

// stubSignaler is a scriptable Signaler. Status responses are consumed
// from a queue (the last entry repeats); mutations record their calls
// and return the scripted error.
type stubSignaler struct {
	mu sync.Mutex

	inviteResult signaling.Invitation
	inviteErr    error

	statusQueue []statusReply
	statusIdx   int
	statusCalls int

	incoming    []signaling.Invitation
	incomingErr error

	acceptErr error
	rejectErr error
	cancelErr error
	endErr    error

	accepts []string
	rejects []string
	cancels []string
	ends    []string
}

type statusReply struct {
	inv signaling.Invitation
	err error
}

func (s *stubSignaler) Invite(ctx context.Context, receiverID int) (signaling.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inviteResult, s.inviteErr
}

func (s *stubSignaler) Accept(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepts = append(s.accepts, id)
	return s.acceptErr
}

func (s *stubSignaler) Reject(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejects = append(s.rejects, id)
	return s.rejectErr
}

func (s *stubSignaler) Cancel(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels = append(s.cancels, id)
	return s.cancelErr
}

func (s *stubSignaler) End(ctx context.Context, id, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends = append(s.ends, id)
	return s.endErr
}

func (s *stubSignaler) Status(ctx context.Context, id string, userID int) (signaling.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.statusCalls++
	if len(s.statusQueue) == 0 {
		return signaling.Invitation{ID: id, Status: signaling.StatusPending}, nil
	}
	r := s.statusQueue[s.statusIdx]
	if s.statusIdx < len(s.statusQueue)-1 {
		s.statusIdx++
	}
	return r.inv, r.err
}

func (s *stubSignaler) Incoming(ctx context.Context, userID int) ([]signaling.Invitation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.incomingErr != nil {
		return nil, s.incomingErr
	}
	out := make([]signaling.Invitation, len(s.incoming))
	copy(out, s.incoming)
	return out, nil
}

func (s *stubSignaler) setIncoming(invs ...signaling.Invitation) {
	s.mu.Lock()
	s.incoming = invs
	s.mu.Unlock()
}

func (s *stubSignaler) counts() (accepts, rejects, cancels, ends, statuses int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.accepts), len(s.rejects), len(s.cancels), len(s.ends), s.statusCalls
}

// notifyRecorder counts terminal notifications per outcome.
type notifyRecorder struct {
	mu   sync.Mutex
	seen []Outcome
}

func (n *notifyRecorder) Notify(o Outcome, detail string) {
	n.mu.Lock()
	n.seen = append(n.seen, o)
	n.mu.Unlock()
}

func (n *notifyRecorder) outcomes() []Outcome {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]Outcome, len(n.seen))
	copy(out, n.seen)
	return out
}

func (n *notifyRecorder) exactlyOne(t *testing.T, want Outcome) {
	t.Helper()
	got := n.outcomes()
	if len(got) != 1 || got[0] != want {
		t.Fatalf("notifications = %v, want exactly one %s", got, want)
	}
}

// testTimings compresses every delay to keep the suite fast while
// preserving the ratios that matter.
func testTimings() Timings {
	return Timings{
		StatusPollInterval:   5 * time.Millisecond,
		OutgoingTimeout:      250 * time.Millisecond,
		RingTimeout:          250 * time.Millisecond,
		RingPollInterval:     5 * time.Millisecond,
		CallerPreInitDelay:   time.Millisecond,
		ReceiverPreInitDelay: time.Millisecond,
		JoinVerifyDelay:      time.Millisecond,
		LeaveVerifyDelay:     time.Millisecond,
		PeerWaitInterval:     time.Millisecond,
		PeerWaitAttempts:     20,
		PeerConnectedSamples: 5,
		HealthInterval:       5 * time.Millisecond,
		HealthThreshold:      3,
		ListenInterval:       5 * time.Millisecond,
	}
}

func pendingInvitation(id string, callerID, receiverID int) signaling.Invitation {
	return signaling.Invitation{
		ID:          id,
		CallerID:    callerID,
		ReceiverID:  receiverID,
		ChannelName: signaling.ChannelName(callerID, receiverID),
		Status:      signaling.StatusPending,
		CreatedAt:   time.Now(),
	}
}

func waitUntil(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not reached within %v", timeout)
}
