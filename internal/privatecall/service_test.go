package privatecall

import (
	"context"
	"errors"
	"testing"
	"time"

	"intercom-platform/internal/audit"
)

type callFixture struct {
	svc      *Service
	repo     *MemoryRepo
	presence *MemoryPresence
	slots    *MemorySlotLimiter
	events   *audit.MemoryRepo
	now      time.Time
}

func newCallFixture(t *testing.T) *callFixture {
	t.Helper()
	f := &callFixture{
		repo:     NewMemoryRepo(),
		presence: NewMemoryPresence(),
		slots:    NewMemorySlotLimiter(),
		events:   audit.NewMemoryRepo(),
		now:      time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(f.repo, f.presence, f.slots, audit.NewService(f.events))
	f.svc.clock = func() time.Time { return f.now }
	f.presence.clock = f.svc.clock
	return f
}

func (f *callFixture) advance(d time.Duration) { f.now = f.now.Add(d) }

func (f *callFixture) online(t *testing.T, userID int) {
	t.Helper()
	if err := f.presence.Touch(context.Background(), userID); err != nil {
		t.Fatalf("touch presence: %v", err)
	}
}

func (f *callFixture) invite(t *testing.T, callerID, receiverID int) Invitation {
	t.Helper()
	f.online(t, receiverID)
	inv, err := f.svc.Send(context.Background(), Caller{ID: callerID, Name: "caller"}, receiverID)
	if err != nil {
		t.Fatalf("send invitation: %v", err)
	}
	return inv
}

func TestSendCreatesPendingInvitation(t *testing.T) {
	f := newCallFixture(t)
	inv := f.invite(t, 1, 2)

	if inv.Status != StatusPending {
		t.Fatalf("status = %s, want pending", inv.Status)
	}
	if inv.ChannelName != "private_1_2" {
		t.Fatalf("channel = %q", inv.ChannelName)
	}
	if got := inv.ExpiresAt.Sub(inv.CreatedAt); got != PendingTTL {
		t.Fatalf("pending ttl = %v, want %v", got, PendingTTL)
	}
	if inv.ID == "" {
		t.Fatalf("missing invitation id")
	}
}

func TestSendRequiresOnlineReceiver(t *testing.T) {
	f := newCallFixture(t)
	_, err := f.svc.Send(context.Background(), Caller{ID: 1}, 2)
	if !errors.Is(err, ErrReceiverUnavailable) {
		t.Fatalf("err = %v, want ErrReceiverUnavailable", err)
	}
}

func TestSendRejectsSelfCall(t *testing.T) {
	f := newCallFixture(t)
	f.online(t, 1)
	if _, err := f.svc.Send(context.Background(), Caller{ID: 1}, 1); !errors.Is(err, ErrInvalidArgument) {
		t.Fatalf("err = %v, want ErrInvalidArgument", err)
	}
}

func TestSendBusyWhilePending(t *testing.T) {
	f := newCallFixture(t)
	f.invite(t, 1, 2)

	// Both parties are tied up by the pending invitation.
	f.online(t, 3)
	if _, err := f.svc.Send(context.Background(), Caller{ID: 1}, 3); !errors.Is(err, ErrUserBusy) {
		t.Fatalf("caller busy: err = %v", err)
	}
	if _, err := f.svc.Send(context.Background(), Caller{ID: 3}, 2); !errors.Is(err, ErrUserBusy) {
		t.Fatalf("receiver busy: err = %v", err)
	}
}

func TestAcceptOnlyByReceiver(t *testing.T) {
	f := newCallFixture(t)
	inv := f.invite(t, 1, 2)

	if _, err := f.svc.Accept(context.Background(), inv.ID, 1); !errors.Is(err, ErrForbidden) {
		t.Fatalf("caller accept: err = %v, want ErrForbidden", err)
	}

	got, err := f.svc.Accept(context.Background(), inv.ID, 2)
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if got.Status != StatusAccepted || got.AcceptedAt == nil {
		t.Fatalf("accepted invitation = %+v", got)
	}
}

func TestCancelAfterAcceptLoses(t *testing.T) {
	f := newCallFixture(t)
	inv := f.invite(t, 1, 2)

	if _, err := f.svc.Accept(context.Background(), inv.ID, 2); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.Cancel(context.Background(), inv.ID, 1); !errors.Is(err, ErrConflict) {
		t.Fatalf("cancel after accept: err = %v, want ErrConflict", err)
	}
	got, err := f.svc.Status(context.Background(), inv.ID, 1)
	if err != nil || got.Status != StatusAccepted {
		t.Fatalf("status = %v (%v), want accepted", got.Status, err)
	}
}

func TestRejectReleasesBothParties(t *testing.T) {
	f := newCallFixture(t)
	inv := f.invite(t, 1, 2)

	if _, err := f.svc.Reject(context.Background(), inv.ID, 2); err != nil {
		t.Fatalf("reject: %v", err)
	}
	// Both sides may call again immediately.
	f.invite(t, 2, 1)
}

func TestLazyExpiry(t *testing.T) {
	f := newCallFixture(t)
	inv := f.invite(t, 1, 2)

	f.advance(PendingTTL + time.Second)
	got, err := f.svc.Status(context.Background(), inv.ID, 1)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if got.Status != StatusExpired {
		t.Fatalf("status = %s, want expired", got.Status)
	}

	// Expiry released the slots.
	f.invite(t, 1, 2)

	// Accepting an expired invitation fails.
	if _, err := f.svc.Accept(context.Background(), inv.ID, 2); !errors.Is(err, ErrConflict) {
		t.Fatalf("accept expired: err = %v, want ErrConflict", err)
	}
}

func TestEndAcceptedCall(t *testing.T) {
	f := newCallFixture(t)
	inv := f.invite(t, 1, 2)

	if _, err := f.svc.End(context.Background(), inv.ID, 1, "user_hangup"); !errors.Is(err, ErrConflict) {
		t.Fatalf("end pending: err = %v, want ErrConflict", err)
	}

	if _, err := f.svc.Accept(context.Background(), inv.ID, 2); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.advance(90 * time.Second)

	got, err := f.svc.End(context.Background(), inv.ID, 2, "user_hangup")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if got.Status != StatusEnded || got.EndedAt == nil || got.EndReason != "user_hangup" {
		t.Fatalf("ended invitation = %+v", got)
	}

	// Second end loses; the call is already over.
	if _, err := f.svc.End(context.Background(), inv.ID, 1, ""); !errors.Is(err, ErrConflict) {
		t.Fatalf("double end: err = %v, want ErrConflict", err)
	}
}

func TestIncomingListsPendingAndRefreshesPresence(t *testing.T) {
	f := newCallFixture(t)
	inv := f.invite(t, 1, 2)

	list, err := f.svc.Incoming(context.Background(), 2)
	if err != nil {
		t.Fatalf("incoming: %v", err)
	}
	if len(list) != 1 || list[0].ID != inv.ID {
		t.Fatalf("incoming = %+v", list)
	}
	online, _ := f.presence.Online(context.Background(), 2)
	if !online {
		t.Fatalf("polling should refresh presence")
	}

	f.advance(PendingTTL + time.Second)
	list, err = f.svc.Incoming(context.Background(), 2)
	if err != nil {
		t.Fatalf("incoming after expiry: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expired invitation still listed: %+v", list)
	}
}

func TestStats(t *testing.T) {
	f := newCallFixture(t)

	inv := f.invite(t, 1, 2)
	if _, err := f.svc.Accept(context.Background(), inv.ID, 2); err != nil {
		t.Fatalf("accept: %v", err)
	}
	f.advance(60 * time.Second)
	if _, err := f.svc.End(context.Background(), inv.ID, 1, ""); err != nil {
		t.Fatalf("end: %v", err)
	}

	rej := f.invite(t, 1, 2)
	if _, err := f.svc.Reject(context.Background(), rej.ID, 2); err != nil {
		t.Fatalf("reject: %v", err)
	}

	st, err := f.svc.Stats(context.Background(), 1, 0)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st.CallsMade != 2 || st.CallsReceived != 0 {
		t.Fatalf("made/received = %d/%d", st.CallsMade, st.CallsReceived)
	}
	if st.CallsAccepted != 1 || st.CallsRejected != 1 {
		t.Fatalf("accepted/rejected = %d/%d", st.CallsAccepted, st.CallsRejected)
	}
	if st.AvgCallDurationSeconds == nil || *st.AvgCallDurationSeconds != 60 {
		t.Fatalf("avg duration = %v", st.AvgCallDurationSeconds)
	}
}

func TestCleanupPurgesTerminal(t *testing.T) {
	f := newCallFixture(t)

	inv := f.invite(t, 1, 2)
	if _, err := f.svc.Reject(context.Background(), inv.ID, 2); err != nil {
		t.Fatalf("reject: %v", err)
	}
	keep := f.invite(t, 1, 2)

	f.advance(48 * time.Hour)
	n, err := f.svc.Cleanup(context.Background(), 24*time.Hour)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if n != 1 {
		t.Fatalf("deleted = %d, want 1", n)
	}
	if _, err := f.repo.Get(context.Background(), inv.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("rejected row should be gone, err = %v", err)
	}
	if _, err := f.repo.Get(context.Background(), keep.ID); err != nil {
		t.Fatalf("pending row should survive: %v", err)
	}
}
