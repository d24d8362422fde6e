package voice

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// silentModule never answers callback queries.
type silentModule struct {
	StubModule
}

func (m *silentModule) GetCurrentChannel(cb func(string))  {}
func (m *silentModule) GetConnectionState(cb func(string)) {}

func newTestBridge(mod NativeModule) *Bridge {
	return NewBridge(mod, BridgeConfig{
		AppKey:       "test-key",
		InitSettle:   time.Millisecond,
		QueryTimeout: 20 * time.Millisecond,
	})
}

func TestBridgeInitIsIdempotent(t *testing.T) {
	mod := &countingModule{}
	b := newTestBridge(mod)

	for i := 0; i < 3; i++ {
		if err := b.Init(context.Background()); err != nil {
			t.Fatalf("init #%d: %v", i, err)
		}
	}
	if mod.initCalls != 1 {
		t.Fatalf("InitializeEngine called %d times, want 1", mod.initCalls)
	}
}

func TestBridgeJoinAndQuery(t *testing.T) {
	b := newTestBridge(NewStubModule())
	ctx := context.Background()

	if err := b.Join(ctx, "private_1_2"); err != nil {
		t.Fatalf("join: %v", err)
	}
	ch, err := b.CurrentChannel(ctx)
	if err != nil || ch != "private_1_2" {
		t.Fatalf("current channel = %q (%v)", ch, err)
	}
	state, err := b.ConnectionState(ctx)
	if err != nil || state != StateConnected {
		t.Fatalf("state = %s (%v)", state, err)
	}

	if err := b.Leave(ctx); err != nil {
		t.Fatalf("leave: %v", err)
	}
	ch, _ = b.CurrentChannel(ctx)
	if ch != "" {
		t.Fatalf("channel after leave = %q", ch)
	}
}

func TestBridgeSilentModuleIsUnavailable(t *testing.T) {
	b := newTestBridge(&silentModule{})

	if _, err := b.CurrentChannel(context.Background()); !errors.Is(err, ErrEngineUnavailable) {
		t.Fatalf("err = %v, want ErrEngineUnavailable", err)
	}
}

func TestBridgeQueryHonorsContext(t *testing.T) {
	b := NewBridge(&silentModule{}, BridgeConfig{QueryTimeout: time.Minute})
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := b.CurrentChannel(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("err = %v, want context deadline", err)
	}
}

type countingModule struct {
	StubModule
	mu        sync.Mutex
	initCalls int
}

func (m *countingModule) InitializeEngine(appKey string) {
	m.mu.Lock()
	m.initCalls++
	m.mu.Unlock()
	m.StubModule.InitializeEngine(appKey)
}
