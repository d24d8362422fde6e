package voice

import (
	"context"
	"sync"
	"time"
)

// NativeModule is the raw boundary of the conferencing engine. Calls
// are fire-and-forget or callback-based; nothing is awaitable and no
// completion events exist. Bridge turns this into the Engine contract.
type NativeModule interface {
	InitializeEngine(appKey string)
	JoinChannel(name string)
	LeaveChannel()
	MuteLocalAudio(muted bool)
	SetSpeakerphoneOn(on bool)
	GetCurrentChannel(cb func(channel string))
	GetConnectionState(cb func(state string))
	ReleaseEngine()
}

// BridgeConfig tunes the waits Bridge inserts around the module's
// missing completion signals.
type BridgeConfig struct {
	AppKey string

	// InitSettle is how long to wait after InitializeEngine before the
	// engine is assumed ready. The module has no ready signal.
	InitSettle time.Duration

	// QueryTimeout bounds how long a callback query may stay silent
	// before the engine is declared unavailable.
	QueryTimeout time.Duration
}

func (c BridgeConfig) withDefaults() BridgeConfig {
	out := c
	if out.InitSettle <= 0 {
		out.InitSettle = 1500 * time.Millisecond
	}
	if out.QueryTimeout <= 0 {
		out.QueryTimeout = 3 * time.Second
	}
	return out
}

// Bridge adapts a NativeModule to the Engine interface. All calls are
// serialized through one mutex: the module holds a single global
// current channel and overlapping join/leave calls corrupt it.
type Bridge struct {
	mod NativeModule
	cfg BridgeConfig

	mu          sync.Mutex
	initialized bool
}

func NewBridge(mod NativeModule, cfg BridgeConfig) *Bridge {
	return &Bridge{mod: mod, cfg: cfg.withDefaults()}
}

func (b *Bridge) Init(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.initialized {
		return nil
	}
	b.mod.InitializeEngine(b.cfg.AppKey)
	if err := sleepCtx(ctx, b.cfg.InitSettle); err != nil {
		return err
	}
	b.initialized = true
	return nil
}

func (b *Bridge) Join(ctx context.Context, channel string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mod.JoinChannel(channel)
	return nil
}

func (b *Bridge) Leave(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mod.LeaveChannel()
	return nil
}

func (b *Bridge) CurrentChannel(ctx context.Context) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.query(ctx, b.mod.GetCurrentChannel)
}

func (b *Bridge) ConnectionState(ctx context.Context) (ConnectionState, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	raw, err := b.query(ctx, b.mod.GetConnectionState)
	if err != nil {
		return StateDisconnected, err
	}
	switch s := ConnectionState(raw); s {
	case StateDisconnected, StateConnecting, StateConnected, StateReconnecting, StateFailed:
		return s, nil
	default:
		// Unknown states are treated as disconnected rather than
		// invented; the monitor handles the rest.
		return StateDisconnected, nil
	}
}

func (b *Bridge) MuteLocalAudio(ctx context.Context, muted bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mod.MuteLocalAudio(muted)
	return nil
}

func (b *Bridge) SetSpeakerphone(ctx context.Context, on bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mod.SetSpeakerphoneOn(on)
	return nil
}

func (b *Bridge) Release(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mod.ReleaseEngine()
	b.initialized = false
	return nil
}

// query turns a callback-style getter into a bounded synchronous call.
// A silent module means ErrEngineUnavailable, never a hang.
func (b *Bridge) query(ctx context.Context, get func(cb func(string))) (string, error) {
	ch := make(chan string, 1)
	get(func(v string) {
		select {
		case ch <- v:
		default:
		}
	})

	timer := time.NewTimer(b.cfg.QueryTimeout)
	defer timer.Stop()
	select {
	case v := <-ch:
		return v, nil
	case <-timer.C:
		return "", ErrEngineUnavailable
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
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
