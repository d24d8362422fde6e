package voice

import (
	"context"
	"sync"
)

// FakeEngine is a scriptable Engine for tests. Connection states are
// consumed from a queue (the last entry repeats), and the channel the
// engine lands in after a join can be overridden to simulate the engine
// ignoring or mangling the request.
type FakeEngine struct {
	mu sync.Mutex

	initialized bool
	channel     string

	states   []ConnectionState
	stateIdx int

	// LandIn, when set, decides which channel a join actually lands in.
	LandIn func(requested string) string

	InitErr  error
	JoinErr  error
	QueryErr error

	InitCalls  int
	JoinCalls  []string
	LeaveCalls int
	MuteCalls  []bool
}

func NewFakeEngine() *FakeEngine {
	return &FakeEngine{states: []ConnectionState{StateConnected}}
}

// SetStates replaces the scripted connection-state sequence.
func (f *FakeEngine) SetStates(states ...ConnectionState) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.states = states
	f.stateIdx = 0
}

func (f *FakeEngine) Init(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.InitCalls++
	if f.InitErr != nil {
		return f.InitErr
	}
	f.initialized = true
	return nil
}

func (f *FakeEngine) Join(ctx context.Context, channel string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.JoinCalls = append(f.JoinCalls, channel)
	if f.JoinErr != nil {
		return f.JoinErr
	}
	if f.LandIn != nil {
		f.channel = f.LandIn(channel)
	} else {
		f.channel = channel
	}
	return nil
}

func (f *FakeEngine) Leave(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.LeaveCalls++
	f.channel = ""
	return nil
}

func (f *FakeEngine) CurrentChannel(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.QueryErr != nil {
		return "", f.QueryErr
	}
	return f.channel, nil
}

func (f *FakeEngine) ConnectionState(ctx context.Context) (ConnectionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.QueryErr != nil {
		return StateDisconnected, f.QueryErr
	}
	if len(f.states) == 0 {
		return StateDisconnected, nil
	}
	s := f.states[f.stateIdx]
	if f.stateIdx < len(f.states)-1 {
		f.stateIdx++
	}
	return s, nil
}

func (f *FakeEngine) MuteLocalAudio(ctx context.Context, muted bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.MuteCalls = append(f.MuteCalls, muted)
	return nil
}

func (f *FakeEngine) SetSpeakerphone(ctx context.Context, on bool) error {
	return nil
}

func (f *FakeEngine) Release(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.initialized = false
	f.channel = ""
	return nil
}

// Channel returns the channel the fake currently holds.
func (f *FakeEngine) Channel() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.channel
}
