package voice

import "sync"

// StubModule is a stand-in NativeModule for environments without a real
// conferencing SDK (local development, the headless agent).
//
// Future real-engine integration (planned):
//   - InitializeEngine will hand the app key to the vendor SDK.
//   - Join/Leave will drive the SDK's channel API and surface its
//     connection callbacks through GetConnectionState.
//
// IMPORTANT:
//   - Keep this adapter free of call logic. It only mimics the module
//     boundary: fire-and-forget mutations, callback-style queries.
type StubModule struct {
	mu          sync.Mutex
	initialized bool
	channel     string
}

func NewStubModule() *StubModule { return &StubModule{} }

func (m *StubModule) InitializeEngine(appKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = true
}

func (m *StubModule) JoinChannel(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channel = name
}

func (m *StubModule) LeaveChannel() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.channel = ""
}

func (m *StubModule) MuteLocalAudio(muted bool) {}
func (m *StubModule) SetSpeakerphoneOn(on bool) {}

func (m *StubModule) GetCurrentChannel(cb func(string)) {
	m.mu.Lock()
	ch := m.channel
	m.mu.Unlock()
	cb(ch)
}

func (m *StubModule) GetConnectionState(cb func(string)) {
	m.mu.Lock()
	state := string(StateDisconnected)
	if m.channel != "" {
		state = string(StateConnected)
	}
	m.mu.Unlock()
	cb(state)
}

func (m *StubModule) ReleaseEngine() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.initialized = false
	m.channel = ""
}
