package voice

import (
	"context"
	"errors"
)

// ConnectionState mirrors the conferencing engine's connection phases.
type ConnectionState string

const (
	StateDisconnected ConnectionState = "disconnected"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateFailed       ConnectionState = "failed"
)

// Healthy reports whether the state counts as a good health sample.
// connecting and reconnecting are neutral, neither healthy nor failed.
func (s ConnectionState) Healthy() bool { return s == StateConnected }

// Failed reports whether the state counts as a bad health sample.
func (s ConnectionState) Failed() bool {
	return s == StateDisconnected || s == StateFailed
}

// ErrEngineUnavailable means the underlying engine did not respond; the
// session cannot start and there is no automatic retry.
var ErrEngineUnavailable = errors.New("voice: engine unavailable")

// Engine is the provider-agnostic voice-transport interface used by the
// call state machines.
//
// Rules:
//   - No engine SDK calls outside voice adapters.
//   - The engine holds a single global current channel; callers must
//     serialize join/leave and never hold two channels at once.
type Engine interface {
	// Init prepares the engine. It is idempotent; a second call on an
	// initialized engine returns immediately.
	Init(ctx context.Context) error

	Join(ctx context.Context, channel string) error
	Leave(ctx context.Context) error

	// CurrentChannel returns the channel the engine is in, or "".
	CurrentChannel(ctx context.Context) (string, error)
	ConnectionState(ctx context.Context) (ConnectionState, error)

	MuteLocalAudio(ctx context.Context, muted bool) error
	SetSpeakerphone(ctx context.Context, on bool) error

	Release(ctx context.Context) error
}
