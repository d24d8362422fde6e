package signaling

import "fmt"

// NetworkError marks a transport-level failure: the request never
// produced a server verdict. Pollers treat these as transient and keep
// going; user actions surface them without changing local state.
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("signaling: %s: %v", e.Op, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// ServerRejected marks a request the server received and refused. The
// body message and status code carry the reason.
type ServerRejected struct {
	Op         string
	StatusCode int
	Message    string
}

func (e *ServerRejected) Error() string {
	return fmt.Sprintf("signaling: %s rejected (%d): %s", e.Op, e.StatusCode, e.Message)
}
