package domain

import (
	"time"
)

type ConnectionStatus string

const (
	StatusDisconnected ConnectionStatus = "disconnected"
	StatusConnecting   ConnectionStatus = "connecting"
	StatusConnected    ConnectionStatus = "connected"
	StatusError        ConnectionStatus = "error"
)

// ErrorInfo describes the last failure surfaced to observers.
type ErrorInfo struct {
	Code    string
	Message string
	At      time.Time
}

// SessionState is the single authoritative snapshot of the viewer's
// connection, mutated only by the session manager. IsWatching implies
// ConnectedCamera is set; a successful connect resets ReconnectAttempt.
type SessionState struct {
	ConnectionStatus ConnectionStatus
	IsWatching       bool
	ConnectedCamera  *CameraRef
	AvailableCameras map[CameraID]*CameraRef
	ReconnectAttempt int
	LastError        *ErrorInfo
}

// NewSessionState returns a state with all fields at their defaults.
func NewSessionState() *SessionState {
	return &SessionState{
		ConnectionStatus: StatusDisconnected,
		AvailableCameras: make(map[CameraID]*CameraRef),
	}
}

// Clone returns a deep copy safe to hand to observers.
func (s *SessionState) Clone() *SessionState {
	clone := &SessionState{
		ConnectionStatus: s.ConnectionStatus,
		IsWatching:       s.IsWatching,
		ReconnectAttempt: s.ReconnectAttempt,
		AvailableCameras: make(map[CameraID]*CameraRef, len(s.AvailableCameras)),
	}

	if s.ConnectedCamera != nil {
		cam := *s.ConnectedCamera
		clone.ConnectedCamera = &cam
	}
	for id, ref := range s.AvailableCameras {
		cam := *ref
		clone.AvailableCameras[id] = &cam
	}
	if s.LastError != nil {
		errInfo := *s.LastError
		clone.LastError = &errInfo
	}

	return clone
}
