package ports

import (
	"context"

	"perch/internal/core/domain"
)

// SessionService is the command surface of the connection session
// manager, consumed by the HTTP handlers and the CLI.
type SessionService interface {
	ScanAndConnect(ctx context.Context, qrData []byte) (*domain.SessionState, error)
	ConnectByPin(ctx context.Context, pin string) (*domain.SessionState, error)
	ConnectByCameraID(ctx context.Context, id domain.CameraID) (*domain.SessionState, error)
	StartWatching(ctx context.Context, id domain.CameraID) (*domain.SessionState, error)
	StopWatching(ctx context.Context) (*domain.SessionState, error)
	Disconnect(ctx context.Context) (*domain.SessionState, error)
	Reconnect(ctx context.Context) (*domain.SessionState, error)
	State() *domain.SessionState
	Close() error
}

// PairingResolver turns a validated credential into a confirmed pairing.
// It performs no retries; retry policy belongs to the caller.
type PairingResolver interface {
	Resolve(ctx context.Context, cred domain.PairingCredential) (*domain.PairingResult, error)
}

// MediaController owns the per-camera media sessions. Begin requires a
// confirmed pairing for the camera; at most one active session per
// camera exists, and a second Begin returns the existing one.
type MediaController interface {
	Begin(ctx context.Context, cameraID domain.CameraID, viewerID domain.ViewerID, onTrack TrackHandler) (*domain.MediaSession, error)
	End(ctx context.Context, sessionID domain.MediaSessionID) error
	EndAll(ctx context.Context) error
	ConfirmPairing(cameraID domain.CameraID, pairingID domain.PairingID)
	RevokePairing(cameraID domain.CameraID)
	ActiveSession(cameraID domain.CameraID) (*domain.MediaSession, bool)
}

// MetricsRecorder receives counters and gauges from the session layer.
type MetricsRecorder interface {
	SetChannelUp(up bool)
	SetAvailableCameras(n int)
	RecordPairingAttempt(method domain.PairingMethod, outcome string)
	RecordPairingDuration(method domain.PairingMethod, seconds float64)
	RecordConnectDuration(seconds float64)
	RecordReconnectScheduled(attempt int, delaySeconds float64)
	SetActiveMediaSessions(n int)
	RecordChannelMessage(direction, messageType string)
	RecordStateTransition(from, to domain.ConnectionStatus)
}
