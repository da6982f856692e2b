package monitoring

import "perch/internal/core/domain"

// NoopRecorder satisfies the metrics port when Prometheus is disabled.
type NoopRecorder struct{}

func NewNoopRecorder() *NoopRecorder {
	return &NoopRecorder{}
}

func (NoopRecorder) SetChannelUp(bool) {}

func (NoopRecorder) SetAvailableCameras(int) {}

func (NoopRecorder) SetActiveMediaSessions(int) {}

func (NoopRecorder) RecordPairingAttempt(domain.PairingMethod, string) {}

func (NoopRecorder) RecordPairingDuration(domain.PairingMethod, float64) {}

func (NoopRecorder) RecordConnectDuration(float64) {}

func (NoopRecorder) RecordReconnectScheduled(int, float64) {}

func (NoopRecorder) RecordChannelMessage(string, string) {}

func (NoopRecorder) RecordStateTransition(domain.ConnectionStatus, domain.ConnectionStatus) {}
