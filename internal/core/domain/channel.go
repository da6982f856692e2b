package domain

import "encoding/json"

// CloseReason says why the control channel went down. Only non-manual
// closes trigger automatic reconnection.
type CloseReason string

const (
	CloseManual CloseReason = "manual"
	CloseDrop   CloseReason = "drop"
)

type EventKind string

const (
	EventOpened           EventKind = "opened"
	EventClosed           EventKind = "closed"
	EventCameraDiscovered EventKind = "camera_discovered"
	EventCameraLost       EventKind = "camera_lost"
	EventCameraList       EventKind = "camera_list"
	EventMediaStarted     EventKind = "media_started"
	EventMediaStopped     EventKind = "media_stopped"
	EventMediaAnswer      EventKind = "media_answer"
	EventMediaICE         EventKind = "media_ice"
	EventChannelError     EventKind = "channel_error"
)

// ChannelEvent is one lifecycle or server push event from the control
// channel. Only the fields relevant to Kind are populated.
type ChannelEvent struct {
	Kind      EventKind
	Reason    CloseReason     // closed
	Camera    *CameraRef      // camera_discovered
	CameraID  CameraID        // camera_lost, media_answer, media_ice
	Cameras   []*CameraRef    // camera_list
	SessionID MediaSessionID  // media_started, media_stopped
	Err       error           // channel_error
	Payload   json.RawMessage // raw server payload for media events
}
