package domain

type CameraID string
type ViewerID string
type DeviceID string

type CameraStatus string

const (
	CameraOnline    CameraStatus = "online"
	CameraOffline   CameraStatus = "offline"
	CameraStreaming CameraStatus = "streaming"
)

// CameraRef carries identity plus display data for a camera reachable by
// this viewer. A fresher instance with the same ID supersedes the older
// one wholesale, never field by field.
type CameraRef struct {
	ID            CameraID
	DisplayName   string
	Status        CameraStatus
	MediaEndpoint string // optional hint from pairing resolution
}
