package domain

import "time"

type MediaSessionID string

// MediaSession is one negotiated watch period for a camera. It never
// outlives the watch period that created it.
type MediaSession struct {
	ID        MediaSessionID
	CameraID  CameraID
	ViewerID  ViewerID
	Handle    string // opaque negotiator handle
	StartedAt time.Time
}
