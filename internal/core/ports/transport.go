package ports

import (
	"context"

	"perch/internal/core/domain"

	"github.com/pion/webrtc/v3"
)

// HTTPResponse is the transport-level result of an authenticated request.
type HTTPResponse struct {
	Status int
	Body   []byte
}

// AuthenticatedRequester issues authenticated HTTP requests against the
// cloud API. Implementations surface 401 as AuthRequired (after one
// token refresh), 5xx as NetworkUnavailable and deadline expiry as
// Timeout; 4xx statuses below 500 pass through for the caller to map.
type AuthenticatedRequester interface {
	Do(ctx context.Context, method, path string, body interface{}) (*HTTPResponse, error)
}

// TokenSource supplies the bearer token for cloud and channel access.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
	Invalidate()
}

// EventHandler consumes one control channel event.
type EventHandler func(event domain.ChannelEvent)

// ControlChannel wraps the one persistent push/event connection per
// session. Connect while already open is a no-op; a close with a
// non-manual reason is reported through the closed event exactly once.
type ControlChannel interface {
	Connect(ctx context.Context) error
	Disconnect(reason domain.CloseReason)
	Send(ctx context.Context, op string, payload interface{}) error
	On(kind domain.EventKind, handler EventHandler) int64
	Off(kind domain.EventKind, id int64)
	IsConnected() bool
}

// TrackHandler receives remote media tracks as they arrive.
type TrackHandler func(cameraID domain.CameraID, track *webrtc.TrackRemote)

// MediaNegotiator drives the offer/answer exchange for one media
// session and returns an opaque handle for later release.
type MediaNegotiator interface {
	Negotiate(ctx context.Context, session *domain.MediaSession, onTrack TrackHandler) (string, error)
	Release(ctx context.Context, handle string) error
	ReleaseAll(ctx context.Context)
}
