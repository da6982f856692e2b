package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	apperrors "perch/pkg/errors"
	"perch/pkg/utils"
)

type mediaController struct {
	negotiator ports.MediaNegotiator

	mu        sync.Mutex
	sessions  map[domain.CameraID]*domain.MediaSession
	byID      map[domain.MediaSessionID]*domain.MediaSession
	confirmed map[domain.CameraID]domain.PairingID
}

// NewMediaController builds the controller that owns per-camera media
// sessions. Sessions exist only between a confirmed pairing and the end
// of the watch period that created them.
func NewMediaController(negotiator ports.MediaNegotiator) ports.MediaController {
	return &mediaController{
		negotiator: negotiator,
		sessions:   make(map[domain.CameraID]*domain.MediaSession),
		byID:       make(map[domain.MediaSessionID]*domain.MediaSession),
		confirmed:  make(map[domain.CameraID]domain.PairingID),
	}
}

func (c *mediaController) Begin(ctx context.Context, cameraID domain.CameraID, viewerID domain.ViewerID, onTrack ports.TrackHandler) (*domain.MediaSession, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	// One active session per camera: a second begin returns the
	// existing session instead of negotiating a duplicate.
	if existing, ok := c.sessions[cameraID]; ok {
		return existing, nil
	}

	if _, ok := c.confirmed[cameraID]; !ok {
		return nil, apperrors.NewInvalidStateError(fmt.Sprintf("no confirmed pairing for camera %s", cameraID))
	}

	session := &domain.MediaSession{
		ID:        domain.MediaSessionID(utils.GenerateMediaSessionID()),
		CameraID:  cameraID,
		ViewerID:  viewerID,
		StartedAt: time.Now(),
	}

	handle, err := c.negotiator.Negotiate(ctx, session, onTrack)
	if err != nil {
		return nil, fmt.Errorf("failed to negotiate media session: %w", err)
	}
	session.Handle = handle

	c.sessions[cameraID] = session
	c.byID[session.ID] = session
	return session, nil
}

func (c *mediaController) End(ctx context.Context, sessionID domain.MediaSessionID) error {
	c.mu.Lock()
	session, ok := c.byID[sessionID]
	if !ok {
		// Already ended: ending twice is a no-op
		c.mu.Unlock()
		return nil
	}
	delete(c.byID, sessionID)
	delete(c.sessions, session.CameraID)
	c.mu.Unlock()

	if err := c.negotiator.Release(ctx, session.Handle); err != nil {
		return fmt.Errorf("failed to release media session %s: %w", sessionID, err)
	}
	return nil
}

func (c *mediaController) EndAll(ctx context.Context) error {
	c.mu.Lock()
	c.sessions = make(map[domain.CameraID]*domain.MediaSession)
	c.byID = make(map[domain.MediaSessionID]*domain.MediaSession)
	c.mu.Unlock()

	c.negotiator.ReleaseAll(ctx)
	return nil
}

func (c *mediaController) ConfirmPairing(cameraID domain.CameraID, pairingID domain.PairingID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.confirmed[cameraID] = pairingID
}

func (c *mediaController) RevokePairing(cameraID domain.CameraID) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.confirmed, cameraID)
}

func (c *mediaController) ActiveSession(cameraID domain.CameraID) (*domain.MediaSession, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	session, ok := c.sessions[cameraID]
	return session, ok
}
