package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	"perch/pkg/backoff"
	apperrors "perch/pkg/errors"
	"perch/pkg/optimize"
	"perch/pkg/utils"
	"perch/pkg/validation"

	"github.com/pion/rtp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

// Operation names used as reentrancy guard keys. Overlapping calls of
// the same operation are rejected with Busy, never queued.
const (
	opScanAndConnect    = "qr pairing"
	opConnectByPin      = "pin pairing"
	opConnectByCameraID = "camera connect"
	opStartWatching     = "start watching"
	opStopWatching      = "stop watching"
	opDisconnect        = "disconnect"
	opReconnect         = "reconnect"
)

// Control channel operations sent to the coordination server.
const (
	channelOpSubscribe   = "subscribe"
	channelOpUnsubscribe = "unsubscribe"
	channelOpListCameras = "list_cameras"
)

const (
	reconnectTimeout = 30 * time.Second
	teardownTimeout  = 5 * time.Second

	// rtpBufferSize fits any RTP packet on a standard MTU path.
	rtpBufferSize = 1500
)

type subscribePayload struct {
	CameraID string `json:"cameraId"`
}

type registration struct {
	kind domain.EventKind
	id   int64
}

// SessionManagerConfig carries the per-session scalars.
type SessionManagerConfig struct {
	ViewerID    domain.ViewerID
	Backoff     backoff.Plan
	ListTimeout time.Duration
}

// SessionManager composes the pairing resolver, control channel and
// media controller behind the public session operations. It is the
// single writer of SessionState: every mutation happens in one of its
// operation handlers or channel event handlers.
type SessionManager struct {
	resolver ports.PairingResolver
	channel  ports.ControlChannel
	media    ports.MediaController
	store    ports.PairingRepository
	metrics  ports.MetricsRecorder
	logger   *zap.SugaredLogger

	viewerID    domain.ViewerID
	plan        backoff.Plan
	listTimeout time.Duration
	rtpBuffers  *optimize.BytePool

	mu             sync.Mutex
	state          *domain.SessionState
	inFlight       map[string]bool
	linkBusy       bool // a pairing or reconnect owns the channel link
	reconnectTimer *time.Timer
	registrations  []registration
	activeSession  *domain.MediaSession
	listWaiters    []chan struct{}
	closed         bool
}

// NewSessionManager builds the manager and attaches its control channel
// event handlers. Call Close to release every registration again.
func NewSessionManager(
	cfg SessionManagerConfig,
	resolver ports.PairingResolver,
	channel ports.ControlChannel,
	media ports.MediaController,
	store ports.PairingRepository,
	metrics ports.MetricsRecorder,
	logger *zap.SugaredLogger,
) *SessionManager {
	s := &SessionManager{
		resolver:    resolver,
		channel:     channel,
		media:       media,
		store:       store,
		metrics:     metrics,
		logger:      logger,
		viewerID:    cfg.ViewerID,
		plan:        cfg.Backoff,
		listTimeout: cfg.ListTimeout,
		rtpBuffers:  optimize.NewBytePool(rtpBufferSize),
		state:       domain.NewSessionState(),
		inFlight:    make(map[string]bool),
	}

	s.register(domain.EventOpened, s.onOpened)
	s.register(domain.EventClosed, s.onClosed)
	s.register(domain.EventCameraDiscovered, s.onCameraDiscovered)
	s.register(domain.EventCameraLost, s.onCameraLost)
	s.register(domain.EventCameraList, s.onCameraList)
	s.register(domain.EventMediaStarted, s.onMediaStarted)
	s.register(domain.EventMediaStopped, s.onMediaStopped)
	s.register(domain.EventChannelError, s.onChannelError)

	return s
}

func (s *SessionManager) register(kind domain.EventKind, handler ports.EventHandler) {
	id := s.channel.On(kind, handler)
	s.registrations = append(s.registrations, registration{kind: kind, id: id})
}

// State returns a deep copy of the current snapshot.
func (s *SessionManager) State() *domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// ScanAndConnect validates a scanned QR payload and pairs with the
// camera it names. Malformed payloads fail before any network call and
// leave the connection state untouched.
func (s *SessionManager) ScanAndConnect(ctx context.Context, qrData []byte) (*domain.SessionState, error) {
	payload, err := domain.ParsePairingQR(qrData)
	if err != nil {
		return s.State(), apperrors.NewValidationError(err.Error())
	}
	return s.pairAndConnect(ctx, opScanAndConnect, payload)
}

// ConnectByPin validates a 6-digit PIN locally and pairs through the
// PIN lookup flow. Validation failures issue no network requests.
func (s *SessionManager) ConnectByPin(ctx context.Context, pin string) (*domain.SessionState, error) {
	pin = utils.NormalizePinCode(pin)
	if err := validation.ValidatePinCode(pin); err != nil {
		return s.State(), apperrors.NewValidationError(err.Error())
	}
	return s.pairAndConnect(ctx, opConnectByPin, domain.PinCredential{Code: pin})
}

func (s *SessionManager) pairAndConnect(ctx context.Context, op string, cred domain.PairingCredential) (*domain.SessionState, error) {
	if err := s.beginOp(op, true); err != nil {
		return s.State(), err
	}
	defer s.endOp(op, true)

	start := time.Now()
	result, err := s.doPair(ctx, cred)
	s.recordPairing(ctx, cred.Method(), result, err, start)
	if err != nil {
		s.failSession(err)
		return s.State(), err
	}
	s.metrics.RecordConnectDuration(time.Since(start).Seconds())
	return s.State(), nil
}

func (s *SessionManager) doPair(ctx context.Context, cred domain.PairingCredential) (*domain.PairingResult, error) {
	s.setStatus(domain.StatusConnecting)

	if err := s.channel.Connect(ctx); err != nil {
		return nil, err
	}

	result, err := s.resolver.Resolve(ctx, cred)
	if err != nil {
		return nil, err
	}

	s.media.ConfirmPairing(result.Camera.ID, result.PairingID)

	if err := s.channel.Send(ctx, channelOpSubscribe, subscribePayload{CameraID: string(result.Camera.ID)}); err != nil {
		return nil, err
	}

	s.completeConnect(result.Camera)
	s.logger.Infow("camera paired",
		"camera_id", result.Camera.ID,
		"method", cred.Method(),
	)
	return result, nil
}

// ConnectByCameraID connects to an already-discovered camera using its
// remembered pairing. A camera absent from the discovery set gets one
// bounded list refresh before the lookup fails with NotFound.
func (s *SessionManager) ConnectByCameraID(ctx context.Context, id domain.CameraID) (*domain.SessionState, error) {
	if err := validation.ValidateCameraID(string(id)); err != nil {
		return s.State(), apperrors.NewValidationError(err.Error())
	}
	if err := s.beginOp(opConnectByCameraID, true); err != nil {
		return s.State(), err
	}
	defer s.endOp(opConnectByCameraID, true)

	start := time.Now()
	err := s.doConnectByCameraID(ctx, id)
	if err != nil {
		s.failSession(err)
		return s.State(), err
	}
	s.metrics.RecordConnectDuration(time.Since(start).Seconds())
	return s.State(), nil
}

func (s *SessionManager) doConnectByCameraID(ctx context.Context, id domain.CameraID) error {
	s.setStatus(domain.StatusConnecting)

	if err := s.channel.Connect(ctx); err != nil {
		return err
	}

	cam, ok := s.lookupCamera(id)
	if !ok {
		if err := s.refreshCameraList(ctx); err != nil {
			return err
		}
		if cam, ok = s.lookupCamera(id); !ok {
			return apperrors.NewNotFoundError(fmt.Sprintf("camera %s", id))
		}
	}

	favorite, err := s.store.GetFavorite(ctx, id)
	if err != nil {
		return apperrors.NewAuthRequiredError(fmt.Sprintf("camera %s has no remembered pairing", id))
	}
	s.media.ConfirmPairing(id, favorite.PairingID)

	if err := s.channel.Send(ctx, channelOpSubscribe, subscribePayload{CameraID: string(id)}); err != nil {
		return err
	}

	s.completeConnect(cam)
	s.logger.Infow("camera connected", "camera_id", id)
	return nil
}

// StartWatching begins the media session for the connected camera.
// Already watching is a no-op success.
func (s *SessionManager) StartWatching(ctx context.Context, id domain.CameraID) (*domain.SessionState, error) {
	if err := s.beginOp(opStartWatching, false); err != nil {
		return s.State(), err
	}
	defer s.endOp(opStartWatching, false)

	s.mu.Lock()
	status := s.state.ConnectionStatus
	connected := s.state.ConnectedCamera
	watching := s.state.IsWatching
	s.mu.Unlock()

	if status != domain.StatusConnected || connected == nil || connected.ID != id {
		return s.State(), apperrors.NewInvalidStateError(fmt.Sprintf("camera %s is not the connected camera", id))
	}
	if watching {
		return s.State(), nil
	}

	session, err := s.media.Begin(ctx, id, s.viewerID, s.onTrack)
	if err != nil {
		s.setLastError(err)
		return s.State(), err
	}

	s.mu.Lock()
	s.activeSession = session
	s.state.IsWatching = true
	if s.state.ConnectedCamera != nil {
		s.state.ConnectedCamera.Status = domain.CameraStreaming
	}
	s.mu.Unlock()

	s.metrics.SetActiveMediaSessions(1)
	s.logger.Infow("watching started", "camera_id", id, "session_id", session.ID)
	return s.State(), nil
}

// StopWatching ends the active media session. Stopping twice in a row
// produces the same state as stopping once.
func (s *SessionManager) StopWatching(ctx context.Context) (*domain.SessionState, error) {
	if err := s.beginOp(opStopWatching, false); err != nil {
		return s.State(), err
	}
	defer s.endOp(opStopWatching, false)

	if err := s.endActiveMedia(ctx); err != nil {
		return s.State(), err
	}
	return s.State(), nil
}

func (s *SessionManager) endActiveMedia(ctx context.Context) error {
	s.mu.Lock()
	session := s.activeSession
	s.activeSession = nil
	s.state.IsWatching = false
	if s.state.ConnectedCamera != nil && s.state.ConnectedCamera.Status == domain.CameraStreaming {
		s.state.ConnectedCamera.Status = domain.CameraOnline
	}
	s.mu.Unlock()

	if session == nil {
		return nil
	}

	s.metrics.SetActiveMediaSessions(0)
	if err := s.media.End(ctx, session.ID); err != nil {
		return err
	}
	s.logger.Infow("watching stopped", "session_id", session.ID)
	return nil
}

// Disconnect leaves the current camera and closes the control channel
// on purpose, so no automatic reconnect follows.
func (s *SessionManager) Disconnect(ctx context.Context) (*domain.SessionState, error) {
	if err := s.beginOp(opDisconnect, true); err != nil {
		return s.State(), err
	}
	defer s.endOp(opDisconnect, true)

	s.mu.Lock()
	s.cancelReconnectTimerLocked()
	s.state.ReconnectAttempt = 0
	connected := s.state.ConnectedCamera
	s.mu.Unlock()

	if err := s.endActiveMedia(ctx); err != nil {
		s.logger.Warnw("failed to end media session during disconnect", "error", err)
	}

	if connected != nil && s.channel.IsConnected() {
		if err := s.channel.Send(ctx, channelOpUnsubscribe, subscribePayload{CameraID: string(connected.ID)}); err != nil {
			s.logger.Warnw("failed to unsubscribe from camera", "camera_id", connected.ID, "error", err)
		}
	}

	s.channel.Disconnect(domain.CloseManual)

	s.mu.Lock()
	s.state.ConnectedCamera = nil
	s.transitionLocked(domain.StatusDisconnected)
	s.mu.Unlock()

	s.logger.Infow("session disconnected")
	return s.State(), nil
}

// Reconnect is the manual recovery path: it cancels any pending
// automatic timer, resets the attempt counter and redials immediately.
func (s *SessionManager) Reconnect(ctx context.Context) (*domain.SessionState, error) {
	if err := s.beginOp(opReconnect, true); err != nil {
		return s.State(), err
	}
	defer s.endOp(opReconnect, true)

	s.mu.Lock()
	s.cancelReconnectTimerLocked()
	s.state.ReconnectAttempt = 0
	s.state.LastError = nil
	s.transitionLocked(domain.StatusConnecting)
	s.mu.Unlock()

	start := time.Now()
	if err := s.connectChannel(ctx); err != nil {
		s.failSession(err)
		s.mu.Lock()
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		return s.State(), err
	}

	s.mu.Lock()
	s.transitionLocked(domain.StatusConnected)
	s.mu.Unlock()
	s.metrics.RecordConnectDuration(time.Since(start).Seconds())

	s.logger.Infow("manual reconnect succeeded")
	return s.State(), nil
}

// Close tears the session down exactly once: it cancels the pending
// reconnect timer, releases every channel handler registration, ends
// all media sessions and closes the channel. Later operations fail
// with InvalidState and later events are suppressed.
func (s *SessionManager) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.cancelReconnectTimerLocked()
	regs := s.registrations
	s.registrations = nil
	s.activeSession = nil
	s.state.IsWatching = false
	s.mu.Unlock()

	for _, reg := range regs {
		s.channel.Off(reg.kind, reg.id)
	}

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()

	if err := s.media.EndAll(ctx); err != nil {
		s.logger.Warnw("failed to end media sessions during teardown", "error", err)
	}
	s.metrics.SetActiveMediaSessions(0)
	s.channel.Disconnect(domain.CloseManual)

	s.logger.Infow("session closed")
	return nil
}

// connectChannel dials the channel if needed and restores the camera
// subscription that was active before the link went down.
func (s *SessionManager) connectChannel(ctx context.Context) error {
	if err := s.channel.Connect(ctx); err != nil {
		return err
	}

	s.mu.Lock()
	connected := s.state.ConnectedCamera
	s.mu.Unlock()

	if connected != nil {
		if err := s.channel.Send(ctx, channelOpSubscribe, subscribePayload{CameraID: string(connected.ID)}); err != nil {
			return err
		}
	}
	return nil
}

// beginOp takes the reentrancy guard for op and, for operations that
// touch the channel link, the shared link guard that keeps pairing and
// reconnection mutually exclusive.
func (s *SessionManager) beginOp(op string, needsLink bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return apperrors.NewInvalidStateError("session is torn down")
	}
	if s.inFlight[op] {
		return apperrors.NewBusyError(op)
	}
	if needsLink && s.linkBusy {
		return apperrors.NewBusyError("connection attempt")
	}

	s.inFlight[op] = true
	if needsLink {
		s.linkBusy = true
	}
	return nil
}

func (s *SessionManager) endOp(op string, needsLink bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.inFlight, op)
	if needsLink {
		s.linkBusy = false
	}
}

func (s *SessionManager) lookupCamera(id domain.CameraID) (*domain.CameraRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cam, ok := s.state.AvailableCameras[id]
	return cam, ok
}

// refreshCameraList asks the server for the camera list and waits for
// the resulting camera_list event, bounded by the list timeout.
func (s *SessionManager) refreshCameraList(ctx context.Context) error {
	waiter := make(chan struct{}, 1)
	s.mu.Lock()
	s.listWaiters = append(s.listWaiters, waiter)
	s.mu.Unlock()

	if err := s.channel.Send(ctx, channelOpListCameras, nil); err != nil {
		s.removeListWaiter(waiter)
		return err
	}

	select {
	case <-waiter:
		return nil
	case <-time.After(s.listTimeout):
		s.removeListWaiter(waiter)
		return apperrors.NewTimeoutError("camera list refresh timed out")
	case <-ctx.Done():
		s.removeListWaiter(waiter)
		return apperrors.NewTimeoutError("camera list refresh cancelled")
	}
}

func (s *SessionManager) removeListWaiter(waiter chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, w := range s.listWaiters {
		if w == waiter {
			s.listWaiters = append(s.listWaiters[:i], s.listWaiters[i+1:]...)
			return
		}
	}
}

// completeConnect installs the paired camera and marks the session
// connected. A successful connect always resets the backoff counter
// and cancels any pending automatic reconnect.
func (s *SessionManager) completeConnect(cam *domain.CameraRef) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.cancelReconnectTimerLocked()
	s.state.ConnectedCamera = cam
	s.state.AvailableCameras[cam.ID] = cam
	s.state.ReconnectAttempt = 0
	s.state.LastError = nil
	s.transitionLocked(domain.StatusConnected)
}

func (s *SessionManager) setStatus(status domain.ConnectionStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.transitionLocked(status)
}

func (s *SessionManager) transitionLocked(to domain.ConnectionStatus) {
	from := s.state.ConnectionStatus
	if from == to {
		return
	}
	s.state.ConnectionStatus = to
	s.metrics.RecordStateTransition(from, to)
}

func (s *SessionManager) failSession(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state.LastError = errorInfoFrom(err)
	s.transitionLocked(domain.StatusError)
}

func (s *SessionManager) setLastError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.state.LastError = errorInfoFrom(err)
}

// scheduleReconnectLocked arms the single automatic reconnect timer.
// Scheduling always cancels the prior timer first, so at most one is
// pending at any time. Caller holds s.mu.
func (s *SessionManager) scheduleReconnectLocked() {
	if s.closed {
		return
	}
	s.cancelReconnectTimerLocked()

	attempt := s.state.ReconnectAttempt
	delay := s.plan.NextDelay(attempt)
	s.metrics.RecordReconnectScheduled(attempt, delay.Seconds())
	s.logger.Infow("automatic reconnect scheduled", "attempt", attempt, "delay", delay)

	s.reconnectTimer = time.AfterFunc(delay, s.runScheduledReconnect)
}

func (s *SessionManager) cancelReconnectTimerLocked() {
	if s.reconnectTimer != nil {
		s.reconnectTimer.Stop()
		s.reconnectTimer = nil
	}
}

// runScheduledReconnect is the timer callback for automatic recovery.
// If a pairing or manual reconnect currently owns the link it backs off
// again instead of racing it.
func (s *SessionManager) runScheduledReconnect() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.reconnectTimer = nil

	if s.linkBusy {
		s.state.ReconnectAttempt++
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		return
	}

	s.linkBusy = true
	s.state.ReconnectAttempt++
	attempt := s.state.ReconnectAttempt
	s.transitionLocked(domain.StatusConnecting)
	s.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), reconnectTimeout)
	defer cancel()
	start := time.Now()
	err := s.connectChannel(ctx)

	s.mu.Lock()
	s.linkBusy = false
	if s.closed {
		s.mu.Unlock()
		return
	}
	if err != nil {
		s.state.LastError = errorInfoFrom(err)
		s.transitionLocked(domain.StatusError)
		s.scheduleReconnectLocked()
		s.mu.Unlock()
		s.logger.Warnw("automatic reconnect failed", "attempt", attempt, "error", err)
		return
	}

	s.state.ReconnectAttempt = 0
	s.state.LastError = nil
	s.transitionLocked(domain.StatusConnected)
	s.mu.Unlock()

	s.metrics.RecordConnectDuration(time.Since(start).Seconds())
	s.logger.Infow("control channel reconnected", "attempt", attempt)
}

// Channel event handlers. Each one checks the torn-down flag so that
// no state mutation happens after Close.

func (s *SessionManager) onOpened(domain.ChannelEvent) {
	s.metrics.SetChannelUp(true)
	s.logger.Infow("control channel opened")
}

func (s *SessionManager) onClosed(ev domain.ChannelEvent) {
	s.metrics.SetChannelUp(false)

	if ev.Reason == domain.CloseManual {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.LastError = &domain.ErrorInfo{
		Code:    string(apperrors.ErrCodeNetworkUnavailable),
		Message: "control channel dropped",
		At:      time.Now(),
	}
	s.transitionLocked(domain.StatusError)
	s.scheduleReconnectLocked()
	s.mu.Unlock()

	s.logger.Warnw("control channel dropped", "reason", ev.Reason)
}

func (s *SessionManager) onCameraDiscovered(ev domain.ChannelEvent) {
	if ev.Camera == nil {
		return
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	cam := *ev.Camera
	s.state.AvailableCameras[cam.ID] = &cam
	if s.state.ConnectedCamera != nil && s.state.ConnectedCamera.ID == cam.ID {
		s.state.ConnectedCamera = &cam
	}
	available := len(s.state.AvailableCameras)
	s.mu.Unlock()

	s.metrics.SetAvailableCameras(available)
	s.logger.Debugw("camera discovered", "camera_id", cam.ID, "status", cam.Status)
}

func (s *SessionManager) onCameraLost(ev domain.ChannelEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	delete(s.state.AvailableCameras, ev.CameraID)
	lostConnected := s.state.ConnectedCamera != nil && s.state.ConnectedCamera.ID == ev.CameraID
	if lostConnected {
		s.state.ConnectedCamera.Status = domain.CameraOffline
	}
	available := len(s.state.AvailableCameras)
	s.mu.Unlock()

	s.metrics.SetAvailableCameras(available)

	if lostConnected {
		ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
		defer cancel()
		if err := s.endActiveMedia(ctx); err != nil {
			s.logger.Warnw("failed to end media session for lost camera", "camera_id", ev.CameraID, "error", err)
		}
	}

	s.logger.Infow("camera lost", "camera_id", ev.CameraID)
}

func (s *SessionManager) onCameraList(ev domain.ChannelEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.state.AvailableCameras = make(map[domain.CameraID]*domain.CameraRef, len(ev.Cameras))
	for _, ref := range ev.Cameras {
		cam := *ref
		s.state.AvailableCameras[cam.ID] = &cam
		if s.state.ConnectedCamera != nil && s.state.ConnectedCamera.ID == cam.ID {
			s.state.ConnectedCamera = &cam
		}
	}
	waiters := s.listWaiters
	s.listWaiters = nil
	available := len(s.state.AvailableCameras)
	s.mu.Unlock()

	s.metrics.SetAvailableCameras(available)

	for _, w := range waiters {
		select {
		case w <- struct{}{}:
		default:
		}
	}
}

func (s *SessionManager) onMediaStarted(ev domain.ChannelEvent) {
	// Server echo of a start this manager issued; the controller owns
	// the local session record.
	s.logger.Debugw("media session start acknowledged", "session_id", ev.SessionID, "camera_id", ev.CameraID)
}

func (s *SessionManager) onMediaStopped(ev domain.ChannelEvent) {
	s.mu.Lock()
	active := s.activeSession
	s.mu.Unlock()

	if active == nil || active.ID != ev.SessionID {
		return
	}

	// Camera side ended the stream
	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := s.endActiveMedia(ctx); err != nil {
		s.logger.Warnw("failed to end media session stopped by remote", "session_id", ev.SessionID, "error", err)
	}
	s.logger.Infow("media session stopped by remote", "session_id", ev.SessionID)
}

func (s *SessionManager) onChannelError(ev domain.ChannelEvent) {
	if ev.Err == nil {
		return
	}
	s.setLastError(ev.Err)
	s.logger.Warnw("control channel error", "error", ev.Err)
}

func (s *SessionManager) recordPairing(ctx context.Context, method domain.PairingMethod, result *domain.PairingResult, err error, start time.Time) {
	outcome := "ok"
	var cameraID domain.CameraID
	if err != nil {
		outcome = string(apperrors.CodeOf(err))
	} else {
		cameraID = result.Camera.ID
	}

	s.metrics.RecordPairingAttempt(method, outcome)
	s.metrics.RecordPairingDuration(method, time.Since(start).Seconds())

	attempt := &domain.PairingAttempt{
		CameraID: cameraID,
		Method:   method,
		Outcome:  outcome,
		At:       time.Now(),
	}
	if storeErr := s.store.RecordAttempt(ctx, attempt); storeErr != nil {
		s.logger.Warnw("failed to record pairing attempt", "error", storeErr)
	}

	if err == nil {
		favorite := &domain.FavoritePairing{
			CameraID:   result.Camera.ID,
			CameraName: result.Camera.DisplayName,
			PairingID:  result.PairingID,
			Method:     method,
			SavedAt:    time.Now(),
		}
		if storeErr := s.store.SaveFavorite(ctx, favorite); storeErr != nil {
			s.logger.Warnw("failed to save favorite pairing", "error", storeErr)
		}
	}
}

// onTrack receives remote tracks from the negotiator and drains them.
func (s *SessionManager) onTrack(cameraID domain.CameraID, track *webrtc.TrackRemote) {
	go s.consumeTrack(cameraID, track)
}

func (s *SessionManager) consumeTrack(cameraID domain.CameraID, track *webrtc.TrackRemote) {
	s.logger.Infow("media track started",
		"camera_id", cameraID,
		"codec", track.Codec().MimeType,
	)

	buf := s.rtpBuffers.Get()
	defer s.rtpBuffers.Put(buf)

	var pkt rtp.Packet
	var frames uint64
	for {
		n, _, err := track.Read(buf)
		if err != nil {
			s.logger.Debugw("media track ended", "camera_id", cameraID, "frames", frames, "error", err)
			return
		}
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			continue
		}
		if frameComplete(&pkt) {
			frames++
			if frames%300 == 0 {
				s.logger.Debugw("media frames delivered", "camera_id", cameraID, "frames", frames)
			}
		}
	}
}

// frameComplete reports whether the packet closes an access unit.
func frameComplete(pkt *rtp.Packet) bool {
	return pkt.Marker
}

func errorInfoFrom(err error) *domain.ErrorInfo {
	return &domain.ErrorInfo{
		Code:    string(apperrors.CodeOf(err)),
		Message: err.Error(),
		At:      time.Now(),
	}
}
