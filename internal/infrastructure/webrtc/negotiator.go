package webrtc

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	apperrors "perch/pkg/errors"
	"perch/pkg/utils"

	"github.com/pion/rtcp"
	"github.com/pion/webrtc/v3"
	"go.uber.org/zap"
)

const (
	opMediaOffer = "media_offer"
	opMediaICE   = "media_ice"
	opMediaClose = "media_close"
)

// Config holds WebRTC settings for viewer-side peer connections.
type Config struct {
	ICEServers []webrtc.ICEServer
	PortRange  struct {
		Min uint16
		Max uint16
	}
	AnswerTimeout    time.Duration
	KeyframeInterval time.Duration
}

// Negotiator drives the SDP exchange for media sessions over the
// control channel. The local side always offers and only receives
// tracks; answers and remote ICE candidates arrive as channel events.
type Negotiator struct {
	config  Config
	channel ports.ControlChannel

	sessions map[string]*peerSession
	byCamera map[domain.CameraID]*peerSession
	mu       sync.RWMutex

	logger *zap.SugaredLogger
}

// peerSession is the live negotiation state for one media session.
type peerSession struct {
	handle    string
	sessionID domain.MediaSessionID
	cameraID  domain.CameraID
	pc        *webrtc.PeerConnection

	mu         sync.Mutex
	answered   bool
	answerCh   chan struct{}
	pendingICE []webrtc.ICECandidateInit
	done       chan struct{}
}

type offerSignal struct {
	CameraID  string `json:"cameraId"`
	SessionID string `json:"sessionId"`
	SDP       string `json:"sdp"`
}

type answerSignal struct {
	CameraID string `json:"cameraId"`
	SDP      string `json:"sdp"`
}

type iceSignal struct {
	CameraID  string                  `json:"cameraId"`
	Candidate webrtc.ICECandidateInit `json:"candidate"`
}

type closeSignal struct {
	SessionID string `json:"sessionId"`
}

// NewNegotiator creates a negotiator and subscribes it to the media
// signaling events on the control channel.
func NewNegotiator(config Config, channel ports.ControlChannel, logger *zap.SugaredLogger) *Negotiator {
	if config.AnswerTimeout <= 0 {
		config.AnswerTimeout = 15 * time.Second
	}
	if config.KeyframeInterval <= 0 {
		config.KeyframeInterval = 3 * time.Second
	}

	n := &Negotiator{
		config:   config,
		channel:  channel,
		sessions: make(map[string]*peerSession),
		byCamera: make(map[domain.CameraID]*peerSession),
		logger:   logger,
	}

	channel.On(domain.EventMediaAnswer, n.onMediaAnswer)
	channel.On(domain.EventMediaICE, n.onMediaICE)

	return n
}

// Negotiate opens a receiving peer connection for the session, sends
// the offer over the control channel and waits for the camera's
// answer. The returned handle releases the connection later.
func (n *Negotiator) Negotiate(ctx context.Context, session *domain.MediaSession, onTrack ports.TrackHandler) (string, error) {
	pc, err := n.createPeerConnection()
	if err != nil {
		return "", fmt.Errorf("failed to create peer connection: %w", err)
	}

	for _, kind := range []webrtc.RTPCodecType{webrtc.RTPCodecTypeVideo, webrtc.RTPCodecTypeAudio} {
		if _, err := pc.AddTransceiverFromKind(kind, webrtc.RTPTransceiverInit{
			Direction: webrtc.RTPTransceiverDirectionRecvonly,
		}); err != nil {
			pc.Close()
			return "", fmt.Errorf("failed to add %s transceiver: %w", kind, err)
		}
	}

	ps := &peerSession{
		handle:    utils.GenerateID("nego"),
		sessionID: session.ID,
		cameraID:  session.CameraID,
		pc:        pc,
		answerCh:  make(chan struct{}),
		done:      make(chan struct{}),
	}

	pc.OnTrack(n.handleRemoteTrack(ps, onTrack))
	pc.OnICECandidate(n.handleLocalCandidate(ps))
	pc.OnConnectionStateChange(n.handleConnectionState(ps))

	n.mu.Lock()
	n.sessions[ps.handle] = ps
	n.byCamera[ps.cameraID] = ps
	n.mu.Unlock()

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		n.drop(ps)
		return "", fmt.Errorf("failed to create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		n.drop(ps)
		return "", fmt.Errorf("failed to set local description: %w", err)
	}

	err = n.channel.Send(ctx, opMediaOffer, offerSignal{
		CameraID:  string(ps.cameraID),
		SessionID: string(ps.sessionID),
		SDP:       offer.SDP,
	})
	if err != nil {
		n.drop(ps)
		return "", err
	}

	n.logger.Infow("media offer sent",
		"camera_id", ps.cameraID,
		"session_id", ps.sessionID,
	)

	select {
	case <-ps.answerCh:
	case <-ctx.Done():
		n.drop(ps)
		return "", apperrors.NewTimeoutError(fmt.Sprintf("media negotiation with camera %s cancelled", ps.cameraID))
	case <-time.After(n.config.AnswerTimeout):
		n.drop(ps)
		return "", apperrors.NewTimeoutError(fmt.Sprintf("camera %s did not answer the media offer", ps.cameraID))
	}

	return ps.handle, nil
}

// Release closes the peer connection behind handle and tells the
// camera the session is over. Unknown handles are a no-op.
func (n *Negotiator) Release(ctx context.Context, handle string) error {
	n.mu.Lock()
	ps, ok := n.sessions[handle]
	if ok {
		delete(n.sessions, handle)
		delete(n.byCamera, ps.cameraID)
	}
	n.mu.Unlock()

	if !ok {
		return nil
	}

	close(ps.done)

	if err := n.channel.Send(ctx, opMediaClose, closeSignal{SessionID: string(ps.sessionID)}); err != nil {
		n.logger.Debugw("media close notification not delivered",
			"session_id", ps.sessionID,
			"error", err,
		)
	}

	if err := ps.pc.Close(); err != nil {
		return fmt.Errorf("failed to close peer connection: %w", err)
	}

	n.logger.Infow("media session released",
		"camera_id", ps.cameraID,
		"session_id", ps.sessionID,
	)
	return nil
}

// ReleaseAll tears down every live peer connection.
func (n *Negotiator) ReleaseAll(ctx context.Context) {
	n.mu.Lock()
	all := make([]*peerSession, 0, len(n.sessions))
	for _, ps := range n.sessions {
		all = append(all, ps)
	}
	n.sessions = make(map[string]*peerSession)
	n.byCamera = make(map[domain.CameraID]*peerSession)
	n.mu.Unlock()

	for _, ps := range all {
		close(ps.done)
		if err := ps.pc.Close(); err != nil {
			n.logger.Warnw("failed to close peer connection",
				"session_id", ps.sessionID,
				"error", err,
			)
		}
	}
}

func (n *Negotiator) createPeerConnection() (*webrtc.PeerConnection, error) {
	config := webrtc.Configuration{
		ICEServers:   n.config.ICEServers,
		SDPSemantics: webrtc.SDPSemanticsUnifiedPlanWithFallback,
	}

	settingEngine := webrtc.SettingEngine{}
	if n.config.PortRange.Min > 0 && n.config.PortRange.Max > 0 {
		settingEngine.SetEphemeralUDPPortRange(n.config.PortRange.Min, n.config.PortRange.Max)
	}

	api := webrtc.NewAPI(webrtc.WithSettingEngine(settingEngine))
	return api.NewPeerConnection(config)
}

// handleRemoteTrack hands incoming tracks to the session layer and
// starts the keyframe request loop for video.
func (n *Negotiator) handleRemoteTrack(ps *peerSession, onTrack ports.TrackHandler) func(*webrtc.TrackRemote, *webrtc.RTPReceiver) {
	return func(track *webrtc.TrackRemote, receiver *webrtc.RTPReceiver) {
		n.logger.Infow("camera started streaming track",
			"camera_id", ps.cameraID,
			"session_id", ps.sessionID,
			"track_id", track.ID(),
			"codec", track.Codec().MimeType,
		)

		if track.Kind() == webrtc.RTPCodecTypeVideo {
			go n.sendKeyframeRequests(ps, track)
		}
		go n.drainRTCP(receiver)

		onTrack(ps.cameraID, track)
	}
}

func (n *Negotiator) handleLocalCandidate(ps *peerSession) func(*webrtc.ICECandidate) {
	return func(candidate *webrtc.ICECandidate) {
		if candidate == nil {
			return
		}

		err := n.channel.Send(context.Background(), opMediaICE, iceSignal{
			CameraID:  string(ps.cameraID),
			Candidate: candidate.ToJSON(),
		})
		if err != nil {
			n.logger.Debugw("local ICE candidate not delivered",
				"camera_id", ps.cameraID,
				"error", err,
			)
		}
	}
}

func (n *Negotiator) handleConnectionState(ps *peerSession) func(webrtc.PeerConnectionState) {
	return func(state webrtc.PeerConnectionState) {
		n.logger.Infow("peer connection state changed",
			"camera_id", ps.cameraID,
			"session_id", ps.sessionID,
			"connection_state", state,
		)
	}
}

// sendKeyframeRequests asks the camera for a fresh keyframe at a fixed
// interval so late joins and loss recover quickly.
func (n *Negotiator) sendKeyframeRequests(ps *peerSession, track *webrtc.TrackRemote) {
	ticker := time.NewTicker(n.config.KeyframeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ps.done:
			return
		case <-ticker.C:
			err := ps.pc.WriteRTCP([]rtcp.Packet{
				&rtcp.PictureLossIndication{MediaSSRC: uint32(track.SSRC())},
			})
			if err != nil {
				n.logger.Debugw("keyframe request failed",
					"session_id", ps.sessionID,
					"error", err,
				)
				return
			}
		}
	}
}

// drainRTCP keeps the receiver's RTCP feed flowing so interceptors see
// receiver reports.
func (n *Negotiator) drainRTCP(receiver *webrtc.RTPReceiver) {
	for {
		if _, _, err := receiver.ReadRTCP(); err != nil {
			return
		}
	}
}

func (n *Negotiator) onMediaAnswer(ev domain.ChannelEvent) {
	ps := n.lookup(ev.CameraID)
	if ps == nil {
		n.logger.Debugw("answer for unknown media session", "camera_id", ev.CameraID)
		return
	}

	var sig answerSignal
	if err := json.Unmarshal(ev.Payload, &sig); err != nil || sig.SDP == "" {
		n.logger.Warnw("discarding malformed media answer", "camera_id", ev.CameraID, "error", err)
		return
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if ps.answered {
		return
	}

	err := ps.pc.SetRemoteDescription(webrtc.SessionDescription{
		Type: webrtc.SDPTypeAnswer,
		SDP:  sig.SDP,
	})
	if err != nil {
		n.logger.Errorw("failed to apply media answer",
			"camera_id", ev.CameraID,
			"error", err,
		)
		return
	}

	for _, candidate := range ps.pendingICE {
		if err := ps.pc.AddICECandidate(candidate); err != nil {
			n.logger.Warnw("failed to add buffered ICE candidate",
				"camera_id", ev.CameraID,
				"error", err,
			)
		}
	}
	ps.pendingICE = nil
	ps.answered = true
	close(ps.answerCh)
}

// onMediaICE applies a remote candidate, buffering it when the answer
// has not landed yet.
func (n *Negotiator) onMediaICE(ev domain.ChannelEvent) {
	ps := n.lookup(ev.CameraID)
	if ps == nil {
		return
	}

	var sig iceSignal
	if err := json.Unmarshal(ev.Payload, &sig); err != nil || sig.Candidate.Candidate == "" {
		n.logger.Warnw("discarding malformed ICE candidate", "camera_id", ev.CameraID, "error", err)
		return
	}

	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.answered {
		ps.pendingICE = append(ps.pendingICE, sig.Candidate)
		return
	}

	if err := ps.pc.AddICECandidate(sig.Candidate); err != nil {
		n.logger.Warnw("failed to add ICE candidate",
			"camera_id", ev.CameraID,
			"error", err,
		)
	}
}

func (n *Negotiator) lookup(cameraID domain.CameraID) *peerSession {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.byCamera[cameraID]
}

// drop removes a session that never completed negotiation.
func (n *Negotiator) drop(ps *peerSession) {
	n.mu.Lock()
	delete(n.sessions, ps.handle)
	delete(n.byCamera, ps.cameraID)
	n.mu.Unlock()

	close(ps.done)
	ps.pc.Close()
}