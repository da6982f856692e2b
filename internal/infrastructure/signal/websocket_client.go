package signal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	apperrors "perch/pkg/errors"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// WebSocketClient keeps the one persistent control connection to the
// coordination endpoint. It implements ports.ControlChannel: lifecycle
// (Connect/Disconnect), op sends and fan-out of decoded server pushes
// to registered handlers. Reconnection policy lives in the session
// manager, not here; the client reports a drop exactly once and stops.
type WebSocketClient struct {
	url     string
	tokens  ports.TokenSource
	metrics ports.MetricsRecorder
	logger  *zap.SugaredLogger

	dialTimeout  time.Duration
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	done      chan struct{}

	// sendMu serializes all writes to the socket, including pings.
	sendMu sync.Mutex

	handlersMu sync.RWMutex
	handlers   map[domain.EventKind]map[int64]ports.EventHandler
	nextID     int64
}

type channelEnvelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type cameraPayload struct {
	CameraID      string `json:"cameraId"`
	CameraName    string `json:"cameraName"`
	Status        string `json:"status"`
	MediaEndpoint string `json:"mediaEndpoint,omitempty"`
}

type cameraListPayload struct {
	Cameras []cameraPayload `json:"cameras"`
}

type mediaSessionPayload struct {
	SessionID string `json:"sessionId"`
	CameraID  string `json:"cameraId,omitempty"`
}

type mediaSignalPayload struct {
	CameraID string `json:"cameraId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

func NewWebSocketClient(url string, tokens ports.TokenSource, metrics ports.MetricsRecorder, logger *zap.SugaredLogger) *WebSocketClient {
	return &WebSocketClient{
		url:          url,
		tokens:       tokens,
		metrics:      metrics,
		logger:       logger,
		dialTimeout:  10 * time.Second,
		pingInterval: 30 * time.Second,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		handlers:     make(map[domain.EventKind]map[int64]ports.EventHandler),
	}
}

// SetPingInterval sets the keepalive ping interval.
func (c *WebSocketClient) SetPingInterval(interval time.Duration) {
	c.pingInterval = interval
}

// SetReadTimeout sets the read deadline refreshed on every inbound
// message and pong.
func (c *WebSocketClient) SetReadTimeout(timeout time.Duration) {
	c.readTimeout = timeout
}

// SetWriteTimeout sets the per-write deadline.
func (c *WebSocketClient) SetWriteTimeout(timeout time.Duration) {
	c.writeTimeout = timeout
}

// SetDialTimeout sets the handshake timeout for Connect.
func (c *WebSocketClient) SetDialTimeout(timeout time.Duration) {
	c.dialTimeout = timeout
}

// Connect dials the channel endpoint with a bearer token. Calling it
// while the channel is already open is a no-op.
func (c *WebSocketClient) Connect(ctx context.Context) error {
	c.mu.Lock()

	if c.connected {
		c.mu.Unlock()
		return nil
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.mu.Unlock()
		return err
	}

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token)

	dialer := websocket.Dialer{
		HandshakeTimeout: c.dialTimeout,
		ReadBufferSize:   1024,
		WriteBufferSize:  1024,
	}

	conn, resp, err := dialer.DialContext(ctx, c.url, header)
	if err != nil {
		c.mu.Unlock()
		if resp != nil && resp.StatusCode == http.StatusUnauthorized {
			c.tokens.Invalidate()
			return apperrors.NewAuthRequiredError("control channel rejected the access token")
		}
		return classifyDialError(err)
	}

	conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		return nil
	})

	done := make(chan struct{})
	c.conn = conn
	c.connected = true
	c.done = done

	go c.readLoop(conn)
	go c.pingLoop(conn, done)
	c.mu.Unlock()

	c.logger.Infow("control channel connected", "url", c.url)
	c.emit(domain.ChannelEvent{Kind: domain.EventOpened})
	return nil
}

// Disconnect closes the channel with the given reason and emits the
// closed event synchronously. Disconnecting an already-closed channel
// is a no-op.
func (c *WebSocketClient) Disconnect(reason domain.CloseReason) {
	c.mu.Lock()
	if !c.connected {
		c.mu.Unlock()
		return
	}
	conn := c.conn
	c.connected = false
	c.conn = nil
	close(c.done)
	c.mu.Unlock()

	c.sendMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(reason)))
	c.sendMu.Unlock()
	conn.Close()

	c.logger.Infow("control channel disconnected", "reason", reason)
	c.emit(domain.ChannelEvent{Kind: domain.EventClosed, Reason: reason})
}

// Send writes one op envelope to the channel.
func (c *WebSocketClient) Send(ctx context.Context, op string, payload interface{}) error {
	if err := ctx.Err(); err != nil {
		return apperrors.NewTimeoutError(fmt.Sprintf("send %s cancelled", op))
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()

	if !connected {
		return apperrors.NewInvalidStateError("control channel is not connected")
	}

	env := channelEnvelope{Type: op}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return apperrors.NewValidationError(fmt.Sprintf("failed to encode %s payload: %v", op, err))
		}
		env.Payload = data
	}

	c.sendMu.Lock()
	conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	err := conn.WriteJSON(env)
	c.sendMu.Unlock()

	if err != nil {
		return apperrors.NewNetworkUnavailableError(fmt.Sprintf("control channel send failed: %v", err))
	}

	c.metrics.RecordChannelMessage("out", op)
	return nil
}

// On registers a handler for one event kind and returns its
// registration id for Off.
func (c *WebSocketClient) On(kind domain.EventKind, handler ports.EventHandler) int64 {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()

	c.nextID++
	if c.handlers[kind] == nil {
		c.handlers[kind] = make(map[int64]ports.EventHandler)
	}
	c.handlers[kind][c.nextID] = handler
	return c.nextID
}

func (c *WebSocketClient) Off(kind domain.EventKind, id int64) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	delete(c.handlers[kind], id)
}

func (c *WebSocketClient) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *WebSocketClient) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.finish(conn, err)
			return
		}
		conn.SetReadDeadline(time.Now().Add(c.readTimeout))
		c.dispatch(data)
	}
}

// finish reports a dropped connection exactly once. If Disconnect
// already took the connection over, the late read error is ignored.
func (c *WebSocketClient) finish(conn *websocket.Conn, err error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.connected = false
	c.conn = nil
	close(c.done)
	c.mu.Unlock()

	conn.Close()

	if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
		c.logger.Warnw("control channel dropped", "error", err)
	} else {
		c.logger.Infow("control channel closed by server", "error", err)
	}

	c.emit(domain.ChannelEvent{Kind: domain.EventClosed, Reason: domain.CloseDrop})
}

func (c *WebSocketClient) pingLoop(conn *websocket.Conn, done chan struct{}) {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.sendMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.sendMu.Unlock()
			if err != nil {
				// The read loop notices the closed socket and reports
				// the drop.
				conn.Close()
				return
			}
		}
	}
}

func (c *WebSocketClient) dispatch(data []byte) {
	var env channelEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		c.logger.Warnw("discarding malformed channel message", "error", err)
		return
	}
	if env.Type == "" {
		c.logger.Warnw("discarding channel message without type")
		return
	}

	c.metrics.RecordChannelMessage("in", env.Type)

	event, err := decodeEvent(env)
	if err != nil {
		c.logger.Warnw("discarding channel message", "type", env.Type, "error", err)
		return
	}
	if event == nil {
		c.logger.Debugw("ignoring unknown channel message", "type", env.Type)
		return
	}

	c.emit(*event)
}

// decodeEvent maps one wire envelope to a channel event. Unknown types
// decode to nil so newer server messages pass by harmlessly.
func decodeEvent(env channelEnvelope) (*domain.ChannelEvent, error) {
	switch domain.EventKind(env.Type) {
	case domain.EventCameraDiscovered:
		var p cameraPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid camera payload: %w", err)
		}
		if p.CameraID == "" {
			return nil, fmt.Errorf("camera payload missing cameraId")
		}
		return &domain.ChannelEvent{
			Kind:   domain.EventCameraDiscovered,
			Camera: cameraRefFromWire(p),
		}, nil

	case domain.EventCameraLost:
		var p mediaSignalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid camera_lost payload: %w", err)
		}
		if p.CameraID == "" {
			return nil, fmt.Errorf("camera_lost payload missing cameraId")
		}
		return &domain.ChannelEvent{
			Kind:     domain.EventCameraLost,
			CameraID: domain.CameraID(p.CameraID),
		}, nil

	case domain.EventCameraList:
		var p cameraListPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid camera_list payload: %w", err)
		}
		cameras := make([]*domain.CameraRef, 0, len(p.Cameras))
		for _, wc := range p.Cameras {
			if wc.CameraID == "" {
				continue
			}
			cameras = append(cameras, cameraRefFromWire(wc))
		}
		return &domain.ChannelEvent{
			Kind:    domain.EventCameraList,
			Cameras: cameras,
		}, nil

	case domain.EventMediaStarted, domain.EventMediaStopped:
		var p mediaSessionPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid media session payload: %w", err)
		}
		if p.SessionID == "" {
			return nil, fmt.Errorf("media session payload missing sessionId")
		}
		return &domain.ChannelEvent{
			Kind:      domain.EventKind(env.Type),
			SessionID: domain.MediaSessionID(p.SessionID),
			CameraID:  domain.CameraID(p.CameraID),
		}, nil

	case domain.EventMediaAnswer, domain.EventMediaICE:
		var p mediaSignalPayload
		if err := json.Unmarshal(env.Payload, &p); err != nil {
			return nil, fmt.Errorf("invalid media signal payload: %w", err)
		}
		if p.CameraID == "" {
			return nil, fmt.Errorf("media signal payload missing cameraId")
		}
		return &domain.ChannelEvent{
			Kind:     domain.EventKind(env.Type),
			CameraID: domain.CameraID(p.CameraID),
			Payload:  env.Payload,
		}, nil

	case domain.EventChannelError:
		return decodeErrorEvent(env)
	}

	if env.Type == "error" {
		return decodeErrorEvent(env)
	}

	return nil, nil
}

func decodeErrorEvent(env channelEnvelope) (*domain.ChannelEvent, error) {
	var p errorPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("invalid error payload: %w", err)
	}
	if p.Message == "" {
		p.Message = "unspecified server error"
	}
	return &domain.ChannelEvent{
		Kind: domain.EventChannelError,
		Err:  fmt.Errorf("control channel error: %s", p.Message),
	}, nil
}

func cameraRefFromWire(p cameraPayload) *domain.CameraRef {
	return &domain.CameraRef{
		ID:            domain.CameraID(p.CameraID),
		DisplayName:   p.CameraName,
		Status:        domain.CameraStatus(p.Status),
		MediaEndpoint: p.MediaEndpoint,
	}
}

func (c *WebSocketClient) emit(event domain.ChannelEvent) {
	c.handlersMu.RLock()
	registered := c.handlers[event.Kind]
	handlers := make([]ports.EventHandler, 0, len(registered))
	for _, h := range registered {
		handlers = append(handlers, h)
	}
	c.handlersMu.RUnlock()

	for _, h := range handlers {
		h(event)
	}
}

func classifyDialError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("control channel handshake timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError("control channel handshake timed out")
	}
	return apperrors.NewNetworkUnavailableError(fmt.Sprintf("control channel unreachable: %v", err))
}
