package http

import (
	"errors"
	"net/http"
	"sort"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	apperrors "perch/pkg/errors"

	"github.com/gin-gonic/gin"
)

type SessionHandler struct {
	sessions ports.SessionService
	store    ports.PairingRepository
}

func NewSessionHandler(sessions ports.SessionService, store ports.PairingRepository) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		store:    store,
	}
}

type PinPairRequest struct {
	Pin string `json:"pin" binding:"required,max=16"`
}

type QRPairRequest struct {
	Payload string `json:"payload" binding:"required,max=4096"`
}

type ConnectRequest struct {
	CameraID string `json:"cameraId" binding:"required,max=128"`
}

type WatchRequest struct {
	CameraID string `json:"cameraId" binding:"required,max=128"`
}

type CameraResponse struct {
	CameraID      string `json:"cameraId"`
	Name          string `json:"name"`
	Status        string `json:"status"`
	MediaEndpoint string `json:"mediaEndpoint,omitempty"`
}

type ErrorDetail struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}

type SessionStateResponse struct {
	Status           string           `json:"status"`
	IsWatching       bool             `json:"isWatching"`
	ConnectedCamera  *CameraResponse  `json:"connectedCamera,omitempty"`
	AvailableCameras []CameraResponse `json:"availableCameras"`
	ReconnectAttempt int              `json:"reconnectAttempt"`
	LastError        *ErrorDetail     `json:"lastError,omitempty"`
}

type FavoriteResponse struct {
	CameraID   string    `json:"cameraId"`
	CameraName string    `json:"cameraName"`
	PairingID  string    `json:"pairingId"`
	Method     string    `json:"method"`
	SavedAt    time.Time `json:"savedAt"`
}

func toCameraResponse(ref *domain.CameraRef) CameraResponse {
	return CameraResponse{
		CameraID:      string(ref.ID),
		Name:          ref.DisplayName,
		Status:        string(ref.Status),
		MediaEndpoint: ref.MediaEndpoint,
	}
}

func toStateResponse(state *domain.SessionState) SessionStateResponse {
	resp := SessionStateResponse{
		Status:           string(state.ConnectionStatus),
		IsWatching:       state.IsWatching,
		AvailableCameras: make([]CameraResponse, 0, len(state.AvailableCameras)),
		ReconnectAttempt: state.ReconnectAttempt,
	}

	if state.ConnectedCamera != nil {
		cam := toCameraResponse(state.ConnectedCamera)
		resp.ConnectedCamera = &cam
	}
	for _, ref := range state.AvailableCameras {
		resp.AvailableCameras = append(resp.AvailableCameras, toCameraResponse(ref))
	}
	sort.Slice(resp.AvailableCameras, func(i, j int) bool {
		return resp.AvailableCameras[i].CameraID < resp.AvailableCameras[j].CameraID
	})

	if state.LastError != nil {
		resp.LastError = &ErrorDetail{
			Code:    state.LastError.Code,
			Message: state.LastError.Message,
			At:      state.LastError.At,
		}
	}
	return resp
}

func (h *SessionHandler) PairWithPin(c *gin.Context) {
	var req PinPairRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("invalid request body"))
		return
	}

	state, err := h.sessions.ConnectByPin(c.Request.Context(), req.Pin)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": toStateResponse(state),
	})
}

func (h *SessionHandler) PairWithQR(c *gin.Context) {
	var req QRPairRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("invalid request body"))
		return
	}

	state, err := h.sessions.ScanAndConnect(c.Request.Context(), []byte(req.Payload))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": toStateResponse(state),
	})
}

func (h *SessionHandler) Connect(c *gin.Context) {
	var req ConnectRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("invalid request body"))
		return
	}

	state, err := h.sessions.ConnectByCameraID(c.Request.Context(), domain.CameraID(req.CameraID))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": toStateResponse(state),
	})
}

func (h *SessionHandler) Watch(c *gin.Context) {
	var req WatchRequest
	if err := c.BindJSON(&req); err != nil {
		c.Error(apperrors.NewValidationError("invalid request body"))
		return
	}

	state, err := h.sessions.StartWatching(c.Request.Context(), domain.CameraID(req.CameraID))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": toStateResponse(state),
	})
}

func (h *SessionHandler) StopWatching(c *gin.Context) {
	state, err := h.sessions.StopWatching(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": toStateResponse(state),
	})
}

func (h *SessionHandler) Disconnect(c *gin.Context) {
	state, err := h.sessions.Disconnect(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": toStateResponse(state),
	})
}

func (h *SessionHandler) Reconnect(c *gin.Context) {
	state, err := h.sessions.Reconnect(c.Request.Context())
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"session": toStateResponse(state),
	})
}

func (h *SessionHandler) GetState(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"session": toStateResponse(h.sessions.State()),
	})
}

func (h *SessionHandler) ListCameras(c *gin.Context) {
	state := toStateResponse(h.sessions.State())

	c.JSON(http.StatusOK, gin.H{
		"cameras": state.AvailableCameras,
	})
}

func (h *SessionHandler) ListPairings(c *gin.Context) {
	favorites, err := h.store.ListFavorites(c.Request.Context())
	if err != nil {
		c.Error(apperrors.NewInternalError("failed to list pairings"))
		return
	}

	resp := make([]FavoriteResponse, 0, len(favorites))
	for _, f := range favorites {
		resp = append(resp, FavoriteResponse{
			CameraID:   string(f.CameraID),
			CameraName: f.CameraName,
			PairingID:  string(f.PairingID),
			Method:     string(f.Method),
			SavedAt:    f.SavedAt,
		})
	}
	sort.Slice(resp, func(i, j int) bool {
		return resp[i].SavedAt.After(resp[j].SavedAt)
	})

	c.JSON(http.StatusOK, gin.H{
		"pairings": resp,
	})
}

func (h *SessionHandler) DeletePairing(c *gin.Context) {
	cameraID := domain.CameraID(c.Param("cameraId"))
	if cameraID == "" {
		c.Error(apperrors.NewValidationError("cameraId is required"))
		return
	}

	if err := h.store.DeleteFavorite(c.Request.Context(), cameraID); err != nil {
		if errors.Is(err, domain.ErrPairingNotFound) {
			c.Error(apperrors.NewNotFoundError("pairing for camera " + string(cameraID)))
			return
		}
		c.Error(apperrors.NewInternalError("failed to delete pairing"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"status": "deleted",
	})
}
