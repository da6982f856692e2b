package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"perch/internal/core/domain"
	"perch/internal/infrastructure/middleware"
	"perch/internal/infrastructure/repositories/memory"
	apperrors "perch/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeSessionService records calls and returns a canned state or error.
type fakeSessionService struct {
	mu         sync.Mutex
	state      *domain.SessionState
	err        error
	lastPin    string
	lastQR     []byte
	lastCamera domain.CameraID
	calls      []string
}

func newFakeSessionService() *fakeSessionService {
	return &fakeSessionService{state: domain.NewSessionState()}
}

func (f *fakeSessionService) record(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, op)
}

func (f *fakeSessionService) result() (*domain.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.state.Clone(), f.err
	}
	return f.state.Clone(), nil
}

func (f *fakeSessionService) ScanAndConnect(ctx context.Context, qrData []byte) (*domain.SessionState, error) {
	f.record("scan")
	f.mu.Lock()
	f.lastQR = qrData
	f.mu.Unlock()
	return f.result()
}

func (f *fakeSessionService) ConnectByPin(ctx context.Context, pin string) (*domain.SessionState, error) {
	f.record("pin")
	f.mu.Lock()
	f.lastPin = pin
	f.mu.Unlock()
	return f.result()
}

func (f *fakeSessionService) ConnectByCameraID(ctx context.Context, id domain.CameraID) (*domain.SessionState, error) {
	f.record("connect")
	f.mu.Lock()
	f.lastCamera = id
	f.mu.Unlock()
	return f.result()
}

func (f *fakeSessionService) StartWatching(ctx context.Context, id domain.CameraID) (*domain.SessionState, error) {
	f.record("watch")
	f.mu.Lock()
	f.lastCamera = id
	f.mu.Unlock()
	return f.result()
}

func (f *fakeSessionService) StopWatching(ctx context.Context) (*domain.SessionState, error) {
	f.record("watch_stop")
	return f.result()
}

func (f *fakeSessionService) Disconnect(ctx context.Context) (*domain.SessionState, error) {
	f.record("disconnect")
	return f.result()
}

func (f *fakeSessionService) Reconnect(ctx context.Context) (*domain.SessionState, error) {
	f.record("reconnect")
	return f.result()
}

func (f *fakeSessionService) State() *domain.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.Clone()
}

func (f *fakeSessionService) Close() error { return nil }

func connectedState(id domain.CameraID) *domain.SessionState {
	state := domain.NewSessionState()
	state.ConnectionStatus = domain.StatusConnected
	state.ConnectedCamera = &domain.CameraRef{
		ID:          id,
		DisplayName: "Front Door",
		Status:      domain.CameraOnline,
	}
	state.AvailableCameras[id] = state.ConnectedCamera
	return state
}

func newTestRouter(h *SessionHandler) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(middleware.ErrorHandlerMiddleware(zap.NewNop().Sugar()))

	api := router.Group("/api/v1")
	{
		api.POST("/session/pair/pin", h.PairWithPin)
		api.POST("/session/pair/qr", h.PairWithQR)
		api.POST("/session/connect", h.Connect)
		api.POST("/session/watch", h.Watch)
		api.POST("/session/watch/stop", h.StopWatching)
		api.POST("/session/disconnect", h.Disconnect)
		api.POST("/session/reconnect", h.Reconnect)
		api.GET("/session/state", h.GetState)
		api.GET("/cameras", h.ListCameras)
		api.GET("/pairings", h.ListPairings)
		api.DELETE("/pairings/:cameraId", h.DeletePairing)
	}
	return router
}

func performRequest(router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

type sessionBody struct {
	Session SessionStateResponse `json:"session"`
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func TestSessionHandler_PairWithPin(t *testing.T) {
	t.Run("successful pairing returns session state", func(t *testing.T) {
		svc := newFakeSessionService()
		svc.state = connectedState("cam_1")
		handler := NewSessionHandler(svc, memory.NewMemoryPairingRepository())
		router := newTestRouter(handler)

		w := performRequest(router, http.MethodPost, "/api/v1/session/pair/pin", `{"pin":"123456"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var body sessionBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "connected", body.Session.Status)
		require.NotNil(t, body.Session.ConnectedCamera)
		assert.Equal(t, "cam_1", body.Session.ConnectedCamera.CameraID)
		assert.Equal(t, "123456", svc.lastPin)
	})

	t.Run("missing pin is a validation error", func(t *testing.T) {
		svc := newFakeSessionService()
		handler := NewSessionHandler(svc, memory.NewMemoryPairingRepository())
		router := newTestRouter(handler)

		w := performRequest(router, http.MethodPost, "/api/v1/session/pair/pin", `{}`)

		require.Equal(t, http.StatusBadRequest, w.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, string(apperrors.ErrCodeValidation), body.Error)
		assert.Empty(t, svc.calls)
	})

	t.Run("service errors map to their HTTP status", func(t *testing.T) {
		svc := newFakeSessionService()
		svc.err = apperrors.NewAuthRequiredError("camera declined the pairing")
		handler := NewSessionHandler(svc, memory.NewMemoryPairingRepository())
		router := newTestRouter(handler)

		w := performRequest(router, http.MethodPost, "/api/v1/session/pair/pin", `{"pin":"123456"}`)

		require.Equal(t, http.StatusUnauthorized, w.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, string(apperrors.ErrCodeAuthRequired), body.Error)
		assert.Equal(t, "camera declined the pairing", body.Message)
	})

	t.Run("overlapping operation maps to conflict", func(t *testing.T) {
		svc := newFakeSessionService()
		svc.err = apperrors.NewBusyError("pin pairing")
		handler := NewSessionHandler(svc, memory.NewMemoryPairingRepository())
		router := newTestRouter(handler)

		w := performRequest(router, http.MethodPost, "/api/v1/session/pair/pin", `{"pin":"123456"}`)

		assert.Equal(t, http.StatusConflict, w.Code)
	})
}

func TestSessionHandler_PairWithQR(t *testing.T) {
	svc := newFakeSessionService()
	svc.state = connectedState("cam_qr")
	handler := NewSessionHandler(svc, memory.NewMemoryPairingRepository())
	router := newTestRouter(handler)

	payload := `{\"type\":\"pairing\",\"cameraId\":\"cam_qr\"}`
	w := performRequest(router, http.MethodPost, "/api/v1/session/pair/qr", `{"payload":"`+payload+`"}`)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, string(svc.lastQR), "cam_qr")
}

func TestSessionHandler_WatchFlow(t *testing.T) {
	t.Run("watch forwards the camera id", func(t *testing.T) {
		svc := newFakeSessionService()
		svc.state = connectedState("cam_1")
		svc.state.IsWatching = true
		handler := NewSessionHandler(svc, memory.NewMemoryPairingRepository())
		router := newTestRouter(handler)

		w := performRequest(router, http.MethodPost, "/api/v1/session/watch", `{"cameraId":"cam_1"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var body sessionBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.True(t, body.Session.IsWatching)
		assert.Equal(t, domain.CameraID("cam_1"), svc.lastCamera)
	})

	t.Run("watch stop needs no body", func(t *testing.T) {
		svc := newFakeSessionService()
		handler := NewSessionHandler(svc, memory.NewMemoryPairingRepository())
		router := newTestRouter(handler)

		w := performRequest(router, http.MethodPost, "/api/v1/session/watch/stop", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"watch_stop"}, svc.calls)
	})
}

func TestSessionHandler_StateAndCameras(t *testing.T) {
	svc := newFakeSessionService()
	svc.state = connectedState("cam_b")
	svc.state.AvailableCameras["cam_a"] = &domain.CameraRef{
		ID:          "cam_a",
		DisplayName: "Garage",
		Status:      domain.CameraOnline,
	}
	handler := NewSessionHandler(svc, memory.NewMemoryPairingRepository())
	router := newTestRouter(handler)

	t.Run("state snapshot", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/api/v1/session/state", "")

		require.Equal(t, http.StatusOK, w.Code)
		var body sessionBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "connected", body.Session.Status)
		assert.Len(t, body.Session.AvailableCameras, 2)
	})

	t.Run("cameras are sorted by id", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/api/v1/cameras", "")

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Cameras []CameraResponse `json:"cameras"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Cameras, 2)
		assert.Equal(t, "cam_a", body.Cameras[0].CameraID)
		assert.Equal(t, "cam_b", body.Cameras[1].CameraID)
	})
}

func TestSessionHandler_Pairings(t *testing.T) {
	store := memory.NewMemoryPairingRepository()
	ctx := context.Background()

	older := &domain.FavoritePairing{
		CameraID:   "cam_old",
		CameraName: "Garage",
		PairingID:  "pair_old",
		Method:     domain.MethodPin,
		SavedAt:    time.Now().Add(-time.Hour),
	}
	newer := &domain.FavoritePairing{
		CameraID:   "cam_new",
		CameraName: "Front Door",
		PairingID:  "pair_new",
		Method:     domain.MethodQR,
		SavedAt:    time.Now(),
	}
	require.NoError(t, store.SaveFavorite(ctx, older))
	require.NoError(t, store.SaveFavorite(ctx, newer))

	handler := NewSessionHandler(newFakeSessionService(), store)
	router := newTestRouter(handler)

	t.Run("list is newest first", func(t *testing.T) {
		w := performRequest(router, http.MethodGet, "/api/v1/pairings", "")

		require.Equal(t, http.StatusOK, w.Code)
		var body struct {
			Pairings []FavoriteResponse `json:"pairings"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		require.Len(t, body.Pairings, 2)
		assert.Equal(t, "cam_new", body.Pairings[0].CameraID)
		assert.Equal(t, "cam_old", body.Pairings[1].CameraID)
	})

	t.Run("delete removes the favorite", func(t *testing.T) {
		w := performRequest(router, http.MethodDelete, "/api/v1/pairings/cam_old", "")
		require.Equal(t, http.StatusOK, w.Code)

		_, err := store.GetFavorite(ctx, "cam_old")
		assert.ErrorIs(t, err, domain.ErrPairingNotFound)
	})

	t.Run("delete unknown camera is not found", func(t *testing.T) {
		w := performRequest(router, http.MethodDelete, "/api/v1/pairings/cam_missing", "")

		require.Equal(t, http.StatusNotFound, w.Code)
		var body errorBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, string(apperrors.ErrCodeNotFound), body.Error)
	})
}
