package http

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"perch/internal/core/services"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthRouter(t *testing.T) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	authService := services.NewAuthService("test-secret", 15*time.Minute, 7*24*time.Hour)
	handler := NewAuthHandler(authService, "viewer_fixed", "Living Room Viewer", 15*time.Minute)

	router := gin.New()
	handler.SetupRoutes(router)
	return router, authService
}

type tokenBody struct {
	ViewerID     string `json:"viewer_id"`
	ViewerName   string `json:"viewer_name"`
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

func TestAuthHandler_IssueToken(t *testing.T) {
	t.Run("empty body uses configured identity", func(t *testing.T) {
		router, authService := newAuthRouter(t)

		w := performRequest(router, http.MethodPost, "/api/v1/auth/token", "")

		require.Equal(t, http.StatusOK, w.Code)
		var body tokenBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "viewer_fixed", body.ViewerID)
		assert.Equal(t, "Living Room Viewer", body.ViewerName)
		assert.NotEmpty(t, body.AccessToken)
		assert.NotEmpty(t, body.RefreshToken)
		assert.Equal(t, int(15*time.Minute/time.Second), body.ExpiresIn)

		claims, err := authService.ValidateToken(body.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "viewer_fixed", string(claims.ViewerID))
	})

	t.Run("viewer name override", func(t *testing.T) {
		router, _ := newAuthRouter(t)

		w := performRequest(router, http.MethodPost, "/api/v1/auth/token", `{"viewerName":"Kitchen Tablet"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var body tokenBody
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, "Kitchen Tablet", body.ViewerName)
	})
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	router, _ := newAuthRouter(t)

	issued := performRequest(router, http.MethodPost, "/api/v1/auth/token", "")
	require.Equal(t, http.StatusOK, issued.Code)
	var body tokenBody
	require.NoError(t, json.Unmarshal(issued.Body.Bytes(), &body))

	t.Run("valid refresh token mints a new access token", func(t *testing.T) {
		w := performRequest(router, http.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"`+body.RefreshToken+`"}`)

		require.Equal(t, http.StatusOK, w.Code)
		var refreshed struct {
			AccessToken string `json:"access_token"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &refreshed))
		assert.NotEmpty(t, refreshed.AccessToken)
	})

	t.Run("garbage refresh token is rejected", func(t *testing.T) {
		w := performRequest(router, http.MethodPost, "/api/v1/auth/refresh", `{"refreshToken":"not-a-token"}`)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
