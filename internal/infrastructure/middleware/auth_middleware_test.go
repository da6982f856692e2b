package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"perch/internal/core/services"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func newAuthTestRouter(t *testing.T) (*gin.Engine, services.AuthService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	auth := services.NewAuthService("test-secret", time.Minute, time.Hour)

	router := gin.New()
	router.Use(ErrorHandlerMiddleware(zap.NewNop().Sugar()))
	router.Use(AuthMiddleware(auth))
	router.GET("/whoami", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"viewer_id": c.MustGet("viewer_id"),
			"ctx_id":    c.Request.Context().Value("viewer_id"),
		})
	})
	return router, auth
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	router, auth := newAuthTestRouter(t)

	token, err := auth.GenerateToken("viewer_1", "Living Room")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	w := httptest.NewRecorder()
	req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	router.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d: %s", w.Code, w.Body.String())
	}
	var body map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body["viewer_id"] != "viewer_1" {
		t.Errorf("expected viewer_1 in gin context, got %q", body["viewer_id"])
	}
	if body["ctx_id"] != "viewer_1" {
		t.Errorf("expected viewer_1 in request context, got %q", body["ctx_id"])
	}
}

func TestAuthMiddleware_Rejections(t *testing.T) {
	router, auth := newAuthTestRouter(t)

	refresh, err := auth.GenerateRefreshToken("viewer_1")
	if err != nil {
		t.Fatalf("GenerateRefreshToken failed: %v", err)
	}

	cases := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"not a bearer token", "Basic abc123"},
		{"empty bearer token", "Bearer "},
		{"garbage token", "Bearer not-a-token"},
		{"refresh token in place of access token", "Bearer " + refresh},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req, _ := http.NewRequest(http.MethodGet, "/whoami", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			router.ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Fatalf("expected status 401, got %d", w.Code)
			}
			var body struct {
				Error string `json:"error"`
			}
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("failed to decode body: %v", err)
			}
			if body.Error != "AUTH_REQUIRED" {
				t.Errorf("expected AUTH_REQUIRED error code, got %q", body.Error)
			}
		})
	}
}
