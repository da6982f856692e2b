package http

import (
	"io"
	"net/http"
	"strings"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/services"
	"perch/pkg/errors"
	"perch/pkg/utils"
	"perch/pkg/validation"

	"github.com/gin-gonic/gin"
)

type AuthHandler struct {
	authService services.AuthService
	viewerID    domain.ViewerID
	viewerName  string
	accessTTL   time.Duration
}

func NewAuthHandler(
	authService services.AuthService,
	viewerID domain.ViewerID,
	viewerName string,
	accessTTL time.Duration,
) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		viewerID:    viewerID,
		viewerName:  viewerName,
		accessTTL:   accessTTL,
	}
}

func (h *AuthHandler) SetupRoutes(router *gin.Engine) {
	api := router.Group("/api/v1/auth")
	{
		api.POST("/token", h.IssueToken)
		api.POST("/refresh", h.RefreshToken)
	}
}

type TokenRequest struct {
	ViewerName string `json:"viewerName" binding:"omitempty,max=64"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required,max=2048"`
}

// IssueToken mints an access/refresh token pair for the daemon's viewer
// identity. The request body is optional and may override the display
// name from the configuration.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req TokenRequest
	if err := c.ShouldBindJSON(&req); err != nil && err != io.EOF {
		c.Error(errors.NewValidationError("invalid request body"))
		return
	}

	viewerName := h.viewerName
	if name := strings.TrimSpace(req.ViewerName); name != "" {
		if err := validation.ValidateViewerName(name); err != nil {
			c.Error(errors.NewValidationError(err.Error()))
			return
		}
		viewerName = name
	}

	viewerID := h.viewerID
	if viewerID == "" {
		viewerID = domain.ViewerID(utils.GenerateViewerID())
	}

	accessToken, err := h.authService.GenerateToken(viewerID, viewerName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	refreshToken, err := h.authService.GenerateRefreshToken(viewerID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate refresh token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"viewer_id":     viewerID,
		"viewer_name":   viewerName,
		"access_token":  accessToken,
		"refresh_token": refreshToken,
		"expires_in":    int(h.accessTTL / time.Second),
	})
}

func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.BindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	claims, err := h.authService.ValidateRefreshToken(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid refresh token"})
		return
	}

	accessToken, err := h.authService.GenerateToken(claims.ViewerID, claims.ViewerName)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": accessToken,
		"expires_in":   int(h.accessTTL / time.Second),
	})
}
