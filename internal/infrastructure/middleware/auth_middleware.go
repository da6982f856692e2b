package middleware

import (
	"context"
	"strings"

	"perch/internal/core/services"
	apperrors "perch/pkg/errors"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware validates the bearer token and stashes the viewer
// identity in both the gin and the request context.
func AuthMiddleware(authService services.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, err := viewerClaims(authService, c.GetHeader("Authorization"))
		if err != nil {
			c.Error(err)
			c.Abort()
			return
		}

		c.Set("viewer_id", claims.ViewerID)
		c.Set("viewer_name", claims.ViewerName)

		// The context logger picks the viewer up from the request context.
		ctx := context.WithValue(c.Request.Context(), "viewer_id", claims.ViewerID)
		c.Request = c.Request.WithContext(ctx)

		c.Next()
	}
}

func viewerClaims(authService services.AuthService, header string) (*services.Claims, error) {
	if header == "" {
		return nil, apperrors.NewAuthRequiredError("authorization header required")
	}

	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return nil, apperrors.NewAuthRequiredError("authorization header must be a bearer token")
	}

	claims, err := authService.ValidateToken(token)
	if err != nil {
		// Token parse detail stays in the daemon, not the response.
		return nil, apperrors.NewAuthRequiredError("invalid or expired token")
	}
	return claims, nil
}
