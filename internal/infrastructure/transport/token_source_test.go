package transport

import (
	"context"
	"fmt"
	"testing"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/services"

	"github.com/stretchr/testify/assert"
)

// countingAuthService counts mints so caching is observable even when
// consecutive tokens would be byte-identical.
type countingAuthService struct {
	mints int
}

func (c *countingAuthService) GenerateToken(viewerID domain.ViewerID, viewerName string) (string, error) {
	c.mints++
	return fmt.Sprintf("token_%d", c.mints), nil
}

func (c *countingAuthService) GenerateRefreshToken(viewerID domain.ViewerID) (string, error) {
	return "refresh", nil
}

func (c *countingAuthService) ValidateToken(tokenString string) (*services.Claims, error) {
	return nil, services.ErrInvalidToken
}

func (c *countingAuthService) ValidateRefreshToken(tokenString string) (*services.Claims, error) {
	return nil, services.ErrInvalidToken
}

func TestServiceTokenSource(t *testing.T) {
	ctx := context.Background()

	t.Run("token is cached until invalidated", func(t *testing.T) {
		auth := &countingAuthService{}
		source := NewServiceTokenSource(auth, "viewer_test", "Test Viewer", time.Hour)

		first, err := source.Token(ctx)
		assert.NoError(t, err)
		second, err := source.Token(ctx)
		assert.NoError(t, err)

		assert.Equal(t, first, second)
		assert.Equal(t, 1, auth.mints)

		source.Invalidate()
		third, err := source.Token(ctx)
		assert.NoError(t, err)

		assert.NotEqual(t, first, third)
		assert.Equal(t, 2, auth.mints)
	})

	t.Run("short ttl mints per request", func(t *testing.T) {
		auth := &countingAuthService{}
		source := NewServiceTokenSource(auth, "viewer_test", "Test Viewer", time.Millisecond)

		_, err := source.Token(ctx)
		assert.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
		_, err = source.Token(ctx)
		assert.NoError(t, err)

		assert.Equal(t, 2, auth.mints)
	})

	t.Run("minted tokens validate against the auth service", func(t *testing.T) {
		auth := services.NewAuthService("test-secret", time.Minute, time.Hour)
		source := NewServiceTokenSource(auth, "viewer_test", "Test Viewer", time.Minute)

		token, err := source.Token(ctx)
		assert.NoError(t, err)

		claims, err := auth.ValidateToken(token)
		assert.NoError(t, err)
		assert.Equal(t, domain.ViewerID("viewer_test"), claims.ViewerID)
		assert.Equal(t, "Test Viewer", claims.ViewerName)
	})
}
