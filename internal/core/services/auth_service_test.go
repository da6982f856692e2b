package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAuthFixture() AuthService {
	return NewAuthService("test-secret", 15*time.Minute, 24*time.Hour)
}

func TestAuthService_AccessTokens(t *testing.T) {
	auth := newAuthFixture()

	t.Run("round trip carries the viewer identity", func(t *testing.T) {
		token, err := auth.GenerateToken("viewer_1", "Living Room")
		require.NoError(t, err)

		claims, err := auth.ValidateToken(token)
		require.NoError(t, err)
		assert.Equal(t, "viewer_1", string(claims.ViewerID))
		assert.Equal(t, "Living Room", claims.ViewerName)
		assert.Equal(t, TokenKindAccess, claims.Kind)
	})

	t.Run("garbage is rejected", func(t *testing.T) {
		_, err := auth.ValidateToken("not-a-token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret is rejected", func(t *testing.T) {
		other := NewAuthService("other-secret", 15*time.Minute, 24*time.Hour)
		token, err := other.GenerateToken("viewer_1", "")
		require.NoError(t, err)

		_, err = auth.ValidateToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token is rejected", func(t *testing.T) {
		expired := NewAuthService("test-secret", -time.Minute, 24*time.Hour)
		token, err := expired.GenerateToken("viewer_1", "")
		require.NoError(t, err)

		_, err = auth.ValidateToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("unsigned token is rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{
			ViewerID: "viewer_1",
			Kind:     TokenKindAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    tokenIssuer,
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = auth.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("foreign issuer is rejected", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{
			ViewerID: "viewer_1",
			Kind:     TokenKindAccess,
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "someone-else",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		})
		signed, err := token.SignedString([]byte("test-secret"))
		require.NoError(t, err)

		_, err = auth.ValidateToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}

func TestAuthService_TokenKinds(t *testing.T) {
	auth := newAuthFixture()

	access, err := auth.GenerateToken("viewer_1", "Living Room")
	require.NoError(t, err)
	refresh, err := auth.GenerateRefreshToken("viewer_1")
	require.NoError(t, err)

	t.Run("access token cannot refresh", func(t *testing.T) {
		_, err := auth.ValidateRefreshToken(access)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token cannot authorize requests", func(t *testing.T) {
		_, err := auth.ValidateToken(refresh)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("refresh token mints new credentials", func(t *testing.T) {
		claims, err := auth.ValidateRefreshToken(refresh)
		require.NoError(t, err)
		assert.Equal(t, "viewer_1", string(claims.ViewerID))
		assert.Equal(t, TokenKindRefresh, claims.Kind)
	})
}
