package transport

import (
	"context"
	"net/http"
	"sync"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	"perch/internal/core/services"
	apperrors "perch/pkg/errors"
)

// refreshSkew renews the cached token before it lapses so in-flight
// requests never carry a token about to expire.
const refreshSkew = 30 * time.Second

// serviceTokenSource mints bearer tokens from the shared-secret auth
// service and caches each one until shortly before expiry.
type serviceTokenSource struct {
	auth       services.AuthService
	viewerID   domain.ViewerID
	viewerName string
	ttl        time.Duration

	mu        sync.Mutex
	token     string
	expiresAt time.Time
}

func NewServiceTokenSource(auth services.AuthService, viewerID domain.ViewerID, viewerName string, ttl time.Duration) ports.TokenSource {
	return &serviceTokenSource{
		auth:       auth,
		viewerID:   viewerID,
		viewerName: viewerName,
		ttl:        ttl,
	}
}

func (s *serviceTokenSource) Token(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	skew := refreshSkew
	if s.ttl <= skew {
		skew = 0
	}
	if s.token != "" && time.Now().Before(s.expiresAt.Add(-skew)) {
		return s.token, nil
	}

	token, err := s.auth.GenerateToken(s.viewerID, s.viewerName)
	if err != nil {
		return "", apperrors.WrapError(err, apperrors.ErrCodeAuthRequired, "failed to mint access token", http.StatusUnauthorized)
	}

	s.token = token
	s.expiresAt = time.Now().Add(s.ttl)
	return token, nil
}

func (s *serviceTokenSource) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.token = ""
	s.expiresAt = time.Time{}
}
