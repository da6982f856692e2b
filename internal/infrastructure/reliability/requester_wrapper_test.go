package reliability

import (
	"context"
	"net/http"
	"testing"
	"time"

	"perch/internal/core/ports"
	"perch/pkg/circuitbreaker"
	apperrors "perch/pkg/errors"
	"perch/pkg/retry"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

type countingRequester struct {
	calls int
	resp  *ports.HTTPResponse
	err   error

	// errUntil lets the requester fail the first N calls and then succeed.
	errUntil int
}

func (c *countingRequester) Do(ctx context.Context, method, path string, body interface{}) (*ports.HTTPResponse, error) {
	c.calls++
	if c.err != nil && (c.errUntil == 0 || c.calls <= c.errUntil) {
		return nil, c.err
	}
	if c.resp != nil {
		return c.resp, nil
	}
	return &ports.HTTPResponse{Status: http.StatusOK, Body: []byte(`{}`)}, nil
}

func testRetryConfig() retry.Config {
	return retry.Config{
		Enabled:      true,
		MaxAttempts:  2,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func testBreakerConfig() circuitbreaker.Config {
	return circuitbreaker.Config{
		FailureThreshold:    5,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		MaxRequestsHalfOpen: 1,
	}
}

func TestReliableRequester_Do(t *testing.T) {
	logger := zap.NewNop().Sugar()

	t.Run("passes successful responses through untouched", func(t *testing.T) {
		next := &countingRequester{resp: &ports.HTTPResponse{Status: http.StatusNoContent}}
		wrapper := NewReliableRequester(next, testRetryConfig(), testBreakerConfig(), logger)

		resp, err := wrapper.Do(context.Background(), http.MethodGet, "/v1/health", nil)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.Status)
		assert.Equal(t, 1, next.calls)
	})

	t.Run("retries idempotent requests on transport failures", func(t *testing.T) {
		next := &countingRequester{err: apperrors.NewNetworkUnavailableError("cloud api unreachable")}
		wrapper := NewReliableRequester(next, testRetryConfig(), testBreakerConfig(), logger)

		_, err := wrapper.Do(context.Background(), http.MethodGet, "/v1/health", nil)

		assert.Error(t, err)
		assert.Contains(t, err.Error(), "max attempts")
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNetworkUnavailable))
		assert.Equal(t, 3, next.calls)
	})

	t.Run("recovers when a later attempt succeeds", func(t *testing.T) {
		next := &countingRequester{
			err:      apperrors.NewTimeoutError("cloud api request timed out"),
			errUntil: 1,
		}
		wrapper := NewReliableRequester(next, testRetryConfig(), testBreakerConfig(), logger)

		resp, err := wrapper.Do(context.Background(), http.MethodGet, "/v1/cameras", nil)

		assert.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.Status)
		assert.Equal(t, 2, next.calls)
	})

	t.Run("never retries POST requests", func(t *testing.T) {
		next := &countingRequester{err: apperrors.NewNetworkUnavailableError("cloud api unreachable")}
		wrapper := NewReliableRequester(next, testRetryConfig(), testBreakerConfig(), logger)

		_, err := wrapper.Do(context.Background(), http.MethodPost, "/v1/pairings/pin/lookup", map[string]string{"pinCode": "482193"})

		assert.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNetworkUnavailable))
		assert.Equal(t, 1, next.calls)
	})

	t.Run("does not retry application-level rejections", func(t *testing.T) {
		next := &countingRequester{err: apperrors.NewValidationError("camera request rejected with status 400")}
		wrapper := NewReliableRequester(next, testRetryConfig(), testBreakerConfig(), logger)

		_, err := wrapper.Do(context.Background(), http.MethodGet, "/v1/cameras", nil)

		assert.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeValidation))
		assert.Equal(t, 1, next.calls)
	})

	t.Run("maps an open circuit to a network error", func(t *testing.T) {
		next := &countingRequester{err: apperrors.NewNetworkUnavailableError("cloud api unreachable")}
		cbConfig := testBreakerConfig()
		cbConfig.FailureThreshold = 1
		retryConfig := testRetryConfig()
		retryConfig.Enabled = false
		wrapper := NewReliableRequester(next, retryConfig, cbConfig, logger)

		_, err := wrapper.Do(context.Background(), http.MethodPost, "/v1/pairings/confirm", nil)
		assert.Error(t, err)
		assert.Equal(t, 1, next.calls)

		_, err = wrapper.Do(context.Background(), http.MethodPost, "/v1/pairings/confirm", nil)
		assert.Error(t, err)
		assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNetworkUnavailable))
		assert.Contains(t, err.Error(), "circuit is open")
		assert.Equal(t, 1, next.calls, "open breaker must short-circuit before the transport")
	})

	t.Run("retry disabled goes straight through", func(t *testing.T) {
		next := &countingRequester{err: apperrors.NewNetworkUnavailableError("cloud api unreachable")}
		retryConfig := testRetryConfig()
		retryConfig.Enabled = false
		wrapper := NewReliableRequester(next, retryConfig, testBreakerConfig(), logger)

		_, err := wrapper.Do(context.Background(), http.MethodGet, "/v1/health", nil)

		assert.Error(t, err)
		assert.Equal(t, 1, next.calls)
	})
}

func TestReliableRequester_Stats(t *testing.T) {
	next := &countingRequester{}
	wrapper := NewReliableRequester(next, testRetryConfig(), testBreakerConfig(), zap.NewNop().Sugar())

	_, err := wrapper.Do(context.Background(), http.MethodGet, "/v1/health", nil)
	assert.NoError(t, err)

	stats := wrapper.Stats()
	assert.Equal(t, circuitbreaker.StateClosed, stats.State)
}
