package reliability

import (
	"context"
	"errors"
	"net/http"

	"perch/internal/core/ports"
	"perch/pkg/circuitbreaker"
	apperrors "perch/pkg/errors"
	"perch/pkg/retry"

	"go.uber.org/zap"
)

// ReliableRequester wraps the cloud transport with a circuit breaker
// and, for idempotent methods only, bounded retries. Pairing POSTs go
// through the breaker but are never retried automatically; recovery
// for those stays a caller decision.
type ReliableRequester struct {
	next   ports.AuthenticatedRequester
	logger *zap.SugaredLogger

	retryConfig retry.Config
	breaker     *circuitbreaker.CircuitBreaker
}

// NewReliableRequester creates the wrapper with its own retry policy:
// only infrastructure-class failures are retried, never application
// rejections or breaker trips.
func NewReliableRequester(
	next ports.AuthenticatedRequester,
	retryConfig retry.Config,
	cbConfig circuitbreaker.Config,
	logger *zap.SugaredLogger,
) *ReliableRequester {
	retryConfig.IsRetryable = isRetryableTransportError

	wrapper := &ReliableRequester{
		next:        next,
		logger:      logger,
		retryConfig: retryConfig,
		breaker:     circuitbreaker.New(cbConfig),
	}

	wrapper.breaker.OnStateChange(func(from, to circuitbreaker.State) {
		logger.Infow("cloud api circuit breaker state changed",
			"from", from.String(),
			"to", to.String(),
		)
	})

	return wrapper
}

func (w *ReliableRequester) Do(ctx context.Context, method, path string, body interface{}) (*ports.HTTPResponse, error) {
	if !w.retryConfig.Enabled || !idempotent(method) {
		resp, err := w.doThroughBreaker(ctx, method, path, body)
		return resp, w.mapBreakerError(err)
	}

	resp, err := retry.RetryWithResult(ctx, w.retryConfig, func() (*ports.HTTPResponse, error) {
		return w.doThroughBreaker(ctx, method, path, body)
	})
	return resp, w.mapBreakerError(err)
}

func (w *ReliableRequester) doThroughBreaker(ctx context.Context, method, path string, body interface{}) (*ports.HTTPResponse, error) {
	return circuitbreaker.ExecuteWithResult(ctx, w.breaker, func() (*ports.HTTPResponse, error) {
		return w.next.Do(ctx, method, path, body)
	})
}

func (w *ReliableRequester) mapBreakerError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return apperrors.NewNetworkUnavailableError("cloud api circuit is open")
	}
	return err
}

// Stats exposes the breaker state for health reporting.
func (w *ReliableRequester) Stats() circuitbreaker.Stats {
	return w.breaker.GetStats()
}

func idempotent(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead:
		return true
	}
	return false
}

func isRetryableTransportError(err error) bool {
	if errors.Is(err, circuitbreaker.ErrOpen) {
		return false
	}
	return apperrors.IsCode(err, apperrors.ErrCodeNetworkUnavailable) ||
		apperrors.IsCode(err, apperrors.ErrCodeTimeout)
}
