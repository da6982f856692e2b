package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"perch/internal/core/ports"
	apperrors "perch/pkg/errors"

	"go.uber.org/zap"
)

const maxResponseBytes = 1 << 20

// CloudClient is the authenticated transport for the cloud pairing API.
// It maps transport-level failures to the session error codes: a 401
// gets one token refresh before AuthRequired, 5xx becomes
// NetworkUnavailable and deadline expiry becomes Timeout. Remaining
// 4xx statuses pass through for the caller to interpret.
type CloudClient struct {
	baseURL string
	client  *http.Client
	tokens  ports.TokenSource
	logger  *zap.SugaredLogger
}

func NewCloudClient(baseURL string, timeout time.Duration, tokens ports.TokenSource, logger *zap.SugaredLogger) *CloudClient {
	return &CloudClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		tokens:  tokens,
		logger:  logger,
	}
}

func (c *CloudClient) Do(ctx context.Context, method, path string, body interface{}) (*ports.HTTPResponse, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return nil, apperrors.NewValidationError(fmt.Sprintf("failed to encode request body: %v", err))
		}
	}

	resp, err := c.doOnce(ctx, method, path, payload)
	if err != nil {
		return nil, err
	}

	if resp.Status == http.StatusUnauthorized {
		// One refresh, then give up
		c.tokens.Invalidate()
		c.logger.Debugw("retrying request with a fresh token", "method", method, "path", path)

		resp, err = c.doOnce(ctx, method, path, payload)
		if err != nil {
			return nil, err
		}
		if resp.Status == http.StatusUnauthorized {
			return nil, apperrors.NewAuthRequiredError("cloud api rejected the access token")
		}
	}

	if resp.Status >= http.StatusInternalServerError {
		return nil, apperrors.NewNetworkUnavailableError(fmt.Sprintf("cloud api returned status %d", resp.Status)).
			WithContext("path", path)
	}

	return resp, nil
}

func (c *CloudClient) doOnce(ctx context.Context, method, path string, payload []byte) (*ports.HTTPResponse, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, apperrors.NewValidationError(fmt.Sprintf("failed to build request: %v", err))
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, apperrors.NewNetworkUnavailableError(fmt.Sprintf("failed to read response body: %v", err))
	}

	c.logger.Debugw("cloud api request",
		"method", method,
		"path", path,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	return &ports.HTTPResponse{Status: resp.StatusCode, Body: data}, nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("cloud api request timed out")
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperrors.NewTimeoutError("cloud api request timed out")
	}
	return apperrors.NewNetworkUnavailableError(fmt.Sprintf("cloud api unreachable: %v", err))
}
