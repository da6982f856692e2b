package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"perch/internal/core/domain"
	"perch/internal/core/ports"
	apperrors "perch/pkg/errors"
	"perch/pkg/utils"
)

const (
	pinLookupPath      = "/v1/pairings/pin/lookup"
	pairingConfirmPath = "/v1/pairings/confirm"
)

type pinLookupRequest struct {
	PinCode string `json:"pinCode"`
}

type pinLookupResponse struct {
	CameraID   string `json:"cameraId"`
	CameraName string `json:"cameraName"`
	PinCode    string `json:"pinCode"`
	Status     string `json:"status"`
}

type confirmRequest struct {
	CameraID  string `json:"cameraId"`
	ViewerID  string `json:"viewerId"`
	Method    string `json:"method"`
	PinCode   string `json:"pinCode,omitempty"`
	PairingID string `json:"pairingId,omitempty"`
	DeviceID  string `json:"deviceId,omitempty"`
}

type confirmResponse struct {
	PairingID     string `json:"pairingId"`
	Status        string `json:"status"`
	MediaEndpoint string `json:"mediaEndpoint"`
}

type pairingResolver struct {
	requester      ports.AuthenticatedRequester
	viewerID       domain.ViewerID
	confirmTimeout time.Duration
}

// NewPairingResolver builds the resolver that turns a credential into a
// confirmed pairing. The confirm round trip is mandatory for both
// credential types; the resolver never retries on its own.
func NewPairingResolver(
	requester ports.AuthenticatedRequester,
	viewerID domain.ViewerID,
	confirmTimeout time.Duration,
) ports.PairingResolver {
	return &pairingResolver{
		requester:      requester,
		viewerID:       viewerID,
		confirmTimeout: confirmTimeout,
	}
}

func (r *pairingResolver) Resolve(ctx context.Context, cred domain.PairingCredential) (*domain.PairingResult, error) {
	switch c := cred.(type) {
	case domain.PinCredential:
		return r.resolvePin(ctx, c)
	case *domain.QRPayload:
		return r.resolveQR(ctx, c)
	default:
		return nil, apperrors.NewValidationError(fmt.Sprintf("unsupported pairing credential type %T", cred))
	}
}

func (r *pairingResolver) resolvePin(ctx context.Context, cred domain.PinCredential) (*domain.PairingResult, error) {
	resp, err := r.requester.Do(ctx, http.MethodPost, pinLookupPath, pinLookupRequest{PinCode: cred.Code})
	if err != nil {
		return nil, fmt.Errorf("pin lookup failed: %w", err)
	}
	if err := mapResponseStatus(resp.Status, "camera"); err != nil {
		return nil, err
	}

	var lookup pinLookupResponse
	if err := json.Unmarshal(resp.Body, &lookup); err != nil {
		return nil, apperrors.NewValidationError("pin lookup response is not valid JSON")
	}
	if lookup.CameraID == "" || lookup.CameraName == "" || lookup.PinCode == "" || lookup.Status == "" {
		return nil, apperrors.NewValidationError("pin lookup response is missing required fields")
	}

	confirm, err := r.confirmPairing(ctx, confirmRequest{
		CameraID: lookup.CameraID,
		ViewerID: string(r.viewerID),
		Method:   string(domain.MethodPin),
		PinCode:  cred.Code,
	})
	if err != nil {
		return nil, err
	}

	return &domain.PairingResult{
		Camera: &domain.CameraRef{
			ID:            domain.CameraID(lookup.CameraID),
			DisplayName:   utils.SanitizeString(lookup.CameraName),
			Status:        domain.CameraStatus(lookup.Status),
			MediaEndpoint: confirm.MediaEndpoint,
		},
		PairingID: domain.PairingID(confirm.PairingID),
	}, nil
}

func (r *pairingResolver) resolveQR(ctx context.Context, payload *domain.QRPayload) (*domain.PairingResult, error) {
	// Payload shape was validated at the boundary; its fields are
	// authoritative, so confirmation is issued directly.
	confirm, err := r.confirmPairing(ctx, confirmRequest{
		CameraID:  string(payload.CameraID),
		ViewerID:  string(r.viewerID),
		Method:    string(domain.MethodQR),
		PairingID: string(payload.PairingID),
		DeviceID:  string(payload.DeviceID),
	})
	if err != nil {
		return nil, err
	}

	return &domain.PairingResult{
		Camera: &domain.CameraRef{
			ID:            payload.CameraID,
			DisplayName:   utils.SanitizeString(payload.CameraName),
			Status:        domain.CameraOnline,
			MediaEndpoint: confirm.MediaEndpoint,
		},
		PairingID: domain.PairingID(confirm.PairingID),
	}, nil
}

func (r *pairingResolver) confirmPairing(ctx context.Context, req confirmRequest) (*confirmResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, r.confirmTimeout)
	defer cancel()

	resp, err := r.requester.Do(ctx, http.MethodPost, pairingConfirmPath, req)
	if err != nil {
		return nil, fmt.Errorf("pairing confirm failed: %w", err)
	}
	if err := mapResponseStatus(resp.Status, "pairing"); err != nil {
		return nil, err
	}

	var confirm confirmResponse
	if err := json.Unmarshal(resp.Body, &confirm); err != nil {
		return nil, apperrors.NewValidationError("pairing confirm response is not valid JSON")
	}
	if confirm.PairingID == "" {
		return nil, apperrors.NewValidationError("pairing confirm response is missing pairingId")
	}
	if confirm.Status != "confirmed" {
		return nil, apperrors.NewAuthRequiredError(fmt.Sprintf("pairing was not confirmed (status %q)", confirm.Status))
	}

	return &confirm, nil
}

// mapResponseStatus maps pass-through 4xx statuses to typed failures.
// 401, 5xx and timeouts never reach here; the transport collaborator
// converts those to typed errors before returning.
func mapResponseStatus(status int, what string) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.NewNotFoundError(what)
	case status == http.StatusForbidden:
		return apperrors.NewAuthRequiredError("pairing was refused")
	case status >= 400:
		return apperrors.NewValidationError(fmt.Sprintf("%s request rejected with status %d", what, status))
	}
	return nil
}
