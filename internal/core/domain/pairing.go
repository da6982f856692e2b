package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

type PairingID string

type PairingMethod string

const (
	MethodPin PairingMethod = "pin"
	MethodQR  PairingMethod = "qr"
)

// PairingCredential is the tagged union of accepted pairing inputs:
// a human-entered PIN or a scanned QR payload.
type PairingCredential interface {
	Method() PairingMethod
}

// PinCredential is a human-entered 6-digit pairing code.
type PinCredential struct {
	Code string
}

func (PinCredential) Method() PairingMethod { return MethodPin }

// QRPayload is the decoded pairing QR code. Fields mirror the wire
// format; IssuedAt is epoch milliseconds.
type QRPayload struct {
	Type            string    `json:"type"`
	DeviceID        DeviceID  `json:"deviceId"`
	CameraID        CameraID  `json:"cameraId"`
	CameraName      string    `json:"cameraName"`
	PairingID       PairingID `json:"pairingId"`
	IssuedAt        int64     `json:"issuedAt"`
	ProtocolVersion int       `json:"protocolVersion"`
}

func (*QRPayload) Method() PairingMethod { return MethodQR }

// IssuedTime converts the epoch-ms IssuedAt to a time.Time.
func (q *QRPayload) IssuedTime() time.Time {
	return time.UnixMilli(q.IssuedAt)
}

// qrTypePairing is the only accepted payload type marker.
const qrTypePairing = "pairing"

// ParsePairingQR decodes a scanned QR payload and validates every
// required field for presence and primitive type. Nothing beyond the
// declared shape is trusted; a confirmation round trip to the server
// is still required before the pairing is usable.
func ParsePairingQR(data []byte) (*QRPayload, error) {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("qr payload is not valid JSON: %w", err)
	}

	typ, err := stringField(raw, "type")
	if err != nil {
		return nil, err
	}
	if typ != qrTypePairing {
		return nil, fmt.Errorf("qr payload type must be %q, got %q", qrTypePairing, typ)
	}

	deviceID, err := stringField(raw, "deviceId")
	if err != nil {
		return nil, err
	}
	cameraID, err := stringField(raw, "cameraId")
	if err != nil {
		return nil, err
	}
	cameraName, err := stringField(raw, "cameraName")
	if err != nil {
		return nil, err
	}
	pairingID, err := stringField(raw, "pairingId")
	if err != nil {
		return nil, err
	}
	issuedAt, err := numberField(raw, "issuedAt")
	if err != nil {
		return nil, err
	}
	if issuedAt <= 0 {
		return nil, fmt.Errorf("qr payload field %q must be a positive epoch-ms timestamp", "issuedAt")
	}
	protocolVersion, err := numberField(raw, "protocolVersion")
	if err != nil {
		return nil, err
	}
	if protocolVersion < 1 {
		return nil, fmt.Errorf("qr payload field %q must be >= 1", "protocolVersion")
	}

	return &QRPayload{
		Type:            typ,
		DeviceID:        DeviceID(deviceID),
		CameraID:        CameraID(cameraID),
		CameraName:      cameraName,
		PairingID:       PairingID(pairingID),
		IssuedAt:        int64(issuedAt),
		ProtocolVersion: int(protocolVersion),
	}, nil
}

func stringField(raw map[string]interface{}, key string) (string, error) {
	v, ok := raw[key]
	if !ok {
		return "", fmt.Errorf("qr payload missing field %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("qr payload field %q must be a string", key)
	}
	if s == "" {
		return "", fmt.Errorf("qr payload field %q must not be empty", key)
	}
	return s, nil
}

func numberField(raw map[string]interface{}, key string) (float64, error) {
	v, ok := raw[key]
	if !ok {
		return 0, fmt.Errorf("qr payload missing field %q", key)
	}
	n, ok := v.(float64)
	if !ok {
		return 0, fmt.Errorf("qr payload field %q must be a number", key)
	}
	return n, nil
}

// PairingResult is a confirmed pairing: the resolved camera plus the
// pairing identity to present on later media requests.
type PairingResult struct {
	Camera    *CameraRef
	PairingID PairingID
}

// FavoritePairing is a remembered pairing the viewer can resume without
// re-entering a credential.
type FavoritePairing struct {
	CameraID   CameraID
	CameraName string
	PairingID  PairingID
	Method     PairingMethod
	SavedAt    time.Time
}

// PairingAttempt records the outcome of one pairing attempt for
// diagnostics and rate limiting.
type PairingAttempt struct {
	CameraID CameraID
	Method   PairingMethod
	Outcome  string // "ok" or an error code
	At       time.Time
}
