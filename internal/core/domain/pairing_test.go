package domain

import (
	"testing"
	"time"
)

func validQRJSON() string {
	return `{
		"type": "pairing",
		"deviceId": "dev_42",
		"cameraId": "cam_1",
		"cameraName": "Living Room",
		"pairingId": "pair_abc",
		"issuedAt": 1724500000000,
		"protocolVersion": 1
	}`
}

func TestParsePairingQR_Valid(t *testing.T) {
	payload, err := ParsePairingQR([]byte(validQRJSON()))
	if err != nil {
		t.Fatalf("ParsePairingQR() unexpected error: %v", err)
	}

	if payload.CameraID != "cam_1" {
		t.Errorf("CameraID = %q, want cam_1", payload.CameraID)
	}
	if payload.CameraName != "Living Room" {
		t.Errorf("CameraName = %q, want Living Room", payload.CameraName)
	}
	if payload.DeviceID != "dev_42" {
		t.Errorf("DeviceID = %q, want dev_42", payload.DeviceID)
	}
	if payload.PairingID != "pair_abc" {
		t.Errorf("PairingID = %q, want pair_abc", payload.PairingID)
	}
	if payload.ProtocolVersion != 1 {
		t.Errorf("ProtocolVersion = %d, want 1", payload.ProtocolVersion)
	}
	if payload.Method() != MethodQR {
		t.Errorf("Method() = %v, want %v", payload.Method(), MethodQR)
	}

	want := time.UnixMilli(1724500000000)
	if !payload.IssuedTime().Equal(want) {
		t.Errorf("IssuedTime() = %v, want %v", payload.IssuedTime(), want)
	}
}

func TestParsePairingQR_Malformed(t *testing.T) {
	tests := []struct {
		name string
		json string
	}{
		{"not json", `scan me`},
		{"empty object", `{}`},
		{"wrong type marker", `{"type":"invite","deviceId":"d","cameraId":"c","cameraName":"n","pairingId":"p","issuedAt":1,"protocolVersion":1}`},
		{"missing deviceId", `{"type":"pairing","cameraId":"c","cameraName":"n","pairingId":"p","issuedAt":1,"protocolVersion":1}`},
		{"missing cameraId", `{"type":"pairing","deviceId":"d","cameraName":"n","pairingId":"p","issuedAt":1,"protocolVersion":1}`},
		{"missing cameraName", `{"type":"pairing","deviceId":"d","cameraId":"c","pairingId":"p","issuedAt":1,"protocolVersion":1}`},
		{"missing pairingId", `{"type":"pairing","deviceId":"d","cameraId":"c","cameraName":"n","issuedAt":1,"protocolVersion":1}`},
		{"missing issuedAt", `{"type":"pairing","deviceId":"d","cameraId":"c","cameraName":"n","pairingId":"p","protocolVersion":1}`},
		{"missing protocolVersion", `{"type":"pairing","deviceId":"d","cameraId":"c","cameraName":"n","pairingId":"p","issuedAt":1}`},
		{"deviceId wrong type", `{"type":"pairing","deviceId":7,"cameraId":"c","cameraName":"n","pairingId":"p","issuedAt":1,"protocolVersion":1}`},
		{"issuedAt wrong type", `{"type":"pairing","deviceId":"d","cameraId":"c","cameraName":"n","pairingId":"p","issuedAt":"yesterday","protocolVersion":1}`},
		{"issuedAt not positive", `{"type":"pairing","deviceId":"d","cameraId":"c","cameraName":"n","pairingId":"p","issuedAt":0,"protocolVersion":1}`},
		{"protocolVersion below 1", `{"type":"pairing","deviceId":"d","cameraId":"c","cameraName":"n","pairingId":"p","issuedAt":1,"protocolVersion":0}`},
		{"empty cameraId", `{"type":"pairing","deviceId":"d","cameraId":"","cameraName":"n","pairingId":"p","issuedAt":1,"protocolVersion":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParsePairingQR([]byte(tt.json)); err == nil {
				t.Error("ParsePairingQR() should reject malformed payload")
			}
		})
	}
}

func TestPinCredential_Method(t *testing.T) {
	pin := PinCredential{Code: "482193"}
	if pin.Method() != MethodPin {
		t.Errorf("Method() = %v, want %v", pin.Method(), MethodPin)
	}
}
