package domain

import "errors"

var (
	ErrCameraNotFound     = errors.New("camera not found")
	ErrPairingNotFound    = errors.New("pairing not found")
	ErrNotConnected       = errors.New("no camera connected")
	ErrChannelClosed      = errors.New("control channel closed")
	ErrSessionTornDown    = errors.New("session torn down")
	ErrNoConfirmedPairing = errors.New("no confirmed pairing for camera")
)
