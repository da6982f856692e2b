package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

// GenerateMediaSessionID generates a unique media session ID
func GenerateMediaSessionID() string {
	return GenerateID("ms")
}

// GenerateViewerID generates a unique viewer ID
func GenerateViewerID() string {
	return GenerateID("viewer")
}

// GenerateRequestID generates a unique request ID
func GenerateRequestID() string {
	timestamp := time.Now().UnixNano()
	b := make([]byte, 4)
	rand.Read(b)
	return fmt.Sprintf("req_%d_%s", timestamp, hex.EncodeToString(b))
}
