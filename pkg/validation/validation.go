package validation

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	// PinRegex validates pairing PIN format
	PinRegex = regexp.MustCompile(`^[0-9]{6}$`)

	// CameraIDRegex validates camera ID format
	CameraIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

	// PairingIDRegex validates pairing ID format
	PairingIDRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidatePinCode validates a 6-digit pairing PIN
func ValidatePinCode(pin string) error {
	pin = strings.TrimSpace(pin)
	if pin == "" {
		return fmt.Errorf("pin code is required")
	}
	if !PinRegex.MatchString(pin) {
		return fmt.Errorf("pin code must be exactly 6 digits")
	}
	return nil
}

// ValidateCameraID validates camera ID
func ValidateCameraID(cameraID string) error {
	if cameraID == "" {
		return fmt.Errorf("camera ID is required")
	}
	if len(cameraID) > 100 {
		return fmt.Errorf("camera ID is too long (max 100 characters)")
	}
	if !CameraIDRegex.MatchString(cameraID) {
		return fmt.Errorf("invalid camera ID format")
	}
	return nil
}

// ValidatePairingID validates pairing ID
func ValidatePairingID(pairingID string) error {
	if pairingID == "" {
		return fmt.Errorf("pairing ID is required")
	}
	if len(pairingID) > 100 {
		return fmt.Errorf("pairing ID is too long (max 100 characters)")
	}
	if !PairingIDRegex.MatchString(pairingID) {
		return fmt.Errorf("invalid pairing ID format")
	}
	return nil
}

// ValidateCameraName validates camera display name
func ValidateCameraName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("camera name is required")
	}
	if len(name) > 100 {
		return fmt.Errorf("camera name is too long (max 100 characters)")
	}
	// Check for valid UTF-8
	if !utf8.ValidString(name) {
		return fmt.Errorf("camera name contains invalid characters")
	}
	return nil
}

// ValidateViewerName validates viewer display name
func ValidateViewerName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("viewer name is required")
	}
	if len(name) < 3 {
		return fmt.Errorf("viewer name must be at least 3 characters")
	}
	if len(name) > 50 {
		return fmt.Errorf("viewer name is too long (max 50 characters)")
	}
	if !regexp.MustCompile(`^[a-zA-Z0-9_-]+$`).MatchString(name) {
		return fmt.Errorf("viewer name contains invalid characters (only letters, numbers, _, - allowed)")
	}
	return nil
}

// ValidateURL validates URL format
func ValidateURL(urlStr string) error {
	if urlStr == "" {
		return fmt.Errorf("URL is required")
	}
	u, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL format: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" && u.Scheme != "ws" && u.Scheme != "wss" {
		return fmt.Errorf("invalid URL scheme (must be http, https, ws, or wss)")
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}

// ValidateNonEmptyString validates that string is not empty after trimming
func ValidateNonEmptyString(s, fieldName string) error {
	s = strings.TrimSpace(s)
	if s == "" {
		return fmt.Errorf("%s is required", fieldName)
	}
	return nil
}

// ValidateStringLength validates string length
func ValidateStringLength(s string, min, max int, fieldName string) error {
	length := utf8.RuneCountInString(s)
	if length < min {
		return fmt.Errorf("%s must be at least %d characters", fieldName, min)
	}
	if length > max {
		return fmt.Errorf("%s is too long (max %d characters)", fieldName, max)
	}
	return nil
}
