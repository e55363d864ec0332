package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// GenerateID returns a short unique identifier, matching the 8-character ids
// used across the databases.
func GenerateID() string {
	return uuid.New().String()[:8]
}

// RandomPassword returns a throwaway password for the reset-password mail.
func RandomPassword() string {
	b := make([]byte, 8)
	rand.Read(b)
	return hex.EncodeToString(b)
}

// ValidateMediaFile accepts the image and video types a post may carry.
func ValidateMediaFile(contentType string) error {
	if strings.HasPrefix(contentType, "image/") || strings.HasPrefix(contentType, "video/") {
		return nil
	}
	return fmt.Errorf("file type not allowed: %s", contentType)
}

// ValidateImageFile accepts profile and team photo uploads.
func ValidateImageFile(contentType string) error {
	allowedTypes := map[string]bool{
		"image/jpeg": true,
		"image/jpg":  true,
		"image/png":  true,
		"image/gif":  true,
	}

	if !allowedTypes[contentType] {
		return fmt.Errorf("file type not allowed: %s", contentType)
	}

	return nil
}
