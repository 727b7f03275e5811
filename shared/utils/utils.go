package utils

import (
	"crypto/sha256"
	"encoding/hex"
)

// HashContent returns the hex-encoded sha256 fingerprint of content. Empty
// and nil content hash identically.
func HashContent(content []byte) string {
	hash := sha256.Sum256(content)
	return hex.EncodeToString(hash[:])
}

// ShortID trims an identifier for display, keeping the full id when it is
// already short.
func ShortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
