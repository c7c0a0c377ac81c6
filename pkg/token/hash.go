package token

import (
	"crypto/sha256"
	"encoding/hex"
)

// fingerprintLen is the number of hex characters kept by Fingerprint.
const fingerprintLen = 12

// Hash computes the hex encoded SHA-256 hash of s.
func Hash(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}

// Fingerprint returns a short, stable stand-in for id that is safe to log.
func Fingerprint(id string) string {
	if id == "" {
		return ""
	}
	return Hash(id)[:fingerprintLen]
}
