package analysis

import (
	"crypto/sha256"
	"encoding/hex"
)

// Fingerprint returns the hex sha256 digest of content. It is used as a
// cache-key component and change detector, never as identity.
func Fingerprint(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}
