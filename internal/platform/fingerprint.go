package platform

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Fingerprint returns a stable content hash for deduplicating incident
// candidates. It is derived from the raw source content and URL only, never
// from generated identifiers.
func Fingerprint(content, url string) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(content)), " ")
	h := sha256.New()
	h.Write([]byte(normalized))
	h.Write([]byte{0})
	h.Write([]byte(strings.TrimSpace(url)))
	return hex.EncodeToString(h.Sum(nil))
}
