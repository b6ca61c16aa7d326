package platform

import (
	"crypto/rand"

	"github.com/google/uuid"
)

const shortIDAlphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
const shortIDLength = 8

// NewID returns a random UUID used for incidents, requests and alerts.
func NewID() string {
	return uuid.New().String()
}

// NewName returns prefix followed by a short random suffix, e.g. "INC-" ids
// for demo incidents and "REQ-" ids for resource requests.
func NewName(prefix string) string {
	b := make([]byte, shortIDLength)
	if _, err := rand.Read(b); err != nil {
		panic("crypto/rand: " + err.Error())
	}
	for i := range b {
		b[i] = shortIDAlphabet[b[i]%byte(len(shortIDAlphabet))]
	}
	return prefix + string(b)
}
