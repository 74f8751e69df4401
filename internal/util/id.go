package util

import (
	"crypto/rand"
	"encoding/hex"
)

// NewID returns a random identifier such as "ver_3f2a...". The prefix keys
// the entity kind so ids stay greppable across tables.
func NewID(prefix string) string {
	bytes := make([]byte, 16)
	_, _ = rand.Read(bytes)
	if prefix == "" {
		return hex.EncodeToString(bytes)
	}
	return prefix + "_" + hex.EncodeToString(bytes)
}
