package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

const userKeyDomain = "resume-insight/user\x00"

// HashUserKey returns the storage segment for a user ID. Surrounding whitespace
// is ignored and the hash is domain separated from other digests of the same ID.
func HashUserKey(userID string) string {
	sum := sha256.Sum256([]byte(userKeyDomain + strings.TrimSpace(userID)))
	return hex.EncodeToString(sum[:])
}
