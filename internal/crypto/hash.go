package crypto

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Sha256Hex hashes the parts in order, with no separators, and returns the
// lowercase hex digest.
func Sha256Hex(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		_, _ = h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// HasZeroPrefix reports whether the hex digest starts with n '0' characters.
func HasZeroPrefix(digest string, n uint32) bool {
	if uint64(n) > uint64(len(digest)) {
		return false
	}
	return strings.HasPrefix(digest, strings.Repeat("0", int(n)))
}
