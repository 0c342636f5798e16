// Package checksum derives stable content keys.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
)

// Key hashes NUL-separated parts in order.
func Key(parts ...string) string {
	h := sha256.New()
	for i, p := range parts {
		if i > 0 {
			h.Write([]byte{0})
		}
		h.Write([]byte(p))
	}
	return hex.EncodeToString(h.Sum(nil))
}
