package object

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
)

// HashHexLen is the length of a hex-encoded object hash.
const HashHexLen = 2 * sha1.Size

// HashObject computes the SHA-1 of the envelope "type len\0content",
// which is how Git derives a loose object's content address.
func HashObject(objType ObjectType, data []byte) Hash {
	header := fmt.Sprintf("%s %d\x00", objType, len(data))
	h := sha1.New()
	h.Write([]byte(header))
	h.Write(data)
	return Hash(hex.EncodeToString(h.Sum(nil)))
}

// ValidHash reports whether s is a 40-character lowercase hex digest.
func ValidHash(s string) bool {
	if len(s) != HashHexLen {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
