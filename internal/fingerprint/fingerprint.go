// Package fingerprint derives stable identities for transferable objects.
package fingerprint

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// Size is the number of hash bytes kept in a fingerprint.
const Size = 16

// Of returns the fingerprint of an object identified by its type, content
// hash and origin id. Fields are length-prefixed so that no two distinct
// triples share an encoding.
func Of(typeID, contentHash, originID string) string {
	h := blake3.New()
	for _, field := range [...]string{typeID, contentHash, originID} {
		writeField(h, field)
	}
	sum := h.Sum(nil)
	return hex.EncodeToString(sum[:Size])
}

// ContentHash hashes an object's serialized component data. Hosts without a
// native content hash can use it to fill the content_hash field.
func ContentHash(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:Size])
}

func writeField(h *blake3.Hasher, field string) {
	var n [4]byte
	l := len(field)
	n[0], n[1], n[2], n[3] = byte(l>>24), byte(l>>16), byte(l>>8), byte(l)
	_, _ = h.Write(n[:])
	_, _ = h.Write([]byte(field))
}
