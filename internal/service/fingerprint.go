package service

import (
	"encoding/hex"
	"hash/fnv"
)

// Fingerprint derives a stable, non-secret token from a password. It is only
// used for equality checks and gives no protection against offline guessing.
func Fingerprint(password string) string {
	h := fnv.New64a()
	_, _ = h.Write([]byte(password))
	return hex.EncodeToString(h.Sum(nil))
}
