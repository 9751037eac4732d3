package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// HashApiKey hashes API-key material with HMAC-SHA256 keyed by a
// server-side pepper. Unlike passwords, API keys carry >=128 bits of
// entropy on their own, so a deterministic keyed hash is used instead of
// a salted Argon2id digest: this is what lets the projection worker index
// user_api_keys.api_key_hash and lets auth rehydration (spec.md §4.9)
// recover the owning row by direct equality lookup instead of scanning
// every key and running a memory-hard KDF per candidate.
func HashApiKey(pepper []byte, plaintext string) string {
	mac := hmac.New(sha256.New, pepper)
	mac.Write([]byte(plaintext))

	return hex.EncodeToString(mac.Sum(nil))
}

// EqualApiKeyHash compares two hex-encoded HMAC digests in constant time.
func EqualApiKeyHash(a, b string) bool {
	ab, err1 := hex.DecodeString(a)
	bb, err2 := hex.DecodeString(b)

	if err1 != nil || err2 != nil || len(ab) != len(bb) {
		return false
	}

	return subtle.ConstantTimeCompare(ab, bb) == 1
}
