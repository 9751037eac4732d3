package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// GenerateApiKey produces a cryptographically random >=128 bit key and a
// key_id of the form "key_<short random>". The plaintext is returned
// exactly once to the caller; it is never persisted, only its hash is.
func GenerateApiKey() (plaintext, keyID string, err error) {
	keyBytes := make([]byte, 24) // 192 bits
	if _, err = rand.Read(keyBytes); err != nil {
		return "", "", fmt.Errorf("auth: generating api key: %w", err)
	}

	idBytes := make([]byte, 6)
	if _, err = rand.Read(idBytes); err != nil {
		return "", "", fmt.Errorf("auth: generating key id: %w", err)
	}

	plaintext = base64.RawURLEncoding.EncodeToString(keyBytes)
	keyID = "key_" + base64.RawURLEncoding.EncodeToString(idBytes)

	return plaintext, keyID, nil
}
