// Package auth implements password hashing (Argon2id, per spec.md §4.6 —
// no placeholder hash, per the "password hashing placeholder" design
// note), API-key hashing and the RBAC decision function (§4.9). API keys
// are not hashed with Argon2id: HashApiKey in apikeyhash.go uses a
// peppered HMAC-SHA256 digest with no per-key salt.
package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters. Memory/time/parallelism meet the spec's floor of
// at least 19 MiB, t=2, p=1.
const (
	argonMemoryKiB  = 19 * 1024
	argonIterations = 2
	argonParallel   = 1
	argonSaltLen    = 16
	argonKeyLen     = 32
)

// HashPassword derives a salted Argon2id hash encoded as a single
// self-describing string, in the common `$argon2id$v=..$m=..,t=..,p=..$salt$hash`
// form so parameters can change without breaking old hashes.
func HashPassword(plaintext string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("auth: generating salt: %w", err)
	}

	return encodeHash(plaintext, salt), nil
}

// VerifyPassword runs in constant time via subtle.ConstantTimeCompare.
func VerifyPassword(plaintext, encoded string) (bool, error) {
	salt, hash, params, err := decodeHash(encoded)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(plaintext), salt, params.iterations, params.memoryKiB, params.parallel, uint32(len(hash)))

	return subtle.ConstantTimeCompare(candidate, hash) == 1, nil
}

type argonParams struct {
	memoryKiB  uint32
	iterations uint32
	parallel   uint8
}

func encodeHash(plaintext string, salt []byte) string {
	hash := argon2.IDKey([]byte(plaintext), salt, argonIterations, argonMemoryKiB, argonParallel, argonKeyLen)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemoryKiB, argonIterations, argonParallel,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(hash),
	)
}

func decodeHash(encoded string) (salt, hash []byte, params argonParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, argonParams{}, fmt.Errorf("auth: malformed hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, argonParams{}, fmt.Errorf("auth: malformed hash version: %w", err)
	}

	var m, t uint32
	var p uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &m, &t, &p); err != nil {
		return nil, nil, argonParams{}, fmt.Errorf("auth: malformed hash params: %w", err)
	}

	salt, err = base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, nil, argonParams{}, fmt.Errorf("auth: malformed hash salt: %w", err)
	}

	hash, err = base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, nil, argonParams{}, fmt.Errorf("auth: malformed hash digest: %w", err)
	}

	return salt, hash, argonParams{memoryKiB: m, iterations: t, parallel: p}, nil
}
