package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// hashParams are the Argon2id cost settings encoded into each hash.
// Verification reads the settings back out of the stored string, so
// these can be raised later without invalidating existing accounts.
type hashParams struct {
	iterations  uint32
	memoryKiB   uint32
	parallelism uint8
}

// defaultHashParams follows the OWASP 2025 recommendation. Site
// controllers are small boxes; 64 MiB per hash is affordable because
// operator logins are rare.
var defaultHashParams = hashParams{
	iterations:  3,
	memoryKiB:   64 * 1024,
	parallelism: 1,
}

const (
	saltBytes = 16
	keyBytes  = 32
)

// HashPassword derives an Argon2id hash of the password and encodes it
// as a PHC string: $argon2id$v=19$m=65536,t=3,p=1$<salt>$<hash>.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltBytes)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generating salt: %w", err)
	}

	p := defaultHashParams
	key := argon2.IDKey([]byte(password), salt, p.iterations, p.memoryKiB, p.parallelism, keyBytes)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version,
		p.memoryKiB, p.iterations, p.parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key),
	), nil
}

// VerifyPassword re-derives the hash with the parameters stored in the
// PHC string and compares in constant time.
func VerifyPassword(password, encodedHash string) (bool, error) {
	salt, key, p, err := decodePHC(encodedHash)
	if err != nil {
		return false, err
	}

	candidate := argon2.IDKey([]byte(password), salt, p.iterations, p.memoryKiB, p.parallelism, uint32(len(key))) //nolint:gosec // G115: key length always fits uint32

	return subtle.ConstantTimeCompare(key, candidate) == 1, nil
}

// decodePHC splits a $argon2id$... string into salt, key, and cost
// settings. Anything that is not well-formed argon2id is rejected.
func decodePHC(encoded string) (salt, key []byte, p hashParams, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 { //nolint:mnd // PHC format has exactly 6 $-delimited parts
		return nil, nil, p, fmt.Errorf("invalid PHC hash format")
	}
	if parts[1] != "argon2id" {
		return nil, nil, p, fmt.Errorf("unsupported algorithm: %s", parts[1])
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, p, fmt.Errorf("parsing version: %w", err)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &p.memoryKiB, &p.iterations, &p.parallelism); err != nil { //nolint:govet // shadow: err re-declared in nested scope
		return nil, nil, p, fmt.Errorf("parsing parameters: %w", err)
	}

	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, p, fmt.Errorf("decoding salt: %w", err)
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, p, fmt.Errorf("decoding hash: %w", err)
	}
	return salt, key, p, nil
}
