package cryptox

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
)

// argon2id parameters, tuned for interactive login latency
const (
	memory      = 64 * 1024
	iterations  = 3
	parallelism = 2
	saltLength  = 16
	keyLength   = 32
)

// returned when a password does not match its stored digest
var ErrPasswordMismatch = errors.New("password does not match")

// digest of a throwaway password, compared against when the account does not
// exist so that lookups and failed logins take the same time
var dummyDigest string

func init() {
	var err error

	dummyDigest, err = HashPassword("keyline-dummy-password-for-timing")
	if err != nil {
		panic(fmt.Sprintf("cryptox: failed to precompute dummy digest: %v", err))
	}
}

// HashPassword generates a PHC-format argon2id digest string including salt and parameters.
func HashPassword(password string) (string, error) {
	salt := make([]byte, saltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("failed to generate salt: %w", err)
	}

	hash := argon2.IDKey([]byte(password), salt, iterations, memory, parallelism, keyLength)

	b64Salt := base64.RawStdEncoding.EncodeToString(salt)
	b64Hash := base64.RawStdEncoding.EncodeToString(hash)

	return fmt.Sprintf(
		"$argon2id$v=19$m=%d,t=%d,p=%d$%s$%s",
		memory,
		iterations,
		parallelism,
		b64Salt,
		b64Hash,
	), nil
}

// VerifyPassword compares a plaintext password against a PHC-format argon2id digest.
// Returns ErrPasswordMismatch when the password is wrong; any other error means the
// digest itself is malformed.
func VerifyPassword(password, encodedDigest string) error {
	parts, err := splitDigest(encodedDigest)
	if err != nil {
		return err
	}

	var mem, iters uint32
	var par uint8

	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &mem, &iters, &par); err != nil {
		return fmt.Errorf("invalid digest format: failed to parse parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return fmt.Errorf("invalid digest format: failed to decode salt: %w", err)
	}

	expected, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return fmt.Errorf("invalid digest format: failed to decode hash: %w", err)
	}

	computed := argon2.IDKey([]byte(password), salt, iters, mem, par, uint32(len(expected))) // #nosec G115

	if subtle.ConstantTimeCompare(computed, expected) == 1 {
		return nil
	}

	return ErrPasswordMismatch
}

// VerifyDummyPassword burns the same work as a real verification against a
// precomputed digest. Called on login when no account matches the email, so
// an observer cannot distinguish "unknown email" from "wrong password" by
// response timing. Always fails.
func VerifyDummyPassword(password string) error {
	if err := VerifyPassword(password, dummyDigest); err != nil {
		return err
	}

	return ErrPasswordMismatch
}

// splits a PHC digest into its 6 dollar-separated components and validates
// the algorithm and version markers
func splitDigest(encoded string) ([]string, error) {
	parts := strings.Split(encoded, "$")

	// expected structure: ["", "argon2id", "v=19", "m=X,t=Y,p=Z", "salt", "hash"]
	if len(parts) != 6 {
		return nil, errors.New("invalid digest format: expected 6 parts")
	}

	if parts[1] != "argon2id" {
		return nil, errors.New("invalid digest format: not argon2id")
	}

	if parts[2] != "v=19" {
		return nil, errors.New("invalid digest format: wrong version")
	}

	return parts, nil
}
