// Package cryptox holds the small set of randomness and hashing helpers the
// account service needs.
package cryptox

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

const (
	TokenSize128 = 16 // 22 chars base64url
	TokenSize256 = 32 // 43 chars base64url
)

// passwordClassSuffix guarantees one character of each class so generated
// passwords pass any identity-provider strength policy. The entropy comes
// from the random part.
const passwordClassSuffix = "-Aa1!"

// GenerateToken creates a cryptographically secure random token of size
// bytes, returned base64url-encoded without padding.
func GenerateToken(size int) (string, error) {
	if size <= 0 {
		return "", fmt.Errorf("token size must be positive, got %d", size)
	}

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}

	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GeneratePassword returns a throwaway password for newly created accounts.
// Nobody is told the value; invitees set their own through the reset email.
func GeneratePassword() (string, error) {
	token, err := GenerateToken(TokenSize256)
	if err != nil {
		return "", err
	}
	return token + passwordClassSuffix, nil
}

// FingerprintToken returns a deterministic SHA-256 fingerprint of token,
// base64url-encoded (43 chars). Used to key stored values by caller-supplied
// secrets without keeping the raw value.
func FingerprintToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
