package auth

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
)

// tokenBytes gives 256 bits of entropy per token.
const tokenBytes = 32

// GenerateSessionToken creates a cryptographically unpredictable opaque token,
// encoded URL-safe. Fails only when the entropy source is exhausted, which is
// fatal and surfaced to the caller as an internal error.
func GenerateSessionToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate session token: %w", err)
	}
	return base64.URLEncoding.EncodeToString(b), nil
}
