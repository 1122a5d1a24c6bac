package xoauth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
)

// generateVerifier produces a PKCE code_verifier of at least 512 bits of
// entropy, URL-safe base64 without padding — mirroring
// secrets.token_urlsafe(64) from the original implementation.
func generateVerifier() (string, error) {
	b := make([]byte, 64)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes for verifier: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// generateState produces a cryptographically random state of at least 256
// bits of entropy, URL-safe base64 without padding.
func generateState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("reading random bytes for state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// challenge derives code_challenge = base64url-nopad(SHA-256(verifier)),
// the S256 PKCE transform (§4.6, §8's PKCE round-trip invariant).
func challenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
