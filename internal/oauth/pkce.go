package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"time"
)

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// GenerateCodeVerifier returns a 43 character base64url verifier built from
// 32 random bytes.
func GenerateCodeVerifier() (string, error) {
	return randomToken(randomTokenBytes)
}

// GenerateCodeChallenge derives the S256 challenge:
// BASE64URL(SHA256(ASCII(code_verifier))) without padding.
func GenerateCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidateCodeChallenge reports whether verifier matches challenge under
// method. Only S256 is accepted.
func ValidateCodeChallenge(verifier, challenge, method string) bool {
	if method != CodeChallengeMethodS256 {
		return false
	}
	if len(verifier) < MinCodeVerifierLength || len(verifier) > MaxCodeVerifierLength {
		return false
	}
	computed := GenerateCodeChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// GenerateState returns an unguessable state parameter.
func GenerateState() (string, error) {
	return randomToken(randomTokenBytes)
}

func newPendingAuthorization(now time.Time) (string, PendingAuthorization, error) {
	state, err := GenerateState()
	if err != nil {
		return "", PendingAuthorization{}, err
	}
	verifier, err := GenerateCodeVerifier()
	if err != nil {
		return "", PendingAuthorization{}, err
	}
	return state, PendingAuthorization{
		Verifier:  verifier,
		Challenge: GenerateCodeChallenge(verifier),
		CreatedAt: now,
	}, nil
}
