package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/peeyushmeher/cleanswift/libs/config"
)

const devSecret = "dev-secret"

// VerifierFromEnv builds a Verifier from JWT_SECRET and JWKS_URL. At least one of them must be
// set. Only APP_ENV=dev falls back to a well-known development secret.
func VerifierFromEnv() (*Verifier, error) {
	var jwks *JWKSClient
	if url := strings.TrimSpace(config.String("JWKS_URL", "")); url != "" {
		jwks = NewJWKSClient(url, config.Seconds("JWKS_CACHE_SECONDS", 5*time.Minute))
	}

	secret, err := config.RequiredString("JWT_SECRET")
	switch {
	case err == nil:
	case strings.EqualFold(strings.TrimSpace(config.String("APP_ENV", "")), "dev"):
		secret = devSecret
	case jwks == nil:
		return nil, errors.New("JWT_SECRET or JWKS_URL is required")
	}
	return NewVerifier(secret, jwks), nil
}
