package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	// ErrTokenExpired is returned for well-formed, correctly signed tokens past exp.
	ErrTokenExpired = errors.New("token expired")
)

// Claims is the subset of the backend's access-token payload the services rely on.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// NewClaims builds claims for subject valid from now for ttl. A negative ttl yields an
// already expired token.
func NewClaims(subject, role string, ttl time.Duration) Claims {
	issued := time.Now()
	return Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issued),
			ExpiresAt: jwt.NewNumericDate(issued.Add(ttl)),
		},
	}
}

// SignHS256 signs claims with the shared backend secret.
func SignHS256(claims Claims, secret string) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// rawPayload returns the decoded claims segment of a verified token. It is forwarded as-is
// to the database so row-level security sees exactly what the backend issued.
func rawPayload(p *jwt.Parser, token string) ([]byte, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, ErrInvalidToken
	}
	return p.DecodeSegment(parts[1])
}

func classify(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return ErrInvalidToken
}
