package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is a verified caller.
type Principal struct {
	UserID string
	Email  string
	Role   string
	// RawClaims is the verified token payload, forwarded to the backend for row-level security.
	RawClaims []byte
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok && p.UserID != ""
}

// Verifier accepts HS256 tokens signed with the shared secret and, when a JWKS client is
// configured, RS256 tokens whose kid resolves through it.
type Verifier struct {
	secret []byte
	jwks   *JWKSClient
	parser *jwt.Parser
}

func NewVerifier(secret string, jwks *JWKSClient) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		jwks:   jwks,
		parser: jwt.NewParser(
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg(), jwt.SigningMethodRS256.Alg()}),
			jwt.WithLeeway(30*time.Second),
		),
	}
}

func (v *Verifier) Verify(ctx context.Context, token string) (Principal, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Principal{}, ErrInvalidToken
	}

	var claims Claims
	if _, err := v.parser.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		return v.key(ctx, t)
	}); err != nil {
		return Principal{}, classify(err)
	}
	if claims.Subject == "" {
		return Principal{}, ErrInvalidToken
	}

	raw, err := rawPayload(v.parser, token)
	if err != nil {
		return Principal{}, ErrInvalidToken
	}
	return Principal{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		RawClaims: raw,
	}, nil
}

func (v *Verifier) key(ctx context.Context, t *jwt.Token) (any, error) {
	switch t.Method.Alg() {
	case jwt.SigningMethodHS256.Alg():
		if len(v.secret) == 0 {
			return nil, errors.New("hs256 secret not configured")
		}
		return v.secret, nil
	case jwt.SigningMethodRS256.Alg():
		kid, _ := t.Header["kid"].(string)
		if kid == "" || v.jwks == nil {
			return nil, errors.New("rs256 token without resolvable kid")
		}
		return v.jwks.Get(ctx, kid)
	default:
		return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
	}
}

func IsExpired(err error) bool {
	return errors.Is(err, ErrTokenExpired)
}
