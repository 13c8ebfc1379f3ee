package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v4"
)

var (
	// ErrTokenExpired signals that the provided token has expired.
	ErrTokenExpired = errors.New("auth: token expired")
	// ErrTokenInvalid signals that the provided token is invalid for other reasons.
	ErrTokenInvalid = errors.New("auth: token invalid")
)

// TokenVerifier validates a bearer token and extracts the caller identity.
type TokenVerifier interface {
	VerifyToken(ctx context.Context, token string) (*Identity, error)
}

type tokenClaims struct {
	Email         string `json:"email"`
	Name          string `json:"name"`
	Role          string `json:"role"`
	AccountStatus string `json:"status"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HMAC signed tokens issued by the account service.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier constructs a verifier for HS256 signed tokens.
func NewJWTVerifier(secret string) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	return &JWTVerifier{secret: []byte(secret)}, nil
}

// VerifyToken implements TokenVerifier.
func (v *JWTVerifier) VerifyToken(_ context.Context, token string) (*Identity, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	uid := strings.TrimSpace(claims.Subject)
	if uid == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrTokenInvalid)
	}

	return &Identity{
		UID:           uid,
		Email:         strings.TrimSpace(claims.Email),
		Name:          strings.TrimSpace(claims.Name),
		Role:          strings.ToLower(strings.TrimSpace(claims.Role)),
		AccountStatus: strings.ToLower(strings.TrimSpace(claims.AccountStatus)),
	}, nil
}
