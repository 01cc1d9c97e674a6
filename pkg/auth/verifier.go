// Package auth provides signed-token verification and request identity
// plumbing. Token issuance lives with the identity provider; this package
// only turns an opaque credential into a stable user ID.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingToken means no credential was supplied at all.
	ErrMissingToken = errors.New("missing token")

	// ErrInvalidToken covers malformed tokens, bad signatures, and tokens
	// without a subject.
	ErrInvalidToken = errors.New("invalid token")

	// ErrTokenExpired means the token was valid but is past its expiry.
	ErrTokenExpired = errors.New("token expired")
)

// Verifier validates HMAC-signed JWTs and yields the owning user ID.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier with the given HMAC signing key.
func NewVerifier(secret []byte) (*Verifier, error) {
	if len(secret) == 0 {
		return nil, fmt.Errorf("auth signing key is required")
	}
	return &Verifier{secret: secret}, nil
}

// Verify parses and validates tokenString and returns the subject claim.
// Missing, invalid, and expired credentials are distinguishable via
// errors.Is so transports can surface different close codes.
func (v *Verifier) Verify(tokenString string) (string, error) {
	if tokenString == "" {
		return "", ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return "", ErrTokenExpired
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", fmt.Errorf("%w: missing sub claim", ErrInvalidToken)
	}
	return subject, nil
}

// Sign issues a token for userID with the given lifetime. Used by ops
// tooling and tests; the production issuer is external.
func (v *Verifier) Sign(userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(v.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}
	return signed, nil
}
