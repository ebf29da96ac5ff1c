// Package auth resolves the caller identity carried by HS256 bearer tokens.
package auth

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Leeway tolerates clock skew between the token issuer and this service.
const Leeway = 30 * time.Second

var (
	ErrNoToken      = errors.New("no bearer token")
	ErrInvalidToken = errors.New("invalid token")
)

// Verifier validates bearer tokens and extracts their subject.
type Verifier struct {
	signKey []byte
}

// NewVerifier constructs a Verifier for the given HS256 key.
func NewVerifier(signKey []byte) *Verifier {
	return &Verifier{signKey: signKey}
}

// Subject verifies the token and returns its "sub" claim, the opaque user id.
func (v *Verifier) Subject(token string) (string, error) {
	var claims jwt.RegisteredClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, errors.New("unexpected signing method")
		}
		return v.signKey, nil
	}, jwt.WithLeeway(Leeway))
	if err != nil || !parsed.Valid {
		return "", ErrInvalidToken
	}

	sub := strings.TrimSpace(claims.Subject)
	if sub == "" {
		return "", errors.New("empty subject")
	}
	return sub, nil
}

// Issue signs an HS256 token for subject valid for ttl.
func Issue(signKey []byte, subject string, ttl time.Duration) (string, time.Time, error) {
	now := time.Now()
	exp := now.Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		NotBefore: jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(exp),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(signKey)
	return signed, exp, err
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(header string) (string, error) {
	v := strings.TrimSpace(header)
	if len(v) >= 7 && strings.EqualFold(v[:7], "bearer ") {
		if t := strings.TrimSpace(v[7:]); t != "" {
			return t, nil
		}
	}
	return "", ErrNoToken
}
