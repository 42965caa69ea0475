package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/ekaya-inc/taskboard/pkg/apperrors"
)

const managerIssuer = "taskboard"

// ManagerTokens verifies the manager secret and issues short-lived HS256
// tokens carrying the manager role.
type ManagerTokens struct {
	secret     string
	signingKey []byte
	ttl        time.Duration
	now        func() time.Time
}

// NewManagerTokens creates a token issuer. The signing key is derived from
// the manager secret, so rotating the secret invalidates every token.
// An empty secret disables the manager role.
func NewManagerTokens(secret string, ttl time.Duration) *ManagerTokens {
	key := sha256.Sum256([]byte("taskboard-manager:" + secret))
	return &ManagerTokens{
		secret:     secret,
		signingKey: key[:],
		ttl:        ttl,
		now:        time.Now,
	}
}

// Enabled reports whether a manager secret is configured.
func (m *ManagerTokens) Enabled() bool {
	return m.secret != ""
}

// TTL returns the lifetime of issued tokens.
func (m *ManagerTokens) TTL() time.Duration {
	return m.ttl
}

// Verify compares a candidate secret against the configured one in constant
// time.
func (m *ManagerTokens) Verify(candidate string) error {
	if !m.Enabled() {
		return apperrors.ErrManagerSecretNotConfigured
	}
	if subtle.ConstantTimeCompare([]byte(candidate), []byte(m.secret)) != 1 {
		return apperrors.ErrInvalidManagerSecret
	}
	return nil
}

// Issue signs a manager token. It returns the token and its expiry.
func (m *ManagerTokens) Issue() (string, time.Time, error) {
	if !m.Enabled() {
		return "", time.Time{}, apperrors.ErrManagerSecretNotConfigured
	}
	now := m.now()
	expires := now.Add(m.ttl)
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    managerIssuer,
			Subject:   RoleManager,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		Role: RoleManager,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.signingKey)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign manager token: %w", err)
	}
	return signed, expires, nil
}

// ValidateToken parses and verifies a manager token.
func (m *ManagerTokens) ValidateToken(tokenString string) (*Claims, error) {
	if !m.Enabled() {
		return nil, apperrors.ErrManagerSecretNotConfigured
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return m.signingKey, nil
	},
		jwt.WithIssuer(managerIssuer),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !claims.IsManager() {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}
