// Package auth mints and checks the signed tokens that guard the catalog's
// mutating endpoints.
package auth

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	RoleAdmin = "admin"

	issuer    = "locations-server"
	minSecret = 32
	leeway    = 30 * time.Second
)

// ErrInvalidToken is returned for tokens that fail signature, expiry or
// claim checks.
var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

func (c *Claims) IsAdmin() bool {
	return c.Role == RoleAdmin
}

func signingKey() ([]byte, error) {
	secret := os.Getenv("JWT_SECRET")
	switch {
	case secret == "":
		return nil, fmt.Errorf("JWT_SECRET is not set")
	case len(secret) < minSecret:
		return nil, fmt.Errorf("JWT_SECRET must be at least %d characters long", minSecret)
	}
	return []byte(secret), nil
}

// GenerateJWT mints a token for subject with the given role, valid for ttl.
// Each token carries a random id so issued tokens can be told apart in logs.
func GenerateJWT(subject, role string, ttl time.Duration) (string, error) {
	switch {
	case subject == "":
		return "", fmt.Errorf("cannot generate JWT: subject is required")
	case role == "":
		return "", fmt.Errorf("cannot generate JWT: role is required")
	case ttl <= 0:
		return "", fmt.Errorf("cannot generate JWT: ttl must be positive")
	}

	key, err := signingKey()
	if err != nil {
		return "", fmt.Errorf("cannot generate JWT: %w", err)
	}

	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
}

// ValidateJWT accepts only HS256 tokens issued by this service that carry an
// expiry and a subject.
func ValidateJWT(tokenString string) (*Claims, error) {
	key, err := signingKey()
	if err != nil {
		return nil, fmt.Errorf("cannot validate JWT: %w", err)
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenString, claims,
		func(*jwt.Token) (any, error) { return key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(leeway),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}
	return claims, nil
}
