package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenValidator validates a JWT token string and returns its claims.
type TokenValidator interface {
	ValidateToken(tokenString string) (*Claims, error)
}

// ErrMissingSubject is returned for tokens that do not name a user.
var ErrMissingSubject = errors.New("token has no subject")

// HMACValidator validates HS256 tokens signed with a shared secret.
type HMACValidator struct {
	secret []byte
	// enableVerification false parses tokens without checking the
	// signature (development mode).
	enableVerification bool
}

// NewHMACValidator creates an HMACValidator.
func NewHMACValidator(secret string, enableVerification bool) *HMACValidator {
	return &HMACValidator{secret: []byte(secret), enableVerification: enableVerification}
}

var _ TokenValidator = (*HMACValidator)(nil)

// ValidateToken validates a JWT token and returns the claims.
// If verification is disabled, it parses the token without signature validation.
func (v *HMACValidator) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}

	if !v.enableVerification {
		if _, _, err := jwt.NewParser().ParseUnverified(tokenString, claims); err != nil {
			return nil, fmt.Errorf("failed to parse token: %w", err)
		}
	} else {
		_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (any, error) {
			return v.secret, nil
		}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
		if err != nil {
			return nil, fmt.Errorf("invalid token: %w", err)
		}
	}

	if claims.Subject == "" {
		return nil, ErrMissingSubject
	}
	return claims, nil
}
