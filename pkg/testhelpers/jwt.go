// Package testhelpers provides utilities for testing drugovery components.
package testhelpers

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TestJWTSecret is the HS256 secret used by tests that enable verification.
const TestJWTSecret = "test-secret-do-not-use"

// GenerateTestJWT signs an HS256 token for sub with the given secret.
func GenerateTestJWT(secret, sub, email string) string {
	claims := jwt.MapClaims{
		"sub": sub,
		"iat": time.Now().Unix(),
		"exp": time.Now().Add(time.Hour).Unix(),
	}
	if email != "" {
		claims["email"] = email
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		panic(err)
	}
	return token
}

// GenerateTestJWTWithBearer returns token with "Bearer " prefix for Authorization header.
func GenerateTestJWTWithBearer(secret, sub, email string) string {
	return "Bearer " + GenerateTestJWT(secret, sub, email)
}
