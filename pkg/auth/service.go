package auth

import (
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
)

// TokenCookieName is the cookie browser clients carry their token in.
const TokenCookieName = "drugovery_jwt"

// AuthService authenticates incoming requests.
type AuthService interface {
	// ValidateRequest reads the token from the Authorization header
	// ("Bearer <token>") or, when the header is absent, from the
	// TokenCookieName cookie, and validates it.
	ValidateRequest(r *http.Request) (*Claims, error)
}

type authService struct {
	validator TokenValidator
	logger    *zap.Logger
}

// NewAuthService creates a new AuthService with the given validator and logger.
func NewAuthService(validator TokenValidator, logger *zap.Logger) AuthService {
	return &authService{
		validator: validator,
		logger:    logger.Named("auth"),
	}
}

var _ AuthService = (*authService)(nil)

func (s *authService) ValidateRequest(r *http.Request) (*Claims, error) {
	token, source, err := bearerToken(r)
	if err != nil {
		s.logger.Debug("No usable token in request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return nil, err
	}

	claims, err := s.validator.ValidateToken(token)
	if err != nil {
		s.logger.Debug("Token rejected",
			zap.String("path", r.URL.Path),
			zap.String("token_source", source),
			zap.Error(err))
		return nil, err
	}
	return claims, nil
}

// bearerToken extracts the raw token and reports where it came from.
func bearerToken(r *http.Request) (token, source string, err error) {
	if header := r.Header.Get("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		token = strings.TrimSpace(token)
		if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
			return "", "", ErrInvalidAuthFormat
		}
		return token, "header", nil
	}

	if cookie, err := r.Cookie(TokenCookieName); err == nil && cookie.Value != "" {
		return cookie.Value, "cookie", nil
	}
	return "", "", ErrMissingAuthorization
}
