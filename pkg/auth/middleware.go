package auth

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"
)

// Middleware guards API routes with AuthService.
type Middleware struct {
	authService AuthService
	logger      *zap.Logger
}

// NewMiddleware creates a new auth middleware with the given AuthService.
func NewMiddleware(authService AuthService, logger *zap.Logger) *Middleware {
	return &Middleware{
		authService: authService,
		logger:      logger,
	}
}

// RequireAuth rejects unauthenticated requests with 401 and otherwise
// passes the caller's claims to next through the request context.
func (m *Middleware) RequireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, err := m.authService.ValidateRequest(r)
		if err != nil {
			message := "Invalid or expired token"
			if errors.Is(err, ErrMissingAuthorization) {
				message = "Authentication required"
			}
			m.unauthorized(w, message)
			return
		}

		next(w, r.WithContext(WithClaims(r.Context(), claims)))
	}
}

func (m *Middleware) unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="drugovery"`)
	w.WriteHeader(http.StatusUnauthorized)
	if err := json.NewEncoder(w).Encode(map[string]string{
		"error":   "unauthorized",
		"message": message,
	}); err != nil {
		m.logger.Error("Failed to write unauthorized response", zap.Error(err))
	}
}
