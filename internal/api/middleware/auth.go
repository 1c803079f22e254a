package middleware

import (
	"context"
	"log/slog"
	"net/http"

	apierrors "github.com/logtower/logtower/internal/api/errors"
	"github.com/logtower/logtower/internal/auth"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// SubjectKey is the context key for the authenticated subject.
const SubjectKey contextKey = "subject"

// GetSubject extracts the authenticated subject from the request context.
func GetSubject(ctx context.Context) string {
	if v := ctx.Value(SubjectKey); v != nil {
		return v.(string)
	}
	return ""
}

// AuthMiddleware validates bearer tokens on incoming requests.
type AuthMiddleware struct {
	service *auth.Service
	logger  *slog.Logger
}

// NewAuthMiddleware creates a new authentication middleware.
func NewAuthMiddleware(service *auth.Service, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		service: service,
		logger:  logger,
	}
}

// Authenticate validates the Authorization header. WebSocket clients cannot
// set headers from the browser API, so the token may also arrive as a
// `token` query parameter.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := auth.ExtractBearerToken(r.Header.Get("Authorization"))
		if token == "" {
			token = r.URL.Query().Get("token")
		}

		claims, err := m.service.ValidateToken(token)
		if err != nil {
			m.logger.Debug("token validation failed", "error", err)
			apierrors.WriteError(w, apierrors.NewUnauthorizedError("Invalid or missing token"))
			return
		}

		ctx := context.WithValue(r.Context(), SubjectKey, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
