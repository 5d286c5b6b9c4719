package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"planandgo/internal/config"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
)

// AuthContext holds the authenticated caller for a request.
type AuthContext struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// IsAdmin reports whether the caller has the admin role.
func (a *AuthContext) IsAdmin() bool {
	return a != nil && a.Role == "admin"
}

// GetAuthContext extracts auth context from request context
func GetAuthContext(ctx context.Context) *AuthContext {
	if authCtx, ok := ctx.Value(AuthContextKey).(*AuthContext); ok {
		return authCtx
	}
	return nil
}

// WithAuthContext returns a context carrying the given auth context. Used by
// tests and the middleware itself.
func WithAuthContext(ctx context.Context, authCtx *AuthContext) context.Context {
	return context.WithValue(ctx, AuthContextKey, authCtx)
}

// AuthMiddleware authenticates API requests with JWT bearer tokens issued by
// the account subsystem.
type AuthMiddleware struct {
	cfg    *config.AuthConfig
	logger *zap.Logger
}

// NewAuthMiddleware creates the authentication middleware.
func NewAuthMiddleware(cfg *config.AuthConfig, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{cfg: cfg, logger: logger}
}

type claims struct {
	Username string `json:"username"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// RequireAuth rejects requests without a valid bearer token.
func (m *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authCtx, err := m.authenticate(r)
		if err != nil {
			m.logger.Debug("Authentication failed",
				zap.String("path", r.URL.Path),
				zap.Error(err),
			)
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"success":false,"error":{"type":"AUTHENTICATION_ERROR","message":"authentication required"}}`, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithAuthContext(r.Context(), authCtx)))
	})
}

// RequireAdmin rejects authenticated callers without the admin role.
func (m *AuthMiddleware) RequireAdmin(next http.Handler) http.Handler {
	return m.RequireAuth(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetAuthContext(r.Context()).IsAdmin() {
			w.Header().Set("Content-Type", "application/json")
			http.Error(w, `{"success":false,"error":{"type":"AUTHORIZATION_ERROR","message":"admin role required"}}`, http.StatusForbidden)
			return
		}
		next.ServeHTTP(w, r)
	}))
}

func (m *AuthMiddleware) authenticate(r *http.Request) (*AuthContext, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return nil, fmt.Errorf("missing authorization header")
	}
	tokenString, ok := strings.CutPrefix(header, "Bearer ")
	if !ok {
		return nil, fmt.Errorf("authorization header is not a bearer token")
	}

	var c claims
	token, err := jwt.ParseWithClaims(tokenString, &c, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(m.cfg.JWTSecret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token is not valid")
	}

	var userID int64
	if _, err := fmt.Sscan(c.Subject, &userID); err != nil || userID <= 0 {
		return nil, fmt.Errorf("invalid subject claim %q", c.Subject)
	}

	return &AuthContext{
		UserID:   userID,
		Username: c.Username,
		Role:     c.Role,
	}, nil
}
