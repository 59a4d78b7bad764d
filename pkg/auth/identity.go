package auth

import (
	"context"
	"net/http"
	"strings"
)

// Role is the caller class resolved from the API key.
type Role int

const (
	RoleUnauth Role = iota
	RoleFrontend
	RoleBackend
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleFrontend:
		return "frontend"
	case RoleBackend:
		return "backend"
	case RoleAdmin:
		return "admin"
	}
	return "unauth"
}

// SecConfig carries the gateway's security settings.
type SecConfig struct {
	AllowedOrigins []string
	RPS            float64
	Burst          int
	FrontendKeys   map[string]struct{}
	BackendKeys    map[string]struct{}
	AdminKeys      map[string]struct{}
}

type ctxUserKey struct{}
type ctxRoleKey struct{}

// WithIdentity stores the resolved user id and role on the context.
func WithIdentity(ctx context.Context, userID string, role Role) context.Context {
	ctx = context.WithValue(ctx, ctxUserKey{}, userID)
	return context.WithValue(ctx, ctxRoleKey{}, role)
}

// UserIDFromContext returns the resolved user id or empty string. The core
// never authenticates; it only reads the identity the gateway resolved.
func UserIDFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(ctxUserKey{}).(string); ok {
		return s
	}
	return ""
}

// RoleFromContext returns the caller role (RoleUnauth when absent).
func RoleFromContext(ctx context.Context) Role {
	if r, ok := ctx.Value(ctxRoleKey{}).(Role); ok {
		return r
	}
	return RoleUnauth
}

// apiKey extracts the key from Authorization: Bearer <key> or X-API-Key.
func apiKey(r *http.Request) string {
	if a := r.Header.Get("Authorization"); strings.HasPrefix(strings.ToLower(a), "bearer ") {
		return strings.TrimSpace(a[7:])
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}

func resolveRole(key string, cfg SecConfig) Role {
	if key == "" {
		return RoleUnauth
	}
	if _, ok := cfg.AdminKeys[key]; ok {
		return RoleAdmin
	}
	if _, ok := cfg.BackendKeys[key]; ok {
		return RoleBackend
	}
	if _, ok := cfg.FrontendKeys[key]; ok {
		return RoleFrontend
	}
	return RoleUnauth
}
