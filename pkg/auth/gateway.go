package auth

import (
	"net"
	"net/http"
	"strings"

	"noticeboard/pkg/logger"
	"noticeboard/pkg/utils"
)

// Middleware authenticates requests by API key, resolves the caller's
// identity from X-User-ID, applies CORS headers and per-key rate limits,
// and injects identity into the request context. Health and metrics
// endpoints pass through unauthenticated for probes.
func Middleware(cfg SecConfig) func(http.Handler) http.Handler {
	limiters := &limiterPool{cfg: cfg}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && originAllowed(origin, cfg.AllowedOrigins) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Vary", "Origin")
				w.Header().Set("Access-Control-Allow-Methods", "GET,POST,PUT,DELETE,OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Authorization,Content-Type,X-API-Key,X-User-ID")
				w.Header().Set("Access-Control-Max-Age", "600")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusNoContent)
				return
			}

			if openPath(r) {
				next.ServeHTTP(w, r)
				return
			}

			key := apiKey(r)
			role := resolveRole(key, cfg)
			if role == RoleUnauth {
				logger.Warn("request_unauthorized", "path", r.URL.Path, "remote", r.RemoteAddr)
				utils.JSONError(w, http.StatusUnauthorized, "unauthorized")
				return
			}

			limitKey := key
			if limitKey == "" {
				limitKey = clientIP(r)
			}
			if !limiters.Allow(limitKey) {
				logger.Warn("rate_limited", "path", r.URL.Path, "role", role.String())
				utils.JSONError(w, http.StatusTooManyRequests, "rate limit exceeded")
				return
			}

			userID := strings.TrimSpace(r.Header.Get("X-User-ID"))
			if role == RoleFrontend && userID == "" {
				utils.JSONError(w, http.StatusUnauthorized, "X-User-ID required")
				return
			}

			logger.Debug("request_allowed", "method", r.Method, "path", r.URL.Path, "role", role.String(), "user", userID)
			next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), userID, role)))
		})
	}
}

// RequireRole guards a handler behind a minimum role.
func RequireRole(min Role, h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if RoleFromContext(r.Context()) < min {
			utils.JSONError(w, http.StatusForbidden, "forbidden")
			return
		}
		h(w, r)
	}
}

func openPath(r *http.Request) bool {
	if r.Method != http.MethodGet {
		return false
	}
	switch r.URL.Path {
	case "/healthz", "/readyz", "/metrics", "/openapi.yaml":
		return true
	}
	return strings.HasPrefix(r.URL.Path, "/docs/")
}

func originAllowed(origin string, allowed []string) bool {
	for _, a := range allowed {
		if a == "*" || strings.EqualFold(a, origin) {
			return true
		}
	}
	return false
}

func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
