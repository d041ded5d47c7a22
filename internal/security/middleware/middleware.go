package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/yourorg/crmbridge/internal/security/audit"
	"github.com/yourorg/crmbridge/internal/security/auth"
	"github.com/yourorg/crmbridge/internal/security/ratelimit"
)

type TenantContextKey struct{}
type ClaimsContextKey struct{}

func isPublicPath(path string) bool {
	return path == "/healthz" || path == "/readyz" || path == "/metrics" ||
		path == "/api/login" || path == "/api/session" ||
		strings.HasPrefix(path, "/ws/search/")
}

// entityFromPath extracts the entity segment from /api/{entity}/... paths.
// Middleware runs before mux routing, so r.PathValue is not populated yet.
func entityFromPath(path string) string {
	if !strings.HasPrefix(path, "/api/") {
		return ""
	}
	parts := strings.Split(strings.TrimPrefix(path, "/api/"), "/")
	if len(parts) < 2 {
		return ""
	}
	switch parts[0] {
	case "login", "logout", "session":
		return ""
	}
	return parts[0]
}

// recordIDFromPath extracts the trailing record id from update/delete paths.
func recordIDFromPath(path string) string {
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 4 {
		return ""
	}
	return parts[len(parts)-1]
}

func JWTMiddleware(tm *auth.TokenManager, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// CORS preflights carry no credentials.
			if r.Method == http.MethodOptions || isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, `{"success":false,"message":"missing auth"}`, http.StatusUnauthorized)
				return
			}

			tokenString, err := auth.ExtractToken(authHeader)
			if err != nil {
				http.Error(w, `{"success":false,"message":"invalid auth"}`, http.StatusUnauthorized)
				return
			}

			claims, err := tm.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, `{"success":false,"message":"invalid token"}`, http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey{}, claims)
			ctx = context.WithValue(ctx, TenantContextKey{}, claims.TenantID)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func RateLimitMiddleware(limiter *ratelimit.Limiter, log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			// Login is public but brute-forceable, so it gets its own
			// stricter per-client budget.
			if r.URL.Path == "/api/login" {
				if !limiter.AllowStrict(ratelimit.ClientKey(r.RemoteAddr), 10, time.Minute) {
					log.Warn("login rate limit exceeded", slog.String("remote", r.RemoteAddr))
					http.Error(w, `{"success":false,"message":"rate limit exceeded"}`, http.StatusTooManyRequests)
					return
				}
				next.ServeHTTP(w, r)
				return
			}
			if isPublicPath(r.URL.Path) {
				next.ServeHTTP(w, r)
				return
			}

			tenantID := ""
			if t := r.Context().Value(TenantContextKey{}); t != nil {
				tenantID = t.(string)
			}

			if !limiter.Allow(tenantID) {
				http.Error(w, `{"success":false,"message":"rate limit exceeded"}`, http.StatusTooManyRequests)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AuditMiddleware records write operations against entity endpoints.
// Paths look like /api/{entity}/create, /api/{entity}/update/{id},
// /api/{entity}/delete/{id}.
func AuditMiddleware(auditLog *audit.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tenantID := ""
			userID := ""
			if t := r.Context().Value(TenantContextKey{}); t != nil {
				tenantID = t.(string)
			}
			if c := r.Context().Value(ClaimsContextKey{}); c != nil {
				claims := c.(*auth.Claims)
				userID = claims.UserID
			}

			entity := entityFromPath(r.URL.Path)
			switch {
			case entity == "":
				// Not an entity endpoint, nothing to record.
			case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/create"):
				auditLog.LogAction(r.Context(), tenantID, userID, "create", entity, "", "initiated", "")
			case r.Method == http.MethodPatch && strings.Contains(r.URL.Path, "/update/"):
				auditLog.LogAction(r.Context(), tenantID, userID, "update", entity, recordIDFromPath(r.URL.Path), "initiated", "")
			case r.Method == http.MethodDelete && strings.Contains(r.URL.Path, "/delete/"):
				auditLog.LogAction(r.Context(), tenantID, userID, "delete", entity, recordIDFromPath(r.URL.Path), "initiated", "")
			}

			next.ServeHTTP(w, r)
		})
	}
}

func GetTenantFromContext(ctx context.Context) string {
	if t := ctx.Value(TenantContextKey{}); t != nil {
		return t.(string)
	}
	return ""
}

func GetClaimsFromContext(ctx context.Context) *auth.Claims {
	if c := ctx.Value(ClaimsContextKey{}); c != nil {
		return c.(*auth.Claims)
	}
	return nil
}
