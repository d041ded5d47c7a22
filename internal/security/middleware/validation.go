package middleware

import (
	"log/slog"
	"net/http"
	"regexp"
	"strings"
)

var entityNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// ValidateJSONContentType middleware ensures POST/PATCH requests have JSON content type
func ValidateJSONContentType(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Only validate POST, PUT, PATCH requests
			if r.Method != http.MethodPost && r.Method != http.MethodPut && r.Method != http.MethodPatch {
				next.ServeHTTP(w, r)
				return
			}

			// Allow requests without body (health checks, etc.)
			if r.ContentLength == 0 {
				next.ServeHTTP(w, r)
				return
			}

			contentType := r.Header.Get("Content-Type")
			if !strings.Contains(contentType, "application/json") {
				log.Warn("invalid content type",
					slog.String("path", r.URL.Path),
					slog.String("content_type", contentType),
					slog.String("method", r.Method),
				)
				http.Error(w, "Content-Type must be application/json", http.StatusUnsupportedMediaType)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// ValidateEntityName middleware rejects malformed entity path segments before
// they reach the router. Entity names are lowercase identifiers.
func ValidateEntityName(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			entity := entityFromPath(r.URL.Path)
			if entity == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !entityNamePattern.MatchString(entity) {
				log.Warn("invalid entity name",
					slog.String("path", r.URL.Path),
					slog.String("entity", entity),
				)
				http.Error(w, `{"success":false,"message":"invalid entity name"}`, http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// LimitBodySize caps request bodies so a misbehaving client cannot stream
// an unbounded payload into an entity write.
func LimitBodySize(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Body != nil {
				r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			}
			next.ServeHTTP(w, r)
		})
	}
}

// SanitizeInputs middleware rejects path traversal attempts
func SanitizeInputs(log *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.Contains(r.URL.Path, "..") || strings.Contains(r.URL.Path, "//") {
				log.Warn("suspicious path pattern detected",
					slog.String("path", r.URL.Path),
				)
				http.Error(w, "Invalid path", http.StatusBadRequest)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
