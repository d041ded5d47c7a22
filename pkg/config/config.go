package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application configuration
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	RedisURL           string
	CORSAllowedOrigins []string

	// Primary store: the ERP backend's generic CRUD REST API.
	PrimaryAPIURL string

	// Secondary store: the document database / auth service.
	DocstoreEndpoint  string
	DocstoreProjectID string
	DocstoreDatabase  string

	// Fallback credentials used when a session must be auto-established and
	// no token context is present. Shipping defaults is observed behavior of
	// the deployment this replaces, not a recommendation.
	FallbackEmail    string
	FallbackPassword string

	DebounceWindow   time.Duration
	DefaultListItems int
	SearchItems      int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	port, err := strconv.Atoi(getEnv("SERVER_PORT", "8080"))
	if err != nil {
		return nil, fmt.Errorf("invalid SERVER_PORT: %w", err)
	}

	debounceMs, err := strconv.Atoi(getEnv("SEARCH_DEBOUNCE_MS", "400"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_DEBOUNCE_MS: %w", err)
	}

	listItems, err := strconv.Atoi(getEnv("DEFAULT_LIST_ITEMS", "10"))
	if err != nil {
		return nil, fmt.Errorf("invalid DEFAULT_LIST_ITEMS: %w", err)
	}

	searchItems, err := strconv.Atoi(getEnv("SEARCH_ITEMS", "50"))
	if err != nil {
		return nil, fmt.Errorf("invalid SEARCH_ITEMS: %w", err)
	}

	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		ServerPort:  port,
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		RedisURL:    getEnv("REDIS_URL", "redis://localhost:6379"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{
			"http://localhost:5173",
			"http://localhost:3000",
		}),
		PrimaryAPIURL:     getEnv("PRIMARY_API_URL", "http://localhost:8888/api"),
		DocstoreEndpoint:  getEnv("DOCSTORE_ENDPOINT", "http://localhost:9090/v1"),
		DocstoreProjectID: getEnv("DOCSTORE_PROJECT_ID", ""),
		DocstoreDatabase:  getEnv("DOCSTORE_DATABASE_ID", "crm"),
		FallbackEmail:     getEnv("FALLBACK_EMAIL", "admin@admin.com"),
		FallbackPassword:  getEnv("FALLBACK_PASSWORD", "admin123"),
		DebounceWindow:    time.Duration(debounceMs) * time.Millisecond,
		DefaultListItems:  listItems,
		SearchItems:       searchItems,
	}, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
