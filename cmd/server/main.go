package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/yourorg/crmbridge/internal/authflow"
	"github.com/yourorg/crmbridge/internal/docstore"
	"github.com/yourorg/crmbridge/internal/featureflags"
	"github.com/yourorg/crmbridge/internal/handler"
	"github.com/yourorg/crmbridge/internal/infrastructure/logger"
	"github.com/yourorg/crmbridge/internal/infrastructure/redis"
	"github.com/yourorg/crmbridge/internal/observability/metrics"
	"github.com/yourorg/crmbridge/internal/observability/tracing"
	"github.com/yourorg/crmbridge/internal/primary"
	"github.com/yourorg/crmbridge/internal/reliability/circuitbreaker"
	"github.com/yourorg/crmbridge/internal/reliability/retry"
	"github.com/yourorg/crmbridge/internal/resolver"
	"github.com/yourorg/crmbridge/internal/router"
	"github.com/yourorg/crmbridge/internal/security/audit"
	"github.com/yourorg/crmbridge/internal/security/auth"
	"github.com/yourorg/crmbridge/internal/security/middleware"
	"github.com/yourorg/crmbridge/internal/security/ratelimit"
	"github.com/yourorg/crmbridge/internal/session"
	"github.com/yourorg/crmbridge/pkg/cache"
	"github.com/yourorg/crmbridge/pkg/config"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel)
	log.Info("starting crmbridge server", slog.String("environment", cfg.Environment))

	// 3. Initialize tracing
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	shutdownTracing, err := tracing.Init(ctx, log, "crmbridge", cfg.Environment)
	if err != nil {
		log.Warn("tracing disabled", slog.String("error", err.Error()))
		shutdownTracing = func(context.Context) error { return nil }
	}

	// 4. Initialize Redis client
	redisClient, err := redis.NewClient(cfg.RedisURL)
	if err != nil {
		log.Error("failed to connect to Redis", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer redisClient.Close()

	// 5. Initialize store clients
	breaker := circuitbreaker.New(5, 2, 30*time.Second, func(from, to circuitbreaker.State) {
		metrics.SetCircuitState(int(to))
		log.Warn("docstore circuit state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	httpClient := &http.Client{
		Transport: otelhttp.NewTransport(http.DefaultTransport),
		Timeout:   15 * time.Second,
	}
	docstoreClient := docstore.NewClient(docstore.Options{
		BaseURL:    cfg.DocstoreEndpoint,
		ProjectID:  cfg.DocstoreProjectID,
		DatabaseID: cfg.DocstoreDatabase,
		HTTPClient: httpClient,
		Retry:      retry.DefaultConfig(),
		Breaker:    breaker,
		Logger:     log,
	})
	primaryClient := primary.NewClient(cfg.PrimaryAPIURL, httpClient, log)

	// 6. Session guard and collection resolver for the secondary store
	fallback := session.Credentials{Email: cfg.FallbackEmail, Password: cfg.FallbackPassword}
	guard := session.NewGuard(docstoreClient, fallback, log)
	collectionResolver := resolver.New(docstoreClient, cache.New(), log)

	// 7. Entity router
	routes := router.DefaultRoutes()
	if featureflags.Enabled(featureflags.DisableSecondary) {
		log.Warn("secondary store disabled by flag, all entities route to primary")
		routes = router.Routes{}
	}
	entityRouter := router.New(router.Options{
		Routes:       routes,
		Primary:      primaryClient,
		Secondary:    docstoreClient,
		Guard:        guard,
		Resolver:     collectionResolver,
		DefaultItems: cfg.DefaultListItems,
		SearchItems:  cfg.SearchItems,
		Logger:       log,
	})

	// 8. Auth context merger and gateway user store
	contextStore := authflow.NewRedisContextStore(redisClient)
	merger := authflow.NewMerger(guard, contextStore, fallback, log)

	tokenManager := auth.NewTokenManager(os.Getenv("JWT_SECRET"), "crmbridge")
	userStore := auth.NewUserStore()
	if email := os.Getenv("ADMIN_EMAIL"); email != "" {
		if err := userStore.AddUser(email, os.Getenv("ADMIN_PASSWORD"), "default", "admin"); err != nil {
			log.Error("failed to seed admin user", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	rateLimiter := ratelimit.NewLimiter(100, time.Minute) // 100 requests per minute per tenant
	auditLogger := audit.NewLogger(log)

	// 9. Initialize handlers
	entityHandler := handler.NewEntityHandler(entityRouter, log)
	loginHandler := handler.NewLoginHandler(tokenManager, userStore, contextStore, guard, log)
	bootstrapHandler := handler.NewBootstrapHandler(merger, log)
	searchSocket := handler.NewSearchSocketHandler(entityRouter, cfg.DebounceWindow, cfg.CORSAllowedOrigins, log)
	healthHandler := handler.NewHealthHandler(docstoreClient, redisClient, log)

	// 10. Setup HTTP routes
	mux := http.NewServeMux()
	mux.Handle("POST /api/login", loginHandler)
	mux.HandleFunc("POST /api/logout", loginHandler.Logout)
	mux.Handle("GET /api/session", bootstrapHandler)
	mux.HandleFunc("GET /api/{entity}/list", entityHandler.List)
	mux.HandleFunc("GET /api/{entity}/read/{id}", entityHandler.Read)
	mux.HandleFunc("GET /api/{entity}/search", entityHandler.Search)
	mux.HandleFunc("GET /api/{entity}/filter", entityHandler.Filter)
	mux.HandleFunc("POST /api/{entity}/create", entityHandler.Create)
	mux.HandleFunc("PATCH /api/{entity}/update/{id}", entityHandler.Update)
	mux.HandleFunc("DELETE /api/{entity}/delete/{id}", entityHandler.Delete)
	mux.Handle("GET /ws/search/{entity}", searchSocket)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", healthHandler.Health)
	mux.HandleFunc("/readyz", healthHandler.Ready)

	// CORS middleware honoring configured origins
	handlerWithCORS := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if originAllowed(cfg.CORSAllowedOrigins, origin) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
		} else if len(cfg.CORSAllowedOrigins) > 0 {
			w.Header().Set("Access-Control-Allow-Origin", cfg.CORSAllowedOrigins[0])
		}
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, OPTIONS, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Accept, Authorization, X-Session-ID, X-Landing-URL")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		mux.ServeHTTP(w, r)
	})

	// Chain middleware: request ID -> metrics -> JWT -> rate limit -> audit ->
	// validation -> CORS -> mux. JWT must precede rate limiting and audit so
	// both see the tenant and claims it stores in the context.
	rootHandler := withRequestID(
		metrics.HTTPMetricsMiddleware(
			middleware.JWTMiddleware(tokenManager, log)(
				middleware.RateLimitMiddleware(rateLimiter, log)(
					middleware.AuditMiddleware(auditLogger)(
						middleware.SanitizeInputs(log)(
							middleware.ValidateEntityName(log)(
								middleware.ValidateJSONContentType(log)(
									middleware.LimitBodySize(1<<20)(handlerWithCORS),
								),
							),
						),
					),
				),
			),
		),
		log,
	)

	// 11. Start HTTP server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.String("primary_api", cfg.PrimaryAPIURL),
		slog.String("docstore", cfg.DocstoreEndpoint),
		slog.Duration("search_debounce", cfg.DebounceWindow),
	)

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.String("error", err.Error()))
		}
	}()

	// Wait for shutdown signal
	<-sigChan
	log.Info("shutdown signal received")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}

	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}

	rateLimiter.Stop()
	log.Info("server stopped")
}

type requestIDKey struct{}

// withRequestID attaches a request ID to the context and response headers for traceability
func withRequestID(next http.Handler, log *slog.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := generateRequestID()
		w.Header().Set("X-Request-ID", reqID)

		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		start := time.Now()

		next.ServeHTTP(w, r.WithContext(ctx))

		log.Info("request completed",
			slog.String("request_id", reqID),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Duration("duration_ms", time.Since(start)),
		)
	})
}

func originAllowed(allowed []string, origin string) bool {
	if origin == "" {
		return false
	}
	for _, a := range allowed {
		if a == "*" || a == origin {
			return true
		}
	}
	return false
}

func generateRequestID() string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}
	return fmt.Sprintf("req-%d", time.Now().UnixNano())
}
