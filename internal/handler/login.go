package handler

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/yourorg/crmbridge/internal/authflow"
	"github.com/yourorg/crmbridge/internal/observability/metrics"
	"github.com/yourorg/crmbridge/internal/security/auth"
	"github.com/yourorg/crmbridge/internal/security/middleware"
	"github.com/yourorg/crmbridge/internal/session"
)

// LoginRequest represents login credentials
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse contains the JWT token
type LoginResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expiresAt"`
	TenantID  string    `json:"tenantId"`
	UserID    string    `json:"userId"`
	SessionID string    `json:"sessionId"`
}

// LoginHandler handles manual user authentication against the gateway's own
// user store and records the chosen auth method for the session.
type LoginHandler struct {
	tokenManager *auth.TokenManager
	userStore    *auth.UserStore
	contextStore authflow.ContextStore
	guard        *session.Guard
	logger       *slog.Logger
}

// NewLoginHandler creates a new login handler
func NewLoginHandler(tm *auth.TokenManager, us *auth.UserStore, cs authflow.ContextStore, guard *session.Guard, logger *slog.Logger) *LoginHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &LoginHandler{
		tokenManager: tm,
		userStore:    us,
		contextStore: cs,
		guard:        guard,
		logger:       logger,
	}
}

// ServeHTTP handles POST /api/login requests
func (h *LoginHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Error("failed to decode login request", slog.String("error", err.Error()))
		http.Error(w, `{"success":false,"message":"invalid request"}`, http.StatusBadRequest)
		return
	}

	if req.Email == "" || req.Password == "" {
		http.Error(w, `{"success":false,"message":"email and password required"}`, http.StatusBadRequest)
		return
	}

	user, err := h.userStore.Authenticate(req.Email, req.Password)
	if err != nil {
		h.logger.Warn("authentication failed",
			slog.String("email", req.Email),
			slog.String("error", err.Error()),
		)
		metrics.ObserveLogin(string(authflow.MethodManual), "failed")
		// Generic error to prevent user enumeration
		http.Error(w, `{"success":false,"message":"invalid credentials"}`, http.StatusUnauthorized)
		return
	}

	sessionID := newSessionID()
	expiresIn := 24 * time.Hour
	token, err := h.tokenManager.GenerateToken(user.TenantID, user.ID, user.Email, sessionID, expiresIn)
	if err != nil {
		h.logger.Error("failed to generate token",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		http.Error(w, `{"success":false,"message":"token generation failed"}`, http.StatusInternalServerError)
		return
	}

	if err := h.contextStore.Write(r.Context(), sessionID, &authflow.AuthContext{
		AuthMethod: authflow.MethodManual,
		TenantID:   user.TenantID,
		UserEmail:  user.Email,
	}); err != nil {
		h.logger.Warn("failed to persist auth context", slog.String("error", err.Error()))
	}

	metrics.ObserveLogin(string(authflow.MethodManual), "ok")
	h.logger.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("tenant_id", user.TenantID),
		slog.String("email", user.Email),
	)

	response := LoginResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(expiresIn),
		TenantID:  user.TenantID,
		UserID:    user.ID,
		SessionID: sessionID,
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// Logout handles POST /api/logout. The remote session is torn down
// best-effort and the stored auth context is cleared.
func (h *LoginHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.guard.Logout(r.Context())

	if claims := middleware.GetClaimsFromContext(r.Context()); claims != nil && claims.SessionID != "" {
		if err := h.contextStore.Clear(r.Context(), claims.SessionID); err != nil {
			h.logger.Warn("failed to clear auth context", slog.String("error", err.Error()))
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

func newSessionID() string {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return hex.EncodeToString([]byte(time.Now().String()))[:32]
	}
	return hex.EncodeToString(buf)
}
