package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/yourorg/crmbridge/internal/authflow"
)

// BootstrapResponse reports the auth context decision for an application load.
type BootstrapResponse struct {
	AuthMethod string                `json:"authMethod"`
	RedirectTo string                `json:"redirectTo"`
	AutoLogin  bool                  `json:"autoLogin"`
	SessionID  string                `json:"sessionId"`
	Context    *authflow.AuthContext `json:"context,omitempty"`
}

// BootstrapHandler runs the auth context merger against the URL the client
// landed on. Clients call GET /api/session before showing a login form,
// passing the original browser URL in X-Landing-URL; a token or email in its
// query triggers auto-login, and the redirect target is that page with the
// auth params stripped.
type BootstrapHandler struct {
	merger *authflow.Merger
	logger *slog.Logger
}

// NewBootstrapHandler creates a bootstrap handler
func NewBootstrapHandler(merger *authflow.Merger, logger *slog.Logger) *BootstrapHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BootstrapHandler{merger: merger, logger: logger}
}

// ServeHTTP handles GET /api/session requests
func (h *BootstrapHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	sessionID := r.Header.Get("X-Session-ID")
	if sessionID == "" {
		sessionID = newSessionID()
	}

	// Without a landing URL the request's own query is all there is to
	// merge, and the redirect degrades to this endpoint's path.
	landing := r.URL
	if raw := r.Header.Get("X-Landing-URL"); raw != "" {
		parsed, err := url.Parse(raw)
		if err != nil {
			h.logger.Warn("ignoring malformed landing url",
				slog.String("url", raw),
				slog.String("error", err.Error()),
			)
		} else {
			landing = parsed
		}
	}

	outcome := h.merger.Bootstrap(r.Context(), sessionID, landing)

	h.logger.Info("auth context resolved",
		slog.String("session_id", sessionID),
		slog.String("method", string(outcome.Method)),
		slog.Bool("auto_login", outcome.AutoLogin),
	)

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(BootstrapResponse{
		AuthMethod: string(outcome.Method),
		RedirectTo: outcome.RedirectTo,
		AutoLogin:  outcome.AutoLogin,
		SessionID:  sessionID,
		Context:    outcome.Context,
	}); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}
