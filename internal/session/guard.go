// Package session guards secondary-store operations behind a valid session,
// auto-establishing one from the available auth context when absent.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/yourorg/crmbridge/internal/docstore"
	"github.com/yourorg/crmbridge/internal/domain"
)

// Credentials is an email/password pair for the auth provider.
type Credentials struct {
	Email    string
	Password string
}

// TokenContext is a userId plus opaque token pending exchange for a session.
type TokenContext struct {
	UserID string
	Secret string
}

// Guard ensures a valid session exists before any secondary-store operation.
// It deliberately re-checks the session on every invocation instead of
// tracking expiry; one extra round-trip per operation buys a simpler model.
type Guard struct {
	client   *docstore.Client
	fallback Credentials
	logger   *slog.Logger

	mu    sync.RWMutex
	token *TokenContext
}

// NewGuard creates a session guard
func NewGuard(client *docstore.Client, fallback Credentials, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{client: client, fallback: fallback, logger: logger}
}

// SetTokenContext installs a token exchange context, tried before the
// fallback credentials when auto-authenticating.
func (g *Guard) SetTokenContext(userID, secret string) {
	g.mu.Lock()
	g.token = &TokenContext{UserID: userID, Secret: secret}
	g.mu.Unlock()
}

func (g *Guard) tokenContext() *TokenContext {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.token
}

func (g *Guard) clearTokenContext() {
	g.mu.Lock()
	g.token = nil
	g.mu.Unlock()
}

// EnsureAuth guarantees a valid session for the rest of the call chain.
// Precedence when none exists: token exchange, then fallback credentials.
// Fails with AuthError when neither applies or the provider is unreachable.
func (g *Guard) EnsureAuth(ctx context.Context) error {
	_, err := g.client.CurrentSession(ctx)
	if err == nil {
		return nil
	}

	var te *domain.TransportError
	if errors.As(err, &te) {
		return &domain.AuthError{Reason: "auth provider unreachable", Err: err}
	}

	if tc := g.tokenContext(); tc != nil {
		if _, err := g.client.CreateTokenSession(ctx, tc.UserID, tc.Secret); err == nil {
			g.logger.Debug("session established via token exchange")
			return nil
		} else {
			g.logger.Warn("token exchange failed, trying fallback credentials",
				slog.String("error", err.Error()),
			)
		}
	}

	if g.fallback.Email != "" && g.fallback.Password != "" {
		_, err := g.client.CreateEmailSession(ctx, g.fallback.Email, g.fallback.Password)
		if err == nil {
			g.logger.Debug("session established via fallback credentials")
			return nil
		}
		if errors.As(err, &te) {
			return &domain.AuthError{Reason: "auth provider unreachable", Err: err}
		}
		return &domain.AuthError{Reason: "fallback login rejected", Err: err}
	}

	return &domain.AuthError{Reason: "no active session and no fallback credentials configured"}
}

// LoginWithToken exchanges a userId plus token for a session.
func (g *Guard) LoginWithToken(ctx context.Context, userID, secret string) error {
	if userID == "" || secret == "" {
		return &domain.AuthError{Reason: "token login requires userId and token"}
	}
	if _, err := g.client.CreateTokenSession(ctx, userID, secret); err != nil {
		return err
	}
	g.SetTokenContext(userID, secret)
	return nil
}

// LoginWithCredentials creates a session from an email/password pair.
func (g *Guard) LoginWithCredentials(ctx context.Context, email, password string) error {
	if email == "" || password == "" {
		return &domain.AuthError{Reason: "email and password required"}
	}
	_, err := g.client.CreateEmailSession(ctx, email, password)
	return err
}

// Logout is best-effort: local session state is cleared even when the remote
// session deletion fails, and the remote failure is reported, not raised.
func (g *Guard) Logout(ctx context.Context) {
	if err := g.client.DeleteCurrentSession(ctx); err != nil {
		g.logger.Warn("remote session deletion failed", slog.String("error", err.Error()))
	}
	g.client.ClearSession()
	g.clearTokenContext()
}
