// Package authflow merges the three authentication contexts (token SSO, email
// SSO, manual login) into one session on application load.
package authflow

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/yourorg/crmbridge/internal/infrastructure/redis"
)

// Method is the active authentication method. At most one is active at a
// time; a URL token always beats a URL email on initial load.
type Method string

const (
	MethodManual Method = "manual"
	MethodToken  Method = "token"
	MethodEmail  Method = "email"
)

// AuthContext is the session-scoped record of how the user authenticated.
// Cleared on explicit logout or session expiry, never persisted beyond that.
type AuthContext struct {
	AuthMethod Method `json:"authMethod"`
	AuthToken  string `json:"authToken,omitempty"`
	TenantID   string `json:"tenantId,omitempty"`
	UserEmail  string `json:"userEmail,omitempty"`
}

// ContextStore persists the auth context per gateway session. Read, write and
// clear are its only operations; that keeps the side effects auditable and
// testable without touching shared globals.
type ContextStore interface {
	Read(ctx context.Context, sessionID string) (*AuthContext, error)
	Write(ctx context.Context, sessionID string, ac *AuthContext) error
	Clear(ctx context.Context, sessionID string) error
}

// sessionTTL bounds how long an auth context outlives its last write.
const sessionTTL = 12 * time.Hour

// RedisContextStore keeps auth contexts in Redis keyed by session id.
type RedisContextStore struct {
	client *redis.Client
}

// NewRedisContextStore creates a Redis-backed context store
func NewRedisContextStore(client *redis.Client) *RedisContextStore {
	return &RedisContextStore{client: client}
}

func contextKey(sessionID string) string { return "authctx:" + sessionID }

// Read returns the stored context, or a manual-method default when absent.
func (s *RedisContextStore) Read(ctx context.Context, sessionID string) (*AuthContext, error) {
	raw, err := s.client.Get(ctx, contextKey(sessionID))
	if errors.Is(err, redis.ErrNotFound) {
		return &AuthContext{AuthMethod: MethodManual}, nil
	}
	if err != nil {
		return nil, err
	}
	ac := &AuthContext{}
	if err := json.Unmarshal([]byte(raw), ac); err != nil {
		return nil, err
	}
	return ac, nil
}

func (s *RedisContextStore) Write(ctx context.Context, sessionID string, ac *AuthContext) error {
	raw, err := json.Marshal(ac)
	if err != nil {
		return err
	}
	return s.client.Set(ctx, contextKey(sessionID), string(raw), sessionTTL)
}

func (s *RedisContextStore) Clear(ctx context.Context, sessionID string) error {
	return s.client.Delete(ctx, contextKey(sessionID))
}

// MemoryContextStore is an in-process context store used in tests and when no
// Redis is configured.
type MemoryContextStore struct {
	mu       sync.RWMutex
	contexts map[string]*AuthContext
}

// NewMemoryContextStore creates an in-memory context store
func NewMemoryContextStore() *MemoryContextStore {
	return &MemoryContextStore{contexts: map[string]*AuthContext{}}
}

func (s *MemoryContextStore) Read(_ context.Context, sessionID string) (*AuthContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if ac, ok := s.contexts[sessionID]; ok {
		copied := *ac
		return &copied, nil
	}
	return &AuthContext{AuthMethod: MethodManual}, nil
}

func (s *MemoryContextStore) Write(_ context.Context, sessionID string, ac *AuthContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *ac
	s.contexts[sessionID] = &copied
	return nil
}

func (s *MemoryContextStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, sessionID)
	return nil
}
