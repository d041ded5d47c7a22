package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/yourorg/crmbridge/internal/docstore"
	"github.com/yourorg/crmbridge/internal/domain"
	"github.com/yourorg/crmbridge/internal/reliability/retry"
)

// fakeProvider simulates the auth provider's session endpoints. A request is
// authenticated when it carries the secret the provider last issued.
type fakeProvider struct {
	secret       string
	tokenOK      bool
	emailOK      bool
	emailLogins  int
	tokenLogins  int
	currentCalls int
}

func (p *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /account/sessions/current", func(w http.ResponseWriter, r *http.Request) {
		p.currentCalls++
		if p.secret == "" || r.Header.Get("X-Docstore-Session") != p.secret {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "no session"})
			return
		}
		json.NewEncoder(w).Encode(docstore.Session{ID: "sess-1", UserID: "u-1"})
	})
	mux.HandleFunc("POST /account/sessions/token", func(w http.ResponseWriter, r *http.Request) {
		p.tokenLogins++
		if !p.tokenOK {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "bad token"})
			return
		}
		p.secret = "secret-token"
		json.NewEncoder(w).Encode(docstore.Session{ID: "sess-t", UserID: "u-1", Secret: p.secret})
	})
	mux.HandleFunc("POST /account/sessions/email", func(w http.ResponseWriter, r *http.Request) {
		p.emailLogins++
		if !p.emailOK {
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{"message": "bad credentials"})
			return
		}
		p.secret = "secret-email"
		json.NewEncoder(w).Encode(docstore.Session{ID: "sess-e", UserID: "u-2", Secret: p.secret})
	})
	mux.HandleFunc("DELETE /account/sessions/current", func(w http.ResponseWriter, r *http.Request) {
		p.secret = ""
		w.WriteHeader(http.StatusNoContent)
	})
	return mux
}

func newGuardClient(serverURL string) *docstore.Client {
	return docstore.NewClient(docstore.Options{
		BaseURL:    serverURL,
		DatabaseID: "crm",
		Retry: &retry.Config{
			MaxAttempts:       1,
			InitialBackoff:    time.Millisecond,
			MaxBackoff:        time.Millisecond,
			BackoffMultiplier: 1,
		},
	})
}

func TestEnsureAuthExistingSession(t *testing.T) {
	provider := &fakeProvider{secret: "live"}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	client := newGuardClient(srv.URL)
	client.SetSession("live")
	g := NewGuard(client, Credentials{}, nil)

	if err := g.EnsureAuth(context.Background()); err != nil {
		t.Fatalf("expected existing session to satisfy, got %v", err)
	}
	if provider.tokenLogins != 0 || provider.emailLogins != 0 {
		t.Errorf("no login should be attempted with a live session")
	}
}

func TestEnsureAuthTokenPrecedesFallback(t *testing.T) {
	provider := &fakeProvider{tokenOK: true, emailOK: true}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	g := NewGuard(newGuardClient(srv.URL), Credentials{Email: "fb@x.example", Password: "fb"}, nil)
	g.SetTokenContext("u-1", "tok")

	if err := g.EnsureAuth(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if provider.tokenLogins != 1 || provider.emailLogins != 0 {
		t.Errorf("token exchange must precede fallback: token=%d email=%d", provider.tokenLogins, provider.emailLogins)
	}
}

func TestEnsureAuthFallsBackToCredentials(t *testing.T) {
	provider := &fakeProvider{tokenOK: false, emailOK: true}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	g := NewGuard(newGuardClient(srv.URL), Credentials{Email: "fb@x.example", Password: "fb"}, nil)
	g.SetTokenContext("u-1", "expired")

	if err := g.EnsureAuth(context.Background()); err != nil {
		t.Fatalf("ensure failed: %v", err)
	}
	if provider.tokenLogins != 1 || provider.emailLogins != 1 {
		t.Errorf("expected token then email attempts: token=%d email=%d", provider.tokenLogins, provider.emailLogins)
	}
}

func TestEnsureAuthNoOptionsFails(t *testing.T) {
	provider := &fakeProvider{}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	g := NewGuard(newGuardClient(srv.URL), Credentials{}, nil)

	err := g.EnsureAuth(context.Background())
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
}

func TestEnsureAuthUnreachableProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close()

	g := NewGuard(newGuardClient(srv.URL), Credentials{Email: "a", Password: "b"}, nil)

	err := g.EnsureAuth(context.Background())
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if ae.Reason != "auth provider unreachable" {
		t.Errorf("unexpected reason %q", ae.Reason)
	}
}

func TestEnsureAuthRechecksEveryCall(t *testing.T) {
	provider := &fakeProvider{emailOK: true}
	srv := httptest.NewServer(provider.handler())
	defer srv.Close()

	g := NewGuard(newGuardClient(srv.URL), Credentials{Email: "fb@x.example", Password: "fb"}, nil)

	for i := 0; i < 3; i++ {
		if err := g.EnsureAuth(context.Background()); err != nil {
			t.Fatalf("ensure %d failed: %v", i, err)
		}
	}
	if provider.currentCalls != 3 {
		t.Errorf("session must be re-checked per call, got %d checks", provider.currentCalls)
	}
}

func TestLogoutBestEffort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newGuardClient(srv.URL)
	client.SetSession("live")
	g := NewGuard(client, Credentials{}, nil)
	g.SetTokenContext("u-1", "tok")

	g.Logout(context.Background())

	if client.SessionSecret() != "" {
		t.Error("local session must be cleared even when remote deletion fails")
	}
	if g.tokenContext() != nil {
		t.Error("token context must be cleared on logout")
	}
}
