package handler

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/yourorg/crmbridge/internal/authflow"
	"github.com/yourorg/crmbridge/internal/session"
)

type stubDriver struct {
	tokenErr error
	credErr  error
}

func (d stubDriver) LoginWithToken(_ context.Context, _, _ string) error { return d.tokenErr }
func (d stubDriver) LoginWithCredentials(_ context.Context, _, _ string) error {
	return d.credErr
}

func TestBootstrapLandingURLToken(t *testing.T) {
	merger := authflow.NewMerger(stubDriver{}, authflow.NewMemoryContextStore(), session.Credentials{}, nil)
	h := NewBootstrapHandler(merger, nil)

	req := httptest.NewRequest("GET", "/api/session", nil)
	req.Header.Set("X-Landing-URL", "/invoice/read/9?token=tok-1&userId=u-1&page=3")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AuthMethod != "token" || !resp.AutoLogin {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.RedirectTo != "/invoice/read/9?page=3" {
		t.Errorf("expected redirect to the landing page with auth params stripped, got %s", resp.RedirectTo)
	}
	if resp.SessionID == "" {
		t.Error("expected a session id to be minted")
	}
}

func TestBootstrapFallsBackToRequestURL(t *testing.T) {
	merger := authflow.NewMerger(stubDriver{}, authflow.NewMemoryContextStore(), session.Credentials{}, nil)
	h := NewBootstrapHandler(merger, nil)

	req := httptest.NewRequest("GET", "/api/session?token=tok-1&userId=u-1", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AuthMethod != "token" || !resp.AutoLogin {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if resp.RedirectTo != "/api/session" {
		t.Errorf("expected request URL used without a landing header, got %s", resp.RedirectTo)
	}
}

func TestBootstrapMalformedLandingURLIgnored(t *testing.T) {
	merger := authflow.NewMerger(stubDriver{}, authflow.NewMemoryContextStore(), session.Credentials{}, nil)
	h := NewBootstrapHandler(merger, nil)

	req := httptest.NewRequest("GET", "/api/session?token=tok-1&userId=u-1", nil)
	req.Header.Set("X-Landing-URL", "%zz")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AuthMethod != "token" {
		t.Fatalf("expected fallback to request URL auth params, got %+v", resp)
	}
}

func TestBootstrapReusesProvidedSession(t *testing.T) {
	store := authflow.NewMemoryContextStore()
	merger := authflow.NewMerger(stubDriver{}, store, session.Credentials{}, nil)
	h := NewBootstrapHandler(merger, nil)

	req := httptest.NewRequest("GET", "/api/session?email=a@b.example", nil)
	req.Header.Set("X-Session-ID", "sess-fixed")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.SessionID != "sess-fixed" {
		t.Fatalf("expected provided session id kept, got %s", resp.SessionID)
	}
	ac, _ := store.Read(context.Background(), "sess-fixed")
	if ac.AuthMethod != authflow.MethodEmail {
		t.Errorf("expected email context persisted, got %+v", ac)
	}
}

func TestBootstrapManualURL(t *testing.T) {
	merger := authflow.NewMerger(stubDriver{}, authflow.NewMemoryContextStore(), session.Credentials{}, nil)
	h := NewBootstrapHandler(merger, nil)

	req := httptest.NewRequest("GET", "/api/session", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp BootstrapResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AuthMethod != "manual" || resp.AutoLogin {
		t.Fatalf("unexpected response: %+v", resp)
	}
}
