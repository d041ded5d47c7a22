package handler

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/yourorg/crmbridge/internal/authflow"
	"github.com/yourorg/crmbridge/internal/security/auth"
)

func newLoginFixture(t *testing.T) (*LoginHandler, *authflow.MemoryContextStore, *auth.TokenManager) {
	t.Helper()
	tm := auth.NewTokenManager("test-secret", "crmbridge")
	us := auth.NewUserStore()
	if err := us.AddUser("alice@example.com", "Password123", "tenant-1", "u-1"); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	store := authflow.NewMemoryContextStore()
	return NewLoginHandler(tm, us, store, nil, nil), store, tm
}

func TestLoginSuccess(t *testing.T) {
	h, store, tm := newLoginFixture(t)

	req := httptest.NewRequest("POST", "/api/login", strings.NewReader(`{"email":"alice@example.com","password":"Password123"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var resp LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Token == "" || resp.SessionID == "" || resp.UserID != "u-1" {
		t.Fatalf("unexpected response: %+v", resp)
	}

	claims, err := tm.ValidateToken(resp.Token)
	if err != nil {
		t.Fatalf("issued token invalid: %v", err)
	}
	if claims.SessionID != resp.SessionID {
		t.Errorf("token session mismatch: %s vs %s", claims.SessionID, resp.SessionID)
	}

	ac, _ := store.Read(req.Context(), resp.SessionID)
	if ac.AuthMethod != authflow.MethodManual || ac.UserEmail != "alice@example.com" {
		t.Errorf("unexpected persisted context: %+v", ac)
	}
}

func TestLoginWrongPassword(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	req := httptest.NewRequest("POST", "/api/login", strings.NewReader(`{"email":"alice@example.com","password":"wrong"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 401 {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestLoginMissingFields(t *testing.T) {
	h, _, _ := newLoginFixture(t)

	req := httptest.NewRequest("POST", "/api/login", strings.NewReader(`{"email":"alice@example.com"}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	if rec.Code != 400 {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}
