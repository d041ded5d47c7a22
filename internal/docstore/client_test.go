package docstore

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/yourorg/crmbridge/internal/domain"
	"github.com/yourorg/crmbridge/internal/reliability/retry"
)

func fastRetry() *retry.Config {
	return &retry.Config{
		MaxAttempts:       3,
		InitialBackoff:    time.Millisecond,
		MaxBackoff:        5 * time.Millisecond,
		BackoffMultiplier: 2.0,
	}
}

func newTestClient(serverURL string) *Client {
	return NewClient(Options{
		BaseURL:    serverURL,
		ProjectID:  "proj-1",
		DatabaseID: "crm",
		Retry:      fastRetry(),
	})
}

func TestListDocumentsSendsQueriesAndHeaders(t *testing.T) {
	var gotQueries []string
	var gotProject, gotSession string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/databases/crm/collections/col-1/documents" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		gotQueries = r.URL.Query()["queries[]"]
		gotProject = r.Header.Get("X-Docstore-Project")
		gotSession = r.Header.Get("X-Docstore-Session")
		json.NewEncoder(w).Encode(DocumentList{
			Total:     1,
			Documents: []domain.Document{{"$id": "doc-1", "name": "Acme"}},
		})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	c.SetSession("sess-secret")

	listing, err := c.ListDocuments(context.Background(), "col-1", []Query{Limit(10), Offset(20)})
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if listing.Total != 1 || listing.Documents[0]["$id"] != "doc-1" {
		t.Fatalf("unexpected listing: %+v", listing)
	}
	if len(gotQueries) != 2 {
		t.Errorf("expected 2 query primitives, got %v", gotQueries)
	}
	if gotProject != "proj-1" || gotSession != "sess-secret" {
		t.Errorf("missing store headers: project=%q session=%q", gotProject, gotSession)
	}
}

func TestCreateDocumentBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			DocumentID string         `json:"documentId"`
			Data       map[string]any `json:"data"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body.DocumentID != UniqueID {
			t.Errorf("expected unique id sentinel, got %q", body.DocumentID)
		}
		json.NewEncoder(w).Encode(domain.Document{"$id": "doc-9", "name": body.Data["name"]})
	}))
	defer srv.Close()

	doc, err := newTestClient(srv.URL).CreateDocument(context.Background(), "col-1", UniqueID, map[string]any{"name": "Acme"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if doc["$id"] != "doc-9" {
		t.Fatalf("unexpected document: %v", doc)
	}
}

func TestUnauthorizedMapsToAuthError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		json.NewEncoder(w).Encode(map[string]string{"message": "missing scope", "type": "general_unauthorized_scope"})
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).CurrentSession(context.Background())
	var ae *domain.AuthError
	if !errors.As(err, &ae) {
		t.Fatalf("expected AuthError, got %v", err)
	}
	if ae.Reason != "missing scope" {
		t.Errorf("expected store message carried, got %q", ae.Reason)
	}
}

func TestNotFoundMapsToNotFoundError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).GetDocument(context.Background(), "col-1", "missing")
	var nf *domain.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestServerErrorsRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		json.NewEncoder(w).Encode(CollectionList{Total: 0})
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).ListCollections(context.Background()); err != nil {
		t.Fatalf("expected retries to succeed, got %v", err)
	}
	if calls.Load() != 3 {
		t.Errorf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestClientErrorsNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).ListCollections(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if calls.Load() != 1 {
		t.Errorf("4xx must not be retried, got %d attempts", calls.Load())
	}
}

func TestEmailSessionInstallsSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/account/sessions/email" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(Session{ID: "sess-1", UserID: "u-1", Secret: "top-secret"})
	}))
	defer srv.Close()

	c := newTestClient(srv.URL)
	sess, err := c.CreateEmailSession(context.Background(), "a@b.example", "pw")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if sess.UserID != "u-1" {
		t.Errorf("unexpected session: %+v", sess)
	}
	if c.SessionSecret() != "top-secret" {
		t.Errorf("session secret not installed")
	}

	c.ClearSession()
	if c.SessionSecret() != "" {
		t.Errorf("session secret not cleared")
	}
}
