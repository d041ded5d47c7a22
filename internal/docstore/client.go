package docstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/yourorg/crmbridge/internal/domain"
	"github.com/yourorg/crmbridge/internal/reliability/circuitbreaker"
	"github.com/yourorg/crmbridge/internal/reliability/retry"
)

// UniqueID asks the store to mint a document identifier on create.
const UniqueID = "unique()"

// CreatedAtField is the store-managed creation timestamp attribute. Listing
// and searching always order by it, descending; stable pagination depends on
// that ordering.
const CreatedAtField = "$createdAt"

// Collection describes a collection in the document database.
type Collection struct {
	ID   string `json:"$id"`
	Name string `json:"name"`
}

// CollectionList is the store's collection listing response.
type CollectionList struct {
	Total       int          `json:"total"`
	Collections []Collection `json:"collections"`
}

// DocumentList is the store's document listing response.
type DocumentList struct {
	Total     int               `json:"total"`
	Documents []domain.Document `json:"documents"`
}

// Options configures the document store client.
type Options struct {
	BaseURL    string
	ProjectID  string
	DatabaseID string
	HTTPClient *http.Client
	Retry      *retry.Config
	Breaker    *circuitbreaker.CircuitBreaker
	Logger     *slog.Logger
}

// Client talks to the document database and its auth provider over HTTP. It
// holds the active session secret; the session guard owns when that secret is
// established or cleared.
type Client struct {
	baseURL    string
	projectID  string
	databaseID string
	httpClient *http.Client
	retryCfg   *retry.Config
	breaker    *circuitbreaker.CircuitBreaker
	logger     *slog.Logger

	mu      sync.RWMutex
	session string
}

// NewClient creates a document store client
func NewClient(opts Options) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	retryCfg := opts.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    baseURL,
		projectID:  opts.ProjectID,
		databaseID: opts.DatabaseID,
		httpClient: httpClient,
		retryCfg:   retryCfg,
		breaker:    opts.Breaker,
		logger:     logger,
	}
}

// SetSession installs the session secret sent on subsequent requests.
func (c *Client) SetSession(secret string) {
	c.mu.Lock()
	c.session = secret
	c.mu.Unlock()
}

// SessionSecret returns the active session secret, empty if none.
func (c *Client) SessionSecret() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.session
}

// ClearSession drops the local session secret.
func (c *Client) ClearSession() {
	c.mu.Lock()
	c.session = ""
	c.mu.Unlock()
}

// Ping checks that the store is reachable. Used by readiness probes.
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil, nil)
}

// ListCollections lists the collections of the configured database.
func (c *Client) ListCollections(ctx context.Context) (*CollectionList, error) {
	out := &CollectionList{}
	path := fmt.Sprintf("/databases/%s/collections", c.databaseID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListDocuments lists documents of a collection, applying query primitives.
func (c *Client) ListDocuments(ctx context.Context, collectionID string, queries []Query) (*DocumentList, error) {
	out := &DocumentList{}
	path := fmt.Sprintf("/databases/%s/collections/%s/documents", c.databaseID, collectionID)
	params := url.Values{}
	for _, q := range queries {
		params.Add("queries[]", string(q))
	}
	if err := c.do(ctx, http.MethodGet, path, params, nil, out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateDocument creates a document. Pass UniqueID to let the store mint the id.
func (c *Client) CreateDocument(ctx context.Context, collectionID, documentID string, data map[string]any) (domain.Document, error) {
	out := domain.Document{}
	path := fmt.Sprintf("/databases/%s/collections/%s/documents", c.databaseID, collectionID)
	body := map[string]any{"documentId": documentID, "data": data}
	if err := c.do(ctx, http.MethodPost, path, nil, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetDocument fetches a document by id.
func (c *Client) GetDocument(ctx context.Context, collectionID, documentID string) (domain.Document, error) {
	out := domain.Document{}
	path := fmt.Sprintf("/databases/%s/collections/%s/documents/%s", c.databaseID, collectionID, documentID)
	if err := c.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateDocument applies a partial update to a document.
func (c *Client) UpdateDocument(ctx context.Context, collectionID, documentID string, data map[string]any) (domain.Document, error) {
	out := domain.Document{}
	path := fmt.Sprintf("/databases/%s/collections/%s/documents/%s", c.databaseID, collectionID, documentID)
	body := map[string]any{"data": data}
	if err := c.do(ctx, http.MethodPatch, path, nil, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// DeleteDocument removes a document by id.
func (c *Client) DeleteDocument(ctx context.Context, collectionID, documentID string) error {
	path := fmt.Sprintf("/databases/%s/collections/%s/documents/%s", c.databaseID, collectionID, documentID)
	return c.do(ctx, http.MethodDelete, path, nil, nil, nil)
}

// do runs one store operation with retries and the circuit breaker. Requests
// retry on 429, 5xx and network failures; other statuses fail immediately.
func (c *Client) do(ctx context.Context, method, path string, params url.Values, body, out any) error {
	op := method + " " + path
	if c.breaker != nil && !c.breaker.AllowRequest() {
		return &domain.TransportError{Store: "docstore", Op: op, Err: errors.New("circuit open")}
	}

	_, err := retry.Do(ctx, c.retryCfg, c.logger, op, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, c.attempt(ctx, method, path, params, body, out)
	})

	if c.breaker != nil {
		var te *domain.TransportError
		if errors.As(err, &te) {
			c.breaker.RecordFailure()
		} else {
			c.breaker.RecordSuccess()
		}
	}
	return err
}

func (c *Client) attempt(ctx context.Context, method, path string, params url.Values, body, out any) error {
	endpoint := c.baseURL + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return retry.Permanent(fmt.Errorf("encode request: %w", err))
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return retry.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.projectID != "" {
		req.Header.Set("X-Docstore-Project", c.projectID)
	}
	if secret := c.SessionSecret(); secret != "" {
		req.Header.Set("X-Docstore-Session", secret)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &domain.TransportError{Store: "docstore", Op: method + " " + path, Err: err}
	}
	respBody, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return &domain.TransportError{Store: "docstore", Op: method + " " + path, Err: readErr}
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(respBody) == 0 {
			return nil
		}
		if err := json.Unmarshal(respBody, out); err != nil {
			return retry.Permanent(fmt.Errorf("decode response: %w", err))
		}
		return nil
	}

	if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
		return &domain.TransportError{
			Store: "docstore",
			Op:    method + " " + path,
			Err:   fmt.Errorf("status %d: %s", resp.StatusCode, errorMessage(respBody)),
		}
	}

	return retry.Permanent(mapStatusError(resp.StatusCode, path, respBody))
}

func mapStatusError(status int, path string, body []byte) error {
	message := errorMessage(body)
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return &domain.AuthError{Reason: message}
	case http.StatusNotFound:
		return &domain.NotFoundError{Kind: "resource", Name: path}
	default:
		return fmt.Errorf("docstore request failed: status=%d message=%s", status, message)
	}
}

func errorMessage(body []byte) string {
	var parsed struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	}
	if json.Unmarshal(body, &parsed) == nil && strings.TrimSpace(parsed.Message) != "" {
		return parsed.Message
	}
	return strings.TrimSpace(string(body))
}
