// Package primary is the generic CRUD client for the ERP backend's REST API.
// The router treats it as opaque: every call already yields the uniform
// result envelope, passed through unchanged.
package primary

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/yourorg/crmbridge/internal/domain"
)

// Client calls the primary store's generic CRUD endpoints.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger
}

// NewClient creates a primary store client
func NewClient(baseURL string, httpClient *http.Client, logger *slog.Logger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: httpClient,
		logger:     logger,
	}
}

// List fetches a page of an entity listing.
func (c *Client) List(ctx context.Context, entity string, opts domain.ListOptions) (domain.Envelope, error) {
	params := url.Values{}
	params.Set("page", strconv.Itoa(opts.Page))
	params.Set("items", strconv.Itoa(opts.Items))
	return c.call(ctx, http.MethodGet, entity+"/list", params, nil)
}

// Read fetches a single entity record by id.
func (c *Client) Read(ctx context.Context, entity, id string) (domain.Envelope, error) {
	return c.call(ctx, http.MethodGet, entity+"/read/"+url.PathEscape(id), nil, nil)
}

// Create stores a new entity record.
func (c *Client) Create(ctx context.Context, entity string, data domain.Record) (domain.Envelope, error) {
	return c.call(ctx, http.MethodPost, entity+"/create", nil, data)
}

// Update applies changes to an entity record.
func (c *Client) Update(ctx context.Context, entity, id string, data domain.Record) (domain.Envelope, error) {
	return c.call(ctx, http.MethodPatch, entity+"/update/"+url.PathEscape(id), nil, data)
}

// Delete removes an entity record by id.
func (c *Client) Delete(ctx context.Context, entity, id string) (domain.Envelope, error) {
	return c.call(ctx, http.MethodDelete, entity+"/delete/"+url.PathEscape(id), nil, nil)
}

// Search runs a substring search over the entity's searchable fields.
func (c *Client) Search(ctx context.Context, entity string, opts domain.SearchOptions) (domain.Envelope, error) {
	params := url.Values{}
	params.Set("q", opts.Query)
	params.Set("items", strconv.Itoa(opts.Items))
	return c.call(ctx, http.MethodGet, entity+"/search", params, nil)
}

// Filter selects entity records by field equality.
func (c *Client) Filter(ctx context.Context, entity string, opts domain.FilterOptions) (domain.Envelope, error) {
	params := url.Values{}
	params.Set("filter", opts.Field)
	params.Set("equal", opts.Value)
	return c.call(ctx, http.MethodGet, entity+"/filter", params, nil)
}

func (c *Client) call(ctx context.Context, method, path string, params url.Values, body any) (domain.Envelope, error) {
	endpoint := c.baseURL + "/" + path
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return domain.Envelope{}, fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return domain.Envelope{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Envelope{}, &domain.TransportError{Store: "primary", Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	// The primary API reports outcomes inside the envelope, including on
	// non-2xx statuses, so the body is decoded regardless of status.
	var envelope domain.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return domain.Envelope{}, &domain.TransportError{
			Store: "primary",
			Op:    method + " " + path,
			Err:   fmt.Errorf("decode envelope (status %d): %w", resp.StatusCode, err),
		}
	}
	return envelope, nil
}
