package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/yourorg/crmbridge/internal/domain"
	"github.com/yourorg/crmbridge/internal/router"
)

// EntityHandler exposes the entity router over HTTP. Every response is a
// result envelope with HTTP 200; failures are flagged inside the envelope,
// not with status codes.
type EntityHandler struct {
	router *router.Router
	logger *slog.Logger
}

// NewEntityHandler creates an entity handler
func NewEntityHandler(rt *router.Router, logger *slog.Logger) *EntityHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EntityHandler{
		router: rt,
		logger: logger,
	}
}

// List handles GET /api/{entity}/list?page=&items=
func (h *EntityHandler) List(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	opts := domain.ListOptions{
		Page:  queryInt(r, "page", 1),
		Items: queryInt(r, "items", 0),
	}
	h.writeEnvelope(w, h.router.List(r.Context(), entity, opts))
}

// Read handles GET /api/{entity}/read/{id}
func (h *EntityHandler) Read(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	id := r.PathValue("id")
	if id == "" {
		h.writeEnvelope(w, domain.Fail(nil, "missing record id"))
		return
	}
	h.writeEnvelope(w, h.router.Read(r.Context(), entity, id))
}

// Create handles POST /api/{entity}/create
func (h *EntityHandler) Create(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	data, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	h.writeEnvelope(w, h.router.Create(r.Context(), entity, data))
}

// Update handles PATCH /api/{entity}/update/{id}
func (h *EntityHandler) Update(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	id := r.PathValue("id")
	if id == "" {
		h.writeEnvelope(w, domain.Fail(nil, "missing record id"))
		return
	}
	data, ok := h.decodeRecord(w, r)
	if !ok {
		return
	}
	h.writeEnvelope(w, h.router.Update(r.Context(), entity, id, data))
}

// Delete handles DELETE /api/{entity}/delete/{id}
func (h *EntityHandler) Delete(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	id := r.PathValue("id")
	if id == "" {
		h.writeEnvelope(w, domain.Fail(nil, "missing record id"))
		return
	}
	h.writeEnvelope(w, h.router.Delete(r.Context(), entity, id))
}

// Search handles GET /api/{entity}/search?q=&items=
func (h *EntityHandler) Search(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	opts := domain.SearchOptions{
		Query: r.URL.Query().Get("q"),
		Items: queryInt(r, "items", 0),
	}
	h.writeEnvelope(w, h.router.Search(r.Context(), entity, opts))
}

// Filter handles GET /api/{entity}/filter?filter=&equal=
func (h *EntityHandler) Filter(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	opts := domain.FilterOptions{
		Field: r.URL.Query().Get("filter"),
		Value: r.URL.Query().Get("equal"),
	}
	h.writeEnvelope(w, h.router.Filter(r.Context(), entity, opts))
}

func (h *EntityHandler) decodeRecord(w http.ResponseWriter, r *http.Request) (domain.Record, bool) {
	var data domain.Record
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		h.logger.Warn("malformed entity payload",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()),
		)
		h.writeEnvelope(w, domain.Fail(nil, "invalid JSON payload"))
		return nil, false
	}
	return data, true
}

func (h *EntityHandler) writeEnvelope(w http.ResponseWriter, envelope domain.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(envelope); err != nil {
		h.logger.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}
