package handler

import (
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/yourorg/crmbridge/internal/domain"
	"github.com/yourorg/crmbridge/internal/router"
	"github.com/yourorg/crmbridge/internal/search"
)

// SearchSocketHandler serves live entity search over WebSocket. Each text
// frame from the client is a query string; frames arriving within the
// debounce window supersede earlier ones, so only the last query in a typing
// burst hits the store.
type SearchSocketHandler struct {
	router         *router.Router
	window         time.Duration
	allowedOrigins []string
	logger         *slog.Logger
}

// NewSearchSocketHandler creates a live search handler
func NewSearchSocketHandler(rt *router.Router, window time.Duration, allowedOrigins []string, logger *slog.Logger) *SearchSocketHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &SearchSocketHandler{
		router:         rt,
		window:         window,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// upgrader is initialized per-request to use instance's allowed origins
func (h *SearchSocketHandler) getUpgrader() websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" {
				// Allow requests with no origin (e.g., non-browser clients)
				return true
			}
			for _, allowed := range h.allowedOrigins {
				if origin == allowed {
					return true
				}
			}
			h.logger.Warn("websocket origin rejected", slog.String("origin", origin))
			return false
		},
	}
}

// ServeHTTP handles WebSocket requests on /ws/search/{entity}
func (h *SearchSocketHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	entity := r.PathValue("entity")
	if entity == "" {
		http.Error(w, "missing entity", http.StatusBadRequest)
		return
	}

	upgrader := h.getUpgrader()
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", slog.String("error", err.Error()))
		return
	}
	defer ws.Close()

	ctx := r.Context()

	// gorilla permits one concurrent writer; the debounce timer and the
	// heartbeat both write, so serialize through writeMu.
	var writeMu sync.Mutex
	writeJSON := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return ws.WriteJSON(v)
	}

	debouncer := search.NewDebouncer(h.window, func(query string) {
		envelope := h.router.Search(ctx, entity, domain.SearchOptions{Query: query})
		if err := writeJSON(searchResult{Query: query, Envelope: envelope}); err != nil {
			h.logger.Debug("websocket closed",
				slog.String("entity", entity),
				slog.String("reason", err.Error()),
			)
		}
	})
	defer debouncer.Cancel()

	// Heartbeat ping to keep connection alive
	done := make(chan struct{})
	defer close(done)
	go func() {
		ticker := time.NewTicker(15 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				writeMu.Lock()
				_ = ws.WriteControl(websocket.PingMessage, []byte("ping"), time.Now().Add(5*time.Second))
				writeMu.Unlock()
			case <-done:
				return
			}
		}
	}()

	for {
		msgType, payload, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Debug("websocket read error",
					slog.String("entity", entity),
					slog.String("error", err.Error()),
				)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		debouncer.Trigger(string(payload))
	}
}

type searchResult struct {
	Query string `json:"query"`
	domain.Envelope
}
