package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// WebSocketHandler handles websocket upgrade requests for control and
// display surfaces
type WebSocketHandler struct {
	connectionManager *ConnectionManager
}

// NewWebSocketHandler creates a new websocket handler
func NewWebSocketHandler(cm *ConnectionManager) *WebSocketHandler {
	return &WebSocketHandler{connectionManager: cm}
}

// HandleControlConnection handles /ws/control
func (h *WebSocketHandler) HandleControlConnection(w http.ResponseWriter, r *http.Request) {
	h.upgrade(w, r, ChannelControl)
}

// HandleDisplayConnection handles /ws/display
func (h *WebSocketHandler) HandleDisplayConnection(w http.ResponseWriter, r *http.Request) {
	h.upgrade(w, r, ChannelDisplay)
}

func (h *WebSocketHandler) upgrade(w http.ResponseWriter, r *http.Request, channel Channel) {
	// the upgrader writes its own error response
	if err := h.connectionManager.UpgradeConnection(w, r, channel); err != nil {
		log.Error().
			Err(err).
			Str("channel", string(channel)).
			Msg("failed to upgrade websocket connection")
	}
}

// HandleConnectionStats returns statistics about active connections
func (h *WebSocketHandler) HandleConnectionStats(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(h.connectionManager.GetConnectionStats()); err != nil {
		log.Error().Err(err).Msg("failed to encode connection stats")
	}
}

// RegisterRoutes registers websocket routes with an HTTP mux
func (h *WebSocketHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /ws/control", h.HandleControlConnection)
	mux.HandleFunc("GET /ws/display", h.HandleDisplayConnection)
	mux.HandleFunc("GET /ws/stats", h.HandleConnectionStats)
}
