// Package gateway fans the board out to control and display surfaces over
// websockets and serves the read side of the HTTP API.
package gateway

import (
	"context"
	"net/http"

	"github.com/rs/zerolog/log"
)

// Config holds configuration for the gateway
type Config struct {
	ConnectionConfig ConnectionConfig
}

// DefaultConfig returns default configuration for the gateway
func DefaultConfig() Config {
	return Config{
		ConnectionConfig: DefaultConnectionConfig(),
	}
}

// Board is what the gateway needs from the state store
type Board interface {
	BoardStore
	SnapshotSource
}

// Service bundles the connection manager and the HTTP handlers
type Service struct {
	connectionManager *ConnectionManager
	wsHandler         *WebSocketHandler
	board             Board
}

// NewService creates the gateway for the board held by the state store.
func NewService(config Config, board Board, opts ...ManagerOption) *Service {
	cm := NewConnectionManager(config.ConnectionConfig, board, opts...)
	return &Service{
		connectionManager: cm,
		wsHandler:         NewWebSocketHandler(cm),
		board:             board,
	}
}

// Connections returns the connection manager, which is also the publisher
// the core services broadcast through.
func (s *Service) Connections() *ConnectionManager {
	return s.connectionManager
}

// Start runs the fan-out loop until ctx is cancelled
func (s *Service) Start(ctx context.Context) error {
	log.Info().Msg("starting scoreboard gateway")
	s.connectionManager.Start(ctx)
	log.Info().Msg("scoreboard gateway stopped")
	return nil
}

// RegisterRoutes registers the websocket and state routes. The match
// ledger publishes through the connection manager, so it is only known once
// the gateway exists.
func (s *Service) RegisterRoutes(mux *http.ServeMux, matches MatchReader) {
	s.wsHandler.RegisterRoutes(mux)
	NewStateHandler(s.board, matches).RegisterStateRoutes(mux)
	log.Info().Msg("gateway routes registered")
}

// GetStats returns statistics about the gateway
func (s *Service) GetStats() ConnectionStats {
	return s.connectionManager.GetConnectionStats()
}
