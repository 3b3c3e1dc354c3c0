// Package valkeystore persists board snapshots under a Valkey key.
package valkeystore

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
	"github.com/valkey-io/valkey-go"
)

// Store keeps the snapshot as a JSON string value
type Store struct {
	client valkey.Client
	key    string
}

// Config holds Valkey connection settings
type Config struct {
	Addr     string
	Password string
	Key      string
}

// New connects to Valkey.
func New(cfg Config) (*Store, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.Addr},
		Password:    cfg.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("connect to valkey: %w", err)
	}

	log.Info().Str("addr", cfg.Addr).Str("key", cfg.Key).Msg("valkey snapshot store ready")
	return &Store{client: client, key: cfg.Key}, nil
}

// Save sets the snapshot value.
func (s *Store) Save(ctx context.Context, state models.ScoreboardState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	cmd := s.client.B().Set().Key(s.key).Value(string(data)).Build()
	if err := s.client.Do(ctx, cmd).Error(); err != nil {
		return fmt.Errorf("set %s: %w", s.key, err)
	}
	return nil
}

// Load gets the snapshot value, or nil when the key is missing.
func (s *Store) Load(ctx context.Context) (*models.ScoreboardState, error) {
	raw, err := s.client.Do(ctx, s.client.B().Get().Key(s.key).Build()).ToString()
	if valkey.IsValkeyNil(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.key, err)
	}

	var state models.ScoreboardState
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &state, nil
}

// Close closes the client.
func (s *Store) Close() {
	s.client.Close()
}
