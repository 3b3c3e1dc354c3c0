// Package pgstore persists board snapshots in a Postgres JSONB row.
package pgstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
)

const schema = `
CREATE TABLE IF NOT EXISTS scoreboard_snapshots (
	id         TEXT PRIMARY KEY,
	state      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// Repository stores one snapshot row per board key
type Repository struct {
	pool *pgxpool.Pool
	key  string
}

// New connects to Postgres and makes sure the snapshot table exists.
func New(ctx context.Context, dsn, key string) (*Repository, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("create pgx pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ensure snapshot table: %w", err)
	}

	log.Info().Str("key", key).Msg("postgres snapshot store ready")
	return &Repository{pool: pool, key: key}, nil
}

// Save upserts the snapshot row.
func (r *Repository) Save(ctx context.Context, state models.ScoreboardState) error {
	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = r.pool.Exec(ctx, `
		INSERT INTO scoreboard_snapshots (id, state, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (id) DO UPDATE SET state = EXCLUDED.state, updated_at = now()`,
		r.key, data)
	if err != nil {
		return fmt.Errorf("upsert snapshot: %w", err)
	}
	return nil
}

// Load reads the snapshot row, or returns nil when there is none.
func (r *Repository) Load(ctx context.Context) (*models.ScoreboardState, error) {
	var data []byte
	err := r.pool.QueryRow(ctx, `SELECT state FROM scoreboard_snapshots WHERE id = $1`, r.key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("select snapshot: %w", err)
	}

	var state models.ScoreboardState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("unmarshal snapshot: %w", err)
	}
	return &state, nil
}

// Close releases the pool.
func (r *Repository) Close() {
	r.pool.Close()
}
