// Package boltstore persists board snapshots in a local bbolt file.
package boltstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcdev12/improvscore/go/internal/models"
	"github.com/rs/zerolog/log"
	bolt "go.etcd.io/bbolt"
)

const (
	bucketName  = "snapshots"
	currentKey  = "current"
	openTimeout = time.Second
)

// DB is a bbolt backed snapshot persister
type DB struct {
	db *bolt.DB
}

// Open opens (or creates) the snapshot file at path.
func Open(path string) (*DB, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: openTimeout})
	if err != nil {
		return nil, fmt.Errorf("open bolt file %s: %w", path, err)
	}

	if err := db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(bucketName))
		return err
	}); err != nil {
		db.Close()
		return nil, fmt.Errorf("create bucket: %w", err)
	}

	log.Info().Str("path", path).Msg("bolt snapshot store opened")
	return &DB{db: db}, nil
}

// Save overwrites the stored snapshot.
func (d *DB) Save(ctx context.Context, state models.ScoreboardState) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	if err := d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return fmt.Errorf("bucket %s not found", bucketName)
		}
		return b.Put([]byte(currentKey), data)
	}); err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return nil
}

// Load returns the stored snapshot, or nil when the file holds none.
func (d *DB) Load(ctx context.Context) (*models.ScoreboardState, error) {
	var state *models.ScoreboardState

	if err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketName))
		if b == nil {
			return nil
		}
		data := b.Get([]byte(currentKey))
		if data == nil {
			return nil
		}
		var s models.ScoreboardState
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal snapshot: %w", err)
		}
		state = &s
		return nil
	}); err != nil {
		return nil, fmt.Errorf("view transaction: %w", err)
	}
	return state, nil
}

// Close closes the underlying file.
func (d *DB) Close() error {
	if err := d.db.Close(); err != nil {
		return fmt.Errorf("close bolt file: %w", err)
	}
	return nil
}
