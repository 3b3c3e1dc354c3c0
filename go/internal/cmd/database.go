package main

import (
	"context"
	"fmt"

	"github.com/mcdev12/improvscore/go/internal/archive"
	"github.com/mcdev12/improvscore/go/internal/config"
	"github.com/mcdev12/improvscore/go/internal/dbconfig"
	"github.com/mcdev12/improvscore/go/internal/store"
	"github.com/mcdev12/improvscore/go/internal/store/boltstore"
	"github.com/mcdev12/improvscore/go/internal/store/pgstore"
	"github.com/mcdev12/improvscore/go/internal/store/valkeystore"
	"github.com/rs/zerolog/log"
)

// setupPersister opens the snapshot backend named in cfg. The returned
// close func is never nil.
func setupPersister(ctx context.Context, cfg config.Config) (store.Persister, func(), error) {
	switch cfg.Persister {
	case config.PersisterBolt:
		db, err := boltstore.Open(cfg.BoltPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil

	case config.PersisterPostgres:
		dbCfg, err := dbconfig.NewConfigFromEnv()
		if err != nil {
			return nil, nil, err
		}
		repo, err := pgstore.New(ctx, dbCfg.DSN(), cfg.PostgresKey)
		if err != nil {
			return nil, nil, err
		}
		log.Info().
			Str("database", dbCfg.Database).
			Str("host", dbCfg.Host).
			Msg("connected to snapshot database")
		return repo, repo.Close, nil

	case config.PersisterValkey:
		vs, err := valkeystore.New(valkeystore.Config{
			Addr:     cfg.ValkeyAddr,
			Password: cfg.ValkeyPassword,
			Key:      cfg.ValkeyKey,
		})
		if err != nil {
			return nil, nil, err
		}
		return vs, vs.Close, nil

	case config.PersisterMemory:
		log.Warn().Msg("board snapshots are not persisted")
		return nil, func() {}, nil
	}
	return nil, nil, fmt.Errorf("unknown persister %q", cfg.Persister)
}

// setupArchive opens the round history archive, or returns nil when no DSN
// is configured.
func setupArchive(ctx context.Context, cfg config.Config) (*archive.Archive, error) {
	if cfg.ArchiveDSN == "" {
		return nil, nil
	}
	a, err := archive.Open(ctx, cfg.ArchiveDSN, nil)
	if err != nil {
		return nil, err
	}
	log.Info().Str("game_id", a.GameID().String()).Msg("round archive ready")
	return a, nil
}
