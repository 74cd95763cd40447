package main

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/redis/go-redis/v9"

	"github.com/whisperwalls/censor/adapters/rest"
	"github.com/whisperwalls/censor/adapters/storage"
	"github.com/whisperwalls/censor/config"
	"github.com/whisperwalls/censor/interfaces"
)

// openStore builds the preference store named by cfg.Kind. The returned
// closer releases its connections.
func openStore(ctx context.Context, cfg config.StoreConfig) (interfaces.PreferenceStore, func() error, error) {
	noop := func() error { return nil }
	switch cfg.Kind {
	case config.StoreMemory:
		return storage.NewMemoryAdapter(), noop, nil

	case config.StoreSQL:
		db, err := sql.Open("pgx", cfg.SQLDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open sql store: %w", err)
		}
		s, err := storage.NewSQLAdapter(db, cfg.SQLTable, storage.WithDollarPlaceholders())
		if err != nil {
			db.Close()
			return nil, nil, err
		}
		if cfg.SQLMigrate {
			mctx, cancel := context.WithTimeout(ctx, cfg.Timeout.Duration)
			defer cancel()
			if err := s.EnsureSchema(mctx); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("ensure schema: %w", err)
			}
		}
		return s, db.Close, nil

	case config.StoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:         cfg.RedisAddr,
			Password:     cfg.RedisPassword,
			DB:           cfg.RedisDB,
			DialTimeout:  cfg.Timeout.Duration,
			ReadTimeout:  cfg.Timeout.Duration,
			WriteTimeout: cfg.Timeout.Duration,
		})
		s, err := storage.NewRedisAdapter(rdb, cfg.RedisPrefix)
		if err != nil {
			rdb.Close()
			return nil, nil, err
		}
		return s, rdb.Close, nil

	case config.StoreREST:
		s, err := rest.NewPostgRESTAdapter(rest.PostgRESTOptions{
			BaseURL:  cfg.RESTURL,
			APIKey:   cfg.RESTAPIKey,
			Table:    cfg.RESTTable,
			IDColumn: cfg.RESTIDColumn,
			Timeout:  cfg.Timeout.Duration,
		})
		if err != nil {
			return nil, nil, err
		}
		return s, noop, nil
	}
	return nil, nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}
