package main

import (
	"context"
	"fmt"
	"time"

	"github.com/anidao/anidao/internal/config"
	"github.com/anidao/anidao/internal/session"
	"github.com/anidao/anidao/internal/store"
	"github.com/anidao/anidao/internal/store/boltstore"
	"github.com/anidao/anidao/internal/store/memstore"
	"github.com/anidao/anidao/internal/store/sqlstore"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// openStore opens the content store selected by STORE_DRIVER, migrating SQL schemas
func openStore(cfg *config.Config, logger *logrus.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case "memory":
		logger.Warn("Using in-memory store, data is lost on restart")
		return memstore.New(), nil
	case "bolt":
		return boltstore.Open(cfg.BoltFile)
	case "sqlite", "postgres":
		st, err := openSQLStore(cfg, logger)
		if err != nil {
			return nil, err
		}
		if err := st.Migrate(); err != nil {
			st.Close()
			return nil, err
		}
		return st, nil
	}
	return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
}

func openSQLStore(cfg *config.Config, logger *logrus.Logger) (*sqlstore.Store, error) {
	if cfg.StoreDriver == "postgres" {
		return sqlstore.OpenPostgres(cfg.DatabaseURL, logger)
	}
	return sqlstore.OpenSQLite(cfg.DatabaseFile, logger)
}

// openSessionStore opens the session backend selected by SESSION_STORE
func openSessionStore(ctx context.Context, cfg *config.Config) (session.Store, func() error, error) {
	if cfg.SessionStore != "redis" {
		return session.NewCacheStore(10 * time.Minute), func() error { return nil }, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	return session.NewRedisStore(client), client.Close, nil
}
