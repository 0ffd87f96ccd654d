package storage

import (
	"context"
	"fmt"
	"io"

	"supernomad/internal/platform/config"
	platformredis "supernomad/internal/platform/redis"
	"supernomad/internal/storage/memory"
	"supernomad/internal/storage/postgres"
	storeredis "supernomad/internal/storage/redis"
	"supernomad/internal/storage/sqlite"
)

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Open builds the Store selected by cfg.Driver. The returned closer releases
// the backend connection.
func Open(ctx context.Context, cfg config.Storage) (Store, io.Closer, error) {
	switch cfg.Driver {
	case "memory":
		return memory.New(), nopCloser{}, nil
	case "sqlite":
		s, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	case "redis":
		client, err := platformredis.New(ctx, cfg)
		if err != nil {
			return nil, nil, err
		}
		return storeredis.New(client.Client, cfg.RedisPrefix), client, nil
	case "postgres":
		s, err := postgres.Connect(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, nil, err
		}
		return s, s, nil
	default:
		return nil, nil, fmt.Errorf("unsupported storage driver %q", cfg.Driver)
	}
}
