package cache

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/jaennil/guide_helper/backend/hips/pkg/config"
	"github.com/jaennil/guide_helper/backend/hips/pkg/logger"
)

// NewFromConfig opens the configured backend. It returns a nil store when
// disk caching is disabled.
func NewFromConfig(cfg config.Cache, redisCfg config.Redis, l logger.Logger) (Store, error) {
	var (
		store Store
		err   error
	)

	switch cfg.DiskBackend {
	case "", "none":
		return nil, nil
	case "map":
		store = NewMapCache()
	case "filesystem":
		store, err = NewFilesystemCache(cfg.DiskPath)
	case "sqlite":
		if err := os.MkdirAll(cfg.DiskPath, 0755); err != nil {
			return nil, fmt.Errorf("failed to create cache directory: %w", err)
		}
		store, err = NewSQLiteCache(filepath.Join(cfg.DiskPath, "tiles.db"), l)
	case "badger":
		store, err = NewBadgerCache(cfg.DiskPath, l)
	case "redis":
		store, err = NewRedisCache(RedisConfig{
			Addr:     redisCfg.Addr,
			Password: redisCfg.Password,
			DB:       redisCfg.DB,
			TTL:      redisCfg.TTL,
		})
	default:
		return nil, fmt.Errorf("unknown disk cache backend %q", cfg.DiskBackend)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s cache: %w", cfg.DiskBackend, err)
	}

	if cfg.DiskCompress {
		store = Compressed{Store: store}
	}

	l.Info("disk cache enabled", "backend", cfg.DiskBackend, "compress", cfg.DiskCompress)

	return Instrumented{Store: store, Backend: cfg.DiskBackend}, nil
}
