package storage

import (
	"errors"
	"fmt"

	"github.com/annel0/mmo-tools/internal/config"
	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/annel0/mmo-tools/internal/logging"
)

// ErrUnknownDriver драйвер хранилища не поддерживается
var ErrUnknownDriver = errors.New("unknown storage driver")

// Open создаёт репозиторий инвентарей по секции storage конфигурации
func Open(cfg config.StorageConfig, logger *logging.Logger) (inventory.Repository, error) {
	log := logger.OrDefault()

	switch cfg.Driver {
	case "", config.StorageMemory:
		log.Warn("⚠️ Инвентари хранятся в памяти и теряются при перезапуске")
		return NewMemoryInventoryRepo(), nil

	case config.StorageBadger:
		repo, err := NewBadgerInventoryRepo(cfg.Path)
		if err != nil {
			return nil, err
		}
		log.Info("💾 Инвентари: BadgerDB %s", cfg.Path)
		return repo, nil

	case config.StorageRedis:
		repo, err := NewRedisInventoryRepo(&RedisConfig{
			Addr:      cfg.Addr,
			Password:  cfg.Password,
			DB:        cfg.DB,
			KeyPrefix: cfg.KeyPrefix,
		})
		if err != nil {
			return nil, err
		}
		log.Info("💾 Инвентари: Redis %s", cfg.Addr)
		return repo, nil

	case config.StorageMaria:
		repo, err := NewMariaInventoryRepo(cfg.DSN)
		if err != nil {
			return nil, err
		}
		log.Info("💾 Инвентари: MariaDB")
		return repo, nil

	case config.StorageMongo:
		repo, err := NewMongoInventoryRepo(MongoConfig{
			URI:        cfg.URI,
			Database:   cfg.Database,
			Collection: cfg.Collection,
		})
		if err != nil {
			return nil, err
		}
		log.Info("💾 Инвентари: MongoDB %s", cfg.URI)
		return repo, nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownDriver, cfg.Driver)
	}
}
