package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/annel0/mmo-tools/internal/inventory"
	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// RedisConfig содержит настройки подключения к Redis
type RedisConfig struct {
	Addr      string        // Адрес Redis сервера
	Password  string        // Пароль (пустой если не требуется)
	DB        int           // Номер базы данных
	KeyPrefix string        // Префикс для ключей
	TTL       time.Duration // Время жизни записей; 0 - без срока
}

// DefaultRedisConfig возвращает конфигурацию по умолчанию
func DefaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:      "localhost:6379",
		KeyPrefix: "tools:inv:",
	}
}

// RedisInventoryRepo хранит инвентари в Redis, значение - сжатый JSON
type RedisInventoryRepo struct {
	client    *redis.Client
	keyPrefix string
	ttl       time.Duration
}

// NewRedisInventoryRepo подключается к Redis и проверяет соединение
func NewRedisInventoryRepo(cfg *RedisConfig) (*RedisInventoryRepo, error) {
	def := DefaultRedisConfig()
	if cfg == nil {
		cfg = def
	}
	if cfg.Addr == "" {
		cfg.Addr = def.Addr
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = def.KeyPrefix
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return newRedisInventoryRepo(client, cfg.KeyPrefix, cfg.TTL), nil
}

func newRedisInventoryRepo(client *redis.Client, prefix string, ttl time.Duration) *RedisInventoryRepo {
	return &RedisInventoryRepo{client: client, keyPrefix: prefix, ttl: ttl}
}

func (r *RedisInventoryRepo) key(agent uuid.UUID) string {
	return r.keyPrefix + agent.String()
}

func (r *RedisInventoryRepo) Save(ctx context.Context, rec inventory.Record) error {
	blob, err := encodeRecord(rec)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, r.key(rec.Agent), blob, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to save inventory: %w", err)
	}
	return nil
}

func (r *RedisInventoryRepo) Load(ctx context.Context, agent uuid.UUID) (inventory.Record, bool, error) {
	blob, err := r.client.Get(ctx, r.key(agent)).Bytes()
	if errors.Is(err, redis.Nil) {
		return inventory.Record{}, false, nil
	}
	if err != nil {
		return inventory.Record{}, false, fmt.Errorf("failed to get inventory: %w", err)
	}

	rec, err := decodeRecord(blob)
	if err != nil {
		return inventory.Record{}, false, err
	}
	return rec, true, nil
}

func (r *RedisInventoryRepo) Delete(ctx context.Context, agent uuid.UUID) error {
	return r.client.Del(ctx, r.key(agent)).Err()
}

// BatchSave пишет инвентари одним пайплайном
func (r *RedisInventoryRepo) BatchSave(ctx context.Context, recs []inventory.Record) error {
	if len(recs) == 0 {
		return nil
	}

	pipe := r.client.Pipeline()
	for _, rec := range recs {
		blob, err := encodeRecord(rec)
		if err != nil {
			return err
		}
		pipe.Set(ctx, r.key(rec.Agent), blob, r.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to flush batch: %w", err)
	}
	return nil
}

func (r *RedisInventoryRepo) Close() error {
	return r.client.Close()
}
