package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisBackend — бэкенд кэша на Redis.
// Кэш общий для всех экземпляров сервиса.
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend создаёт клиента Redis по URL (redis:// или rediss://).
// Соединение устанавливается лениво, при первой операции.
func NewRedisBackend(redisURL string) (*RedisBackend, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка разбора URL Redis: %w", err)
	}
	// Таймауты операций задаёт Store через контекст
	opts.ContextTimeoutEnabled = true
	// Повторы отключены: ошибка кэша сразу становится промахом
	opts.MaxRetries = -1

	return &RedisBackend{client: redis.NewClient(opts)}, nil
}

// NewRedisBackendFromClient оборачивает готовый клиент.
func NewRedisBackendFromClient(client *redis.Client) *RedisBackend {
	return &RedisBackend{client: client}
}

// Get возвращает значение или ErrMiss.
func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrMiss
		}
		return nil, fmt.Errorf("redis GET: %w", err)
	}
	return val, nil
}

// Set записывает значение. ttl == 0 — ключ без истечения.
func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := b.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis SET: %w", err)
	}
	return nil
}

// Delete удаляет ключ.
func (b *RedisBackend) Delete(ctx context.Context, key string) error {
	if err := b.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis DEL: %w", err)
	}
	return nil
}

// Ping проверяет соединение с Redis.
func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

// Close закрывает пул соединений.
func (b *RedisBackend) Close() error {
	return b.client.Close()
}
