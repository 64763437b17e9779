package cache

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// memoryEntry — значение in-process кэша с собственным сроком жизни.
type memoryEntry struct {
	value []byte
	// expiresAt — нулевое значение означает «без истечения»
	expiresAt time.Time
}

// MemoryBackend — in-process бэкенд на expirable LRU.
// LRU ограничивает число записей, срок жизни проверяется по каждой
// записи отдельно, так как TTL у ключей разный.
// Кэш локален для экземпляра: при нескольких репликах инвалидация
// видна только на том экземпляре, где выполнена мутация.
type MemoryBackend struct {
	lru *expirable.LRU[string, memoryEntry]
	now func() time.Time
}

// MemoryOption — опция MemoryBackend.
type MemoryOption func(*MemoryBackend)

// WithClock подменяет источник времени (для тестов).
func WithClock(now func() time.Time) MemoryOption {
	return func(b *MemoryBackend) {
		b.now = now
	}
}

// NewMemoryBackend создаёт in-process бэкенд на maxSize записей.
func NewMemoryBackend(maxSize int, opts ...MemoryOption) *MemoryBackend {
	b := &MemoryBackend{
		// ttl 0: фоновое вытеснение по времени отключено, истечение — в Get
		lru: expirable.NewLRU[string, memoryEntry](maxSize, nil, 0),
		now: time.Now,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Get возвращает копию значения или ErrMiss. Истёкшая запись удаляется.
func (b *MemoryBackend) Get(_ context.Context, key string) ([]byte, error) {
	e, ok := b.lru.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	if !e.expiresAt.IsZero() && !b.now().Before(e.expiresAt) {
		b.lru.Remove(key)
		return nil, ErrMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set записывает копию значения.
func (b *MemoryBackend) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	e := memoryEntry{value: append([]byte(nil), value...)}
	if ttl > 0 {
		e.expiresAt = b.now().Add(ttl)
	}
	b.lru.Add(key, e)
	return nil
}

// Delete удаляет ключ.
func (b *MemoryBackend) Delete(_ context.Context, key string) error {
	b.lru.Remove(key)
	return nil
}

// Ping всегда успешен.
func (b *MemoryBackend) Ping(context.Context) error {
	return nil
}

// Close очищает кэш.
func (b *MemoryBackend) Close() error {
	b.lru.Purge()
	return nil
}
