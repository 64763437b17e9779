// Пакет cache — хранилище кэша каталога.
// Store — soft-fail обёртка над Backend: ошибки бэкенда логируются
// и превращаются в промах или no-op, наружу не пробрасываются.
// Бэкенды: Redis (go-redis) и in-process LRU (golang-lru/expirable).
package cache

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrMiss — ключ отсутствует в кэше (или истёк).
var ErrMiss = errors.New("ключ отсутствует в кэше")

// Backend — транспортный уровень кэша.
// Значения — непрозрачные байты, бэкенд их не интерпретирует.
type Backend interface {
	// Get возвращает значение или ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set записывает значение. ttl == 0 — без истечения.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	// Delete удаляет ключ. Удаление отсутствующего ключа — не ошибка.
	Delete(ctx context.Context, key string) error
	// Ping проверяет доступность бэкенда.
	Ping(ctx context.Context) error
	// Close освобождает ресурсы бэкенда.
	Close() error
}

// Ключи кэша каталога.
const (
	// ListKey — снимок всего каталога.
	ListKey = "catalog:all"
	// GenKey — поколение каталога, меняется при каждой мутации.
	GenKey = "catalog:gen"
	// linkKeyPrefix — префикс ключа кэшированной ссылки трека.
	linkKeyPrefix = "catalog:link:"
)

// LinkKey возвращает ключ кэшированной ссылки для трека id.
func LinkKey(id string) string {
	return linkKeyPrefix + id
}

// keyFamily возвращает семейство ключа для лейбла метрик.
func keyFamily(key string) string {
	switch {
	case key == ListKey:
		return "list"
	case key == GenKey:
		return "gen"
	case strings.HasPrefix(key, linkKeyPrefix):
		return "link"
	default:
		return "other"
	}
}
