package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/bigkaa/volkrin/catalog-service/internal/cache"
)

// invalidator сбрасывает кэш каталога после подтверждённых мутаций.
//
// Перед удалением снимка списка в cache.GenKey записывается новое поколение.
// Читатель списка сверяет поколение до чтения БД и после записи снимка:
// если оно изменилось, снимок мог быть прочитан до мутации и удаляется.
type invalidator struct {
	cache CacheStore
	// genTTL — TTL ключа поколения; не меньше TTL снимка
	genTTL time.Duration
	logger *slog.Logger
}

// catalogChanged отмечает новое поколение и удаляет снимок списка
// вместе с дополнительными ключами.
func (v *invalidator) catalogChanged(ctx context.Context, keys ...string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if !v.cache.Set(ctx, cache.GenKey, []byte(uuid.NewString()), v.genTTL) {
		v.logger.Warn("Не удалось обновить поколение каталога")
	}
	v.delete(ctx, append([]string{cache.ListKey}, keys...)...)
}

// generation возвращает текущее поколение; пустая строка — ключа нет.
func (v *invalidator) generation(ctx context.Context) string {
	data, _ := v.cache.Get(ctx, cache.GenKey)
	return string(data)
}

// storeList записывает снимок списка, прочитанный при поколении gen.
// Если поколение успело смениться, снимок удаляется.
func (v *invalidator) storeList(ctx context.Context, data []byte, ttl time.Duration, gen string) {
	if !v.cache.Set(ctx, cache.ListKey, data, ttl) {
		return
	}
	if v.generation(ctx) == gen {
		return
	}
	v.logger.Debug("Каталог изменился во время чтения, снимок отброшен")
	v.delete(ctx, cache.ListKey)
}

// delete удаляет ключи кэша. Выполняется и после отмены контекста
// запроса: мутация в БД уже подтверждена.
func (v *invalidator) delete(ctx context.Context, keys ...string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if !v.cache.Delete(ctx, key) {
			v.logger.Warn("Инвалидация кэша не удалась, запись истечёт по TTL",
				slog.String("key", key),
			)
		}
	}
}
