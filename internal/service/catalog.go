// catalog.go — сервис каталога треков.
// Координирует БД, объектное хранилище, выдачу ссылок и кэш (cache-aside).
//
// Порядок мутаций фиксирован: запись в БД → побочные эффекты в хранилище →
// инвалидация кэша → ответ. Инвалидация выполняется строго после
// подтверждённой записи и до возврата результата.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/volkrin/catalog-service/internal/cache"
	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
	"github.com/bigkaa/volkrin/catalog-service/internal/repository"
)

// Prometheus-метрики каталога.
var (
	trackUploadsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_track_uploads_total",
		Help: "Количество успешно загруженных треков.",
	})
	trackDeletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_track_deletions_total",
		Help: "Количество удалённых треков.",
	})
	compensationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cs_compensations_total",
		Help: "Удаления осиротевших объектов после неудачной загрузки (по результату).",
	}, []string{"result"})
)

// Префиксы ключей объектов.
const (
	audioPrefix     = "audio/"
	thumbnailPrefix = "thumbnails/"
)

// cleanupTimeout — предел на компенсацию и инвалидацию, выполняемые
// даже после отмены контекста запроса.
const cleanupTimeout = 10 * time.Second

// TrackStore — долговременное хранилище каталога.
type TrackStore interface {
	CreateTrack(ctx context.Context, t *model.Track, uploader *model.Uploader) error
	GetTrack(ctx context.Context, id string) (*model.Track, error)
	ListTracks(ctx context.Context) ([]*model.Track, error)
	DeleteTrack(ctx context.Context, id string) error
}

// CacheStore — кэш с контрактом soft-fail: ошибки не возвращаются.
type CacheStore interface {
	Get(ctx context.Context, key string) ([]byte, bool)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool
	Delete(ctx context.Context, key string) bool
}

// ObjectStore — объектное хранилище payload'ов.
type ObjectStore interface {
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// Delete идемпотентен: удаление отсутствующего ключа — не ошибка.
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// LinkIssuer — выдача временных ссылок на чтение.
type LinkIssuer interface {
	Issue(ctx context.Context, key string, ttl time.Duration) (*model.AccessLink, error)
}

// Policy — сроки жизни записей кэша и ссылок.
type Policy struct {
	// ListTTL — TTL снимка каталога
	ListTTL time.Duration
	// LinkTTL — срок действия выдаваемой ссылки
	LinkTTL time.Duration
	// LinkCacheTTL — TTL кэшированной ссылки, не больше LinkTTL
	LinkCacheTTL time.Duration
}

// DefaultPolicy — 600s для списка, 300s для ссылок.
func DefaultPolicy() Policy {
	return Policy{
		ListTTL:      600 * time.Second,
		LinkTTL:      300 * time.Second,
		LinkCacheTTL: 300 * time.Second,
	}
}

// Payload — загружаемый файл.
type Payload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// UploadParams — параметры загрузки трека.
type UploadParams struct {
	Title     string
	Artist    string
	Audio     Payload
	Thumbnail Payload
	// Uploader — загрузивший (из JWT), опционально
	Uploader *model.Uploader
}

// CatalogService — оркестратор операций каталога.
// Состояния между операциями не хранит; согласованность кэша обеспечивается
// порядком шагов внутри каждой операции.
type CatalogService struct {
	store   TrackStore
	cache   CacheStore
	objects ObjectStore
	links   LinkIssuer
	inval   *invalidator
	policy  Policy
	now     func() time.Time
	logger  *slog.Logger
}

// NewCatalogService создаёт сервис каталога.
// LinkCacheTTL больше LinkTTL ограничивается значением LinkTTL.
func NewCatalogService(
	store TrackStore,
	cacheStore CacheStore,
	objects ObjectStore,
	links LinkIssuer,
	policy Policy,
	logger *slog.Logger,
) *CatalogService {
	if policy.LinkCacheTTL > policy.LinkTTL {
		policy.LinkCacheTTL = policy.LinkTTL
	}
	logger = logger.With(slog.String("component", "catalog_service"))
	return &CatalogService{
		store:   store,
		cache:   cacheStore,
		objects: objects,
		links:   links,
		inval:   &invalidator{cache: cacheStore, genTTL: policy.ListTTL, logger: logger},
		policy:  policy,
		now:     time.Now,
		logger:  logger,
	}
}

// UploadItem загружает трек.
//
// Шаги:
//  1. Валидация (ErrValidation, без побочных эффектов)
//  2. Запись аудио, затем обложки; при ошибке обложки аудио удаляется (ErrStorage)
//  3. Запись в БД; при ошибке удаляются оба объекта (ErrPersistence)
//  4. Новое поколение каталога и инвалидация catalog:all
func (s *CatalogService) UploadItem(ctx context.Context, p UploadParams) (*model.Track, error) {
	title := strings.TrimSpace(p.Title)
	if title == "" {
		return nil, validationError("название трека обязательно")
	}
	if len(p.Audio.Data) == 0 {
		return nil, validationError("аудиофайл обязателен")
	}
	if len(p.Thumbnail.Data) == 0 {
		return nil, validationError("обложка обязательна")
	}

	audioKey := objectKey(audioPrefix, p.Audio.Filename)
	thumbnailKey := objectKey(thumbnailPrefix, p.Thumbnail.Filename)

	if err := s.objects.Put(ctx, audioKey, p.Audio.Data, p.Audio.ContentType); err != nil {
		return nil, storageError("запись аудиофайла", err)
	}

	if err := s.objects.Put(ctx, thumbnailKey, p.Thumbnail.Data, p.Thumbnail.ContentType); err != nil {
		s.compensate(ctx, audioKey)
		return nil, storageError("запись обложки", err)
	}

	track := &model.Track{
		ID:           uuid.New().String(),
		Title:        title,
		AudioKey:     audioKey,
		ThumbnailKey: thumbnailKey,
		AudioURL:     s.objects.PublicURL(audioKey),
		ThumbnailURL: s.objects.PublicURL(thumbnailKey),
	}
	if artist := strings.TrimSpace(p.Artist); artist != "" {
		track.Artist = &artist
	}

	if err := s.store.CreateTrack(ctx, track, p.Uploader); err != nil {
		s.compensate(ctx, audioKey, thumbnailKey)
		return nil, persistenceError("сохранение трека", err)
	}

	s.inval.catalogChanged(ctx)

	trackUploadsTotal.Inc()
	s.logger.Info("Трек загружен",
		slog.String("track_id", track.ID),
		slog.String("audio_key", audioKey),
		slog.String("thumbnail_key", thumbnailKey),
	)

	return track, nil
}

// DeleteItem удаляет трек и оба его объекта.
// Ошибки удаления объектов логируются и не прерывают операцию:
// осиротевший объект — мусор, а не нарушение целостности каталога.
func (s *CatalogService) DeleteItem(ctx context.Context, id string) error {
	track, err := s.store.GetTrack(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return persistenceError("получение трека", err)
	}

	for _, key := range []string{track.AudioKey, track.ThumbnailKey} {
		if err := s.objects.Delete(ctx, key); err != nil {
			s.logger.Error("Не удалось удалить объект трека",
				slog.String("track_id", id),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
		}
	}

	if err := s.store.DeleteTrack(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Трек удалён параллельным запросом; кэш всё равно сбрасываем
			s.inval.catalogChanged(ctx, cache.LinkKey(id))
			return ErrNotFound
		}
		return persistenceError("удаление трека", err)
	}

	s.inval.catalogChanged(ctx, cache.LinkKey(id))

	trackDeletionsTotal.Inc()
	s.logger.Info("Трек удалён", slog.String("track_id", id))

	return nil
}

// ListItems возвращает снимок каталога.
// При попадании в кэш снимок возвращается без сверки с БД. При промахе
// снимок записывается в кэш, только если за время чтения БД не было мутаций.
func (s *CatalogService) ListItems(ctx context.Context) ([]*model.Track, error) {
	if data, ok := s.cache.Get(ctx, cache.ListKey); ok {
		var tracks []*model.Track
		err := json.Unmarshal(data, &tracks)
		if err == nil {
			return tracks, nil
		}
		s.logger.Warn("Повреждённый снимок каталога в кэше, запись удалена",
			slog.String("error", err.Error()),
		)
		s.cache.Delete(ctx, cache.ListKey)
	}

	gen := s.inval.generation(ctx)
	tracks, err := s.store.ListTracks(ctx)
	if err != nil {
		return nil, persistenceError("получение списка треков", err)
	}
	if tracks == nil {
		tracks = []*model.Track{}
	}

	if data, err := json.Marshal(tracks); err != nil {
		s.logger.Error("Ошибка сериализации снимка каталога", slog.String("error", err.Error()))
	} else {
		s.inval.storeList(ctx, data, s.policy.ListTTL, gen)
	}

	return tracks, nil
}

// GetItemLink возвращает временную ссылку на аудиофайл трека.
// Выданная ссылка кэшируется; TTL записи не превышает оставшийся срок
// действия ссылки.
func (s *CatalogService) GetItemLink(ctx context.Context, id string) (*model.AccessLink, error) {
	key := cache.LinkKey(id)

	if link, ok := s.cachedLink(ctx, key); ok {
		return link, nil
	}

	track, err := s.store.GetTrack(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, persistenceError("получение трека", err)
	}

	link, err := s.links.Issue(ctx, track.AudioKey, s.policy.LinkTTL)
	if err != nil {
		return nil, storageError("выдача ссылки", err)
	}

	ttl := s.policy.LinkCacheTTL
	if remaining := link.ExpiresAt.Sub(s.now()); remaining < ttl {
		ttl = remaining
	}
	if ttl > 0 {
		if data, err := json.Marshal(link); err == nil {
			s.cache.Set(ctx, key, data, ttl)
		}
	}

	return link, nil
}

// cachedLink читает ссылку из кэша. Повреждённая или истёкшая запись — промах.
func (s *CatalogService) cachedLink(ctx context.Context, key string) (*model.AccessLink, bool) {
	data, ok := s.cache.Get(ctx, key)
	if !ok {
		return nil, false
	}

	var link model.AccessLink
	if err := json.Unmarshal(data, &link); err != nil {
		s.logger.Warn("Повреждённая ссылка в кэше, запись удалена",
			slog.String("key", key),
			slog.String("error", err.Error()),
		)
		s.cache.Delete(ctx, key)
		return nil, false
	}
	if link.Expired(s.now()) {
		return nil, false
	}
	return &link, true
}

// compensate удаляет объекты, записанные неудавшейся загрузкой.
// Ошибки только логируются.
func (s *CatalogService) compensate(ctx context.Context, keys ...string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	for _, key := range keys {
		if err := s.objects.Delete(ctx, key); err != nil {
			compensationsTotal.WithLabelValues("failed").Inc()
			s.logger.Error("Компенсация не удалась, объект осиротел",
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			continue
		}
		compensationsTotal.WithLabelValues("ok").Inc()
		s.logger.Info("Объект неудавшейся загрузки удалён", slog.String("key", key))
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// objectKey формирует уникальный ключ объекта: <prefix><uuid>-<имя>.
func objectKey(prefix, filename string) string {
	return fmt.Sprintf("%s%s-%s", prefix, uuid.New().String(), sanitizeFilename(filename))
}

// sanitizeFilename заменяет последовательности пробельных символов на "_"
// и отбрасывает путь. Пустое имя заменяется на "file".
func sanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, `\`, "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" || name == ".." {
		return "file"
	}
	return whitespaceRun.ReplaceAllString(name, "_")
}
