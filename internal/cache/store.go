package cache

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus-метрики кэша.
var (
	cacheHitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cs_cache_hits_total",
		Help: "Общее количество попаданий в кэш каталога.",
	}, []string{"family"})
	cacheMissesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cs_cache_misses_total",
		Help: "Общее количество промахов кэша каталога.",
	}, []string{"family"})
	cacheErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cs_cache_errors_total",
		Help: "Количество ошибок бэкенда кэша (подавленных).",
	}, []string{"op"})
)

// Store — кэш с контрактом soft-fail.
// Каждая операция ограничена собственным таймаутом; ошибки бэкенда
// логируются и никогда не возвращаются вызывающему.
type Store struct {
	backend   Backend
	opTimeout time.Duration
	logger    *slog.Logger
}

// NewStore создаёт Store поверх backend.
// opTimeout — предельное время одной операции кэша.
func NewStore(backend Backend, opTimeout time.Duration, logger *slog.Logger) *Store {
	return &Store{
		backend:   backend,
		opTimeout: opTimeout,
		logger:    logger.With(slog.String("component", "cache")),
	}
}

// Get возвращает значение по ключу.
// (nil, false) — промах, в том числе при ошибке бэкенда.
func (s *Store) Get(ctx context.Context, key string) ([]byte, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	val, err := s.backend.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrMiss) {
			s.fail("get", key, err)
		}
		cacheMissesTotal.WithLabelValues(keyFamily(key)).Inc()
		return nil, false
	}
	cacheHitsTotal.WithLabelValues(keyFamily(key)).Inc()
	return val, true
}

// Set записывает значение с TTL (0 — без истечения).
// Возвращает false, если запись не удалась.
func (s *Store) Set(ctx context.Context, key string, value []byte, ttl time.Duration) bool {
	if ttl < 0 {
		s.logger.Warn("Отрицательный TTL, запись в кэш пропущена",
			slog.String("key", key),
			slog.Duration("ttl", ttl),
		)
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.backend.Set(ctx, key, value, ttl); err != nil {
		s.fail("set", key, err)
		return false
	}
	return true
}

// Delete удаляет ключ. Возвращает false, если удаление не удалось.
func (s *Store) Delete(ctx context.Context, key string) bool {
	ctx, cancel := context.WithTimeout(ctx, s.opTimeout)
	defer cancel()

	if err := s.backend.Delete(ctx, key); err != nil {
		s.fail("del", key, err)
		return false
	}
	return true
}

// CheckReady проверяет доступность бэкенда кэша для проверки готовности.
// Недоступный кэш не делает сервис неготовым, поэтому статус — "degraded".
func (s *Store) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.opTimeout)
	defer cancel()

	if err := s.backend.Ping(ctx); err != nil {
		return "degraded", fmt.Sprintf("кэш недоступен: %v", err)
	}
	return "ok", "кэш доступен"
}

// Close закрывает бэкенд.
func (s *Store) Close() error {
	return s.backend.Close()
}

func (s *Store) fail(op, key string, err error) {
	cacheErrorsTotal.WithLabelValues(op).Inc()
	s.logger.Warn("Ошибка операции кэша",
		slog.String("op", op),
		slog.String("key", key),
		slog.String("error", err.Error()),
	)
}
