// Пакет database — пул PostgreSQL, миграции схемы каталога и проверка готовности.
package database

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bigkaa/volkrin/catalog-service/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// maxConnectBackoff — верхняя граница паузы между попытками подключения.
const maxConnectBackoff = 30 * time.Second

// readinessTimeout — предел на ping в проверке готовности.
const readinessTimeout = 3 * time.Second

// PoolConfig собирает настройки pgxpool из конфигурации сервиса.
func PoolConfig(cfg *config.Config) (*pgxpool.Config, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseDSN())
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DSN: %w", err)
	}
	poolCfg.MaxConns = cfg.DBMaxConns
	poolCfg.MinConns = cfg.DBMinConns
	poolCfg.ConnConfig.RuntimeParams["application_name"] = "catalog-service"
	return poolCfg, nil
}

// Connect открывает пул и дожидается доступности PostgreSQL.
// Ping повторяется до cfg.DBConnectAttempts раз, пауза удваивается
// начиная с cfg.DBConnectBackoff.
func Connect(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := PoolConfig(cfg)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("ошибка создания пула подключений: %w", err)
	}

	log := logger.With(slog.String("component", "database"))
	if err := pingWithRetry(ctx, pool.Ping, cfg.DBConnectAttempts, cfg.DBConnectBackoff, log); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ошибка подключения к PostgreSQL: %w", err)
	}

	log.Info("Подключение к PostgreSQL установлено",
		slog.String("host", cfg.DBHost),
		slog.Int("port", cfg.DBPort),
		slog.String("database", cfg.DBName),
		slog.Int("max_conns", int(poolCfg.MaxConns)),
	)

	return pool, nil
}

// pingWithRetry вызывает ping до attempts раз. Ошибка последней попытки
// возвращается вызывающему; отмена ctx прерывает ожидание.
func pingWithRetry(
	ctx context.Context,
	ping func(context.Context) error,
	attempts int,
	backoff time.Duration,
	logger *slog.Logger,
) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = ping(ctx); err == nil {
			return nil
		}
		if attempt == attempts {
			break
		}

		logger.Warn("PostgreSQL недоступен, повтор",
			slog.Int("attempt", attempt),
			slog.Duration("backoff", backoff),
			slog.String("error", err.Error()),
		)

		timer := time.NewTimer(backoff)
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
		backoff = min(backoff*2, maxConnectBackoff)
	}
	return fmt.Errorf("%d попыток: %w", attempts, err)
}

// Migrate применяет встроенные миграции схемы каталога.
// Повторный запуск без новых миграций — не ошибка.
func Migrate(cfg *config.Config, logger *slog.Logger) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("ошибка создания источника миграций: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, cfg.MigrateURL())
	if err != nil {
		return fmt.Errorf("ошибка инициализации миграций: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			logger.Warn("Ошибка закрытия мигратора",
				slog.Any("source_error", srcErr),
				slog.Any("db_error", dbErr),
			)
		}
	}()

	err = m.Up()
	switch {
	case errors.Is(err, migrate.ErrNoChange):
		logger.Debug("Схема БД актуальна")
	case err != nil:
		return fmt.Errorf("ошибка применения миграций: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("ошибка чтения версии схемы: %w", err)
	}
	if dirty {
		return fmt.Errorf("схема БД в состоянии dirty (версия %d), требуется ручное вмешательство", version)
	}
	logger.Info("Миграции применены", slog.Uint64("version", uint64(version)))

	return nil
}

// Pinger — источник проверки доступности (*pgxpool.Pool).
type Pinger interface {
	Ping(ctx context.Context) error
}

// ReadinessChecker — проверка готовности PostgreSQL для /health/ready.
type ReadinessChecker struct {
	db      Pinger
	stats   func() *pgxpool.Stat
	timeout time.Duration
}

// NewReadinessChecker создаёт проверку готовности поверх пула.
func NewReadinessChecker(pool *pgxpool.Pool) *ReadinessChecker {
	return &ReadinessChecker{db: pool, stats: pool.Stat, timeout: readinessTimeout}
}

// CheckReady выполняет ping с таймаутом.
// В сообщении при успехе — занятые и открытые подключения пула.
func (c *ReadinessChecker) CheckReady() (status, message string) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()

	if err := c.db.Ping(ctx); err != nil {
		return "fail", fmt.Sprintf("PostgreSQL недоступен: %v", err)
	}
	if c.stats == nil {
		return "ok", "подключение активно"
	}
	st := c.stats()
	return "ok", fmt.Sprintf("подключение активно, пул %d/%d", st.AcquiredConns(), st.TotalConns())
}
