// Точка входа Catalog Service — каталог треков Volkrin.
// Загружает конфигурацию, применяет миграции, подключается к PostgreSQL,
// кэшу и объектному хранилищу, собирает сервисный слой и API handlers,
// запускает topologymetrics и HTTP-сервер с JWT middleware и graceful shutdown.
package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/jackc/pgx/v5/stdlib"

	"github.com/bigkaa/volkrin/catalog-service/internal/api/handlers"
	"github.com/bigkaa/volkrin/catalog-service/internal/api/middleware"
	"github.com/bigkaa/volkrin/catalog-service/internal/api/openapi"
	"github.com/bigkaa/volkrin/catalog-service/internal/cache"
	"github.com/bigkaa/volkrin/catalog-service/internal/config"
	"github.com/bigkaa/volkrin/catalog-service/internal/database"
	"github.com/bigkaa/volkrin/catalog-service/internal/linkissuer"
	"github.com/bigkaa/volkrin/catalog-service/internal/objectstore"
	"github.com/bigkaa/volkrin/catalog-service/internal/repository"
	"github.com/bigkaa/volkrin/catalog-service/internal/server"
	"github.com/bigkaa/volkrin/catalog-service/internal/service"
)

// bucketInitTimeout — предел на проверку и создание бакета при старте.
const bucketInitTimeout = 15 * time.Second

func main() {
	// 1. Загрузка конфигурации из переменных окружения
	cfg, err := config.Load()
	if err != nil {
		slog.Error("Ошибка загрузки конфигурации", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 2. Настройка логирования
	logger := config.SetupLogger(cfg)
	logger.Info("Catalog Service запускается",
		slog.String("version", config.Version),
		slog.Int("port", cfg.Port),
		slog.String("environment", cfg.Environment),
	)

	// 3. Применение миграций БД
	logger.Info("Применение миграций БД...")
	if err := database.Migrate(cfg, logger); err != nil {
		logger.Error("Ошибка миграций БД", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Подключение к PostgreSQL (pgxpool)
	ctx := context.Background()
	pool, err := database.Connect(ctx, cfg, logger)
	if err != nil {
		logger.Error("Ошибка подключения к PostgreSQL", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	// 4.1 Адаптер pgxpool → *sql.DB для topologymetrics (connection pool mode)
	pgDB := stdlib.OpenDBFromPool(pool)
	defer pgDB.Close()

	// 5. Кэш (Redis или in-process LRU)
	var backend cache.Backend
	switch cfg.CacheBackend {
	case config.CacheBackendMemory:
		backend = cache.NewMemoryBackend(cfg.CacheMemorySize)
		logger.Warn("Используется in-process кэш: инвалидация не видна другим экземплярам сервиса",
			slog.Int("max_entries", cfg.CacheMemorySize),
		)
	default:
		backend, err = cache.NewRedisBackend(cfg.RedisURL)
		if err != nil {
			logger.Error("Ошибка создания Redis-клиента", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}
	cacheStore := cache.NewStore(backend, cfg.CacheOpTimeout, logger)
	defer func() { _ = cacheStore.Close() }()
	if status, msg := cacheStore.CheckReady(); status != "ok" {
		// Недоступный кэш не мешает старту: чтения идут в БД
		logger.Warn("Кэш недоступен при старте", slog.String("message", msg))
	}

	// 6. Объектное хранилище и выдача ссылок
	s3Client, err := objectstore.NewClient(objectstore.ClientConfig{
		Endpoint:  cfg.S3Endpoint,
		AccessKey: cfg.S3AccessKey,
		SecretKey: cfg.S3SecretKey,
		Region:    cfg.S3Region,
		UseSSL:    cfg.S3UseSSL,
	})
	if err != nil {
		logger.Error("Ошибка создания клиента объектного хранилища", slog.String("error", err.Error()))
		os.Exit(1)
	}
	objects := objectstore.NewAdapter(s3Client, cfg.S3Bucket, cfg.S3PublicBaseURL, logger)

	bucketCtx, cancelBucket := context.WithTimeout(ctx, bucketInitTimeout)
	if err := objects.EnsureBucket(bucketCtx, cfg.S3Region); err != nil {
		logger.Warn("Не удалось проверить бакет, загрузки будут завершаться ошибкой до его появления",
			slog.String("bucket", cfg.S3Bucket),
			slog.String("error", err.Error()),
		)
	}
	cancelBucket()

	links := linkissuer.New(s3Client, cfg.S3Bucket)

	// 7. Repositories и сервис каталога
	store := repository.NewStore(pool, repository.NewTxRunner(pool))
	catalog := service.NewCatalogService(
		store,
		cacheStore,
		objects,
		links,
		service.Policy{
			ListTTL:      cfg.ListCacheTTL,
			LinkTTL:      cfg.LinkTTL,
			LinkCacheTTL: cfg.LinkCacheTTL,
		},
		logger,
	)
	users := service.NewUserService(store, cacheStore, cfg.ListCacheTTL, logger)

	// 8. topologymetrics — мониторинг зависимостей
	dephealthSvc, err := service.NewDephealthService(
		"catalog-service",
		cfg.DephealthGroup,
		pgDB,
		cfg.DatabaseURL(),
		cfg.S3HealthURL(),
		cfg.JWTJWKSURL,
		cfg.DephealthCheckInterval,
		logger,
	)
	if err != nil {
		logger.Warn("topologymetrics недоступен, запуск без мониторинга зависимостей",
			slog.String("error", err.Error()),
		)
	} else {
		if startErr := dephealthSvc.Start(ctx); startErr != nil {
			logger.Warn("Ошибка запуска topologymetrics",
				slog.String("error", startErr.Error()),
			)
		} else {
			defer dephealthSvc.Stop()
			logger.Info("topologymetrics запущен",
				slog.String("group", cfg.DephealthGroup),
				slog.String("check_interval", cfg.DephealthCheckInterval.String()),
			)
		}
	}

	// 9. JWT middleware
	jwtAuth, err := middleware.NewJWTAuth(cfg.JWTJWKSURL, cfg.JWTIssuer, cfg.JWTLeeway, logger)
	if err != nil {
		logger.Error("Ошибка создания JWT middleware", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("JWT middleware инициализирован",
		slog.String("jwks_url", cfg.JWTJWKSURL),
		slog.String("issuer", cfg.JWTIssuer),
	)

	// 10. Handlers
	healthHandler := handlers.NewHealthHandler(database.NewReadinessChecker(pool), cacheStore)
	tracksHandler := handlers.NewTracksHandler(catalog, cfg.MaxUploadSize, !cfg.IsProduction(), logger)
	usersHandler := handlers.NewUsersHandler(users, logger)

	// 11. Общие middleware: метрики, журнал, проверка запросов по контракту
	middlewares := []func(http.Handler) http.Handler{
		middleware.MetricsMiddleware(),
		middleware.RequestLogger(logger),
	}
	if cfg.OpenAPIValidation {
		contract, err := openapi.NewRouter(ctx)
		if err != nil {
			logger.Error("Ошибка загрузки OpenAPI-контракта", slog.String("error", err.Error()))
			os.Exit(1)
		}
		middlewares = append(middlewares, middleware.OpenAPIValidator(contract, logger))
	}

	// 12. HTTP-сервер
	srv := server.New(cfg, logger,
		tracksHandler,
		usersHandler,
		healthHandler,
		jwtAuth.Middleware(),
		middlewares...,
	)

	// 13. Запуск сервера (блокирующий вызов с graceful shutdown)
	if err := srv.Run(); err != nil {
		logger.Error("Ошибка сервера", slog.String("error", err.Error()))
		os.Exit(1)
	}

	logger.Info("Catalog Service остановлен")
}
