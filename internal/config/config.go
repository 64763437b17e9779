// Пакет config — загрузка и валидация конфигурации Catalog Service
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Допустимые значения CS_ENVIRONMENT.
const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Допустимые значения CS_CACHE_BACKEND.
const (
	CacheBackendRedis  = "redis"
	CacheBackendMemory = "memory"
)

// Config содержит все параметры конфигурации Catalog Service.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера
	Port int
	// Окружение: development, production
	Environment string
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Максимальный размер multipart-запроса загрузки (байт)
	MaxUploadSize int64

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- PostgreSQL ---

	DBHost     string
	DBPort     int
	DBName     string
	DBUser     string
	DBPassword string
	DBSSLMode  string
	// Размер пула подключений
	DBMaxConns int32
	DBMinConns int32
	// Попытки подключения при старте и пауза перед первой повторной попыткой
	DBConnectAttempts int
	DBConnectBackoff  time.Duration

	// --- Кэш ---

	// Бэкенд кэша: redis, memory
	CacheBackend string
	// URL Redis (redis:// или rediss://)
	RedisURL string
	// Таймаут одной операции кэша
	CacheOpTimeout time.Duration
	// Максимальное количество записей in-memory кэша
	CacheMemorySize int
	// TTL снимка каталога (catalog:all)
	ListCacheTTL time.Duration
	// Срок действия выдаваемых ссылок
	LinkTTL time.Duration
	// TTL кэшированной ссылки (catalog:link:<id>), не больше LinkTTL
	LinkCacheTTL time.Duration

	// --- Объектное хранилище ---

	S3Endpoint      string
	S3Bucket        string
	S3AccessKey     string
	S3SecretKey     string
	S3Region        string
	S3UseSSL        bool
	S3PublicBaseURL string

	// --- API ---

	// Проверять запросы по встроенному OpenAPI-контракту
	OpenAPIValidation bool

	// --- JWT ---

	JWTJWKSURL string
	JWTIssuer  string
	JWTLeeway  time.Duration

	// --- topologymetrics ---

	DephealthGroup         string
	DephealthCheckInterval time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если обязательные переменные не заданы
// или значения некорректны.
//
//nolint:gocyclo,cyclop // линейный разбор переменных окружения
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	// CS_PORT — порт HTTP-сервера (по умолчанию 8040)
	cfg.Port, err = getEnvInt("CS_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("CS_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CS_PORT: значение %d вне допустимого диапазона 1-65535", cfg.Port)
	}

	// CS_ENVIRONMENT — окружение (по умолчанию development)
	cfg.Environment = getEnvDefault("CS_ENVIRONMENT", EnvDevelopment)
	if cfg.Environment != EnvDevelopment && cfg.Environment != EnvProduction {
		return nil, fmt.Errorf("CS_ENVIRONMENT: недопустимое значение %q, допустимые: development, production", cfg.Environment)
	}

	// CS_LOG_LEVEL — уровень логирования (по умолчанию info)
	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CS_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CS_LOG_LEVEL: %w", err)
	}

	// CS_LOG_FORMAT — формат логов (по умолчанию json)
	cfg.LogFormat = getEnvDefault("CS_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CS_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	// CS_MAX_UPLOAD_SIZE — лимит multipart-запроса (по умолчанию 50 MiB)
	maxUpload, err := getEnvInt("CS_MAX_UPLOAD_SIZE", 50<<20)
	if err != nil {
		return nil, fmt.Errorf("CS_MAX_UPLOAD_SIZE: %w", err)
	}
	if maxUpload <= 0 {
		return nil, fmt.Errorf("CS_MAX_UPLOAD_SIZE: значение должно быть > 0")
	}
	cfg.MaxUploadSize = int64(maxUpload)

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("CS_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_HTTP_READ_TIMEOUT: %w", err)
	}
	cfg.HTTPWriteTimeout, err = getEnvDuration("CS_HTTP_WRITE_TIMEOUT", 60*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("CS_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_HTTP_IDLE_TIMEOUT: %w", err)
	}

	// --- PostgreSQL ---

	if cfg.DBHost, err = getEnvRequired("CS_DB_HOST"); err != nil {
		return nil, err
	}
	cfg.DBPort, err = getEnvInt("CS_DB_PORT", 5432)
	if err != nil {
		return nil, fmt.Errorf("CS_DB_PORT: %w", err)
	}
	if cfg.DBName, err = getEnvRequired("CS_DB_NAME"); err != nil {
		return nil, err
	}
	if cfg.DBUser, err = getEnvRequired("CS_DB_USER"); err != nil {
		return nil, err
	}
	if cfg.DBPassword, err = getEnvRequired("CS_DB_PASSWORD"); err != nil {
		return nil, err
	}
	cfg.DBSSLMode = getEnvDefault("CS_DB_SSL_MODE", "disable")
	validSSLModes := map[string]bool{
		"disable": true, "require": true, "verify-ca": true, "verify-full": true,
	}
	if !validSSLModes[cfg.DBSSLMode] {
		return nil, fmt.Errorf("CS_DB_SSL_MODE: недопустимое значение %q, допустимые: disable, require, verify-ca, verify-full", cfg.DBSSLMode)
	}

	maxConns, err := getEnvInt("CS_DB_MAX_CONNS", 10)
	if err != nil {
		return nil, fmt.Errorf("CS_DB_MAX_CONNS: %w", err)
	}
	minConns, err := getEnvInt("CS_DB_MIN_CONNS", 1)
	if err != nil {
		return nil, fmt.Errorf("CS_DB_MIN_CONNS: %w", err)
	}
	if maxConns < 1 || maxConns > 1000 {
		return nil, fmt.Errorf("CS_DB_MAX_CONNS: значение %d вне допустимого диапазона 1-1000", maxConns)
	}
	if minConns < 0 || minConns > maxConns {
		return nil, fmt.Errorf("CS_DB_MIN_CONNS: значение %d вне допустимого диапазона 0-%d", minConns, maxConns)
	}
	cfg.DBMaxConns, cfg.DBMinConns = int32(maxConns), int32(minConns)

	cfg.DBConnectAttempts, err = getEnvInt("CS_DB_CONNECT_ATTEMPTS", 5)
	if err != nil {
		return nil, fmt.Errorf("CS_DB_CONNECT_ATTEMPTS: %w", err)
	}
	if cfg.DBConnectAttempts < 1 {
		return nil, fmt.Errorf("CS_DB_CONNECT_ATTEMPTS: значение должно быть >= 1")
	}
	cfg.DBConnectBackoff, err = getEnvDurationPositive("CS_DB_CONNECT_BACKOFF", time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_DB_CONNECT_BACKOFF: %w", err)
	}

	// --- Кэш ---

	// CS_CACHE_BACKEND — redis (по умолчанию) или memory
	cfg.CacheBackend = getEnvDefault("CS_CACHE_BACKEND", CacheBackendRedis)
	if cfg.CacheBackend != CacheBackendRedis && cfg.CacheBackend != CacheBackendMemory {
		return nil, fmt.Errorf("CS_CACHE_BACKEND: недопустимое значение %q, допустимые: redis, memory", cfg.CacheBackend)
	}

	cfg.RedisURL = getEnvDefault("CS_REDIS_URL", "redis://127.0.0.1:6379/0")
	if cfg.CacheBackend == CacheBackendRedis {
		if !strings.HasPrefix(cfg.RedisURL, "redis://") && !strings.HasPrefix(cfg.RedisURL, "rediss://") {
			return nil, fmt.Errorf("CS_REDIS_URL: ожидается схема redis:// или rediss://, получено %q", cfg.RedisURL)
		}
	}

	cfg.CacheOpTimeout, err = getEnvDurationPositive("CS_CACHE_OP_TIMEOUT", 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("CS_CACHE_OP_TIMEOUT: %w", err)
	}

	cfg.CacheMemorySize, err = getEnvInt("CS_CACHE_MEMORY_SIZE", 1024)
	if err != nil {
		return nil, fmt.Errorf("CS_CACHE_MEMORY_SIZE: %w", err)
	}
	if cfg.CacheMemorySize < 1 {
		return nil, fmt.Errorf("CS_CACHE_MEMORY_SIZE: значение должно быть >= 1")
	}

	cfg.ListCacheTTL, err = getEnvDurationPositive("CS_LIST_CACHE_TTL", 600*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_LIST_CACHE_TTL: %w", err)
	}

	// Presigned URL в S3 не может жить дольше 7 дней
	cfg.LinkTTL, err = getEnvDurationPositive("CS_LINK_TTL", 300*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_LINK_TTL: %w", err)
	}
	if cfg.LinkTTL < time.Second || cfg.LinkTTL > 7*24*time.Hour {
		return nil, fmt.Errorf("CS_LINK_TTL: значение %s вне допустимого диапазона 1s-168h", cfg.LinkTTL)
	}
	// X-Amz-Expires задаётся в целых секундах
	if cfg.LinkTTL%time.Second != 0 {
		return nil, fmt.Errorf("CS_LINK_TTL: значение %s должно быть целым числом секунд", cfg.LinkTTL)
	}

	cfg.LinkCacheTTL, err = getEnvDurationPositive("CS_LINK_CACHE_TTL", cfg.LinkTTL)
	if err != nil {
		return nil, fmt.Errorf("CS_LINK_CACHE_TTL: %w", err)
	}
	if cfg.LinkCacheTTL%time.Second != 0 {
		return nil, fmt.Errorf("CS_LINK_CACHE_TTL: значение %s должно быть целым числом секунд", cfg.LinkCacheTTL)
	}
	if cfg.LinkCacheTTL > cfg.LinkTTL {
		return nil, fmt.Errorf("CS_LINK_CACHE_TTL: значение %s превышает CS_LINK_TTL (%s)", cfg.LinkCacheTTL, cfg.LinkTTL)
	}

	// --- Объектное хранилище ---

	if cfg.S3Endpoint, err = getEnvRequired("CS_S3_ENDPOINT"); err != nil {
		return nil, err
	}
	if cfg.S3Bucket, err = getEnvRequired("CS_S3_BUCKET"); err != nil {
		return nil, err
	}
	if cfg.S3AccessKey, err = getEnvRequired("CS_S3_ACCESS_KEY"); err != nil {
		return nil, err
	}
	if cfg.S3SecretKey, err = getEnvRequired("CS_S3_SECRET_KEY"); err != nil {
		return nil, err
	}
	cfg.S3Region = getEnvDefault("CS_S3_REGION", "us-east-1")
	cfg.S3UseSSL, err = getEnvBool("CS_S3_USE_SSL", true)
	if err != nil {
		return nil, fmt.Errorf("CS_S3_USE_SSL: %w", err)
	}

	// CS_S3_PUBLIC_BASE_URL — по умолчанию http(s)://<endpoint>/<bucket>
	cfg.S3PublicBaseURL = strings.TrimRight(
		getEnvDefault("CS_S3_PUBLIC_BASE_URL", cfg.defaultPublicBaseURL()), "/")
	if _, err := url.ParseRequestURI(cfg.S3PublicBaseURL); err != nil {
		return nil, fmt.Errorf("CS_S3_PUBLIC_BASE_URL: некорректный URL %q", cfg.S3PublicBaseURL)
	}

	// --- API ---

	cfg.OpenAPIValidation, err = getEnvBool("CS_OPENAPI_VALIDATION", true)
	if err != nil {
		return nil, fmt.Errorf("CS_OPENAPI_VALIDATION: %w", err)
	}

	// --- JWT ---

	if cfg.JWTJWKSURL, err = getEnvRequired("CS_JWT_JWKS_URL"); err != nil {
		return nil, err
	}
	cfg.JWTIssuer = getEnvDefault("CS_JWT_ISSUER", "")
	cfg.JWTLeeway, err = getEnvDuration("CS_JWT_LEEWAY", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_JWT_LEEWAY: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthGroup = getEnvDefault("CS_DEPHEALTH_GROUP", "volkrin")
	cfg.DephealthCheckInterval, err = getEnvDurationPositive("CS_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}

	// --- Graceful shutdown ---

	cfg.ShutdownTimeout, err = getEnvDuration("CS_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CS_SHUTDOWN_TIMEOUT: %w", err)
	}

	return cfg, nil
}

// IsProduction сообщает, запущен ли сервис в production-окружении.
func (c *Config) IsProduction() bool {
	return c.Environment == EnvProduction
}

// DatabaseDSN возвращает строку подключения к PostgreSQL.
func (c *Config) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBName, c.DBUser, c.DBPassword, c.DBSSLMode,
	)
}

// MigrateURL возвращает URL для golang-migrate (драйвер pgx5).
// Учётные данные экранируются.
func (c *Config) MigrateURL() string {
	u := url.URL{
		Scheme:   "pgx5",
		User:     url.UserPassword(c.DBUser, c.DBPassword),
		Host:     fmt.Sprintf("%s:%d", c.DBHost, c.DBPort),
		Path:     "/" + c.DBName,
		RawQuery: url.Values{"sslmode": {c.DBSSLMode}}.Encode(),
	}
	return u.String()
}

// DatabaseURL возвращает URL PostgreSQL без пароля (для лейблов метрик).
func (c *Config) DatabaseURL() string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.DBHost, c.DBPort, c.DBName)
}

// S3HealthURL возвращает URL объектного хранилища для проверки доступности.
func (c *Config) S3HealthURL() string {
	scheme := "http"
	if c.S3UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s", scheme, c.S3Endpoint)
}

func (c *Config) defaultPublicBaseURL() string {
	return c.S3HealthURL() + "/" + c.S3Bucket
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

// getEnvRequired возвращает значение переменной окружения или ошибку, если она не задана.
func getEnvRequired(key string) (string, error) {
	val := os.Getenv(key)
	if val == "" {
		return "", fmt.Errorf("%s: обязательная переменная окружения не задана", key)
	}
	return val, nil
}

// getEnvDefault возвращает значение переменной окружения или значение по умолчанию.
func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// getEnvInt возвращает целочисленное значение переменной окружения или значение по умолчанию.
func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	return d, nil
}

// getEnvDurationPositive — как getEnvDuration, но значение должно быть > 0.
func getEnvDurationPositive(key string, defaultVal time.Duration) (time.Duration, error) {
	d, err := getEnvDuration(key, defaultVal)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

// getEnvBool возвращает булево значение переменной окружения или значение по умолчанию.
func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}
