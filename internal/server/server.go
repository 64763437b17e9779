// Пакет server — HTTP-сервер Catalog Service с graceful shutdown.
// Без TLS — HTTP внутри кластера, TLS termination на API Gateway.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/bigkaa/volkrin/catalog-service/internal/api/handlers"
	"github.com/bigkaa/volkrin/catalog-service/internal/api/middleware"
	"github.com/bigkaa/volkrin/catalog-service/internal/config"
)

// Server — HTTP-сервер Catalog Service.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
	cfg        *config.Config
}

// New создаёт HTTP-сервер с настроенными routes и middleware.
// auth — middleware аутентификации для защищённых маршрутов.
// middlewares — общие middleware (metrics, logging, openapi) в порядке переданного среза.
func New(
	cfg *config.Config,
	logger *slog.Logger,
	tracks *handlers.TracksHandler,
	users *handlers.UsersHandler,
	health *handlers.HealthHandler,
	auth func(http.Handler) http.Handler,
	middlewares ...func(http.Handler) http.Handler,
) *Server {
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      NewRouter(tracks, users, health, auth, middlewares...),
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
		IdleTimeout:  cfg.HTTPIdleTimeout,
	}

	return &Server{
		httpServer: srv,
		logger:     logger.With(slog.String("component", "http_server")),
		cfg:        cfg,
	}
}

// NewRouter собирает маршруты сервиса.
// Чтение каталога публичное; загрузка, удаление треков и управление
// пользователями требуют JWT с ролью admin, профиль — любой валидный JWT.
func NewRouter(
	tracks *handlers.TracksHandler,
	users *handlers.UsersHandler,
	health *handlers.HealthHandler,
	auth func(http.Handler) http.Handler,
	middlewares ...func(http.Handler) http.Handler,
) http.Handler {
	router := chi.NewRouter()
	router.Use(chimw.RequestID)
	for _, mw := range middlewares {
		router.Use(mw)
	}

	router.Get("/health/live", health.HealthLive)
	router.Get("/health/ready", health.HealthReady)
	router.Get("/metrics", health.GetMetrics)

	router.Route("/api/v1/tracks", func(r chi.Router) {
		r.Get("/", tracks.List)
		r.Get("/{id}/stream", tracks.Stream)
		r.Post("/mock-upload", tracks.MockUpload)

		r.Group(func(r chi.Router) {
			r.Use(auth, middleware.RequireRole(middleware.RoleAdmin))
			r.Post("/upload", tracks.Upload)
			r.Delete("/{id}", tracks.Delete)
		})
	})

	router.With(auth).Get("/api/v1/auth/me", users.Me)

	router.Route("/api/v1/users", func(r chi.Router) {
		r.Use(auth, middleware.RequireRole(middleware.RoleAdmin))
		r.Get("/", users.List)
		r.Delete("/{id}", users.Delete)
	})

	return router
}

// Run запускает сервер и ожидает сигнала завершения (SIGINT, SIGTERM).
// При получении сигнала выполняется graceful shutdown.
func (s *Server) Run() error {
	errCh := make(chan error, 1)

	go func() {
		s.logger.Info("HTTP-сервер запущен",
			slog.String("addr", s.httpServer.Addr),
		)

		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	select {
	case sig := <-quit:
		s.logger.Info("Получен сигнал завершения", slog.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ошибка HTTP-сервера: %w", err)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()

	s.logger.Info("Выполняется graceful shutdown...")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("ошибка при graceful shutdown: %w", err)
	}

	s.logger.Info("HTTP-сервер остановлен")
	return nil
}
