package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
	"github.com/bigkaa/volkrin/catalog-service/internal/repository"
)

var (
	userSyncsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_user_syncs_total",
		Help: "Синхронизации профиля пользователя из JWT (GET /auth/me).",
	})
	userDeletionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cs_user_deletions_total",
		Help: "Количество удалённых пользователей.",
	})
)

// UserStore — хранилище профилей пользователей.
type UserStore interface {
	SyncUser(ctx context.Context, u *model.Uploader) (*model.User, error)
	ListUsers(ctx context.Context) ([]*model.User, error)
	DeleteUser(ctx context.Context, id string) error
}

// UserService — профили пользователей каталога.
// Регистрацию и вход выполняет IdP; сервис хранит только профиль из claims.
type UserService struct {
	store  UserStore
	inval  *invalidator
	logger *slog.Logger
}

// NewUserService создаёт сервис пользователей.
// listTTL — TTL снимка каталога: удаление пользователя меняет проекцию
// загрузившего в снимке и сбрасывает его.
func NewUserService(store UserStore, cacheStore CacheStore, listTTL time.Duration, logger *slog.Logger) *UserService {
	logger = logger.With(slog.String("component", "user_service"))
	return &UserService{
		store:  store,
		inval:  &invalidator{cache: cacheStore, genTTL: listTTL, logger: logger},
		logger: logger,
	}
}

// Me синхронизирует профиль текущего пользователя и возвращает его.
func (s *UserService) Me(ctx context.Context, subject *model.Uploader) (*model.User, error) {
	if subject == nil || strings.TrimSpace(subject.ID) == "" {
		return nil, validationError("в токене нет идентификатора пользователя")
	}

	user, err := s.store.SyncUser(ctx, subject)
	if err != nil {
		return nil, persistenceError("синхронизация пользователя", err)
	}
	userSyncsTotal.Inc()
	return user, nil
}

// ListUsers возвращает всех пользователей.
func (s *UserService) ListUsers(ctx context.Context) ([]*model.User, error) {
	users, err := s.store.ListUsers(ctx)
	if err != nil {
		return nil, persistenceError("получение списка пользователей", err)
	}
	if users == nil {
		users = []*model.User{}
	}
	return users, nil
}

// DeleteUser удаляет пользователя id от имени actorID.
// Удалить самого себя нельзя (ErrValidation). Треки пользователя
// остаются в каталоге без загрузившего.
func (s *UserService) DeleteUser(ctx context.Context, actorID, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationError("идентификатор пользователя обязателен")
	}
	if id == actorID {
		return validationError("нельзя удалить собственную учётную запись")
	}

	if err := s.store.DeleteUser(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrNotFound
		}
		return persistenceError("удаление пользователя", err)
	}

	s.inval.catalogChanged(ctx)

	userDeletionsTotal.Inc()
	s.logger.Info("Пользователь удалён",
		slog.String("user_id", id),
		slog.String("actor_id", actorID),
	)
	return nil
}
