package repository

import (
	"context"

	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
)

// Store — долговременное хранилище каталога и пользователей.
// Создание трека вместе с upsert загрузившего выполняется в одной транзакции.
type Store struct {
	tx    *TxRunner
	repos Repos
}

// NewStore создаёт хранилище поверх пула db; tx открывает транзакции в том же пуле.
func NewStore(db DBTX, tx *TxRunner) *Store {
	return &Store{tx: tx, repos: newRepos(db)}
}

// CreateTrack сохраняет трек. Если задан uploader, его профиль
// синхронизируется в users в той же транзакции.
func (s *Store) CreateTrack(ctx context.Context, t *model.Track, uploader *model.Uploader) error {
	return s.tx.InTx(ctx, func(r Repos) error {
		if uploader != nil {
			if _, err := r.Users.Upsert(ctx, uploader); err != nil {
				return err
			}
			t.UploaderID = &uploader.ID
		}
		return r.Tracks.Create(ctx, t)
	})
}

// GetTrack возвращает трек по ID или ErrNotFound.
func (s *Store) GetTrack(ctx context.Context, id string) (*model.Track, error) {
	return s.repos.Tracks.GetByID(ctx, id)
}

// ListTracks возвращает все треки каталога.
func (s *Store) ListTracks(ctx context.Context) ([]*model.Track, error) {
	return s.repos.Tracks.ListAll(ctx)
}

// DeleteTrack удаляет трек по ID или возвращает ErrNotFound.
func (s *Store) DeleteTrack(ctx context.Context, id string) error {
	return s.repos.Tracks.DeleteByID(ctx, id)
}

// SyncUser создаёт или обновляет профиль пользователя из claims.
func (s *Store) SyncUser(ctx context.Context, u *model.Uploader) (*model.User, error) {
	return s.repos.Users.Upsert(ctx, u)
}

// ListUsers возвращает всех пользователей.
func (s *Store) ListUsers(ctx context.Context) ([]*model.User, error) {
	return s.repos.Users.List(ctx)
}

// DeleteUser удаляет пользователя по ID или возвращает ErrNotFound.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	return s.repos.Users.DeleteByID(ctx, id)
}
