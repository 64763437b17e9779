package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
)

// trackColumns — столбцы таблицы tracks для SELECT-запросов.
const trackColumns = `t.id, t.title, t.artist, t.audio_key, t.thumbnail_key,
	t.audio_url, t.thumbnail_url, t.uploaded_by, t.created_at, t.updated_at`

// TrackRepository — интерфейс доступа к таблице tracks.
type TrackRepository interface {
	// Create вставляет запись. CreatedAt/UpdatedAt заполняются из БД.
	Create(ctx context.Context, t *model.Track) error
	// GetByID возвращает трек по UUID или ErrNotFound.
	GetByID(ctx context.Context, id string) (*model.Track, error)
	// ListAll возвращает все треки (новые первыми) с проекцией загрузившего.
	ListAll(ctx context.Context) ([]*model.Track, error)
	// DeleteByID удаляет трек. ErrNotFound, если записи нет.
	DeleteByID(ctx context.Context, id string) error
}

// trackRepo — реализация TrackRepository через pgx.
type trackRepo struct {
	db DBTX
}

// NewTrackRepository создаёт репозиторий треков.
func NewTrackRepository(db DBTX) TrackRepository {
	return &trackRepo{db: db}
}

func (r *trackRepo) Create(ctx context.Context, t *model.Track) error {
	query := `
		INSERT INTO tracks (id, title, artist, audio_key, thumbnail_key,
			audio_url, thumbnail_url, uploaded_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		t.ID, t.Title, t.Artist, t.AudioKey, t.ThumbnailKey,
		t.AudioURL, t.ThumbnailURL, t.UploaderID,
	).Scan(&t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return pgError("создание трека", err)
	}
	return nil
}

func (r *trackRepo) GetByID(ctx context.Context, id string) (*model.Track, error) {
	// Невалидный UUID не может существовать в таблице
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrNotFound
	}

	query := fmt.Sprintf(`SELECT %s FROM tracks t WHERE t.id = $1`, trackColumns)

	t := &model.Track{}
	err := r.db.QueryRow(ctx, query, id).Scan(
		&t.ID, &t.Title, &t.Artist, &t.AudioKey, &t.ThumbnailKey,
		&t.AudioURL, &t.ThumbnailURL, &t.UploaderID, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		return nil, pgError("получение трека", err)
	}
	return t, nil
}

// ListAll выбирает все треки с LEFT JOIN на users.
// Из users берутся только публичные поля (id, name, email, role).
func (r *trackRepo) ListAll(ctx context.Context) ([]*model.Track, error) {
	query := fmt.Sprintf(`
		SELECT %s, u.id, u.name, u.email, u.role
		FROM tracks t
		LEFT JOIN users u ON u.id = t.uploaded_by
		ORDER BY t.created_at DESC, t.id`, trackColumns)

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, pgError("список треков", err)
	}
	defer rows.Close()

	result := make([]*model.Track, 0)
	for rows.Next() {
		t := &model.Track{}
		var uID, uName, uEmail, uRole *string
		if err := rows.Scan(
			&t.ID, &t.Title, &t.Artist, &t.AudioKey, &t.ThumbnailKey,
			&t.AudioURL, &t.ThumbnailURL, &t.UploaderID, &t.CreatedAt, &t.UpdatedAt,
			&uID, &uName, &uEmail, &uRole,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования трека: %w", err)
		}
		t.Uploader = uploaderProjection(uID, uName, uEmail, uRole)
		result = append(result, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации результатов: %w", err)
	}

	return result, nil
}

func (r *trackRepo) DeleteByID(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrNotFound
	}

	tag, err := r.db.Exec(ctx, `DELETE FROM tracks WHERE id = $1`, id)
	if err != nil {
		return pgError("удаление трека", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// uploaderProjection собирает Uploader из nullable-столбцов LEFT JOIN.
// nil, если у трека нет загрузившего.
func uploaderProjection(id, name, email, role *string) *model.Uploader {
	if id == nil {
		return nil
	}
	u := &model.Uploader{ID: *id}
	if name != nil {
		u.Name = *name
	}
	if email != nil {
		u.Email = *email
	}
	if role != nil {
		u.Role = *role
	}
	return u
}
