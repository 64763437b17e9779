package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/bigkaa/volkrin/catalog-service/internal/domain/model"
)

// userColumns — столбцы таблицы users для SELECT и RETURNING.
const userColumns = `id, name, email, role, created_at, updated_at`

// UserRepository — доступ к таблице users.
type UserRepository interface {
	// Upsert создаёт или обновляет пользователя по ID и возвращает запись.
	Upsert(ctx context.Context, u *model.Uploader) (*model.User, error)
	// List возвращает всех пользователей, старые первыми.
	List(ctx context.Context) ([]*model.User, error)
	// DeleteByID удаляет пользователя. Треки остаются с uploaded_by = NULL.
	DeleteByID(ctx context.Context, id string) error
}

type userRepo struct {
	db DBTX
}

// NewUserRepository создаёт репозиторий пользователей.
func NewUserRepository(db DBTX) UserRepository {
	return &userRepo{db: db}
}

func (r *userRepo) Upsert(ctx context.Context, u *model.Uploader) (*model.User, error) {
	query := `
		INSERT INTO users (id, name, email, role)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			email = EXCLUDED.email,
			role = EXCLUDED.role
		RETURNING ` + userColumns

	rows, err := r.db.Query(ctx, query, u.ID, u.Name, u.Email, u.Role)
	if err != nil {
		return nil, pgError("upsert пользователя", err)
	}
	user, err := pgx.CollectExactlyOneRow(rows, scanUser)
	if err != nil {
		return nil, pgError("upsert пользователя", err)
	}
	return user, nil
}

func (r *userRepo) List(ctx context.Context) ([]*model.User, error) {
	rows, err := r.db.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at, id`)
	if err != nil {
		return nil, pgError("список пользователей", err)
	}
	users, err := pgx.CollectRows(rows, scanUser)
	if err != nil {
		return nil, pgError("список пользователей", err)
	}
	return users, nil
}

func (r *userRepo) DeleteByID(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return pgError("удаление пользователя", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// scanUser — pgx.RowToFunc для userColumns.
func scanUser(row pgx.CollectableRow) (*model.User, error) {
	u := &model.User{}
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Role, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("ошибка сканирования пользователя: %w", err)
	}
	return u, nil
}
