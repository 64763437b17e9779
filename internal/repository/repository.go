// Пакет repository — хранилище каталога и пользователей в PostgreSQL.
// Запросы — SQL через pgx; ошибки драйвера переводятся в ErrNotFound
// и ErrConflict, остальные оборачиваются с названием операции.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound — запись не найдена.
	ErrNotFound = errors.New("запись не найдена")
	// ErrConflict — нарушено ограничение уникальности.
	ErrConflict = errors.New("запись уже существует")
)

// DBTX — исполнитель запросов: *pgxpool.Pool или pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repos — репозитории, работающие через один исполнитель запросов.
type Repos struct {
	Tracks TrackRepository
	Users  UserRepository
}

func newRepos(db DBTX) Repos {
	return Repos{
		Tracks: NewTrackRepository(db),
		Users:  NewUserRepository(db),
	}
}

// TxBeginner — источник транзакций (*pgxpool.Pool).
type TxBeginner interface {
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

// TxRunner выполняет группу операций над Repos в одной транзакции.
type TxRunner struct {
	db   TxBeginner
	opts pgx.TxOptions
}

// NewTxRunner создаёт TxRunner с уровнем изоляции read committed.
func NewTxRunner(db TxBeginner) *TxRunner {
	return &TxRunner{db: db, opts: pgx.TxOptions{IsoLevel: pgx.ReadCommitted}}
}

// InTx вызывает fn с репозиториями, привязанными к транзакции.
// Ошибка fn откатывает транзакцию и возвращается без изменений.
func (r *TxRunner) InTx(ctx context.Context, fn func(Repos) error) error {
	return pgx.BeginTxFunc(ctx, r.db, r.opts, func(tx pgx.Tx) error {
		return fn(newRepos(tx))
	})
}

// pgError переводит ошибку драйвера в ошибку слоя.
func pgError(op string, err error) error {
	var pgErr *pgconn.PgError
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return ErrNotFound
	case errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation:
		return fmt.Errorf("%w: %s (%s)", ErrConflict, op, pgErr.ConstraintName)
	default:
		return fmt.Errorf("ошибка: %s: %w", op, err)
	}
}
