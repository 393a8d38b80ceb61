package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // Драйвер Postgres

	"github.com/filipedeschamps/tabnews.com.br-sub004/internal/infra"
)

// Querier общий знаменатель *sql.DB и *sql.Tx. Репозитории работают с любым из них,
// поэтому одна и та же операция выполняется и вне, и внутри транзакции.
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type DB struct {
	*sql.DB
}

func NewDB(db *sql.DB) *DB {
	return &DB{DB: db}
}

// Open создает пул соединений. Доступность базы проверяется отдельно через Ping.
func Open(cfg infra.DatabaseConfig) (*DB, error) {
	db, err := sql.Open("pgx", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(cfg.MaxConns)
	db.SetMaxIdleConns(cfg.MinConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	return NewDB(db), nil
}

// InTx выполняет fn в одной транзакции. Любая ошибка fn (или паника) откатывает все,
// частично записанных строк не остается. Ошибка commit возвращается обернутой через %w,
// чтобы вызывающий мог классифицировать SQLSTATE.
func (d *DB) InTx(ctx context.Context, opts *sql.TxOptions, fn func(tx *sql.Tx) error) error {
	tx, err := d.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("postgres: begin: %w", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// Serializable уровень для операций, читающих агрегаты, которые должны остаться верными к commit.
var Serializable = &sql.TxOptions{Isolation: sql.LevelSerializable}

// ReadCommitted достаточно для простых дописываний в журнал.
var ReadCommitted = &sql.TxOptions{Isolation: sql.LevelReadCommitted}
