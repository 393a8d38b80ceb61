package postgres

import (
	"context"
	"database/sql"
)

// Store набор репозиториев поверх одного Querier (пул или транзакция).
type Store struct {
	Operations *OperationRepo
	Events     *EventRepo
	Contents   *ContentRepo
	Users      *UserRepo
	Sponsored  *SponsoredRepo
}

func NewStore(q Querier) *Store {
	return &Store{
		Operations: NewOperationRepo(q),
		Events:     NewEventRepo(q),
		Contents:   NewContentRepo(q),
		Users:      NewUserRepo(q),
		Sponsored:  NewSponsoredRepo(q),
	}
}

// Store возвращает репозитории вне транзакции (чтение, одиночные записи).
func (d *DB) Store() *Store {
	return NewStore(d.DB)
}

// WithStore InTx, где fn получает репозитории, привязанные к транзакции.
func (d *DB) WithStore(ctx context.Context, opts *sql.TxOptions, fn func(s *Store) error) error {
	return d.InTx(ctx, opts, func(tx *sql.Tx) error {
		return fn(NewStore(tx))
	})
}
