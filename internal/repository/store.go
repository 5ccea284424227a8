package repository

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/venue-reservation/internal/store"
)

// Store is the MySQL implementation of store.Store.
type Store struct {
	db *sqlx.DB
}

func NewStore(db *sqlx.DB) *Store { return &Store{db: db} }

// DB exposes the pool for health checks.
func (s *Store) DB() *sqlx.DB { return s.db }

func (s *Store) Reservations() store.ReservationRepository { return &ReservationRepo{q: s.db} }
func (s *Store) Payments() store.PaymentRepository         { return &PaymentRepo{q: s.db} }
func (s *Store) Quotes() store.QuoteRepository             { return &QuoteRepo{q: s.db} }
func (s *Store) Users() store.UserRepository               { return &UserRepo{q: s.db} }
func (s *Store) Tokens() store.TokenRepository             { return &TokenRepo{q: s.db} }

// WithinTx runs fn inside a SERIALIZABLE transaction and commits when fn
// returns nil.
func (s *Store) WithinTx(ctx context.Context, fn func(tx store.Repositories) error) error {
	tx, err := s.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	if err := fn(txRepos{tx: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

type txRepos struct{ tx *sqlx.Tx }

func (t txRepos) Reservations() store.ReservationRepository { return &ReservationRepo{q: t.tx} }
func (t txRepos) Payments() store.PaymentRepository         { return &PaymentRepo{q: t.tx} }
func (t txRepos) Quotes() store.QuoteRepository             { return &QuoteRepo{q: t.tx} }
func (t txRepos) Users() store.UserRepository               { return &UserRepo{q: t.tx} }
func (t txRepos) Tokens() store.TokenRepository             { return &TokenRepo{q: t.tx} }
