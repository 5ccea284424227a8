package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
)

type QuoteRepo struct {
	q sqlx.ExtContext
}

// quoteSelect resolves the back-reference through reservations.quote_id.
const quoteSelect = `SELECT q.id, q.items, q.currency, q.total_amount, q.created_at, q.updated_at, r.id AS reservation_id
	FROM quotes q LEFT JOIN reservations r ON r.quote_id = q.id`

func (r *QuoteRepo) Create(ctx context.Context, q *model.Quote) error {
	const stmt = `INSERT INTO quotes (id, items, currency, total_amount, created_at, updated_at)
		VALUES (:id, :items, :currency, :total_amount, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.q, stmt, q)
	return translate(err)
}

func (r *QuoteRepo) GetByID(ctx context.Context, id string) (model.Quote, error) {
	var q model.Quote
	err := sqlx.GetContext(ctx, r.q, &q, quoteSelect+` WHERE q.id = ? LIMIT 1`, id)
	return q, translate(err)
}

func (r *QuoteRepo) List(ctx context.Context, f store.QuoteFilter) ([]model.Quote, error) {
	q := quoteSelect
	if f.HasReservation != nil {
		if *f.HasReservation {
			q += ` WHERE r.id IS NOT NULL`
		} else {
			q += ` WHERE r.id IS NULL`
		}
	}
	p := f.Page.Normalize()
	q += ` ORDER BY q.created_at DESC, q.id ASC LIMIT ? OFFSET ?`

	out := []model.Quote{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q, p.Take, p.Skip); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *QuoteRepo) Update(ctx context.Context, q *model.Quote) error {
	const stmt = `UPDATE quotes SET items = :items, currency = :currency, total_amount = :total_amount, updated_at = :updated_at
		WHERE id = :id`
	_, err := sqlx.NamedExecContext(ctx, r.q, stmt, q)
	return translate(err)
}

// Delete relies on ON DELETE SET NULL to clear reservations.quote_id.
func (r *QuoteRepo) Delete(ctx context.Context, id string) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM quotes WHERE id = ?`, id))
}

func (r *QuoteRepo) Stats(ctx context.Context) (model.QuoteStats, error) {
	var st model.QuoteStats
	err := sqlx.GetContext(ctx, r.q, &st, `SELECT
			COUNT(*) AS total_quotes,
			COALESCE(SUM(q.total_amount), 0) AS total_amount,
			COUNT(r.id) AS with_reservation,
			COUNT(*) - COUNT(r.id) AS without_reservation
		FROM quotes q LEFT JOIN reservations r ON r.quote_id = q.id`)
	return st, err
}
