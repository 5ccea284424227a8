package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
)

type PaymentRepo struct {
	q sqlx.ExtContext
}

const paymentCols = `id, reservation_id, user_id, amount, currency, type, status, description, paid_at, due_at, created_at, updated_at`

func (r *PaymentRepo) Create(ctx context.Context, p *model.Payment) error {
	const q = `INSERT INTO payments (` + paymentCols + `)
		VALUES (:id, :reservation_id, :user_id, :amount, :currency, :type, :status, :description, :paid_at, :due_at, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, p)
	return translate(err)
}

func (r *PaymentRepo) GetByID(ctx context.Context, id string) (model.Payment, error) {
	var p model.Payment
	err := sqlx.GetContext(ctx, r.q, &p, `SELECT `+paymentCols+` FROM payments WHERE id = ? LIMIT 1`, id)
	return p, translate(err)
}

func (r *PaymentRepo) List(ctx context.Context, f store.PaymentFilter) ([]model.Payment, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.Type != "" {
		where = append(where, "type = ?")
		args = append(args, f.Type)
	}
	if f.ReservationID != "" {
		where = append(where, "reservation_id = ?")
		args = append(args, f.ReservationID)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	q := `SELECT ` + paymentCols + ` FROM payments`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	p := f.Page.Normalize()
	q += " ORDER BY created_at DESC, id ASC LIMIT ? OFFSET ?"
	args = append(args, p.Take, p.Skip)

	out := []model.Payment{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *PaymentRepo) Update(ctx context.Context, p *model.Payment) error {
	const q = `UPDATE payments SET
		amount = :amount, currency = :currency, type = :type, status = :status, description = :description,
		paid_at = :paid_at, due_at = :due_at, updated_at = :updated_at
		WHERE id = :id`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, p)
	return translate(err)
}

func (r *PaymentRepo) Delete(ctx context.Context, id string) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM payments WHERE id = ?`, id))
}

func (r *PaymentRepo) CountByReservation(ctx context.Context, reservationID string) (int, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM payments WHERE reservation_id = ?`, reservationID)
	return n, err
}

func (r *PaymentRepo) HasPaid(ctx context.Context, reservationID, excludeID string) (bool, error) {
	var n int
	err := sqlx.GetContext(ctx, r.q, &n,
		`SELECT COUNT(*) FROM payments WHERE reservation_id = ? AND status = 'PAID' AND id <> ?`,
		reservationID, excludeID)
	return n > 0, err
}

func (r *PaymentRepo) TotalsByStatus(ctx context.Context) ([]model.PaymentStatusTotal, error) {
	out := []model.PaymentStatusTotal{}
	err := sqlx.SelectContext(ctx, r.q, &out,
		`SELECT status, COUNT(*) AS cnt, COALESCE(SUM(amount), 0) AS amount FROM payments GROUP BY status ORDER BY status`)
	return out, err
}

func (r *PaymentRepo) PaidBetween(ctx context.Context, from, to time.Time) (float64, int, error) {
	var (
		sum float64
		n   int
	)
	err := r.q.QueryRowxContext(ctx,
		`SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM payments WHERE status = 'PAID' AND paid_at >= ? AND paid_at < ?`,
		from, to).Scan(&sum, &n)
	return sum, n, err
}

func (r *PaymentRepo) PaidByUser(ctx context.Context, userID string) (float64, int, error) {
	var (
		sum float64
		n   int
	)
	err := r.q.QueryRowxContext(ctx,
		`SELECT COALESCE(SUM(amount), 0), COUNT(*) FROM payments WHERE user_id = ? AND status = 'PAID'`,
		userID).Scan(&sum, &n)
	return sum, n, err
}
