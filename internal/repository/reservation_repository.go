package repository

import (
	"context"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
)

// ReservationRepo reads and writes the reservations table. q is either the
// pool or an open transaction.
type ReservationRepo struct {
	q sqlx.ExtContext
}

const reservationCols = `id, user_id, event_type, starts_at, ends_at, attendees, notes, status, quote_id, created_at, updated_at`

// LockCalendar takes the row lock that serialises slot claims until the
// surrounding transaction ends.
func (r *ReservationRepo) LockCalendar(ctx context.Context) error {
	var id int
	return translate(sqlx.GetContext(ctx, r.q, &id, `SELECT id FROM calendar_locks WHERE id = 1 FOR UPDATE`))
}

func (r *ReservationRepo) Create(ctx context.Context, res *model.Reservation) error {
	const q = `INSERT INTO reservations (` + reservationCols + `)
		VALUES (:id, :user_id, :event_type, :starts_at, :ends_at, :attendees, :notes, :status, :quote_id, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, res)
	return translate(err)
}

func (r *ReservationRepo) GetByID(ctx context.Context, id string) (model.Reservation, error) {
	var res model.Reservation
	err := sqlx.GetContext(ctx, r.q, &res, `SELECT `+reservationCols+` FROM reservations WHERE id = ? LIMIT 1`, id)
	return res, translate(err)
}

func (r *ReservationRepo) GetByQuoteID(ctx context.Context, quoteID string) (model.Reservation, error) {
	var res model.Reservation
	err := sqlx.GetContext(ctx, r.q, &res, `SELECT `+reservationCols+` FROM reservations WHERE quote_id = ? LIMIT 1`, quoteID)
	return res, translate(err)
}

func (r *ReservationRepo) List(ctx context.Context, f store.ReservationFilter) ([]model.Reservation, error) {
	var (
		where []string
		args  []any
	)
	if f.Status != "" {
		where = append(where, "status = ?")
		args = append(args, f.Status)
	}
	if f.EventType != "" {
		where = append(where, "event_type = ?")
		args = append(args, f.EventType)
	}
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.StartFrom != nil {
		where = append(where, "starts_at >= ?")
		args = append(args, *f.StartFrom)
	}
	if f.StartTo != nil {
		where = append(where, "starts_at <= ?")
		args = append(args, *f.StartTo)
	}
	q := `SELECT ` + reservationCols + ` FROM reservations`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	p := f.Page.Normalize()
	q += " ORDER BY starts_at ASC, id ASC LIMIT ? OFFSET ?"
	args = append(args, p.Take, p.Skip)

	out := []model.Reservation{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

// FindOverlapping uses the half-open test: a row overlaps [start, end)
// unless it ends at or before start or begins at or after end.
func (r *ReservationRepo) FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	const q = `SELECT ` + reservationCols + ` FROM reservations
		WHERE status IN ('PENDING','CONFIRMED')
		  AND NOT (ends_at <= ? OR starts_at >= ?)
		  AND id <> ?
		ORDER BY starts_at ASC`
	out := []model.Reservation{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q, start, end, excludeID); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *ReservationRepo) Update(ctx context.Context, res *model.Reservation) error {
	const q = `UPDATE reservations SET
		event_type = :event_type, starts_at = :starts_at, ends_at = :ends_at, attendees = :attendees,
		notes = :notes, status = :status, quote_id = :quote_id, updated_at = :updated_at
		WHERE id = :id`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, res)
	return translate(err)
}

func (r *ReservationRepo) Delete(ctx context.Context, id string) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM reservations WHERE id = ?`, id))
}

func (r *ReservationRepo) CountByStatus(ctx context.Context, userID string) (map[model.ReservationStatus]int, error) {
	var rows []struct {
		Status model.ReservationStatus `db:"status"`
		Count  int                     `db:"cnt"`
	}
	q, args := `SELECT status, COUNT(*) AS cnt FROM reservations GROUP BY status`, []any{}
	if userID != "" {
		q, args = `SELECT status, COUNT(*) AS cnt FROM reservations WHERE user_id = ? GROUP BY status`, []any{userID}
	}
	if err := sqlx.SelectContext(ctx, r.q, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make(map[model.ReservationStatus]int, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}
