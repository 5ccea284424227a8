package repository

import (
	"context"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
)

type UserRepo struct {
	q sqlx.ExtContext
}

const userCols = `id, email, password_hash, first_name, last_name, phone, role, is_active, created_at, updated_at`

// Create inserts a user with a normalised email. A taken email yields
// store.ErrDuplicate.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	const q = `INSERT INTO users (` + userCols + `)
		VALUES (:id, :email, :password_hash, :first_name, :last_name, :phone, :role, :is_active, :created_at, :updated_at)`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, u)
	return translate(err)
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := sqlx.GetContext(ctx, r.q, &u, `SELECT `+userCols+` FROM users WHERE id = ? LIMIT 1`, id)
	return u, translate(err)
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var u model.User
	err := sqlx.GetContext(ctx, r.q, &u, `SELECT `+userCols+` FROM users WHERE email = ? LIMIT 1`, email)
	return u, translate(err)
}

// likeEscaper neutralises LIKE wildcards in user-supplied search text.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func (r *UserRepo) List(ctx context.Context, f store.UserFilter) ([]model.User, error) {
	var (
		where []string
		args  []any
	)
	if f.Role != "" {
		where = append(where, "role = ?")
		args = append(args, f.Role)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		// the default utf8mb4 collation already compares case-insensitively
		like := "%" + likeEscaper.Replace(s) + "%"
		where = append(where, "(email LIKE ? OR first_name LIKE ? OR last_name LIKE ?)")
		args = append(args, like, like, like)
	}
	q := `SELECT ` + userCols + ` FROM users`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	p := f.Page.Normalize()
	q += ` ORDER BY email ASC LIMIT ? OFFSET ?`
	args = append(args, p.Take, p.Skip)

	out := []model.User{}
	if err := sqlx.SelectContext(ctx, r.q, &out, q, args...); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *UserRepo) Count(ctx context.Context, role model.Role) (int, error) {
	var n int
	if role == "" {
		err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM users`)
		return n, err
	}
	err := sqlx.GetContext(ctx, r.q, &n, `SELECT COUNT(*) FROM users WHERE role = ?`, role)
	return n, err
}

// Update does not report missing rows: MySQL counts unchanged rows as
// unaffected, so callers load the user first.
func (r *UserRepo) Update(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	const q = `UPDATE users SET
		email = :email, password_hash = :password_hash, first_name = :first_name, last_name = :last_name,
		phone = :phone, role = :role, is_active = :is_active, updated_at = :updated_at
		WHERE id = :id`
	_, err := sqlx.NamedExecContext(ctx, r.q, q, u)
	return translate(err)
}

// Delete removes a user; refresh tokens go with it through the foreign key.
func (r *UserRepo) Delete(ctx context.Context, id string) error {
	return requireAffected(r.q.ExecContext(ctx, `DELETE FROM users WHERE id = ?`, id))
}
