package model

import "time"

// Role is the authorization role carried in the access token.
type Role string

const (
	RoleAdmin        Role = "ADMIN"
	RoleEventManager Role = "EVENT_MANAGER"
	RoleClient       Role = "CLIENT"
)

func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleEventManager || r == RoleClient
}

// Staff reports whether r may manage other users' data.
func (r Role) Staff() bool {
	return r == RoleAdmin || r == RoleEventManager
}

// User mirrors the `users` table.
//
// Fields:
//
//	ID           – UUID primary key.
//	Email        – unique, stored lower-cased.
//	PasswordHash – bcrypt hash, never serialised.
//	Role         – ADMIN, EVENT_MANAGER or CLIENT.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	FirstName    string    `db:"first_name" json:"first_name"`
	LastName     string    `db:"last_name" json:"last_name"`
	Phone        string    `db:"phone" json:"phone,omitempty"`
	Role         Role      `db:"role" json:"role"`
	IsActive     bool      `db:"is_active" json:"is_active"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// UserProfile is a user together with their reservations.
type UserProfile struct {
	User
	Reservations []Reservation `json:"reservations"`
}

// UserStats summarises one user's bookings and spending.
type UserStats struct {
	User         User             `json:"user"`
	Reservations ReservationStats `json:"reservations"`
	PaidPayments int              `json:"paid_payments"`
	TotalSpent   float64          `json:"total_spent"`
}

// RefreshToken models a row of `refresh_tokens`. Only the SHA-256 hash of
// the raw token is persisted.
type RefreshToken struct {
	ID        uint64     `db:"id"`
	UserID    string     `db:"user_id"`
	TokenHash string     `db:"token_hash"`
	ExpiresAt time.Time  `db:"expires_at"`
	RevokedAt *time.Time `db:"revoked_at"`
	CreatedAt time.Time  `db:"created_at"`
}
