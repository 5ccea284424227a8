// Package store declares the persistence ports used by the service layer and
// ships an in-memory implementation. The MySQL implementation lives in
// package repository.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a unique constraint would be violated
	// (user email, reservation quote link).
	ErrDuplicate = errors.New("duplicate record")
)

// DefaultTake and MaxTake bound list pagination.
const (
	DefaultTake = 50
	MaxTake     = 200
)

// Page is the skip/take window of a list query.
type Page struct {
	Skip int
	Take int
}

// Normalize applies the default and maximum page size.
func (p Page) Normalize() Page {
	if p.Skip < 0 {
		p.Skip = 0
	}
	if p.Take <= 0 {
		p.Take = DefaultTake
	}
	if p.Take > MaxTake {
		p.Take = MaxTake
	}
	return p
}

// ReservationFilter narrows a reservation listing. Zero values mean "any".
// StartFrom and StartTo bound StartsAt inclusively.
type ReservationFilter struct {
	Status    model.ReservationStatus
	EventType model.EventType
	UserID    string
	StartFrom *time.Time
	StartTo   *time.Time
	Page
}

type PaymentFilter struct {
	Status        model.PaymentStatus
	Type          model.PaymentType
	ReservationID string
	UserID        string
	Page
}

// UserFilter narrows user listings. Search matches email, first or last
// name, case-insensitively.
type UserFilter struct {
	Role   model.Role
	Search string
	Page
}

type QuoteFilter struct {
	HasReservation *bool
	Page
}

type ReservationRepository interface {
	// LockCalendar serialises writers that check and then claim time slots.
	// It must be called inside Store.WithinTx.
	LockCalendar(ctx context.Context) error
	Create(ctx context.Context, r *model.Reservation) error
	GetByID(ctx context.Context, id string) (model.Reservation, error)
	GetByQuoteID(ctx context.Context, quoteID string) (model.Reservation, error)
	List(ctx context.Context, f ReservationFilter) ([]model.Reservation, error)
	// FindOverlapping returns active reservations intersecting [start, end),
	// skipping excludeID when it is not empty.
	FindOverlapping(ctx context.Context, start, end time.Time, excludeID string) ([]model.Reservation, error)
	Update(ctx context.Context, r *model.Reservation) error
	Delete(ctx context.Context, id string) error
	// CountByStatus counts reservations per status, for one user when userID
	// is not empty.
	CountByStatus(ctx context.Context, userID string) (map[model.ReservationStatus]int, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *model.Payment) error
	GetByID(ctx context.Context, id string) (model.Payment, error)
	List(ctx context.Context, f PaymentFilter) ([]model.Payment, error)
	Update(ctx context.Context, p *model.Payment) error
	Delete(ctx context.Context, id string) error
	CountByReservation(ctx context.Context, reservationID string) (int, error)
	// HasPaid reports whether the reservation already has a PAID payment,
	// ignoring excludeID when it is not empty.
	HasPaid(ctx context.Context, reservationID, excludeID string) (bool, error)
	TotalsByStatus(ctx context.Context) ([]model.PaymentStatusTotal, error)
	// PaidBetween sums PAID payments whose paid_at lies in [from, to).
	PaidBetween(ctx context.Context, from, to time.Time) (float64, int, error)
	// PaidByUser sums and counts the user's PAID payments.
	PaidByUser(ctx context.Context, userID string) (float64, int, error)
}

type QuoteRepository interface {
	Create(ctx context.Context, q *model.Quote) error
	GetByID(ctx context.Context, id string) (model.Quote, error)
	List(ctx context.Context, f QuoteFilter) ([]model.Quote, error)
	Update(ctx context.Context, q *model.Quote) error
	Delete(ctx context.Context, id string) error
	Stats(ctx context.Context) (model.QuoteStats, error)
}

type UserRepository interface {
	Create(ctx context.Context, u *model.User) error
	GetByID(ctx context.Context, id string) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	List(ctx context.Context, f UserFilter) ([]model.User, error)
	// Count counts users, of one role when role is not empty.
	Count(ctx context.Context, role model.Role) (int, error)
	// Update rewrites the profile, role, activity flag and password hash.
	// A taken email yields ErrDuplicate.
	Update(ctx context.Context, u *model.User) error
	Delete(ctx context.Context, id string) error
}

type TokenRepository interface {
	StoreRefresh(ctx context.Context, userID, tokenHash string, exp time.Time) error
	// ValidateRefresh returns the owner of a live token or ErrNotFound.
	ValidateRefresh(ctx context.Context, tokenHash string, now time.Time) (string, error)
	RevokeByHash(ctx context.Context, tokenHash string) error
	RevokeAllForUser(ctx context.Context, userID string) error
}

// Repositories groups every repository bound to one connection or transaction.
type Repositories interface {
	Reservations() ReservationRepository
	Payments() PaymentRepository
	Quotes() QuoteRepository
	Users() UserRepository
	Tokens() TokenRepository
}

// Store hands out auto-commit repositories and runs units of work. When fn
// returns an error every write made through tx is discarded.
type Store interface {
	Repositories
	WithinTx(ctx context.Context, fn func(tx Repositories) error) error
}
