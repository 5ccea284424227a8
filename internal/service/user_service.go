package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
	"github.com/iliyamo/venue-reservation/internal/utils"
)

// DefaultSearchTake caps user search results when no take is given.
const DefaultSearchTake = 20

// UserService manages existing accounts: profiles, passwords and removal.
// Account creation lives in AuthService.
type UserService struct {
	Store      store.Store
	BcryptCost int
	Now        func() time.Time
}

func NewUserService(st store.Store, bcryptCost int) *UserService {
	return &UserService{Store: st, BcryptCost: bcryptCost, Now: time.Now}
}

// Get returns a profile with its reservations. Clients may only read their
// own.
func (s *UserService) Get(ctx context.Context, actor Actor, id string) (model.UserProfile, error) {
	if !actor.owns(id) {
		return model.UserProfile{}, fmt.Errorf("%w: you can only view your own profile", ErrForbidden)
	}
	u, err := s.Store.Users().GetByID(ctx, id)
	if err != nil {
		return model.UserProfile{}, notFound(err, "user")
	}
	res, err := s.Store.Reservations().List(ctx, store.ReservationFilter{
		UserID: id,
		Page:   store.Page{Take: store.MaxTake},
	})
	if err != nil {
		return model.UserProfile{}, err
	}
	return model.UserProfile{User: u, Reservations: res}, nil
}

// List returns users filtered by role and search text.
func (s *UserService) List(ctx context.Context, f store.UserFilter) ([]model.User, error) {
	if f.Role != "" && !f.Role.Valid() {
		return nil, validationf("unknown role %q", f.Role)
	}
	f.Page = f.Page.Normalize()
	return s.Store.Users().List(ctx, f)
}

// Search matches q against email and names.
func (s *UserService) Search(ctx context.Context, q string, p store.Page) ([]model.User, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, validationf("search query is required")
	}
	if p.Take <= 0 {
		p.Take = DefaultSearchTake
	}
	return s.List(ctx, store.UserFilter{Search: q, Page: p})
}

// Count counts users, of one role when role is not empty.
func (s *UserService) Count(ctx context.Context, role model.Role) (int, error) {
	if role != "" && !role.Valid() {
		return 0, validationf("unknown role %q", role)
	}
	return s.Store.Users().Count(ctx, role)
}

// UpdateUserInput carries a partial profile update; nil fields are kept.
// Role and IsActive are reserved to admins.
type UpdateUserInput struct {
	Email     *string
	FirstName *string
	LastName  *string
	Phone     *string
	Role      *model.Role
	IsActive  *bool
}

// Update edits a profile. Users may edit their own; admins may edit anyone
// and are the only ones allowed to change roles or deactivate accounts.
func (s *UserService) Update(ctx context.Context, actor Actor, id string, in UpdateUserInput) (model.User, error) {
	admin := actor.Role == model.RoleAdmin
	if actor.UserID != id && !admin {
		return model.User{}, fmt.Errorf("%w: you can only edit your own profile", ErrForbidden)
	}
	if (in.Role != nil || in.IsActive != nil) && !admin {
		return model.User{}, fmt.Errorf("%w: only admins can change roles or activation", ErrForbidden)
	}
	if in.Role != nil && !in.Role.Valid() {
		return model.User{}, validationf("unknown role %q", *in.Role)
	}

	var out model.User
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		u, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "user")
		}
		if in.Email != nil {
			if u.Email, err = normalizeEmail(*in.Email); err != nil {
				return err
			}
		}
		if in.FirstName != nil {
			u.FirstName = strings.TrimSpace(*in.FirstName)
		}
		if in.LastName != nil {
			u.LastName = strings.TrimSpace(*in.LastName)
		}
		if in.Phone != nil {
			u.Phone = strings.TrimSpace(*in.Phone)
		}
		if in.Role != nil {
			u.Role = *in.Role
		}
		if in.IsActive != nil {
			u.IsActive = *in.IsActive
		}
		u.UpdatedAt = utc(s.Now())
		if err := tx.Users().Update(ctx, &u); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				return conflictf("email already registered")
			}
			return err
		}
		if !u.IsActive {
			if err := tx.Tokens().RevokeAllForUser(ctx, u.ID); err != nil {
				return err
			}
		}
		out = u
		return nil
	})
	return out, err
}

// ChangePassword replaces the caller's own password after checking the
// current one, then signs every other session out.
func (s *UserService) ChangePassword(ctx context.Context, actor Actor, id, current, next string) error {
	if actor.UserID != id {
		return fmt.Errorf("%w: you can only change your own password", ErrForbidden)
	}
	if err := utils.CheckPassword(next); err != nil {
		return fmt.Errorf("%w: %s", ErrValidation, err)
	}
	return s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		u, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "user")
		}
		if !utils.VerifyPassword(u.PasswordHash, current) {
			return validationf("current password is incorrect")
		}
		if u.PasswordHash, err = utils.HashPassword(next, s.BcryptCost); err != nil {
			return err
		}
		u.UpdatedAt = utc(s.Now())
		if err := tx.Users().Update(ctx, &u); err != nil {
			return err
		}
		return tx.Tokens().RevokeAllForUser(ctx, id)
	})
}

// Delete removes a user. Users holding PENDING or CONFIRMED reservations
// cannot be removed; users with only past bookings are deactivated instead
// so their reservations and payments stay on record.
func (s *UserService) Delete(ctx context.Context, id string) (deactivated bool, err error) {
	err = s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		u, err := tx.Users().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "user")
		}
		counts, err := tx.Reservations().CountByStatus(ctx, id)
		if err != nil {
			return err
		}
		st := reservationStats(counts)
		if st.Pending+st.Confirmed > 0 {
			return conflictf("user %s has active reservations", id)
		}
		if st.Total == 0 {
			return tx.Users().Delete(ctx, id)
		}
		u.IsActive = false
		u.UpdatedAt = utc(s.Now())
		if err := tx.Users().Update(ctx, &u); err != nil {
			return err
		}
		deactivated = true
		return tx.Tokens().RevokeAllForUser(ctx, id)
	})
	return deactivated, err
}

// Stats reports a user's reservations per status and what they have paid.
func (s *UserService) Stats(ctx context.Context, id string) (model.UserStats, error) {
	u, err := s.Store.Users().GetByID(ctx, id)
	if err != nil {
		return model.UserStats{}, notFound(err, "user")
	}
	counts, err := s.Store.Reservations().CountByStatus(ctx, id)
	if err != nil {
		return model.UserStats{}, err
	}
	spent, paid, err := s.Store.Payments().PaidByUser(ctx, id)
	if err != nil {
		return model.UserStats{}, err
	}
	return model.UserStats{
		User:         u,
		Reservations: reservationStats(counts),
		PaidPayments: paid,
		TotalSpent:   spent,
	}, nil
}
