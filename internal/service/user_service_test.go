package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
	"github.com/iliyamo/venue-reservation/internal/utils"
)

const userPassword = "long-enough"

func (f *fixture) userService() *UserService {
	us := NewUserService(f.store, 4)
	us.Now = func() time.Time { return f.now }
	return us
}

// addUser stores an account and returns the actor acting as it.
func (f *fixture) addUser(t *testing.T, email, first string, role model.Role) Actor {
	t.Helper()
	hash, err := utils.HashPassword(userPassword, 4)
	require.NoError(t, err)
	u := model.User{
		ID: email, Email: email, PasswordHash: hash, FirstName: first,
		Role: role, IsActive: true, CreatedAt: f.now, UpdatedAt: f.now,
	}
	require.NoError(t, f.store.Users().Create(context.Background(), &u))
	return Actor{UserID: u.ID, Role: role}
}

func TestUserProfileAccess(t *testing.T) {
	f := newFixture(t)
	us := f.userService()
	ctx := context.Background()
	ada := f.addUser(t, "ada@example.com", "Ada", model.RoleClient)
	bob := f.addUser(t, "bob@example.com", "Bob", model.RoleClient)
	mgr := f.addUser(t, "mgr@example.com", "Mia", model.RoleEventManager)
	f.book(t, ada, at(20, 10), at(20, 14))

	p, err := us.Get(ctx, ada, ada.UserID)
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", p.Email)
	assert.Len(t, p.Reservations, 1)

	_, err = us.Get(ctx, bob, ada.UserID)
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = us.Get(ctx, mgr, ada.UserID)
	assert.NoError(t, err)
	_, err = us.Get(ctx, mgr, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdateUser(t *testing.T) {
	f := newFixture(t)
	us := f.userService()
	ctx := context.Background()
	ada := f.addUser(t, "ada@example.com", "Ada", model.RoleClient)
	bob := f.addUser(t, "bob@example.com", "Bob", model.RoleClient)
	admin := f.addUser(t, "root@example.com", "Root", model.RoleAdmin)

	name := "  Adeline "
	u, err := us.Update(ctx, ada, ada.UserID, UpdateUserInput{FirstName: &name})
	require.NoError(t, err)
	assert.Equal(t, "Adeline", u.FirstName)

	role := model.RoleAdmin
	_, err = us.Update(ctx, ada, ada.UserID, UpdateUserInput{Role: &role})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = us.Update(ctx, bob, ada.UserID, UpdateUserInput{FirstName: &name})
	assert.ErrorIs(t, err, ErrForbidden)

	taken := "BOB@example.com"
	_, err = us.Update(ctx, ada, ada.UserID, UpdateUserInput{Email: &taken})
	assert.ErrorIs(t, err, ErrConflict)
	bad := "nope"
	_, err = us.Update(ctx, ada, ada.UserID, UpdateUserInput{Email: &bad})
	assert.ErrorIs(t, err, ErrValidation)

	manager := model.RoleEventManager
	u, err = us.Update(ctx, admin, ada.UserID, UpdateUserInput{Role: &manager})
	require.NoError(t, err)
	assert.Equal(t, model.RoleEventManager, u.Role)

	// Deactivation signs the user out everywhere.
	require.NoError(t, f.store.Tokens().StoreRefresh(ctx, bob.UserID, "h1", f.now.Add(time.Hour)))
	off := false
	u, err = us.Update(ctx, admin, bob.UserID, UpdateUserInput{IsActive: &off})
	require.NoError(t, err)
	assert.False(t, u.IsActive)
	_, err = f.store.Tokens().ValidateRefresh(ctx, "h1", f.now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestChangePassword(t *testing.T) {
	f := newFixture(t)
	us := f.userService()
	ctx := context.Background()
	ada := f.addUser(t, "ada@example.com", "Ada", model.RoleClient)
	admin := f.addUser(t, "root@example.com", "Root", model.RoleAdmin)
	require.NoError(t, f.store.Tokens().StoreRefresh(ctx, ada.UserID, "h1", f.now.Add(time.Hour)))

	assert.ErrorIs(t, us.ChangePassword(ctx, admin, ada.UserID, userPassword, "brand-new-pass"), ErrForbidden)
	assert.ErrorIs(t, us.ChangePassword(ctx, ada, ada.UserID, "wrong-password", "brand-new-pass"), ErrValidation)
	assert.ErrorIs(t, us.ChangePassword(ctx, ada, ada.UserID, userPassword, "short"), ErrValidation)

	require.NoError(t, us.ChangePassword(ctx, ada, ada.UserID, userPassword, "brand-new-pass"))
	u, err := f.store.Users().GetByID(ctx, ada.UserID)
	require.NoError(t, err)
	assert.True(t, utils.VerifyPassword(u.PasswordHash, "brand-new-pass"))
	assert.False(t, utils.VerifyPassword(u.PasswordHash, userPassword))
	_, err = f.store.Tokens().ValidateRefresh(ctx, "h1", f.now)
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestDeleteUser(t *testing.T) {
	f := newFixture(t)
	us := f.userService()
	ctx := context.Background()
	ada := f.addUser(t, "ada@example.com", "Ada", model.RoleClient)
	bob := f.addUser(t, "bob@example.com", "Bob", model.RoleClient)
	res := f.book(t, ada, at(20, 10), at(20, 14))

	_, err := us.Delete(ctx, ada.UserID)
	assert.ErrorIs(t, err, ErrConflict)

	_, err = f.reservations.Cancel(ctx, ada, res.ID)
	require.NoError(t, err)
	deactivated, err := us.Delete(ctx, ada.UserID)
	require.NoError(t, err)
	assert.True(t, deactivated)
	u, err := f.store.Users().GetByID(ctx, ada.UserID)
	require.NoError(t, err)
	assert.False(t, u.IsActive)

	deactivated, err = us.Delete(ctx, bob.UserID)
	require.NoError(t, err)
	assert.False(t, deactivated)
	_, err = f.store.Users().GetByID(ctx, bob.UserID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = us.Delete(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserStatsSearchAndCount(t *testing.T) {
	f := newFixture(t)
	us := f.userService()
	ctx := context.Background()
	ada := f.addUser(t, "ada@example.com", "Ada", model.RoleClient)
	f.addUser(t, "bob@example.com", "Bob", model.RoleClient)
	f.addUser(t, "mgr@example.com", "Adam", model.RoleEventManager)

	res := f.book(t, ada, at(20, 10), at(20, 14))
	f.book(t, ada, at(21, 10), at(21, 14))
	p := f.pay(t, ada, res.ID, 1500)
	_, err := f.payments.MarkPaid(ctx, p.ID)
	require.NoError(t, err)

	st, err := us.Stats(ctx, ada.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Reservations.Total)
	assert.Equal(t, 1, st.Reservations.Confirmed)
	assert.Equal(t, 1, st.Reservations.Pending)
	assert.Equal(t, 1, st.PaidPayments)
	assert.Equal(t, 1500.0, st.TotalSpent)
	_, err = us.Stats(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	found, err := us.Search(ctx, "ADA", store.Page{})
	require.NoError(t, err)
	require.Len(t, found, 2) // ada@ and Adam
	assert.Equal(t, "ada@example.com", found[0].Email)
	_, err = us.Search(ctx, "  ", store.Page{})
	assert.ErrorIs(t, err, ErrValidation)

	n, err := us.Count(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	n, err = us.Count(ctx, model.RoleClient)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	_, err = us.List(ctx, store.UserFilter{Role: "ROOT"})
	assert.ErrorIs(t, err, ErrValidation)
}
