package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation/internal/model"
)

func hour(h int) time.Time { return time.Date(2030, 1, 1, h, 0, 0, 0, time.UTC) }

func reservation(id string, start, end int, status model.ReservationStatus) *model.Reservation {
	return &model.Reservation{ID: id, UserID: "u", StartsAt: hour(start), EndsAt: hour(end), Attendees: 1, Status: status}
}

func TestMemoryStore_FindOverlapping(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Reservations().Create(ctx, reservation("a", 10, 12, model.ReservationPending)))
	require.NoError(t, s.Reservations().Create(ctx, reservation("b", 14, 16, model.ReservationConfirmed)))
	require.NoError(t, s.Reservations().Create(ctx, reservation("c", 11, 15, model.ReservationCanceled)))

	got, err := s.Reservations().FindOverlapping(ctx, hour(11), hour(15), "")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "b", got[1].ID)

	got, err = s.Reservations().FindOverlapping(ctx, hour(12), hour(14), "")
	require.NoError(t, err)
	assert.Empty(t, got, "touching endpoints do not overlap")

	got, err = s.Reservations().FindOverlapping(ctx, hour(9), hour(13), "a")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestMemoryStore_WithinTxRollsBack(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithinTx(ctx, func(tx Repositories) error {
		require.NoError(t, tx.Reservations().Create(ctx, reservation("a", 10, 12, model.ReservationPending)))
		require.NoError(t, tx.Quotes().Create(ctx, &model.Quote{ID: "q", Items: model.QuoteItems{{Label: "x"}}}))
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.Reservations().GetByID(ctx, "a")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Quotes().GetByID(ctx, "q")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.WithinTx(ctx, func(tx Repositories) error {
		return tx.Reservations().Create(ctx, reservation("a", 10, 12, model.ReservationPending))
	}))
	_, err = s.Reservations().GetByID(ctx, "a")
	assert.NoError(t, err)
}

func TestMemoryStore_QuoteLinkIsUnique(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, s.Quotes().Create(ctx, &model.Quote{ID: "q"}))
	a := reservation("a", 10, 12, model.ReservationPending)
	b := reservation("b", 13, 14, model.ReservationPending)
	qid := "q"
	a.QuoteID = &qid
	require.NoError(t, s.Reservations().Create(ctx, a))
	require.NoError(t, s.Reservations().Create(ctx, b))

	b.QuoteID = &qid
	assert.ErrorIs(t, s.Reservations().Update(ctx, b), ErrDuplicate)

	q, err := s.Quotes().GetByID(ctx, "q")
	require.NoError(t, err)
	require.NotNil(t, q.ReservationID)
	assert.Equal(t, "a", *q.ReservationID)

	require.NoError(t, s.Quotes().Delete(ctx, "q"))
	got, err := s.Reservations().GetByID(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got.QuoteID)
}

func TestMemoryStore_ListPagination(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	for i, id := range []string{"c", "a", "b"} {
		require.NoError(t, s.Reservations().Create(ctx, reservation(id, 10+2*i, 11+2*i, model.ReservationPending)))
	}
	page, err := s.Reservations().List(ctx, ReservationFilter{Page: Page{Skip: 1, Take: 1}})
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "a", page[0].ID)

	page, err = s.Reservations().List(ctx, ReservationFilter{Page: Page{Skip: 5}})
	require.NoError(t, err)
	assert.Empty(t, page)
}

func TestMemoryStore_Tokens(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	now := time.Now().UTC()
	require.NoError(t, s.Tokens().StoreRefresh(ctx, "u1", "h1", now.Add(time.Hour)))
	require.NoError(t, s.Tokens().StoreRefresh(ctx, "u1", "h2", now.Add(time.Hour)))

	uid, err := s.Tokens().ValidateRefresh(ctx, "h1", now)
	require.NoError(t, err)
	assert.Equal(t, "u1", uid)

	_, err = s.Tokens().ValidateRefresh(ctx, "h1", now.Add(2*time.Hour))
	assert.ErrorIs(t, err, ErrNotFound, "expired")

	require.NoError(t, s.Tokens().RevokeByHash(ctx, "h1"))
	_, err = s.Tokens().ValidateRefresh(ctx, "h1", now)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Tokens().RevokeAllForUser(ctx, "u1"))
	_, err = s.Tokens().ValidateRefresh(ctx, "h2", now)
	assert.ErrorIs(t, err, ErrNotFound)
}
