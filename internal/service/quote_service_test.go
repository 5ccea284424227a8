package service

import (
	"context"
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
)

func item(label string, qty, price float64) model.QuoteItem {
	return model.QuoteItem{Label: label, Quantity: model.Number(qty), Price: model.Number(price)}
}

func TestComputeTotal(t *testing.T) {
	assert.Zero(t, ComputeTotal(nil))
	assert.Zero(t, ComputeTotal([]model.QuoteItem{}))

	items := []model.QuoteItem{item("hall", 1, 300000), item("catering", 100, 8000)}
	assert.Equal(t, 1100000.0, ComputeTotal(items))
	assert.Equal(t, ComputeTotal(items), ComputeTotal(items))

	items = append(items, model.QuoteItem{Label: "bad", Quantity: model.Number(math.NaN()), Price: 3})
	assert.Equal(t, 1100000.0, ComputeTotal(items))
}

func TestComputeTotal_MalformedJSON(t *testing.T) {
	raw := `[
		{"label":"a","quantity":2,"price":"150.5"},
		{"label":"b","quantity":"abc","price":10},
		{"label":"c","price":10},
		{"label":"d","quantity":null,"price":null},
		{"label":"e","quantity":true,"price":{}}
	]`
	var items []model.QuoteItem
	require.NoError(t, json.Unmarshal([]byte(raw), &items))
	assert.Equal(t, 301.0, ComputeTotal(items))
}

func TestCreateQuote_TotalAndLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, client, at(20, 10), at(20, 18))

	q, err := f.quotes.Create(ctx, CreateQuoteInput{
		Items:         []model.QuoteItem{item("hall", 1, 300000), item("catering", 100, 8000)},
		ReservationID: &res.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, 1100000.0, q.TotalAmount)
	assert.Equal(t, model.DefaultCurrency, q.Currency)
	require.NotNil(t, q.ReservationID)
	assert.Equal(t, res.ID, *q.ReservationID)
	require.NotNil(t, f.reservation(t, res.ID).QuoteID)

	_, err = f.quotes.Create(ctx, CreateQuoteInput{ReservationID: &res.ID})
	assert.ErrorIs(t, err, ErrConflict)

	list, err := f.quotes.List(ctx, store.QuoteFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 1, "rejected quote was rolled back")

	missing := "nope"
	_, err = f.quotes.Create(ctx, CreateQuoteInput{ReservationID: &missing})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateQuote_NegativeRejected(t *testing.T) {
	f := newFixture(t)
	_, err := f.quotes.Create(context.Background(), CreateQuoteInput{
		Items: []model.QuoteItem{item("refund", 1, -5)},
	})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestQuote_OverflowingAmountsRejected(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.quotes.Create(ctx, CreateQuoteInput{Items: []model.QuoteItem{item("huge", 1e200, 1e200)}})
	assert.ErrorIs(t, err, ErrValidation)
	// Each line fits but the sum does not.
	_, err = f.quotes.Create(ctx, CreateQuoteInput{Items: []model.QuoteItem{
		item("a", 1, model.MaxAmount), item("b", 1, model.MaxAmount),
	}})
	assert.ErrorIs(t, err, ErrValidation)

	q, err := f.quotes.Create(ctx, CreateQuoteInput{Items: []model.QuoteItem{item("hall", 1, model.MaxAmount)}})
	require.NoError(t, err)
	_, err = f.quotes.AddItem(ctx, q.ID, item("extra", 1, 1))
	assert.ErrorIs(t, err, ErrValidation)
	qty := model.Number(2)
	_, err = f.quotes.UpdateItem(ctx, q.ID, 0, QuoteItemPatch{Quantity: &qty})
	assert.ErrorIs(t, err, ErrValidation)

	stored, err := f.quotes.List(ctx, store.QuoteFilter{})
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, model.MaxAmount, stored[0].TotalAmount)
	_, err = json.Marshal(stored)
	assert.NoError(t, err)
}

func TestQuoteItems_RecomputeTotal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.quotes.Create(ctx, CreateQuoteInput{Items: []model.QuoteItem{item("hall", 1, 1000)}})
	require.NoError(t, err)

	q, err = f.quotes.AddItem(ctx, q.ID, item("chairs", 50, 2))
	require.NoError(t, err)
	assert.Equal(t, 1100.0, q.TotalAmount)

	qty := model.Number(100)
	q, err = f.quotes.UpdateItem(ctx, q.ID, 1, QuoteItemPatch{Quantity: &qty})
	require.NoError(t, err)
	assert.Equal(t, 1200.0, q.TotalAmount)
	assert.Equal(t, "chairs", q.Items[1].Label)

	_, err = f.quotes.UpdateItem(ctx, q.ID, 5, QuoteItemPatch{Quantity: &qty})
	assert.ErrorIs(t, err, ErrValidation)

	q, err = f.quotes.RemoveItem(ctx, q.ID, 0)
	require.NoError(t, err)
	require.Len(t, q.Items, 1)
	assert.Equal(t, 200.0, q.TotalAmount)

	_, err = f.quotes.RemoveItem(ctx, q.ID, -1)
	assert.ErrorIs(t, err, ErrValidation)

	items := []model.QuoteItem{}
	q, err = f.quotes.Update(ctx, q.ID, UpdateQuoteInput{Items: &items})
	require.NoError(t, err)
	assert.Zero(t, q.TotalAmount)
}

func TestLinkUnlinkDelete(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.book(t, client, at(20, 10), at(20, 12))
	b := f.book(t, client, at(21, 10), at(21, 12))
	q1, err := f.quotes.Create(ctx, CreateQuoteInput{Items: []model.QuoteItem{item("x", 1, 1)}})
	require.NoError(t, err)
	q2, err := f.quotes.Create(ctx, CreateQuoteInput{})
	require.NoError(t, err)

	_, err = f.quotes.Link(ctx, q1.ID, a.ID)
	require.NoError(t, err)
	_, err = f.quotes.Link(ctx, q2.ID, a.ID)
	assert.ErrorIs(t, err, ErrConflict, "reservation already has a quote")
	_, err = f.quotes.Link(ctx, q1.ID, b.ID)
	assert.ErrorIs(t, err, ErrConflict, "quote already linked elsewhere")

	byRes, err := f.quotes.ByReservation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, q1.ID, byRes.ID)

	got, err := f.quotes.Get(ctx, client, q1.ID)
	require.NoError(t, err)
	assert.Equal(t, q1.ID, got.ID)
	_, err = f.quotes.Get(ctx, other, q1.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	unlinked, err := f.quotes.Unlink(ctx, q1.ID)
	require.NoError(t, err)
	assert.Nil(t, unlinked.ReservationID)
	assert.Nil(t, f.reservation(t, a.ID).QuoteID)

	_, err = f.quotes.Link(ctx, q2.ID, b.ID)
	require.NoError(t, err)
	require.NoError(t, f.quotes.Delete(ctx, q2.ID))
	assert.Nil(t, f.reservation(t, b.ID).QuoteID, "delete clears the reference")
	assert.Equal(t, model.ReservationPending, f.reservation(t, b.ID).Status)
}

func TestDuplicateStatsExport(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	res := f.book(t, client, at(20, 10), at(20, 12))
	q, err := f.quotes.Create(ctx, CreateQuoteInput{
		Items:         []model.QuoteItem{item("hall", 2, 50)},
		Currency:      "eur",
		ReservationID: &res.ID,
	})
	require.NoError(t, err)
	assert.Equal(t, "EUR", q.Currency)

	dup, err := f.quotes.Duplicate(ctx, q.ID)
	require.NoError(t, err)
	assert.NotEqual(t, q.ID, dup.ID)
	assert.Nil(t, dup.ReservationID)
	assert.Equal(t, q.TotalAmount, dup.TotalAmount)
	assert.Equal(t, "EUR", dup.Currency)

	st, err := f.quotes.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, model.QuoteStats{TotalQuotes: 2, TotalAmount: 200, QuotesWithReservation: 1, QuotesWithoutReservation: 1}, st)

	linked := true
	list, err := f.quotes.List(ctx, store.QuoteFilter{HasReservation: &linked})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, q.ID, list[0].ID)

	exp, err := f.quotes.Export(ctx, manager, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "json", exp.Format)
	assert.Equal(t, testNow, exp.ExportDate)
}
