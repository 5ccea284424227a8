package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
)

// QuoteService manages quotes and their optional one-to-one link with a
// reservation. TotalAmount is recomputed on every item change.
type QuoteService struct {
	Store    store.Store
	Currency string
	Now      func() time.Time
}

func NewQuoteService(st store.Store, currency string) *QuoteService {
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &QuoteService{Store: st, Currency: currency, Now: time.Now}
}

func (s *QuoteService) now() time.Time { return utc(s.Now()) }

type CreateQuoteInput struct {
	Items         []model.QuoteItem
	Currency      string
	ReservationID *string
}

// Create stores a quote and, when ReservationID is set, links it to that
// reservation in the same unit of work.
func (s *QuoteService) Create(ctx context.Context, in CreateQuoteInput) (model.Quote, error) {
	if err := validateItems(in.Items); err != nil {
		return model.Quote{}, err
	}
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = s.Currency
	}
	now := s.now()
	q := model.Quote{
		ID:          uuid.NewString(),
		Items:       model.QuoteItems(in.Items).Clone(),
		Currency:    currency,
		TotalAmount: ComputeTotal(in.Items),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		if err := tx.Quotes().Create(ctx, &q); err != nil {
			return err
		}
		if in.ReservationID == nil || *in.ReservationID == "" {
			return nil
		}
		return s.link(ctx, tx, &q, *in.ReservationID, now)
	})
	if err != nil {
		return model.Quote{}, err
	}
	return q, nil
}

// link attaches q to the reservation. The reservation must not carry
// another quote and q must not be attached elsewhere.
func (s *QuoteService) link(ctx context.Context, tx store.Repositories, q *model.Quote, reservationID string, now time.Time) error {
	res, err := tx.Reservations().GetByID(ctx, reservationID)
	if err != nil {
		return notFound(err, "reservation")
	}
	if res.QuoteID != nil {
		if *res.QuoteID == q.ID {
			q.ReservationID = &res.ID
			return nil
		}
		return conflictf("reservation %s already has quote %s", res.ID, *res.QuoteID)
	}
	if q.ReservationID != nil && *q.ReservationID != res.ID {
		return conflictf("quote %s is already linked to reservation %s", q.ID, *q.ReservationID)
	}
	id := q.ID
	res.QuoteID = &id
	res.UpdatedAt = now
	if err := tx.Reservations().Update(ctx, &res); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return conflictf("quote %s is already linked", q.ID)
		}
		return err
	}
	q.ReservationID = &res.ID
	return nil
}

// Get returns a quote. Clients may read a quote linked to their reservation.
func (s *QuoteService) Get(ctx context.Context, actor Actor, id string) (model.Quote, error) {
	q, err := s.Store.Quotes().GetByID(ctx, id)
	if err != nil {
		return model.Quote{}, notFound(err, "quote")
	}
	if actor.Staff() {
		return q, nil
	}
	if q.ReservationID == nil {
		return model.Quote{}, ErrForbidden
	}
	res, err := s.Store.Reservations().GetByID(ctx, *q.ReservationID)
	if err != nil {
		return model.Quote{}, notFound(err, "reservation")
	}
	if res.UserID != actor.UserID {
		return model.Quote{}, ErrForbidden
	}
	return q, nil
}

// ByReservation returns the quote linked to a reservation.
func (s *QuoteService) ByReservation(ctx context.Context, reservationID string) (model.Quote, error) {
	res, err := s.Store.Reservations().GetByID(ctx, reservationID)
	if err != nil {
		return model.Quote{}, notFound(err, "reservation")
	}
	if res.QuoteID == nil {
		return model.Quote{}, notFound(store.ErrNotFound, "quote")
	}
	q, err := s.Store.Quotes().GetByID(ctx, *res.QuoteID)
	if err != nil {
		return model.Quote{}, notFound(err, "quote")
	}
	return q, nil
}

func (s *QuoteService) List(ctx context.Context, f store.QuoteFilter) ([]model.Quote, error) {
	f.Page = f.Page.Normalize()
	return s.Store.Quotes().List(ctx, f)
}

type UpdateQuoteInput struct {
	Items    *[]model.QuoteItem
	Currency *string
}

func (s *QuoteService) Update(ctx context.Context, id string, in UpdateQuoteInput) (model.Quote, error) {
	if in.Items != nil {
		if err := validateItems(*in.Items); err != nil {
			return model.Quote{}, err
		}
	}
	return s.mutate(ctx, id, func(q *model.Quote) error {
		if in.Items != nil {
			q.Items = model.QuoteItems(*in.Items).Clone()
		}
		if in.Currency != nil && strings.TrimSpace(*in.Currency) != "" {
			q.Currency = strings.ToUpper(strings.TrimSpace(*in.Currency))
		}
		return nil
	})
}

// mutate loads a quote, applies fn, recomputes the total and saves it.
func (s *QuoteService) mutate(ctx context.Context, id string, fn func(q *model.Quote) error) (model.Quote, error) {
	var out model.Quote
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		q, err := tx.Quotes().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "quote")
		}
		if err := fn(&q); err != nil {
			return err
		}
		q.TotalAmount = ComputeTotal(q.Items)
		if err := checkTotal(q.TotalAmount); err != nil {
			return err
		}
		q.UpdatedAt = s.now()
		if err := tx.Quotes().Update(ctx, &q); err != nil {
			return err
		}
		out = q
		return nil
	})
	return out, err
}

// Delete removes a quote after clearing the reservation's reference to it.
func (s *QuoteService) Delete(ctx context.Context, id string) error {
	now := s.now()
	return s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		if _, err := tx.Quotes().GetByID(ctx, id); err != nil {
			return notFound(err, "quote")
		}
		if err := s.unlink(ctx, tx, id, now); err != nil {
			return err
		}
		return tx.Quotes().Delete(ctx, id)
	})
}

func (s *QuoteService) unlink(ctx context.Context, tx store.Repositories, quoteID string, now time.Time) error {
	res, err := tx.Reservations().GetByQuoteID(ctx, quoteID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	res.QuoteID = nil
	res.UpdatedAt = now
	return tx.Reservations().Update(ctx, &res)
}

// Duplicate copies the items and currency of a quote into a new, unlinked one.
func (s *QuoteService) Duplicate(ctx context.Context, id string) (model.Quote, error) {
	src, err := s.Store.Quotes().GetByID(ctx, id)
	if err != nil {
		return model.Quote{}, notFound(err, "quote")
	}
	return s.Create(ctx, CreateQuoteInput{Items: src.Items, Currency: src.Currency})
}

// Link attaches the quote to a reservation.
func (s *QuoteService) Link(ctx context.Context, id, reservationID string) (model.Quote, error) {
	var out model.Quote
	now := s.now()
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		q, err := tx.Quotes().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "quote")
		}
		if err := s.link(ctx, tx, &q, reservationID, now); err != nil {
			return err
		}
		out = q
		return nil
	})
	return out, err
}

// Unlink detaches the quote from its reservation, if any.
func (s *QuoteService) Unlink(ctx context.Context, id string) (model.Quote, error) {
	var out model.Quote
	now := s.now()
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		q, err := tx.Quotes().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "quote")
		}
		if err := s.unlink(ctx, tx, id, now); err != nil {
			return err
		}
		q.ReservationID = nil
		out = q
		return nil
	})
	return out, err
}

func (s *QuoteService) AddItem(ctx context.Context, id string, item model.QuoteItem) (model.Quote, error) {
	if err := validateItems([]model.QuoteItem{item}); err != nil {
		return model.Quote{}, err
	}
	return s.mutate(ctx, id, func(q *model.Quote) error {
		q.Items = append(q.Items, item)
		return nil
	})
}

// QuoteItemPatch merges into an existing item; nil fields are kept.
type QuoteItemPatch struct {
	Label       *string
	Description *string
	Quantity    *model.Number
	Price       *model.Number
}

func (s *QuoteService) UpdateItem(ctx context.Context, id string, index int, patch QuoteItemPatch) (model.Quote, error) {
	return s.mutate(ctx, id, func(q *model.Quote) error {
		if index < 0 || index >= len(q.Items) {
			return validationf("item index %d out of range", index)
		}
		it := q.Items[index]
		if patch.Label != nil {
			it.Label = *patch.Label
		}
		if patch.Description != nil {
			it.Description = *patch.Description
		}
		if patch.Quantity != nil {
			it.Quantity = *patch.Quantity
		}
		if patch.Price != nil {
			it.Price = *patch.Price
		}
		if err := validateItems([]model.QuoteItem{it}); err != nil {
			return err
		}
		q.Items[index] = it
		return nil
	})
}

func (s *QuoteService) RemoveItem(ctx context.Context, id string, index int) (model.Quote, error) {
	return s.mutate(ctx, id, func(q *model.Quote) error {
		if index < 0 || index >= len(q.Items) {
			return validationf("item index %d out of range", index)
		}
		q.Items = append(q.Items[:index:index], q.Items[index+1:]...)
		return nil
	})
}

func (s *QuoteService) Stats(ctx context.Context) (model.QuoteStats, error) {
	return s.Store.Quotes().Stats(ctx)
}

// Export wraps a quote for download.
func (s *QuoteService) Export(ctx context.Context, actor Actor, id string) (model.QuoteExport, error) {
	q, err := s.Get(ctx, actor, id)
	if err != nil {
		return model.QuoteExport{}, err
	}
	return model.QuoteExport{Quote: q, ExportDate: s.now(), Format: "json"}, nil
}
