package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/queue"
	"github.com/iliyamo/venue-reservation/internal/store"
)

// OpeningHours is the daily bookable window used by AvailableSlots.
type OpeningHours struct {
	Location *time.Location
	Open     int // hour of day, inclusive
	Close    int // hour of day, exclusive
}

// DefaultOpeningHours is 09:00 to 22:00 UTC.
var DefaultOpeningHours = OpeningHours{Location: time.UTC, Open: 9, Close: 22}

// ReservationService owns the venue calendar and the reservation lifecycle.
type ReservationService struct {
	Store  store.Store
	Events EventPublisher
	Hours  OpeningHours
	Now    func() time.Time
}

func NewReservationService(st store.Store, events EventPublisher, hours OpeningHours) *ReservationService {
	if hours.Location == nil {
		hours.Location = time.UTC
	}
	return &ReservationService{Store: st, Events: events, Hours: hours, Now: time.Now}
}

func (s *ReservationService) now() time.Time { return utc(s.Now()) }

type CreateReservationInput struct {
	EventType model.EventType
	StartsAt  time.Time
	EndsAt    time.Time
	Attendees int
	Notes     string
}

// Create books [StartsAt, EndsAt) for the actor as a PENDING reservation.
// The overlap check and the insert share one unit of work under the
// calendar lock.
func (s *ReservationService) Create(ctx context.Context, actor Actor, in CreateReservationInput) (model.Reservation, error) {
	now := s.now()
	start, end := utc(in.StartsAt), utc(in.EndsAt)
	if err := validateSlot(start, end, now); err != nil {
		return model.Reservation{}, err
	}
	if in.Attendees <= 0 {
		return model.Reservation{}, validationf("attendees must be positive")
	}
	if in.EventType == "" {
		in.EventType = model.EventOther
	}
	if !in.EventType.Valid() {
		return model.Reservation{}, validationf("unknown event type %q", in.EventType)
	}

	res := model.Reservation{
		ID:        uuid.NewString(),
		UserID:    actor.UserID,
		EventType: in.EventType,
		StartsAt:  start,
		EndsAt:    end,
		Attendees: in.Attendees,
		Notes:     in.Notes,
		Status:    model.ReservationPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		if err := claimSlot(ctx, tx, start, end, ""); err != nil {
			return err
		}
		return tx.Reservations().Create(ctx, &res)
	})
	if err != nil {
		return model.Reservation{}, err
	}
	publish(ctx, s.Events, []queue.ReservationStatusChanged{statusChange(res, "", "create", now)})
	return res, nil
}

// Get returns a reservation visible to the actor.
func (s *ReservationService) Get(ctx context.Context, actor Actor, id string) (model.Reservation, error) {
	res, err := s.Store.Reservations().GetByID(ctx, id)
	if err != nil {
		return model.Reservation{}, notFound(err, "reservation")
	}
	if !actor.owns(res.UserID) {
		return model.Reservation{}, ErrForbidden
	}
	return res, nil
}

// List returns reservations ordered by start. Clients only ever see their own.
func (s *ReservationService) List(ctx context.Context, actor Actor, f store.ReservationFilter) ([]model.Reservation, error) {
	if !actor.Staff() {
		f.UserID = actor.UserID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, validationf("unknown status %q", f.Status)
	}
	if f.EventType != "" && !f.EventType.Valid() {
		return nil, validationf("unknown event type %q", f.EventType)
	}
	f.Page = f.Page.Normalize()
	return s.Store.Reservations().List(ctx, f)
}

// ByUser lists the reservations of one user.
func (s *ReservationService) ByUser(ctx context.Context, userID string, p store.Page) ([]model.Reservation, error) {
	return s.Store.Reservations().List(ctx, store.ReservationFilter{UserID: userID, Page: p.Normalize()})
}

// UpdateReservationInput carries the fields to change; nil means keep.
type UpdateReservationInput struct {
	EventType *model.EventType
	StartsAt  *time.Time
	EndsAt    *time.Time
	Attendees *int
	Notes     *string
	Status    *model.ReservationStatus
}

// Update edits a non-terminal reservation. A changed interval is validated
// like a new booking, excluding the reservation itself from the overlap
// check. Only staff may set Status, which then acts like SetStatus.
func (s *ReservationService) Update(ctx context.Context, actor Actor, id string, in UpdateReservationInput) (model.Reservation, error) {
	if in.Status != nil && !actor.Staff() {
		return model.Reservation{}, ErrForbidden
	}
	if in.Attendees != nil && *in.Attendees <= 0 {
		return model.Reservation{}, validationf("attendees must be positive")
	}
	if in.EventType != nil && !in.EventType.Valid() {
		return model.Reservation{}, validationf("unknown event type %q", *in.EventType)
	}
	if in.Status != nil && !in.Status.Valid() {
		return model.Reservation{}, validationf("unknown status %q", *in.Status)
	}

	now := s.now()
	var (
		out    model.Reservation
		events []queue.ReservationStatusChanged
	)
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		res, err := tx.Reservations().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "reservation")
		}
		if !actor.owns(res.UserID) {
			return ErrForbidden
		}
		if res.Status.Terminal() && in.Status == nil {
			return illegalf("reservation %s is %s and can no longer be changed", res.ID, res.Status)
		}
		from := res.Status

		if in.StartsAt != nil || in.EndsAt != nil {
			start, end := res.StartsAt, res.EndsAt
			if in.StartsAt != nil {
				start = utc(*in.StartsAt)
			}
			if in.EndsAt != nil {
				end = utc(*in.EndsAt)
			}
			if err := validateSlot(start, end, now); err != nil {
				return err
			}
			active := res.Status.Active()
			if in.Status != nil {
				active = in.Status.Active()
			}
			if active {
				if err := claimSlot(ctx, tx, start, end, res.ID); err != nil {
					return err
				}
			}
			res.StartsAt, res.EndsAt = start, end
		}
		if in.EventType != nil {
			res.EventType = *in.EventType
		}
		if in.Attendees != nil {
			res.Attendees = *in.Attendees
		}
		if in.Notes != nil {
			res.Notes = *in.Notes
		}
		if in.Status != nil && *in.Status != res.Status {
			if in.Status.Active() && !res.Status.Active() && in.StartsAt == nil && in.EndsAt == nil {
				if err := claimSlot(ctx, tx, res.StartsAt, res.EndsAt, res.ID); err != nil {
					return err
				}
			}
			res.Status = *in.Status
		}
		res.UpdatedAt = now
		if err := tx.Reservations().Update(ctx, &res); err != nil {
			return err
		}
		if res.Status != from {
			events = append(events, statusChange(res, from, "update", now))
		}
		out = res
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	publish(ctx, s.Events, events)
	return out, nil
}

// Confirm moves a PENDING reservation to CONFIRMED.
func (s *ReservationService) Confirm(ctx context.Context, id string) (model.Reservation, error) {
	return s.step(ctx, Actor{Role: model.RoleAdmin}, id, model.ReservationConfirmed, "confirm")
}

// Cancel moves a PENDING or CONFIRMED reservation to CANCELED. Clients may
// only cancel their own reservations.
func (s *ReservationService) Cancel(ctx context.Context, actor Actor, id string) (model.Reservation, error) {
	return s.step(ctx, actor, id, model.ReservationCanceled, "cancel")
}

// Complete moves a CONFIRMED reservation whose end has passed to COMPLETED.
func (s *ReservationService) Complete(ctx context.Context, id string) (model.Reservation, error) {
	return s.step(ctx, Actor{Role: model.RoleAdmin}, id, model.ReservationCompleted, "complete")
}

func (s *ReservationService) step(ctx context.Context, actor Actor, id string, to model.ReservationStatus, cause string) (model.Reservation, error) {
	now := s.now()
	var (
		out  model.Reservation
		from model.ReservationStatus
	)
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		res, err := tx.Reservations().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "reservation")
		}
		if !actor.owns(res.UserID) {
			return ErrForbidden
		}
		from = res.Status
		if err := transition(ctx, tx, &res, to, now); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	publish(ctx, s.Events, []queue.ReservationStatusChanged{statusChange(out, from, cause, now)})
	return out, nil
}

// SetStatus overwrites the status without lifecycle guards. Reactivating a
// canceled or completed reservation still has to find its slot free.
func (s *ReservationService) SetStatus(ctx context.Context, id string, status model.ReservationStatus) (model.Reservation, error) {
	if !status.Valid() {
		return model.Reservation{}, validationf("unknown status %q", status)
	}
	now := s.now()
	var (
		out  model.Reservation
		from model.ReservationStatus
	)
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		res, err := tx.Reservations().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "reservation")
		}
		from = res.Status
		if from == status {
			out = res
			return nil
		}
		if status.Active() && !from.Active() {
			if err := claimSlot(ctx, tx, res.StartsAt, res.EndsAt, res.ID); err != nil {
				return err
			}
		}
		res.Status = status
		res.UpdatedAt = now
		if err := tx.Reservations().Update(ctx, &res); err != nil {
			return err
		}
		out = res
		return nil
	})
	if err != nil {
		return model.Reservation{}, err
	}
	if from != status {
		publish(ctx, s.Events, []queue.ReservationStatusChanged{statusChange(out, from, "set_status", now)})
	}
	return out, nil
}

// Delete removes a reservation that no payment references.
func (s *ReservationService) Delete(ctx context.Context, id string) error {
	return s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		if _, err := tx.Reservations().GetByID(ctx, id); err != nil {
			return notFound(err, "reservation")
		}
		n, err := tx.Payments().CountByReservation(ctx, id)
		if err != nil {
			return err
		}
		if n > 0 {
			return illegalf("reservation %s has %d payment(s)", id, n)
		}
		return tx.Reservations().Delete(ctx, id)
	})
}

// Stats counts reservations per status.
func (s *ReservationService) Stats(ctx context.Context) (model.ReservationStats, error) {
	counts, err := s.Store.Reservations().CountByStatus(ctx, "")
	if err != nil {
		return model.ReservationStats{}, err
	}
	return reservationStats(counts), nil
}

func reservationStats(counts map[model.ReservationStatus]int) model.ReservationStats {
	st := model.ReservationStats{
		Pending:   counts[model.ReservationPending],
		Confirmed: counts[model.ReservationConfirmed],
		Canceled:  counts[model.ReservationCanceled],
		Completed: counts[model.ReservationCompleted],
	}
	for _, n := range counts {
		st.Total += n
	}
	return st
}

// Upcoming lists CONFIRMED reservations starting within the next days.
func (s *ReservationService) Upcoming(ctx context.Context, days int) ([]model.Reservation, error) {
	if days <= 0 {
		days = 7
	}
	from := s.now()
	to := from.AddDate(0, 0, days)
	return s.Store.Reservations().List(ctx, store.ReservationFilter{
		Status:    model.ReservationConfirmed,
		StartFrom: &from,
		StartTo:   &to,
		Page:      store.Page{Take: store.MaxTake},
	})
}
