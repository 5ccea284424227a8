package service

import (
	"context"
	"log"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/queue"
)

// Actor is the authenticated caller of an operation.
type Actor struct {
	UserID string
	Role   model.Role
}

// Staff reports whether the actor may act on other users' records.
func (a Actor) Staff() bool { return a.Role.Staff() }

// owns reports whether the actor may read or act on a record owned by userID.
func (a Actor) owns(userID string) bool { return a.Staff() || a.UserID == userID }

// EventPublisher receives reservation status changes after commit.
type EventPublisher interface {
	PublishReservationStatus(ctx context.Context, ev queue.ReservationStatusChanged) error
}

// statusChange builds the event for a reservation that moved from `from`.
func statusChange(r model.Reservation, from model.ReservationStatus, cause string, at time.Time) queue.ReservationStatusChanged {
	return queue.ReservationStatusChanged{
		ReservationID: r.ID,
		UserID:        r.UserID,
		From:          string(from),
		To:            string(r.Status),
		Cause:         cause,
		StartsAt:      r.StartsAt,
		EndsAt:        r.EndsAt,
		OccurredAt:    at,
	}
}

// publish delivers committed events. Delivery failures are logged only: the
// state change has already been stored.
func publish(ctx context.Context, p EventPublisher, events []queue.ReservationStatusChanged) {
	if p == nil {
		return
	}
	for _, ev := range events {
		if err := p.PublishReservationStatus(ctx, ev); err != nil {
			log.Printf("events: publish %s -> %s for reservation %s failed: %v", ev.From, ev.To, ev.ReservationID, err)
		}
	}
}

// utc normalises t to the precision stored by the database.
func utc(t time.Time) time.Time { return t.UTC().Truncate(time.Microsecond) }
