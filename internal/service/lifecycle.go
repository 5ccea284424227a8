package service

import (
	"context"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/store"
)

// transition applies a guarded lifecycle step to r and persists it through
// repos. r is left untouched when the step is not allowed.
func transition(ctx context.Context, repos store.Repositories, r *model.Reservation, to model.ReservationStatus, now time.Time) error {
	if !r.Status.CanTransition(to) {
		return illegalf("reservation %s cannot move from %s to %s", r.ID, r.Status, to)
	}
	if to == model.ReservationCompleted && !now.After(r.EndsAt) {
		return illegalf("reservation %s has not ended yet", r.ID)
	}
	next := *r
	next.Status = to
	next.UpdatedAt = now
	if err := repos.Reservations().Update(ctx, &next); err != nil {
		return err
	}
	*r = next
	return nil
}

// validateSlot checks the ordering and future-start rules shared by create
// and reschedule.
func validateSlot(start, end, now time.Time) error {
	if start.IsZero() || end.IsZero() {
		return validationf("start and end are required")
	}
	if !end.After(start) {
		return validationf("end must be after start")
	}
	if !start.After(now) {
		return validationf("start must be in the future")
	}
	return nil
}

// claimSlot takes the calendar lock and fails with ErrConflict when an active
// reservation other than excludeID intersects [start, end).
func claimSlot(ctx context.Context, repos store.Repositories, start, end time.Time, excludeID string) error {
	if err := repos.Reservations().LockCalendar(ctx); err != nil {
		return err
	}
	clash, err := repos.Reservations().FindOverlapping(ctx, start, end, excludeID)
	if err != nil {
		return err
	}
	if len(clash) > 0 {
		return conflictf("time slot overlaps reservation %s", clash[0].ID)
	}
	return nil
}
