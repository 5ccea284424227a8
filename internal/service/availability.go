package service

import (
	"context"
	"sort"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// CheckAvailability reports whether [start, end) is free of active
// reservations other than excludeID. It never writes.
func (s *ReservationService) CheckAvailability(ctx context.Context, start, end time.Time, excludeID string) (bool, error) {
	if start.IsZero() || end.IsZero() || !end.After(start) {
		return false, validationf("end must be after start")
	}
	clash, err := s.Store.Reservations().FindOverlapping(ctx, utc(start), utc(end), excludeID)
	if err != nil {
		return false, err
	}
	return len(clash) == 0, nil
}

// AvailableSlots returns the free gaps of the venue's opening hours on the
// calendar day of `day` in the venue time zone.
func (s *ReservationService) AvailableSlots(ctx context.Context, day time.Time) ([]model.Slot, error) {
	loc := s.Hours.Location
	if loc == nil {
		loc = time.UTC
	}
	y, m, d := day.In(loc).Date()
	open := time.Date(y, m, d, s.Hours.Open, 0, 0, 0, loc).UTC()
	closing := time.Date(y, m, d, s.Hours.Close, 0, 0, 0, loc).UTC()
	if !closing.After(open) {
		return []model.Slot{}, nil
	}

	busy, err := s.Store.Reservations().FindOverlapping(ctx, open, closing, "")
	if err != nil {
		return nil, err
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].StartsAt.Before(busy[j].StartsAt) })
	return freeGaps(open, closing, busy), nil
}

// freeGaps subtracts the busy intervals from [open, close).
func freeGaps(open, closing time.Time, busy []model.Reservation) []model.Slot {
	slots := []model.Slot{}
	cursor := open
	for _, r := range busy {
		if r.StartsAt.After(cursor) {
			end := r.StartsAt
			if end.After(closing) {
				end = closing
			}
			slots = append(slots, model.Slot{Start: cursor, End: end})
		}
		if r.EndsAt.After(cursor) {
			cursor = r.EndsAt
		}
		if !cursor.Before(closing) {
			return slots
		}
	}
	if cursor.Before(closing) {
		slots = append(slots, model.Slot{Start: cursor, End: closing})
	}
	return slots
}
