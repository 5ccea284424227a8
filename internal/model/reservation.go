package model

import "time"

// ReservationStatus is the lifecycle state of a reservation.
type ReservationStatus string

const (
	ReservationPending   ReservationStatus = "PENDING"
	ReservationConfirmed ReservationStatus = "CONFIRMED"
	ReservationCanceled  ReservationStatus = "CANCELED"
	ReservationCompleted ReservationStatus = "COMPLETED"
)

// ActiveReservationStatuses are the statuses that occupy the calendar.
var ActiveReservationStatuses = []ReservationStatus{ReservationPending, ReservationConfirmed}

// validNext lists the guarded transitions. COMPLETED additionally requires
// the reservation to have ended, which is checked by the caller.
var validNext = map[ReservationStatus][]ReservationStatus{
	ReservationPending:   {ReservationConfirmed, ReservationCanceled},
	ReservationConfirmed: {ReservationCanceled, ReservationCompleted},
}

// Valid reports whether s is a known status.
func (s ReservationStatus) Valid() bool {
	switch s {
	case ReservationPending, ReservationConfirmed, ReservationCanceled, ReservationCompleted:
		return true
	}
	return false
}

// Active reports whether a reservation in status s blocks its time slot.
func (s ReservationStatus) Active() bool {
	return s == ReservationPending || s == ReservationConfirmed
}

// Terminal reports whether no guarded transition leaves s.
func (s ReservationStatus) Terminal() bool {
	return s == ReservationCanceled || s == ReservationCompleted
}

// CanTransition reports whether the lifecycle allows moving from s to next.
func (s ReservationStatus) CanTransition(next ReservationStatus) bool {
	for _, n := range validNext[s] {
		if n == next {
			return true
		}
	}
	return false
}

// EventType classifies the event a reservation is held for.
type EventType string

const (
	EventWedding      EventType = "WEDDING"
	EventAnniversary  EventType = "ANNIVERSARY"
	EventProfessional EventType = "PROFESSIONAL"
	EventOther        EventType = "OTHER"
)

func (t EventType) Valid() bool {
	switch t {
	case EventWedding, EventAnniversary, EventProfessional, EventOther:
		return true
	}
	return false
}

// Reservation mirrors the `reservations` table. The booked interval is
// half-open: [StartsAt, EndsAt).
type Reservation struct {
	ID        string            `db:"id" json:"id"`
	UserID    string            `db:"user_id" json:"user_id"`
	EventType EventType         `db:"event_type" json:"event_type"`
	StartsAt  time.Time         `db:"starts_at" json:"starts_at"`
	EndsAt    time.Time         `db:"ends_at" json:"ends_at"`
	Attendees int               `db:"attendees" json:"attendees"`
	Notes     string            `db:"notes" json:"notes,omitempty"`
	Status    ReservationStatus `db:"status" json:"status"`
	QuoteID   *string           `db:"quote_id" json:"quote_id,omitempty"`
	CreatedAt time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt time.Time         `db:"updated_at" json:"updated_at"`
}

// Overlaps reports whether r occupies any instant of [start, end).
// Touching endpoints do not overlap.
func (r Reservation) Overlaps(start, end time.Time) bool {
	return r.StartsAt.Before(end) && r.EndsAt.After(start)
}

// ReservationStats summarises reservations by status.
type ReservationStats struct {
	Total     int `json:"total"`
	Pending   int `json:"pending"`
	Confirmed int `json:"confirmed"`
	Canceled  int `json:"canceled"`
	Completed int `json:"completed"`
}

// Slot is a free interval of the venue calendar.
type Slot struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}
