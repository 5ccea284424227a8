// Package queue defines message payloads exchanged over the message broker
// together with the RabbitMQ publisher and consumer that carry them.
package queue

import "time"

// ReservationStatusQueue is the durable queue carrying ReservationStatusChanged.
const ReservationStatusQueue = "reservation.status"

// ReservationStatusChanged is published after a reservation status change has
// been committed. From is empty for newly created reservations. Cause names
// the operation that triggered the change (create, confirm, cancel,
// complete, set_status, payment_paid, payment_refunded).
type ReservationStatusChanged struct {
	ReservationID string    `json:"reservation_id"`
	UserID        string    `json:"user_id"`
	From          string    `json:"from,omitempty"`
	To            string    `json:"to"`
	Cause         string    `json:"cause"`
	PaymentID     string    `json:"payment_id,omitempty"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
	OccurredAt    time.Time `json:"occurred_at"`
}
