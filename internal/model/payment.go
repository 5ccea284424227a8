package model

import "time"

// PaymentStatus is the lifecycle state of a payment.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "PENDING"
	PaymentPaid     PaymentStatus = "PAID"
	PaymentFailed   PaymentStatus = "FAILED"
	PaymentRefunded PaymentStatus = "REFUNDED"
)

var paymentNext = map[PaymentStatus][]PaymentStatus{
	PaymentPending: {PaymentPaid, PaymentFailed},
	PaymentPaid:    {PaymentRefunded},
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentFailed, PaymentRefunded:
		return true
	}
	return false
}

// CanTransition reports whether a payment may move from s to next.
func (s PaymentStatus) CanTransition(next PaymentStatus) bool {
	for _, n := range paymentNext[s] {
		if n == next {
			return true
		}
	}
	return false
}

// PaymentType distinguishes deposits from balance payments.
type PaymentType string

const (
	PaymentDeposit PaymentType = "DEPOSIT"
	PaymentBalance PaymentType = "BALANCE"
	PaymentOther   PaymentType = "OTHER"
)

func (t PaymentType) Valid() bool {
	switch t {
	case PaymentDeposit, PaymentBalance, PaymentOther:
		return true
	}
	return false
}

// Payment mirrors the `payments` table. Amount is stored as DECIMAL(14,2).
type Payment struct {
	ID            string        `db:"id" json:"id"`
	ReservationID string        `db:"reservation_id" json:"reservation_id"`
	UserID        string        `db:"user_id" json:"user_id"`
	Amount        float64       `db:"amount" json:"amount"`
	Currency      string        `db:"currency" json:"currency"`
	Type          PaymentType   `db:"type" json:"type"`
	Status        PaymentStatus `db:"status" json:"status"`
	Description   string        `db:"description" json:"description,omitempty"`
	PaidAt        *time.Time    `db:"paid_at" json:"paid_at,omitempty"`
	DueAt         *time.Time    `db:"due_at" json:"due_at,omitempty"`
	CreatedAt     time.Time     `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time     `db:"updated_at" json:"updated_at"`
}

// PaymentStatusTotal is one row of the per-status payment aggregate.
type PaymentStatusTotal struct {
	Status PaymentStatus `db:"status" json:"status"`
	Count  int           `db:"cnt" json:"count"`
	Amount float64       `db:"amount" json:"amount"`
}

// PaymentStats is the response of the payment statistics endpoint.
type PaymentStats struct {
	Total        int                  `json:"total"`
	ByStatus     []PaymentStatusTotal `json:"by_status"`
	TotalRevenue float64              `json:"total_revenue"`
}

// MonthlyRevenue is the PAID total of a calendar month.
type MonthlyRevenue struct {
	Year     int     `json:"year"`
	Month    int     `json:"month"`
	Revenue  float64 `json:"revenue"`
	Payments int     `json:"payments"`
}

// Invoice is rendered for a PAID payment.
type Invoice struct {
	InvoiceID   string      `json:"invoice_id"`
	Payment     Payment     `json:"payment"`
	Reservation Reservation `json:"reservation"`
	IssuedAt    time.Time   `json:"issued_at"`
}
