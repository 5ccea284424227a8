package model

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultCurrency is used when a quote or payment does not name one.
const DefaultCurrency = "XOF"

// MaxAmount is the largest value the DECIMAL(14,2) money columns hold.
const MaxAmount = 999_999_999_999.99

// Number is a float64 that decodes leniently from JSON: null, strings that do
// not parse, NaN and infinities all become 0. Quoted numbers are accepted.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if unq, err := strconv.Unquote(s); err == nil {
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		*n = 0
		return nil
	}
	*n = Number(f)
	return nil
}

// Float returns n as a float64, mapping NaN and infinities to 0.
func (n Number) Float() float64 {
	f := float64(n)
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return f
}

// QuoteItem is one priced line of a quote.
type QuoteItem struct {
	Label       string `json:"label"`
	Description string `json:"description,omitempty"`
	Quantity    Number `json:"quantity"`
	Price       Number `json:"price"`
}

// QuoteItems is stored as a JSON column.
type QuoteItems []QuoteItem

func (it QuoteItems) Value() (driver.Value, error) {
	if it == nil {
		it = QuoteItems{}
	}
	b, err := json.Marshal(it)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (it *QuoteItems) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*it = QuoteItems{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("quote items: unsupported column type")
	}
	return json.Unmarshal(b, it)
}

// Clone returns a copy that does not share the backing array.
func (it QuoteItems) Clone() QuoteItems {
	out := make(QuoteItems, len(it))
	copy(out, it)
	return out
}

// Quote mirrors the `quotes` table. ReservationID is not a column: it is
// resolved from the reservation whose quote_id points at this quote.
type Quote struct {
	ID            string     `db:"id" json:"id"`
	Items         QuoteItems `db:"items" json:"items"`
	Currency      string     `db:"currency" json:"currency"`
	TotalAmount   float64    `db:"total_amount" json:"total_amount"`
	ReservationID *string    `db:"reservation_id" json:"reservation_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// QuoteStats aggregates all quotes.
type QuoteStats struct {
	TotalQuotes              int     `db:"total_quotes" json:"total_quotes"`
	TotalAmount              float64 `db:"total_amount" json:"total_amount"`
	QuotesWithReservation    int     `db:"with_reservation" json:"quotes_with_reservation"`
	QuotesWithoutReservation int     `db:"without_reservation" json:"quotes_without_reservation"`
}

// QuoteExport is the payload of the quote export endpoint.
type QuoteExport struct {
	Quote      Quote     `json:"quote"`
	ExportDate time.Time `json:"export_date"`
	Format     string    `json:"format"`
}
