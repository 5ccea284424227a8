package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/queue"
	"github.com/iliyamo/venue-reservation/internal/store"
)

var (
	testNow = time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC)
	client  = Actor{UserID: "client-1", Role: model.RoleClient}
	other   = Actor{UserID: "client-2", Role: model.RoleClient}
	manager = Actor{UserID: "manager-1", Role: model.RoleEventManager}
)

// recorder captures published events.
type recorder struct {
	mu     sync.Mutex
	events []queue.ReservationStatusChanged
}

func (r *recorder) PublishReservationStatus(_ context.Context, ev queue.ReservationStatusChanged) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return nil
}

type fixture struct {
	store        *store.MemoryStore
	reservations *ReservationService
	payments     *PaymentService
	quotes       *QuoteService
	events       *recorder
	now          time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{store: store.NewMemoryStore(), events: &recorder{}, now: testNow}
	clock := func() time.Time { return f.now }

	f.reservations = NewReservationService(f.store, f.events, DefaultOpeningHours)
	f.reservations.Now = clock
	f.payments = NewPaymentService(f.store, f.events, SimulatedGateway{}, "")
	f.payments.Now = clock
	f.quotes = NewQuoteService(f.store, "")
	f.quotes.Now = clock
	return f
}

func at(day, hour int) time.Time {
	return time.Date(2025, 6, day, hour, 0, 0, 0, time.UTC)
}

func (f *fixture) book(t *testing.T, actor Actor, start, end time.Time) model.Reservation {
	t.Helper()
	res, err := f.reservations.Create(context.Background(), actor, CreateReservationInput{
		EventType: model.EventWedding,
		StartsAt:  start,
		EndsAt:    end,
		Attendees: 100,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) pay(t *testing.T, actor Actor, reservationID string, amount float64) model.Payment {
	t.Helper()
	p, err := f.payments.Create(context.Background(), actor, CreatePaymentInput{
		ReservationID: reservationID,
		Amount:        amount,
		Type:          model.PaymentDeposit,
	})
	require.NoError(t, err)
	return p
}

func (f *fixture) reservation(t *testing.T, id string) model.Reservation {
	t.Helper()
	res, err := f.store.Reservations().GetByID(context.Background(), id)
	require.NoError(t, err)
	return res
}
