package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/queue"
	"github.com/iliyamo/venue-reservation/internal/store"
)

// Gateway charges a payment. A nil error means the charge was accepted.
type Gateway interface {
	Charge(ctx context.Context, p model.Payment) error
}

// ErrCardDeclined is returned by SimulatedGateway when Approve rejects.
var ErrCardDeclined = errors.New("card declined")

// SimulatedGateway stands in for a real payment provider. It waits Delay and
// approves every payment unless Approve says otherwise.
type SimulatedGateway struct {
	Delay   time.Duration
	Approve func(model.Payment) bool
}

func (g SimulatedGateway) Charge(ctx context.Context, p model.Payment) error {
	if g.Delay > 0 {
		t := time.NewTimer(g.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
	}
	if g.Approve != nil && !g.Approve(p) {
		return ErrCardDeclined
	}
	return nil
}

// PaymentService records payments and keeps the owning reservation's status
// in step with them: PAID confirms it, REFUNDED cancels it. Both writes
// commit together.
type PaymentService struct {
	Store    store.Store
	Events   EventPublisher
	Gateway  Gateway
	Currency string
	Now      func() time.Time
}

func NewPaymentService(st store.Store, events EventPublisher, gw Gateway, currency string) *PaymentService {
	if gw == nil {
		gw = SimulatedGateway{}
	}
	if currency == "" {
		currency = model.DefaultCurrency
	}
	return &PaymentService{Store: st, Events: events, Gateway: gw, Currency: currency, Now: time.Now}
}

func (s *PaymentService) now() time.Time { return utc(s.Now()) }

type CreatePaymentInput struct {
	ReservationID string
	Amount        float64
	Currency      string
	Type          model.PaymentType
	Description   string
	DueAt         *time.Time
}

// Create records a PENDING payment for a reservation owned by the actor.
func (s *PaymentService) Create(ctx context.Context, actor Actor, in CreatePaymentInput) (model.Payment, error) {
	if strings.TrimSpace(in.ReservationID) == "" {
		return model.Payment{}, validationf("reservation_id is required")
	}
	if err := validateAmount(in.Amount); err != nil {
		return model.Payment{}, err
	}
	if in.Type == "" {
		in.Type = model.PaymentDeposit
	}
	if !in.Type.Valid() {
		return model.Payment{}, validationf("unknown payment type %q", in.Type)
	}
	if in.Currency == "" {
		in.Currency = s.Currency
	}

	now := s.now()
	p := model.Payment{
		ID:            uuid.NewString(),
		ReservationID: in.ReservationID,
		UserID:        actor.UserID,
		Amount:        in.Amount,
		Currency:      strings.ToUpper(in.Currency),
		Type:          in.Type,
		Status:        model.PaymentPending,
		Description:   in.Description,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.DueAt != nil {
		due := utc(*in.DueAt)
		p.DueAt = &due
	}
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		res, err := tx.Reservations().GetByID(ctx, in.ReservationID)
		if err != nil {
			return notFound(err, "reservation")
		}
		if res.UserID != actor.UserID {
			return fmt.Errorf("%w: reservation belongs to another user", ErrForbidden)
		}
		if res.Status.Terminal() {
			return illegalf("reservation %s is %s", res.ID, res.Status)
		}
		paid, err := tx.Payments().HasPaid(ctx, res.ID, "")
		if err != nil {
			return err
		}
		if paid {
			return conflictf("reservation %s already has a paid payment", res.ID)
		}
		return tx.Payments().Create(ctx, &p)
	})
	if err != nil {
		return model.Payment{}, err
	}
	return p, nil
}

// Get returns a payment visible to the actor.
func (s *PaymentService) Get(ctx context.Context, actor Actor, id string) (model.Payment, error) {
	p, err := s.Store.Payments().GetByID(ctx, id)
	if err != nil {
		return model.Payment{}, notFound(err, "payment")
	}
	if !actor.owns(p.UserID) {
		return model.Payment{}, ErrForbidden
	}
	return p, nil
}

// List returns payments, newest first. Clients only see their own.
func (s *PaymentService) List(ctx context.Context, actor Actor, f store.PaymentFilter) ([]model.Payment, error) {
	if !actor.Staff() {
		f.UserID = actor.UserID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, validationf("unknown status %q", f.Status)
	}
	if f.Type != "" && !f.Type.Valid() {
		return nil, validationf("unknown payment type %q", f.Type)
	}
	f.Page = f.Page.Normalize()
	return s.Store.Payments().List(ctx, f)
}

// Pending lists payments awaiting settlement.
func (s *PaymentService) Pending(ctx context.Context, p store.Page) ([]model.Payment, error) {
	return s.Store.Payments().List(ctx, store.PaymentFilter{Status: model.PaymentPending, Page: p.Normalize()})
}

// Failed lists payments the gateway or staff marked FAILED.
func (s *PaymentService) Failed(ctx context.Context, p store.Page) ([]model.Payment, error) {
	return s.Store.Payments().List(ctx, store.PaymentFilter{Status: model.PaymentFailed, Page: p.Normalize()})
}

type UpdatePaymentInput struct {
	Amount      *float64
	Currency    *string
	Type        *model.PaymentType
	Description *string
	DueAt       *time.Time
	Status      *model.PaymentStatus
}

// Update edits payment fields. The amount, currency and type are frozen once
// the payment left PENDING. A Status change goes through the coordinator.
func (s *PaymentService) Update(ctx context.Context, id string, in UpdatePaymentInput) (model.Payment, error) {
	if in.Amount != nil {
		if err := validateAmount(*in.Amount); err != nil {
			return model.Payment{}, err
		}
	}
	if in.Type != nil && !in.Type.Valid() {
		return model.Payment{}, validationf("unknown payment type %q", *in.Type)
	}
	if in.Status != nil && !in.Status.Valid() {
		return model.Payment{}, validationf("unknown status %q", *in.Status)
	}
	now := s.now()
	var (
		out    model.Payment
		events []queue.ReservationStatusChanged
	)
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		p, err := tx.Payments().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "payment")
		}
		if (in.Amount != nil || in.Currency != nil || in.Type != nil) && p.Status != model.PaymentPending {
			return illegalf("payment %s is %s and its amount can no longer change", p.ID, p.Status)
		}
		if in.Amount != nil {
			p.Amount = *in.Amount
		}
		if in.Currency != nil && *in.Currency != "" {
			p.Currency = strings.ToUpper(*in.Currency)
		}
		if in.Type != nil {
			p.Type = *in.Type
		}
		if in.Description != nil {
			p.Description = *in.Description
		}
		if in.DueAt != nil {
			due := utc(*in.DueAt)
			p.DueAt = &due
		}
		if in.Status != nil {
			events, err = s.settle(ctx, tx, &p, *in.Status, now)
			if err != nil {
				return err
			}
		}
		p.UpdatedAt = now
		if err := tx.Payments().Update(ctx, &p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Payment{}, err
	}
	publish(ctx, s.Events, events)
	return out, nil
}

// MarkPaid settles a PENDING payment and confirms its reservation.
func (s *PaymentService) MarkPaid(ctx context.Context, id string) (model.Payment, error) {
	return s.SetStatus(ctx, id, model.PaymentPaid)
}

// MarkFailed records a failed charge. The reservation is not touched.
func (s *PaymentService) MarkFailed(ctx context.Context, id string) (model.Payment, error) {
	return s.SetStatus(ctx, id, model.PaymentFailed)
}

// Refund reverses a PAID payment and cancels its reservation if still active.
func (s *PaymentService) Refund(ctx context.Context, id string) (model.Payment, error) {
	return s.apply(ctx, id, func(p model.Payment) error {
		if p.Status != model.PaymentPaid {
			return illegalf("only paid payments can be refunded, payment %s is %s", p.ID, p.Status)
		}
		return nil
	}, model.PaymentRefunded)
}

// SetStatus moves a payment to status, applying the reservation side effects.
func (s *PaymentService) SetStatus(ctx context.Context, id string, status model.PaymentStatus) (model.Payment, error) {
	if !status.Valid() {
		return model.Payment{}, validationf("unknown status %q", status)
	}
	return s.apply(ctx, id, nil, status)
}

func (s *PaymentService) apply(ctx context.Context, id string, guard func(model.Payment) error, status model.PaymentStatus) (model.Payment, error) {
	now := s.now()
	var (
		out    model.Payment
		events []queue.ReservationStatusChanged
	)
	err := s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		p, err := tx.Payments().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "payment")
		}
		if guard != nil {
			if err := guard(p); err != nil {
				return err
			}
		}
		if p.Status == status {
			out = p
			return nil
		}
		events, err = s.settle(ctx, tx, &p, status, now)
		if err != nil {
			return err
		}
		p.UpdatedAt = now
		if err := tx.Payments().Update(ctx, &p); err != nil {
			return err
		}
		out = p
		return nil
	})
	if err != nil {
		return model.Payment{}, err
	}
	publish(ctx, s.Events, events)
	return out, nil
}

// settle changes p.Status in memory and writes the matching reservation
// transition through tx. Re-applying the current status is a no-op.
func (s *PaymentService) settle(ctx context.Context, tx store.Repositories, p *model.Payment, to model.PaymentStatus, now time.Time) ([]queue.ReservationStatusChanged, error) {
	if p.Status == to {
		return nil, nil
	}
	if !p.Status.CanTransition(to) {
		return nil, illegalf("payment %s cannot move from %s to %s", p.ID, p.Status, to)
	}

	var events []queue.ReservationStatusChanged
	switch to {
	case model.PaymentPaid:
		paid, err := tx.Payments().HasPaid(ctx, p.ReservationID, p.ID)
		if err != nil {
			return nil, err
		}
		if paid {
			return nil, conflictf("reservation %s already has a paid payment", p.ReservationID)
		}
		res, err := tx.Reservations().GetByID(ctx, p.ReservationID)
		if err != nil {
			return nil, notFound(err, "reservation")
		}
		switch res.Status {
		case model.ReservationPending:
			if err := transition(ctx, tx, &res, model.ReservationConfirmed, now); err != nil {
				return nil, err
			}
			ev := statusChange(res, model.ReservationPending, "payment_paid", now)
			ev.PaymentID = p.ID
			events = append(events, ev)
		case model.ReservationConfirmed:
		default:
			return nil, illegalf("reservation %s is %s and cannot be paid", res.ID, res.Status)
		}
		paidAt := now
		p.PaidAt = &paidAt

	case model.PaymentRefunded:
		res, err := tx.Reservations().GetByID(ctx, p.ReservationID)
		if err != nil {
			return nil, notFound(err, "reservation")
		}
		if res.Status.Active() {
			from := res.Status
			if err := transition(ctx, tx, &res, model.ReservationCanceled, now); err != nil {
				return nil, err
			}
			ev := statusChange(res, from, "payment_refunded", now)
			ev.PaymentID = p.ID
			events = append(events, ev)
		}
	}
	p.Status = to
	return events, nil
}

// Delete removes a payment that has not been PAID.
func (s *PaymentService) Delete(ctx context.Context, id string) error {
	return s.Store.WithinTx(ctx, func(tx store.Repositories) error {
		p, err := tx.Payments().GetByID(ctx, id)
		if err != nil {
			return notFound(err, "payment")
		}
		if p.Status == model.PaymentPaid {
			return illegalf("paid payment %s cannot be deleted", p.ID)
		}
		return tx.Payments().Delete(ctx, id)
	})
}

// Process charges a PENDING payment through the gateway and records the
// outcome. A declined charge leaves the payment FAILED and returns
// ErrPaymentDeclined alongside it.
func (s *PaymentService) Process(ctx context.Context, actor Actor, id string) (model.Payment, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return model.Payment{}, err
	}
	if p.Status != model.PaymentPending {
		return model.Payment{}, illegalf("payment %s is %s and cannot be processed", p.ID, p.Status)
	}

	pending := func(cur model.Payment) error {
		if cur.Status != model.PaymentPending {
			return conflictf("payment %s changed to %s while processing", cur.ID, cur.Status)
		}
		return nil
	}
	if chargeErr := s.Gateway.Charge(ctx, p); chargeErr != nil {
		failed, err := s.apply(ctx, id, pending, model.PaymentFailed)
		if err != nil {
			return model.Payment{}, err
		}
		return failed, fmt.Errorf("%w: %v", ErrPaymentDeclined, chargeErr)
	}
	return s.apply(ctx, id, pending, model.PaymentPaid)
}

// Invoice renders the invoice of a PAID payment.
func (s *PaymentService) Invoice(ctx context.Context, actor Actor, id string) (model.Invoice, error) {
	p, err := s.Get(ctx, actor, id)
	if err != nil {
		return model.Invoice{}, err
	}
	if p.Status != model.PaymentPaid {
		return model.Invoice{}, illegalf("invoices are only issued for paid payments")
	}
	res, err := s.Store.Reservations().GetByID(ctx, p.ReservationID)
	if err != nil {
		return model.Invoice{}, notFound(err, "reservation")
	}
	return model.Invoice{
		InvoiceID:   "INV-" + p.ID,
		Payment:     p,
		Reservation: res,
		IssuedAt:    s.now(),
	}, nil
}

// Stats aggregates payments per status; TotalRevenue sums PAID amounts.
func (s *PaymentService) Stats(ctx context.Context) (model.PaymentStats, error) {
	rows, err := s.Store.Payments().TotalsByStatus(ctx)
	if err != nil {
		return model.PaymentStats{}, err
	}
	st := model.PaymentStats{ByStatus: rows}
	for _, r := range rows {
		st.Total += r.Count
		if r.Status == model.PaymentPaid {
			st.TotalRevenue = r.Amount
		}
	}
	return st, nil
}

// MonthlyRevenue sums PAID payments settled during the given UTC month.
func (s *PaymentService) MonthlyRevenue(ctx context.Context, year, month int) (model.MonthlyRevenue, error) {
	if month < 1 || month > 12 {
		return model.MonthlyRevenue{}, validationf("month must be between 1 and 12")
	}
	if year < 1970 || year > 9999 {
		return model.MonthlyRevenue{}, validationf("invalid year %d", year)
	}
	from := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, time.UTC)
	sum, n, err := s.Store.Payments().PaidBetween(ctx, from, from.AddDate(0, 1, 0))
	if err != nil {
		return model.MonthlyRevenue{}, err
	}
	return model.MonthlyRevenue{Year: year, Month: month, Revenue: sum, Payments: n}, nil
}
