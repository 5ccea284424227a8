package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/venue-reservation/internal/model"
)

// MemoryStore implements Store with in-memory maps. A unit of work holds the
// write lock for its whole duration, so transactions are serial; a failed
// unit of work restores the snapshot taken when it began.
type MemoryStore struct {
	mu   sync.RWMutex
	data *memData
}

type memData struct {
	reservations map[string]model.Reservation
	payments     map[string]model.Payment
	quotes       map[string]model.Quote
	users        map[string]model.User
	tokens       map[string]model.RefreshToken // token hash -> row
	tokenSeq     uint64
}

func newMemData() *memData {
	return &memData{
		reservations: make(map[string]model.Reservation),
		payments:     make(map[string]model.Payment),
		quotes:       make(map[string]model.Quote),
		users:        make(map[string]model.User),
		tokens:       make(map[string]model.RefreshToken),
	}
}

func (d *memData) clone() *memData {
	c := newMemData()
	for k, v := range d.reservations {
		c.reservations[k] = v
	}
	for k, v := range d.payments {
		c.payments[k] = v
	}
	for k, v := range d.quotes {
		v.Items = v.Items.Clone()
		c.quotes[k] = v
	}
	for k, v := range d.users {
		c.users[k] = v
	}
	for k, v := range d.tokens {
		c.tokens[k] = v
	}
	c.tokenSeq = d.tokenSeq
	return c
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{data: newMemData()}
}

// WithinTx runs fn under the store's write lock.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(tx Repositories) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snapshot := s.data.clone()
	if err := fn(memRepos{s: s, inTx: true}); err != nil {
		s.data = snapshot
		return err
	}
	return nil
}

func (s *MemoryStore) Reservations() ReservationRepository { return memRepos{s: s}.Reservations() }
func (s *MemoryStore) Payments() PaymentRepository         { return memRepos{s: s}.Payments() }
func (s *MemoryStore) Quotes() QuoteRepository             { return memRepos{s: s}.Quotes() }
func (s *MemoryStore) Users() UserRepository               { return memRepos{s: s}.Users() }
func (s *MemoryStore) Tokens() TokenRepository             { return memRepos{s: s}.Tokens() }

// memRepos binds repositories to the store. Inside a unit of work the lock
// is already held and must not be taken again.
type memRepos struct {
	s    *MemoryStore
	inTx bool
}

func (r memRepos) Reservations() ReservationRepository { return memReservations{r} }
func (r memRepos) Payments() PaymentRepository         { return memPayments{r} }
func (r memRepos) Quotes() QuoteRepository             { return memQuotes{r} }
func (r memRepos) Users() UserRepository               { return memUsers{r} }
func (r memRepos) Tokens() TokenRepository             { return memTokens{r} }

func (r memRepos) read(fn func(d *memData) error) error {
	if !r.inTx {
		r.s.mu.RLock()
		defer r.s.mu.RUnlock()
	}
	return fn(r.s.data)
}

func (r memRepos) write(fn func(d *memData) error) error {
	if !r.inTx {
		r.s.mu.Lock()
		defer r.s.mu.Unlock()
	}
	return fn(r.s.data)
}

func paginate[T any](items []T, p Page) []T {
	p = p.Normalize()
	if p.Skip >= len(items) {
		return []T{}
	}
	end := p.Skip + p.Take
	if end > len(items) {
		end = len(items)
	}
	return items[p.Skip:end]
}

// ---- reservations ----

type memReservations struct{ memRepos }

// LockCalendar is a no-op: a unit of work already owns the store lock.
func (memReservations) LockCalendar(context.Context) error { return nil }

func (r memReservations) Create(_ context.Context, res *model.Reservation) error {
	return r.write(func(d *memData) error {
		if _, ok := d.reservations[res.ID]; ok {
			return ErrDuplicate
		}
		if err := d.checkQuoteLink(res.ID, res.QuoteID); err != nil {
			return err
		}
		d.reservations[res.ID] = *res
		return nil
	})
}

func (d *memData) checkQuoteLink(reservationID string, quoteID *string) error {
	if quoteID == nil {
		return nil
	}
	for id, other := range d.reservations {
		if id != reservationID && other.QuoteID != nil && *other.QuoteID == *quoteID {
			return ErrDuplicate
		}
	}
	return nil
}

func (r memReservations) GetByID(_ context.Context, id string) (model.Reservation, error) {
	var out model.Reservation
	err := r.read(func(d *memData) error {
		res, ok := d.reservations[id]
		if !ok {
			return ErrNotFound
		}
		out = res
		return nil
	})
	return out, err
}

func (r memReservations) GetByQuoteID(_ context.Context, quoteID string) (model.Reservation, error) {
	var out model.Reservation
	err := r.read(func(d *memData) error {
		for _, res := range d.reservations {
			if res.QuoteID != nil && *res.QuoteID == quoteID {
				out = res
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memReservations) List(_ context.Context, f ReservationFilter) ([]model.Reservation, error) {
	var out []model.Reservation
	err := r.read(func(d *memData) error {
		for _, res := range d.reservations {
			if f.Status != "" && res.Status != f.Status {
				continue
			}
			if f.EventType != "" && res.EventType != f.EventType {
				continue
			}
			if f.UserID != "" && res.UserID != f.UserID {
				continue
			}
			if f.StartFrom != nil && res.StartsAt.Before(*f.StartFrom) {
				continue
			}
			if f.StartTo != nil && res.StartsAt.After(*f.StartTo) {
				continue
			}
			out = append(out, res)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Page), err
}

func (r memReservations) FindOverlapping(_ context.Context, start, end time.Time, excludeID string) ([]model.Reservation, error) {
	var out []model.Reservation
	err := r.read(func(d *memData) error {
		for _, res := range d.reservations {
			if res.ID == excludeID || !res.Status.Active() {
				continue
			}
			if res.Overlaps(start, end) {
				out = append(out, res)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].StartsAt.Before(out[j].StartsAt) })
	return out, err
}

func (r memReservations) Update(_ context.Context, res *model.Reservation) error {
	return r.write(func(d *memData) error {
		if _, ok := d.reservations[res.ID]; !ok {
			return ErrNotFound
		}
		if err := d.checkQuoteLink(res.ID, res.QuoteID); err != nil {
			return err
		}
		d.reservations[res.ID] = *res
		return nil
	})
}

func (r memReservations) Delete(_ context.Context, id string) error {
	return r.write(func(d *memData) error {
		if _, ok := d.reservations[id]; !ok {
			return ErrNotFound
		}
		delete(d.reservations, id)
		return nil
	})
}

func (r memReservations) CountByStatus(_ context.Context, userID string) (map[model.ReservationStatus]int, error) {
	out := make(map[model.ReservationStatus]int)
	err := r.read(func(d *memData) error {
		for _, res := range d.reservations {
			if userID != "" && res.UserID != userID {
				continue
			}
			out[res.Status]++
		}
		return nil
	})
	return out, err
}

// ---- payments ----

type memPayments struct{ memRepos }

func (r memPayments) Create(_ context.Context, p *model.Payment) error {
	return r.write(func(d *memData) error {
		if _, ok := d.payments[p.ID]; ok {
			return ErrDuplicate
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (r memPayments) GetByID(_ context.Context, id string) (model.Payment, error) {
	var out model.Payment
	err := r.read(func(d *memData) error {
		p, ok := d.payments[id]
		if !ok {
			return ErrNotFound
		}
		out = p
		return nil
	})
	return out, err
}

func (r memPayments) List(_ context.Context, f PaymentFilter) ([]model.Payment, error) {
	var out []model.Payment
	err := r.read(func(d *memData) error {
		for _, p := range d.payments {
			if f.Status != "" && p.Status != f.Status {
				continue
			}
			if f.Type != "" && p.Type != f.Type {
				continue
			}
			if f.ReservationID != "" && p.ReservationID != f.ReservationID {
				continue
			}
			if f.UserID != "" && p.UserID != f.UserID {
				continue
			}
			out = append(out, p)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Page), err
}

func (r memPayments) Update(_ context.Context, p *model.Payment) error {
	return r.write(func(d *memData) error {
		if _, ok := d.payments[p.ID]; !ok {
			return ErrNotFound
		}
		d.payments[p.ID] = *p
		return nil
	})
}

func (r memPayments) Delete(_ context.Context, id string) error {
	return r.write(func(d *memData) error {
		if _, ok := d.payments[id]; !ok {
			return ErrNotFound
		}
		delete(d.payments, id)
		return nil
	})
}

func (r memPayments) CountByReservation(_ context.Context, reservationID string) (int, error) {
	n := 0
	err := r.read(func(d *memData) error {
		for _, p := range d.payments {
			if p.ReservationID == reservationID {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memPayments) HasPaid(_ context.Context, reservationID, excludeID string) (bool, error) {
	found := false
	err := r.read(func(d *memData) error {
		for _, p := range d.payments {
			if p.ReservationID == reservationID && p.ID != excludeID && p.Status == model.PaymentPaid {
				found = true
				return nil
			}
		}
		return nil
	})
	return found, err
}

func (r memPayments) TotalsByStatus(context.Context) ([]model.PaymentStatusTotal, error) {
	totals := make(map[model.PaymentStatus]*model.PaymentStatusTotal)
	err := r.read(func(d *memData) error {
		for _, p := range d.payments {
			t, ok := totals[p.Status]
			if !ok {
				t = &model.PaymentStatusTotal{Status: p.Status}
				totals[p.Status] = t
			}
			t.Count++
			t.Amount += p.Amount
		}
		return nil
	})
	out := make([]model.PaymentStatusTotal, 0, len(totals))
	for _, t := range totals {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, err
}

func (r memPayments) PaidBetween(_ context.Context, from, to time.Time) (float64, int, error) {
	var (
		sum float64
		n   int
	)
	err := r.read(func(d *memData) error {
		for _, p := range d.payments {
			if p.Status != model.PaymentPaid || p.PaidAt == nil {
				continue
			}
			if p.PaidAt.Before(from) || !p.PaidAt.Before(to) {
				continue
			}
			sum += p.Amount
			n++
		}
		return nil
	})
	return sum, n, err
}

func (r memPayments) PaidByUser(_ context.Context, userID string) (float64, int, error) {
	var (
		sum float64
		n   int
	)
	err := r.read(func(d *memData) error {
		for _, p := range d.payments {
			if p.UserID == userID && p.Status == model.PaymentPaid {
				sum += p.Amount
				n++
			}
		}
		return nil
	})
	return sum, n, err
}

// ---- quotes ----

type memQuotes struct{ memRepos }

// withLink fills ReservationID from the reservation that references q.
func (d *memData) withLink(q model.Quote) model.Quote {
	q.Items = q.Items.Clone()
	q.ReservationID = nil
	for _, res := range d.reservations {
		if res.QuoteID != nil && *res.QuoteID == q.ID {
			id := res.ID
			q.ReservationID = &id
			break
		}
	}
	return q
}

func (r memQuotes) Create(_ context.Context, q *model.Quote) error {
	return r.write(func(d *memData) error {
		if _, ok := d.quotes[q.ID]; ok {
			return ErrDuplicate
		}
		stored := *q
		stored.Items = q.Items.Clone()
		stored.ReservationID = nil
		d.quotes[q.ID] = stored
		return nil
	})
}

func (r memQuotes) GetByID(_ context.Context, id string) (model.Quote, error) {
	var out model.Quote
	err := r.read(func(d *memData) error {
		q, ok := d.quotes[id]
		if !ok {
			return ErrNotFound
		}
		out = d.withLink(q)
		return nil
	})
	return out, err
}

func (r memQuotes) List(_ context.Context, f QuoteFilter) ([]model.Quote, error) {
	var out []model.Quote
	err := r.read(func(d *memData) error {
		for _, q := range d.quotes {
			q = d.withLink(q)
			if f.HasReservation != nil && (q.ReservationID != nil) != *f.HasReservation {
				continue
			}
			out = append(out, q)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return paginate(out, f.Page), err
}

func (r memQuotes) Update(_ context.Context, q *model.Quote) error {
	return r.write(func(d *memData) error {
		if _, ok := d.quotes[q.ID]; !ok {
			return ErrNotFound
		}
		stored := *q
		stored.Items = q.Items.Clone()
		stored.ReservationID = nil
		d.quotes[q.ID] = stored
		return nil
	})
}

func (r memQuotes) Delete(_ context.Context, id string) error {
	return r.write(func(d *memData) error {
		if _, ok := d.quotes[id]; !ok {
			return ErrNotFound
		}
		delete(d.quotes, id)
		for rid, res := range d.reservations {
			if res.QuoteID != nil && *res.QuoteID == id {
				res.QuoteID = nil
				d.reservations[rid] = res
			}
		}
		return nil
	})
}

func (r memQuotes) Stats(context.Context) (model.QuoteStats, error) {
	var st model.QuoteStats
	err := r.read(func(d *memData) error {
		for _, q := range d.quotes {
			st.TotalQuotes++
			st.TotalAmount += q.TotalAmount
			if d.withLink(q).ReservationID != nil {
				st.QuotesWithReservation++
			}
		}
		st.QuotesWithoutReservation = st.TotalQuotes - st.QuotesWithReservation
		return nil
	})
	return st, err
}

// ---- users ----

type memUsers struct{ memRepos }

func (r memUsers) Create(_ context.Context, u *model.User) error {
	return r.write(func(d *memData) error {
		email := strings.ToLower(strings.TrimSpace(u.Email))
		for _, other := range d.users {
			if other.Email == email {
				return ErrDuplicate
			}
		}
		u.Email = email
		d.users[u.ID] = *u
		return nil
	})
}

func (r memUsers) GetByID(_ context.Context, id string) (model.User, error) {
	var out model.User
	err := r.read(func(d *memData) error {
		u, ok := d.users[id]
		if !ok {
			return ErrNotFound
		}
		out = u
		return nil
	})
	return out, err
}

func (r memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var out model.User
	err := r.read(func(d *memData) error {
		for _, u := range d.users {
			if u.Email == email {
				out = u
				return nil
			}
		}
		return ErrNotFound
	})
	return out, err
}

func (r memUsers) List(_ context.Context, f UserFilter) ([]model.User, error) {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	var out []model.User
	err := r.read(func(d *memData) error {
		for _, u := range d.users {
			if f.Role != "" && u.Role != f.Role {
				continue
			}
			if search != "" && !strings.Contains(u.Email, search) &&
				!strings.Contains(strings.ToLower(u.FirstName), search) &&
				!strings.Contains(strings.ToLower(u.LastName), search) {
				continue
			}
			out = append(out, u)
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return paginate(out, f.Page), err
}

func (r memUsers) Count(_ context.Context, role model.Role) (int, error) {
	var n int
	err := r.read(func(d *memData) error {
		for _, u := range d.users {
			if role == "" || u.Role == role {
				n++
			}
		}
		return nil
	})
	return n, err
}

func (r memUsers) Update(_ context.Context, u *model.User) error {
	return r.write(func(d *memData) error {
		if _, ok := d.users[u.ID]; !ok {
			return ErrNotFound
		}
		email := strings.ToLower(strings.TrimSpace(u.Email))
		for _, other := range d.users {
			if other.ID != u.ID && other.Email == email {
				return ErrDuplicate
			}
		}
		u.Email = email
		d.users[u.ID] = *u
		return nil
	})
}

// Delete removes the user and, like the foreign key cascade, its refresh
// tokens.
func (r memUsers) Delete(_ context.Context, id string) error {
	return r.write(func(d *memData) error {
		if _, ok := d.users[id]; !ok {
			return ErrNotFound
		}
		delete(d.users, id)
		for h, t := range d.tokens {
			if t.UserID == id {
				delete(d.tokens, h)
			}
		}
		return nil
	})
}

// ---- refresh tokens ----

type memTokens struct{ memRepos }

func (r memTokens) StoreRefresh(_ context.Context, userID, tokenHash string, exp time.Time) error {
	return r.write(func(d *memData) error {
		if _, ok := d.tokens[tokenHash]; ok {
			return ErrDuplicate
		}
		d.tokenSeq++
		d.tokens[tokenHash] = model.RefreshToken{
			ID:        d.tokenSeq,
			UserID:    userID,
			TokenHash: tokenHash,
			ExpiresAt: exp,
			CreatedAt: time.Now().UTC(),
		}
		return nil
	})
}

func (r memTokens) ValidateRefresh(_ context.Context, tokenHash string, now time.Time) (string, error) {
	var userID string
	err := r.read(func(d *memData) error {
		t, ok := d.tokens[tokenHash]
		if !ok || t.RevokedAt != nil || now.After(t.ExpiresAt) {
			return ErrNotFound
		}
		userID = t.UserID
		return nil
	})
	return userID, err
}

func (r memTokens) RevokeByHash(_ context.Context, tokenHash string) error {
	return r.write(func(d *memData) error {
		if t, ok := d.tokens[tokenHash]; ok && t.RevokedAt == nil {
			now := time.Now().UTC()
			t.RevokedAt = &now
			d.tokens[tokenHash] = t
		}
		return nil
	})
}

func (r memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	return r.write(func(d *memData) error {
		now := time.Now().UTC()
		for h, t := range d.tokens {
			if t.UserID == userID && t.RevokedAt == nil {
				t.RevokedAt = &now
				d.tokens[h] = t
			}
		}
		return nil
	})
}
