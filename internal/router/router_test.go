package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/venue-reservation/internal/config"
	"github.com/iliyamo/venue-reservation/internal/handler"
	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/store"
	"github.com/iliyamo/venue-reservation/internal/utils"
)

const secret = "router-test"

type api struct {
	t     *testing.T
	e     *echo.Echo
	auth  *service.AuthService
	admin string
}

func newAPI(t *testing.T) *api {
	t.Helper()
	return newLimitedAPI(t, nil)
}

func newLimitedAPI(t *testing.T, limit echo.MiddlewareFunc) *api {
	t.Helper()
	st := store.NewMemoryStore()
	auth := service.NewAuthService(st, service.TokenSettings{Secret: secret, AccessTTLMin: 5, RefreshTTLDays: 1, BcryptCost: 4})
	e := echo.New()
	Register(e, Handlers{
		Auth:         handler.NewAuthHandler(auth, secret),
		Reservations: handler.NewReservationHandler(service.NewReservationService(st, nil, service.DefaultOpeningHours)),
		Payments:     handler.NewPaymentHandler(service.NewPaymentService(st, nil, service.SimulatedGateway{}, "")),
		Quotes:       handler.NewQuoteHandler(service.NewQuoteService(st, "")),
		Users:        handler.NewUserHandler(service.NewUserService(st, 4)),
		RateLimit:    limit,
	}, secret)

	a := &api{t: t, e: e, auth: auth}
	admin, err := auth.CreateStaff(context.Background(), service.RegisterInput{Email: "admin@example.com", Password: "admin-pass"}, model.RoleAdmin)
	require.NoError(t, err)
	tok, err := utils.NewAccessToken(secret, admin.ID, string(admin.Role), 5)
	require.NoError(t, err)
	a.admin = tok.Token
	return a
}

func (a *api) do(method, path, token string, body any) *httptest.ResponseRecorder {
	a.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(a.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	if token != "" {
		req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	a.e.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

// register signs a client up over HTTP and returns its access token.
func (a *api) register(email string) (token, id string) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/v1/auth/register", "", map[string]string{"email": email, "password": "long-enough"})
	require.Equal(a.t, http.StatusCreated, rec.Code, rec.Body.String())
	resp := decode[struct {
		User   model.User `json:"user"`
		Access struct {
			Token string `json:"token"`
		} `json:"access"`
	}](a.t, rec)
	return resp.Access.Token, resp.User.ID
}

func slot(days, hour, hours int) (time.Time, time.Time) {
	d := time.Now().UTC().AddDate(0, 0, days)
	start := time.Date(d.Year(), d.Month(), d.Day(), hour, 0, 0, 0, time.UTC)
	return start, start.Add(time.Duration(hours) * time.Hour)
}

func TestBookingPaymentFlowOverHTTP(t *testing.T) {
	a := newAPI(t)
	client, _ := a.register("client@example.com")
	rival, _ := a.register("rival@example.com")
	start, end := slot(10, 12, 4)

	rec := a.do(http.MethodPost, "/v1/reservations", client, map[string]any{
		"event_type": "WEDDING", "starts_at": start, "ends_at": end, "attendees": 120,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	res := decode[model.Reservation](t, rec)
	assert.Equal(t, model.ReservationPending, res.Status)

	// Overlapping booking is a conflict; a touching one is fine.
	rec = a.do(http.MethodPost, "/v1/reservations", rival, map[string]any{
		"event_type": "OTHER", "starts_at": start.Add(time.Hour), "ends_at": end.Add(time.Hour), "attendees": 10,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = a.do(http.MethodPost, "/v1/reservations", rival, map[string]any{
		"event_type": "OTHER", "starts_at": end, "ends_at": end.Add(time.Hour), "attendees": 10,
	})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	q := "/v1/reservations/availability?start_date=" + start.Format(time.RFC3339) + "&end_date=" + end.Format(time.RFC3339)
	rec = a.do(http.MethodGet, q, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, false, decode[map[string]any](t, rec)["available"])

	// Only the owner can see or pay for the reservation.
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/reservations/"+res.ID, rival, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/v1/payments", rival, map[string]any{
		"reservation_id": res.ID, "amount": 100,
	}).Code)

	rec = a.do(http.MethodPost, "/v1/payments", client, map[string]any{"reservation_id": res.ID, "amount": 250000})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	pay := decode[model.Payment](t, rec)
	assert.Equal(t, model.DefaultCurrency, pay.Currency)

	rec = a.do(http.MethodPost, "/v1/payments/"+pay.ID+"/process", client, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, model.PaymentPaid, decode[model.Payment](t, rec).Status)

	rec = a.do(http.MethodGet, "/v1/reservations/"+res.ID, client, nil)
	assert.Equal(t, model.ReservationConfirmed, decode[model.Reservation](t, rec).Status)

	rec = a.do(http.MethodGet, "/v1/payments/"+pay.ID+"/invoice", client, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "INV-"+pay.ID, decode[model.Invoice](t, rec).InvoiceID)

	// Refund is admin only and cancels the reservation.
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPatch, "/v1/payments/"+pay.ID+"/refund", client, nil).Code)
	rec = a.do(http.MethodPatch, "/v1/payments/"+pay.ID+"/refund", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = a.do(http.MethodGet, "/v1/reservations/"+res.ID, client, nil)
	assert.Equal(t, model.ReservationCanceled, decode[model.Reservation](t, rec).Status)

	// A second refund is an illegal transition.
	assert.Equal(t, http.StatusConflict, a.do(http.MethodPatch, "/v1/payments/"+pay.ID+"/refund", a.admin, nil).Code)
}

func TestRoleGatesAndErrors(t *testing.T) {
	a := newAPI(t)
	client, _ := a.register("c@example.com")

	assert.Equal(t, http.StatusUnauthorized, a.do(http.MethodGet, "/v1/reservations", "", nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/reservations/stats", client, nil).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/v1/quotes", client, map[string]any{}).Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPost, "/v1/users/staff", client, map[string]any{}).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/reservations/nope", a.admin, nil).Code)

	rec := a.do(http.MethodPost, "/v1/reservations", client, map[string]any{
		"event_type": "WEDDING", "starts_at": time.Now().Add(48 * time.Hour), "ends_at": time.Now().Add(47 * time.Hour), "attendees": 5,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/healthz", "", nil).Code)
}

func TestQuoteEndpoints(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/quotes", a.admin, map[string]any{
		"items": []map[string]any{
			{"label": "Hall", "quantity": 1, "price": "500000"},
			{"label": "Chairs", "quantity": 100, "price": 250},
		},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	q := decode[model.Quote](t, rec)
	assert.InDelta(t, 525000, q.TotalAmount, 0.001)

	rec = a.do(http.MethodPatch, "/v1/quotes/"+q.ID+"/items/1", a.admin, map[string]any{"quantity": 200})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.InDelta(t, 550000, decode[model.Quote](t, rec).TotalAmount, 0.001)

	rec = a.do(http.MethodDelete, "/v1/quotes/"+q.ID+"/items/0", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.InDelta(t, 50000, decode[model.Quote](t, rec).TotalAmount, 0.001)

	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodDelete, "/v1/quotes/"+q.ID+"/items/x", a.admin, nil).Code)

	rec = a.do(http.MethodGet, "/v1/quotes?has_reservation=false", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.Quote](t, rec), 1)

	rec = a.do(http.MethodGet, "/v1/quotes/stats", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, decode[model.QuoteStats](t, rec).TotalQuotes)
}

func TestQuoteWithOverflowingItemsIsRejected(t *testing.T) {
	a := newAPI(t)

	rec := a.do(http.MethodPost, "/v1/quotes", a.admin, map[string]any{
		"items": []map[string]any{{"label": "huge", "quantity": 1e200, "price": 1e200}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())

	rec = a.do(http.MethodGet, "/v1/quotes", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Empty(t, decode[[]model.Quote](t, rec))
}

func TestAuthEndpoints(t *testing.T) {
	a := newAPI(t)
	_, _ = a.register("me@example.com")

	rec := a.do(http.MethodPost, "/v1/auth/register", "", map[string]string{"email": "me@example.com", "password": "long-enough"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "me@example.com", "password": "nope-nope"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "me@example.com", "password": "long-enough"})
	require.Equal(t, http.StatusOK, rec.Code)
	var sess struct {
		Access  struct{ Token string } `json:"access"`
		Refresh struct{ Token string } `json:"refresh"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sess))

	rec = a.do(http.MethodGet, "/v1/me", sess.Access.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "me@example.com", decode[model.User](t, rec).Email)

	assert.Equal(t, http.StatusNoContent, a.do(http.MethodPost, "/v1/auth/logout", sess.Access.Token, nil).Code)
	rec = a.do(http.MethodPost, "/v1/auth/refresh", "", map[string]string{"refresh_token": sess.Refresh.Token})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = a.do(http.MethodPost, "/v1/users/staff", a.admin, map[string]string{
		"email": "mgr@example.com", "password": "long-enough", "role": "event_manager",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, model.RoleEventManager, decode[model.User](t, rec).Role)
}

func TestUserEndpoints(t *testing.T) {
	a := newAPI(t)
	ada, adaID := a.register("ada@example.com")
	bob, _ := a.register("bob@example.com")

	rec := a.do(http.MethodGet, "/v1/users/"+adaID, ada, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "ada@example.com", decode[model.UserProfile](t, rec).Email)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/users/"+adaID, bob, nil).Code)

	rec = a.do(http.MethodPatch, "/v1/users/"+adaID, ada, map[string]any{"first_name": "Ada", "role": "admin"})
	assert.Equal(t, http.StatusForbidden, rec.Code)
	rec = a.do(http.MethodPatch, "/v1/users/"+adaID, ada, map[string]any{"first_name": "Ada"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Ada", decode[model.User](t, rec).FirstName)

	rec = a.do(http.MethodPost, "/v1/auth/change-password", ada, map[string]string{
		"current_password": "long-enough", "new_password": "even-longer-now",
	})
	require.Equal(t, http.StatusNoContent, rec.Code, rec.Body.String())
	rec = a.do(http.MethodPost, "/v1/auth/login", "", map[string]string{"email": "ada@example.com", "password": "even-longer-now"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusForbidden, a.do(http.MethodPatch, "/v1/users/"+adaID+"/password", bob, map[string]string{
		"current_password": "even-longer-now", "new_password": "hijacked-pass",
	}).Code)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodGet, "/v1/users/count", bob, nil).Code)
	rec = a.do(http.MethodGet, "/v1/users/count?role=client", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 2, decode[map[string]any](t, rec)["count"])

	rec = a.do(http.MethodGet, "/v1/users/search?q=ADA", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec), 1)
	rec = a.do(http.MethodGet, "/v1/users/by-role/admin", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]model.User](t, rec), 1)
	assert.Equal(t, http.StatusBadRequest, a.do(http.MethodGet, "/v1/users/by-role/root", a.admin, nil).Code)

	rec = a.do(http.MethodGet, "/v1/users/"+adaID+"/stats", a.admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Zero(t, decode[model.UserStats](t, rec).Reservations.Total)

	assert.Equal(t, http.StatusForbidden, a.do(http.MethodDelete, "/v1/users/"+adaID, bob, nil).Code)
	assert.Equal(t, http.StatusNoContent, a.do(http.MethodDelete, "/v1/users/"+adaID, a.admin, nil).Code)
	assert.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/v1/users/"+adaID, a.admin, nil).Code)
}

func TestRateLimitBucketsPerUser(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	cfg := config.RateLimitConfig{
		Enabled: true, Capacity: 1, RefillTokens: 1,
		RefillInterval: time.Hour, TTL: time.Hour, KeyStrategy: "user", Prefix: "test",
	}
	a := newLimitedAPI(t, middleware.NewTokenBucket(cfg, rdb))

	// Sign-ups come from one IP, so mint tokens directly.
	alice, err := utils.NewAccessToken(secret, "user-a", string(model.RoleClient), 5)
	require.NoError(t, err)
	bob, err := utils.NewAccessToken(secret, "user-b", string(model.RoleClient), 5)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/reservations/my", alice.Token, nil).Code)
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/reservations/my", bob.Token, nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, a.do(http.MethodGet, "/v1/reservations/my", alice.Token, nil).Code)

	assert.True(t, mr.Exists("test:user:user-a"))
	assert.True(t, mr.Exists("test:user:user-b"))
	assert.False(t, mr.Exists("test:user:anon"))

	// Anonymous callers fall back to an IP bucket.
	assert.Equal(t, http.StatusOK, a.do(http.MethodGet, "/v1/reservations/available-slots?date=2030-01-01", "", nil).Code)
	assert.Equal(t, http.StatusTooManyRequests, a.do(http.MethodGet, "/v1/reservations/available-slots?date=2030-01-01", "", nil).Code)
}
