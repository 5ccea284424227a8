package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/store"
)

type PaymentHandler struct {
	Svc *service.PaymentService
}

func NewPaymentHandler(svc *service.PaymentService) *PaymentHandler {
	return &PaymentHandler{Svc: svc}
}

type createPaymentReq struct {
	ReservationID string            `json:"reservation_id"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Type          model.PaymentType `json:"type"`
	Description   string            `json:"description"`
	DueAt         *time.Time        `json:"due_at"`
}

type updatePaymentReq struct {
	Amount      *float64             `json:"amount"`
	Currency    *string              `json:"currency"`
	Type        *model.PaymentType   `json:"type"`
	Description *string              `json:"description"`
	DueAt       *time.Time           `json:"due_at"`
	Status      *model.PaymentStatus `json:"status"`
}

func (h *PaymentHandler) Create(c echo.Context) error {
	var req createPaymentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Svc.Create(ctx, middleware.Actor(c), service.CreatePaymentInput{
		ReservationID: req.ReservationID,
		Amount:        req.Amount,
		Currency:      req.Currency,
		Type:          req.Type,
		Description:   req.Description,
		DueAt:         req.DueAt,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusCreated, p)
}

func filterFromQuery(c echo.Context) store.PaymentFilter {
	return store.PaymentFilter{
		Status:        model.PaymentStatus(strings.ToUpper(c.QueryParam("status"))),
		Type:          model.PaymentType(strings.ToUpper(c.QueryParam("type"))),
		ReservationID: c.QueryParam("reservation_id"),
		UserID:        c.QueryParam("user_id"),
		Page:          page(c),
	}
}

func (h *PaymentHandler) list(c echo.Context, f store.PaymentFilter) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.List(ctx, middleware.Actor(c), f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

// List supports status, type, reservation_id, user_id and skip/take.
func (h *PaymentHandler) List(c echo.Context) error { return h.list(c, filterFromQuery(c)) }

func (h *PaymentHandler) Mine(c echo.Context) error {
	f := filterFromQuery(c)
	f.UserID = middleware.UserID(c)
	return h.list(c, f)
}

func (h *PaymentHandler) ByUser(c echo.Context) error {
	f := filterFromQuery(c)
	f.UserID = c.Param("userId")
	return h.list(c, f)
}

func (h *PaymentHandler) ByReservation(c echo.Context) error {
	f := filterFromQuery(c)
	f.ReservationID = c.Param("reservationId")
	return h.list(c, f)
}

func (h *PaymentHandler) Pending(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.Pending(ctx, page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) Failed(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.Failed(ctx, page(c))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *PaymentHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Svc.Get(ctx, middleware.Actor(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PaymentHandler) Invoice(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	inv, err := h.Svc.Invoice(ctx, middleware.Actor(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, inv)
}

func (h *PaymentHandler) Update(c echo.Context) error {
	var req updatePaymentReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	p, err := h.Svc.Update(ctx, c.Param("id"), service.UpdatePaymentInput{
		Amount:      req.Amount,
		Currency:    req.Currency,
		Type:        req.Type,
		Description: req.Description,
		DueAt:       req.DueAt,
		Status:      req.Status,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

// Process charges the payment through the gateway. A decline answers 402
// and leaves the payment FAILED.
func (h *PaymentHandler) Process(c echo.Context) error {
	// The gateway may be slow, so this call gets the request context
	// without the usual store timeout.
	p, err := h.Svc.Process(c.Request().Context(), middleware.Actor(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PaymentHandler) transition(c echo.Context, fn func(id string) (model.Payment, error)) error {
	p, err := fn(c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *PaymentHandler) MarkPaid(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.transition(c, func(id string) (model.Payment, error) { return h.Svc.MarkPaid(ctx, id) })
}

func (h *PaymentHandler) MarkFailed(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.transition(c, func(id string) (model.Payment, error) { return h.Svc.MarkFailed(ctx, id) })
}

func (h *PaymentHandler) Refund(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	return h.transition(c, func(id string) (model.Payment, error) { return h.Svc.Refund(ctx, id) })
}

func (h *PaymentHandler) SetStatus(c echo.Context) error {
	var req statusReq
	if err := c.Bind(&req); err != nil || req.Status == "" {
		return badRequest(c, "status required")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	status := model.PaymentStatus(strings.ToUpper(req.Status))
	return h.transition(c, func(id string) (model.Payment, error) { return h.Svc.SetStatus(ctx, id, status) })
}

func (h *PaymentHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.Delete(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *PaymentHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Svc.Stats(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Revenue answers GET /revenue/:year/:month.
func (h *PaymentHandler) Revenue(c echo.Context) error {
	year, err := strconv.Atoi(c.Param("year"))
	if err != nil {
		return badRequest(c, "invalid year")
	}
	month, err := strconv.Atoi(c.Param("month"))
	if err != nil {
		return badRequest(c, "invalid month")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	rev, err := h.Svc.MonthlyRevenue(ctx, year, month)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, rev)
}
