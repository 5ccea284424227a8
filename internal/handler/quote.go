package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/venue-reservation/internal/middleware"
	"github.com/iliyamo/venue-reservation/internal/model"
	"github.com/iliyamo/venue-reservation/internal/service"
	"github.com/iliyamo/venue-reservation/internal/store"
)

type QuoteHandler struct {
	Svc *service.QuoteService
}

func NewQuoteHandler(svc *service.QuoteService) *QuoteHandler {
	return &QuoteHandler{Svc: svc}
}

type createQuoteReq struct {
	Items         []model.QuoteItem `json:"items"`
	Currency      string            `json:"currency"`
	ReservationID *string           `json:"reservation_id"`
}

type updateQuoteReq struct {
	Items    *[]model.QuoteItem `json:"items"`
	Currency *string            `json:"currency"`
}

type itemPatchReq struct {
	Label       *string       `json:"label"`
	Description *string       `json:"description"`
	Quantity    *model.Number `json:"quantity"`
	Price       *model.Number `json:"price"`
}

func (h *QuoteHandler) respond(c echo.Context, status int, q model.Quote, err error) error {
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(status, q)
}

func (h *QuoteHandler) Create(c echo.Context) error {
	var req createQuoteReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.Create(ctx, service.CreateQuoteInput{Items: req.Items, Currency: req.Currency, ReservationID: req.ReservationID})
	return h.respond(c, http.StatusCreated, q, err)
}

// List supports ?has_reservation=true|false and skip/take.
func (h *QuoteHandler) List(c echo.Context) error {
	f := store.QuoteFilter{Page: page(c)}
	if v := c.QueryParam("has_reservation"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return badRequest(c, "invalid has_reservation")
		}
		f.HasReservation = &b
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	out, err := h.Svc.List(ctx, f)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, out)
}

func (h *QuoteHandler) Get(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.Get(ctx, middleware.Actor(c), c.Param("id"))
	return h.respond(c, http.StatusOK, q, err)
}

func (h *QuoteHandler) ByReservation(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.ByReservation(ctx, c.Param("reservationId"))
	return h.respond(c, http.StatusOK, q, err)
}

func (h *QuoteHandler) Update(c echo.Context) error {
	var req updateQuoteReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.Update(ctx, c.Param("id"), service.UpdateQuoteInput{Items: req.Items, Currency: req.Currency})
	return h.respond(c, http.StatusOK, q, err)
}

func (h *QuoteHandler) Delete(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	if err := h.Svc.Delete(ctx, c.Param("id")); err != nil {
		return fail(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *QuoteHandler) Duplicate(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.Duplicate(ctx, c.Param("id"))
	return h.respond(c, http.StatusCreated, q, err)
}

func (h *QuoteHandler) Link(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.Link(ctx, c.Param("id"), c.Param("reservationId"))
	return h.respond(c, http.StatusOK, q, err)
}

func (h *QuoteHandler) Unlink(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.Unlink(ctx, c.Param("id"))
	return h.respond(c, http.StatusOK, q, err)
}

func (h *QuoteHandler) AddItem(c echo.Context) error {
	var item model.QuoteItem
	if err := c.Bind(&item); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.AddItem(ctx, c.Param("id"), item)
	return h.respond(c, http.StatusOK, q, err)
}

func (h *QuoteHandler) UpdateItem(c echo.Context) error {
	idx, ok := itemIndex(c)
	if !ok {
		return badRequest(c, "invalid index")
	}
	var req itemPatchReq
	if err := c.Bind(&req); err != nil {
		return badRequest(c, "invalid body")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.UpdateItem(ctx, c.Param("id"), idx, service.QuoteItemPatch{
		Label: req.Label, Description: req.Description, Quantity: req.Quantity, Price: req.Price,
	})
	return h.respond(c, http.StatusOK, q, err)
}

func (h *QuoteHandler) RemoveItem(c echo.Context) error {
	idx, ok := itemIndex(c)
	if !ok {
		return badRequest(c, "invalid index")
	}
	ctx, cancel := reqCtx(c)
	defer cancel()
	q, err := h.Svc.RemoveItem(ctx, c.Param("id"), idx)
	return h.respond(c, http.StatusOK, q, err)
}

func (h *QuoteHandler) Stats(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	st, err := h.Svc.Stats(ctx)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, st)
}

func (h *QuoteHandler) Export(c echo.Context) error {
	ctx, cancel := reqCtx(c)
	defer cancel()
	exp, err := h.Svc.Export(ctx, middleware.Actor(c), c.Param("id"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(http.StatusOK, exp)
}
